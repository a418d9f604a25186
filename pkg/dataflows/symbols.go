package dataflows

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidSymbol = errors.New("invalid stock symbol")

var (
	plainSymbol    = regexp.MustCompile(`^[A-Z]{1,5}$`)
	regionalSymbol = regexp.MustCompile(`^[0-9]{1,6}\.(HK|SH|SZ)$`)
	usSymbol       = regexp.MustCompile(`^[A-Z]{1,5}\.US$`)
)

// SymbolRequest is the validated input of an analysis request.
type SymbolRequest struct {
	Symbol string `validate:"required,max=16,symbol"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("symbol", func(fl validator.FieldLevel) bool {
		return symbolAllowed(fl.Field().String())
	})
	return v
}

// symbolAllowed accepts plain tickers, indices (^GSPC), Toronto listings,
// futures/FX pairs containing '=', and exchange-suffixed HK/CN/US codes.
func symbolAllowed(symbol string) bool {
	switch {
	case plainSymbol.MatchString(symbol):
		return true
	case strings.HasPrefix(symbol, "^"), strings.Contains(symbol, ".TO"), strings.Contains(symbol, "="):
		return true
	case regionalSymbol.MatchString(symbol), usSymbol.MatchString(symbol):
		return true
	}
	return false
}

// NormalizeSymbol converts symbol to standard format
func NormalizeSymbol(symbol string) string {
	return strings.TrimSpace(strings.ToUpper(symbol))
}

// ValidateSymbol normalises symbol and checks it against the accepted formats.
func ValidateSymbol(symbol string) (string, error) {
	req := SymbolRequest{Symbol: NormalizeSymbol(symbol)}
	if req.Symbol == "" {
		return "", fmt.Errorf("%w: stock symbol cannot be empty", ErrInvalidSymbol)
	}
	if err := validate.Struct(req); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidSymbol, req.Symbol)
	}
	return req.Symbol, nil
}

// Market returns the exchange suffix of symbol ("HK", "SH", "SZ", "US") or
// "" for plain tickers.
func Market(symbol string) string {
	symbol = NormalizeSymbol(symbol)
	idx := strings.LastIndexByte(symbol, '.')
	if idx < 0 || idx == len(symbol)-1 {
		return ""
	}
	switch suffix := symbol[idx+1:]; suffix {
	case "HK", "SH", "SZ", "US":
		return suffix
	}
	return ""
}
