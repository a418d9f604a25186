package cli

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/FinSight/pkg/dataflows"
)

// promptForSymbols asks for one or more comma separated symbols.
func promptForSymbols() ([]string, error) {
	var answer string
	prompt := &survey.Input{
		Message: "Enter stock symbols (e.g., AAPL, MSFT, 0700.HK):",
		Help:    "US tickers, or exchange-qualified codes such as 0700.HK / 600519.SH. Separate several with commas.",
	}

	err := survey.AskOne(prompt, &answer, survey.WithValidator(func(val interface{}) error {
		str, ok := val.(string)
		if !ok {
			return fmt.Errorf("unexpected answer type %T", val)
		}
		_, err := parseSymbols(splitSymbols(str))
		return err
	}))
	if err != nil {
		return nil, err
	}
	return parseSymbols(splitSymbols(answer))
}

// promptForPeriod offers the supported lookback windows.
func promptForPeriod(options []string, def string) (string, error) {
	var period string
	prompt := &survey.Select{
		Message: "Select the lookback period:",
		Options: options,
		Default: def,
	}
	if err := survey.AskOne(prompt, &period); err != nil {
		return "", err
	}
	return period, nil
}

func splitSymbols(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

// parseSymbols validates and de-duplicates symbols, keeping order.
func parseSymbols(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("at least one symbol is required")
	}
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		sym, err := dataflows.ValidateSymbol(r)
		if err != nil {
			return nil, err
		}
		if !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	return out, nil
}
