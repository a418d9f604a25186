package dataflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/shopspring/decimal"

	"github.com/dyike/FinSight/config"
	"github.com/dyike/FinSight/models"
)

// Longport caps a single candlestick request at 1000 bars.
const longportMaxCandles = 1000

var ErrLongportNotConfigured = errors.New("longport API credentials not configured")

// LongportClient serves HK/CN market data through the Longport quote API.
type LongportClient struct {
	candles func(ctx context.Context, symbol string, count int32) ([]*quote.Candlestick, error)
	static  func(ctx context.Context, symbols []string) ([]*quote.StaticInfo, error)
}

func NewLongportClient(cfg *config.Config) (*LongportClient, error) {
	if !cfg.LongportConfigured() {
		return nil, ErrLongportNotConfigured
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken))
	if err != nil {
		return nil, fmt.Errorf("longport config: %w", err)
	}
	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, fmt.Errorf("longport quote context: %w", err)
	}

	return &LongportClient{
		candles: func(ctx context.Context, symbol string, count int32) ([]*quote.Candlestick, error) {
			return quoteContext.Candlesticks(ctx, symbol, quote.PeriodDay, count, quote.AdjustTypeForward)
		},
		static: func(ctx context.Context, symbols []string) ([]*quote.StaticInfo, error) {
			return quoteContext.StaticInfo(ctx, symbols)
		},
	}, nil
}

// FetchPrices returns forward-adjusted daily bars between start and end.
func (lpc *LongportClient) FetchPrices(ctx context.Context, symbol string, start, end time.Time) (models.PriceSeries, error) {
	if lpc.candles == nil {
		return nil, errors.New("quote context is nil")
	}
	// calendar days over-approximate trading days
	count := int32(end.Sub(start).Hours()/24) + 1
	if count > longportMaxCandles {
		count = longportMaxCandles
	}

	sticks, err := lpc.candles(ctx, NormalizeSymbol(symbol), count)
	if err != nil {
		return nil, fmt.Errorf("longport candlesticks for %s: %w", symbol, err)
	}

	var out models.PriceSeries
	for _, c := range sticks {
		if c == nil {
			continue
		}
		ts := time.Unix(c.Timestamp, 0).UTC()
		if ts.Before(start) || ts.After(end) {
			continue
		}
		out = append(out, models.PriceBar{
			Date:   ts,
			Open:   decimalValue(c.Open),
			High:   decimalValue(c.High),
			Low:    decimalValue(c.Low),
			Close:  decimalValue(c.Close),
			Volume: c.Volume,
		})
	}
	out = out.Normalize()
	if len(out) == 0 {
		return nil, models.ErrEmptySeries
	}
	return out, nil
}

// FetchFundamentals derives market cap and trailing P/E from the static info
// and the most recent close.
func (lpc *LongportClient) FetchFundamentals(ctx context.Context, symbol string) (models.Fundamentals, error) {
	if lpc.static == nil {
		return models.Fundamentals{}, errors.New("quote context is nil")
	}
	symbol = NormalizeSymbol(symbol)
	infos, err := lpc.static(ctx, []string{symbol})
	if err != nil {
		return models.Fundamentals{}, fmt.Errorf("longport static info for %s: %w", symbol, err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return models.Fundamentals{}, fmt.Errorf("no static info for %s", symbol)
	}
	info := infos[0]

	fund := models.Fundamentals{Name: info.NameEn}
	if fund.Name == "" {
		fund.Name = info.NameCn
	}

	if lpc.candles != nil {
		if sticks, err := lpc.candles(ctx, symbol, 1); err == nil && len(sticks) > 0 && sticks[len(sticks)-1] != nil {
			price := decimalValue(sticks[len(sticks)-1].Close)
			if info.TotalShares > 0 {
				fund.MarketCap = positive(price * float64(info.TotalShares))
			}
			if eps := decimalValue(info.EpsTtm); eps > 0 {
				fund.PERatio = positive(price / eps)
			}
		}
	}
	return fund, nil
}

func decimalValue(d *decimal.Decimal) float64 {
	if d == nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}
