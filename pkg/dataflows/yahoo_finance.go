package dataflows

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dyike/FinSight/config"
	"github.com/dyike/FinSight/models"
)

// YahooFinanceClient serves adjusted daily bars and fundamentals from Yahoo
// Finance, with a file cache in front.
type YahooFinanceClient struct {
	cache  *CacheManager
	retry  *RetryConfig
	logger zerolog.Logger

	fetchBars   func(symbol string, start, end time.Time) (models.PriceSeries, error)
	fetchEquity func(symbol string) (*finance.Equity, error)
}

// NewYahooFinanceClient creates a new Yahoo Finance client
func NewYahooFinanceClient(cfg *config.Config, logger zerolog.Logger) *YahooFinanceClient {
	cacheDir := filepath.Join(cfg.DataCacheDir, "yahoo_finance")
	return &YahooFinanceClient{
		cache:       NewCacheManager(cacheDir, 12*time.Hour, cfg.CacheEnabled),
		retry:       DefaultRetryConfig(),
		logger:      logger,
		fetchBars:   chartBars,
		fetchEquity: equity.Get,
	}
}

// FetchPrices returns split/dividend adjusted daily bars for [start, end].
func (yf *YahooFinanceClient) FetchPrices(ctx context.Context, symbol string, start, end time.Time) (models.PriceSeries, error) {
	symbol, err := ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}

	cacheKey := map[string]string{
		"symbol": symbol,
		"start":  start.Format(models.DateLayout),
		"end":    end.Format(models.DateLayout),
	}
	var cached models.PriceSeries
	if yf.cache.Get("yahoo", "historical", cacheKey, &cached) && len(cached) > 0 {
		return cached, nil
	}

	var series models.PriceSeries
	err = WithRetry(ctx, yf.retry, func() error {
		var ferr error
		series, ferr = yf.fetchBars(symbol, start, end)
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
	}
	series = series.Normalize()
	if len(series) == 0 {
		return nil, models.ErrEmptySeries
	}

	if err := yf.cache.Set("yahoo", "historical", cacheKey, series); err != nil {
		yf.logger.Warn().Err(err).Str("symbol", symbol).Msg("cache write failed")
	}
	return series, nil
}

// FetchFundamentals reads market cap and P/E ratios from the equity quote.
// Zero values from the API are treated as not available.
func (yf *YahooFinanceClient) FetchFundamentals(ctx context.Context, symbol string) (models.Fundamentals, error) {
	symbol, err := ValidateSymbol(symbol)
	if err != nil {
		return models.Fundamentals{}, err
	}

	var cached models.Fundamentals
	if yf.cache.Get("yahoo", "fundamentals", symbol, &cached) {
		return cached, nil
	}

	var eq *finance.Equity
	err = WithRetry(ctx, yf.retry, func() error {
		var ferr error
		eq, ferr = yf.fetchEquity(symbol)
		return ferr
	})
	if err != nil {
		return models.Fundamentals{}, fmt.Errorf("failed to get company info for %s: %w", symbol, err)
	}
	if eq == nil {
		return models.Fundamentals{}, fmt.Errorf("no company info for %s", symbol)
	}

	fund := models.Fundamentals{
		Name:      eq.LongName,
		MarketCap: positive(float64(eq.MarketCap)),
		PERatio:   positive(eq.TrailingPE),
		ForwardPE: positive(eq.ForwardPE),
	}
	if fund.Name == "" {
		fund.Name = eq.ShortName
	}
	if err := yf.cache.Set("yahoo", "fundamentals", symbol, fund); err != nil {
		yf.logger.Warn().Err(err).Str("symbol", symbol).Msg("cache write failed")
	}
	return fund, nil
}

func chartBars(symbol string, start, end time.Time) (models.PriceSeries, error) {
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}

	iter := chart.Get(params)
	var out models.PriceSeries
	for iter.Next() {
		if bar, ok := adjustedBar(iter.Bar()); ok {
			out = append(out, bar)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// adjustedBar scales OHLC by the adjusted-close ratio so every price in the
// series is on the same split/dividend basis. Yahoo sends null rows for
// halted or not-yet-settled days; they decode to a zero close and are
// reported as not ok.
func adjustedBar(bar *finance.ChartBar) (models.PriceBar, bool) {
	if bar == nil {
		return models.PriceBar{}, false
	}
	closePrice := toFloat(bar.Close)
	if closePrice <= 0 {
		return models.PriceBar{}, false
	}
	ratio := 1.0
	if adj := toFloat(bar.AdjClose); adj > 0 && closePrice > 0 {
		ratio = adj / closePrice
	}
	return models.PriceBar{
		Date:   time.Unix(int64(bar.Timestamp), 0).UTC(),
		Open:   toFloat(bar.Open) * ratio,
		High:   toFloat(bar.High) * ratio,
		Low:    toFloat(bar.Low) * ratio,
		Close:  closePrice * ratio,
		Volume: int64(bar.Volume),
	}, true
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func positive(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}
