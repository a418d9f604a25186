package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dyike/FinSight/internal/pipeline"
	"github.com/dyike/FinSight/models"
)

const defaultNewsLimit = 10

// NewsSource returns recent articles about a symbol, newest first.
type NewsSource interface {
	FetchNews(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error)
}

// MarketReport is what the market agent collected for one symbol.
type MarketReport struct {
	Symbol      string               `json:"symbol"`
	PriceData   *models.Quote        `json:"price_data,omitempty"`
	CompanyInfo models.Fundamentals  `json:"company_info"`
	News        []models.NewsArticle `json:"news"`
	Confidence  float64              `json:"confidence"`
	Outcome

	Series models.PriceSeries `json:"-"`
}

// MarketAgent fetches prices, company info and news concurrently. A single
// failing source is logged and left empty; the agent fails only when every
// source fails.
type MarketAgent struct {
	prices    pipeline.PriceSource
	info      pipeline.CompanyInfoSource
	news      NewsSource
	newsLimit int
	now       func() time.Time
	logger    zerolog.Logger
	tracker   *tracker
}

func NewMarketAgent(prices pipeline.PriceSource, info pipeline.CompanyInfoSource, news NewsSource, logger zerolog.Logger) *MarketAgent {
	return &MarketAgent{
		prices:    prices,
		info:      info,
		news:      news,
		newsLimit: defaultNewsLimit,
		now:       time.Now,
		logger:    logger,
		tracker:   newTracker("Market Data Agent", "market_data", logger),
	}
}

func (a *MarketAgent) Run(ctx context.Context, symbol string, lookback time.Duration) MarketReport {
	report := MarketReport{Symbol: symbol, News: []models.NewsArticle{}}
	report.Outcome = a.tracker.run(func() error {
		return a.collect(ctx, symbol, lookback, &report)
	})
	return report
}

func (a *MarketAgent) collect(ctx context.Context, symbol string, lookback time.Duration, report *MarketReport) error {
	end := a.now()
	start := end.Add(-lookback)

	var (
		g                          errgroup.Group
		priceErr, infoErr, newsErr error
		series                     models.PriceSeries
		fund                       models.Fundamentals
		articles                   []models.NewsArticle
	)
	g.Go(func() error {
		series, priceErr = a.prices.FetchPrices(ctx, symbol, start, end)
		return nil
	})
	if a.info != nil {
		g.Go(func() error {
			fund, infoErr = a.info.FetchFundamentals(ctx, symbol)
			return nil
		})
	} else {
		infoErr = errors.New("company info source not configured")
	}
	if a.news != nil {
		g.Go(func() error {
			articles, newsErr = a.news.FetchNews(ctx, symbol, a.newsLimit)
			return nil
		})
	} else {
		newsErr = errors.New("news source not configured")
	}
	_ = g.Wait()

	if priceErr == nil {
		series = series.Normalize()
		if q, ok := models.QuoteFromSeries(symbol, series); ok {
			report.PriceData = &q
			report.Series = series
		}
	} else {
		a.logger.Warn().Err(priceErr).Str("symbol", symbol).Msg("no price data")
	}
	if infoErr == nil {
		report.CompanyInfo = fund
	} else {
		a.logger.Warn().Err(infoErr).Str("symbol", symbol).Msg("no company info")
	}
	if newsErr == nil {
		if len(articles) > a.newsLimit {
			articles = articles[:a.newsLimit]
		}
		report.News = append(report.News, articles...)
	} else {
		a.logger.Warn().Err(newsErr).Str("symbol", symbol).Msg("no news")
	}

	report.Confidence = 0.3
	if report.PriceData != nil {
		report.Confidence = 0.8
	}

	if priceErr != nil && infoErr != nil && newsErr != nil {
		return fmt.Errorf("all market sources failed for %s: %w", symbol, errors.Join(priceErr, infoErr, newsErr))
	}
	return nil
}
