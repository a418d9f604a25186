package dataflows

import (
	"context"
	"time"

	"github.com/dyike/FinSight/models"
)

// MarketSource is a price and company-info provider.
type MarketSource interface {
	FetchPrices(ctx context.Context, symbol string, start, end time.Time) (models.PriceSeries, error)
	FetchFundamentals(ctx context.Context, symbol string) (models.Fundamentals, error)
}

// SectorSource classifies a company when the market source does not.
type SectorSource interface {
	FetchSector(ctx context.Context, symbol string) (string, error)
}

// Router sends each symbol to the source registered for its exchange
// suffix, or to the default source.
type Router struct {
	fallback MarketSource
	markets  map[string]MarketSource
	sectors  SectorSource
}

func NewRouter(fallback MarketSource) *Router {
	return &Router{fallback: fallback, markets: map[string]MarketSource{}}
}

// Route registers src for the given exchange suffixes ("HK", "SH", ...).
func (r *Router) Route(src MarketSource, markets ...string) *Router {
	for _, m := range markets {
		r.markets[m] = src
	}
	return r
}

// WithSectors fills Fundamentals.Sector from src when the market source
// leaves it empty.
func (r *Router) WithSectors(src SectorSource) *Router {
	r.sectors = src
	return r
}

func (r *Router) sourceFor(symbol string) MarketSource {
	if src, ok := r.markets[Market(symbol)]; ok {
		return src
	}
	return r.fallback
}

func (r *Router) FetchPrices(ctx context.Context, symbol string, start, end time.Time) (models.PriceSeries, error) {
	return r.sourceFor(symbol).FetchPrices(ctx, symbol, start, end)
}

// FetchFundamentals never fails on a sector lookup; the sector is left
// empty and renders as "Unknown".
func (r *Router) FetchFundamentals(ctx context.Context, symbol string) (models.Fundamentals, error) {
	fund, err := r.sourceFor(symbol).FetchFundamentals(ctx, symbol)
	if err != nil || fund.Sector != "" || r.sectors == nil {
		return fund, err
	}
	if sector, serr := r.sectors.FetchSector(ctx, symbol); serr == nil {
		fund.Sector = sector
	}
	return fund, nil
}
