package pipeline

import (
	"context"
	"time"

	"github.com/dyike/FinSight/models"
)

// PriceSource returns split/dividend-adjusted daily bars for [start, end].
// An empty result, or models.ErrEmptySeries, means the symbol has no data.
type PriceSource interface {
	FetchPrices(ctx context.Context, symbol string, start, end time.Time) (models.PriceSeries, error)
}

// CompanyInfoSource returns company fundamentals. Every field is optional.
type CompanyInfoSource interface {
	FetchFundamentals(ctx context.Context, symbol string) (models.Fundamentals, error)
}

// Sink receives finished results. Failures are logged and never alter the
// result handed back to the caller.
type Sink interface {
	Save(ctx context.Context, result models.Result) error
}
