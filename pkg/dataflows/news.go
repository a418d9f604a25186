package dataflows

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dyike/FinSight/models"
)

var ErrNotConfigured = errors.New("data source not configured")

// NewsSource returns recent articles mentioning a symbol, newest first.
type NewsSource interface {
	Name() string
	FetchNews(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error)
}

// NewsChain asks each source in order and returns the first non-empty
// answer. Unconfigured sources are skipped silently.
type NewsChain struct {
	sources []NewsSource
	logger  zerolog.Logger
}

func NewNewsChain(logger zerolog.Logger, sources ...NewsSource) *NewsChain {
	return &NewsChain{sources: sources, logger: logger}
}

func (c *NewsChain) Name() string { return "chain" }

func (c *NewsChain) FetchNews(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error) {
	var errs []error
	for _, src := range c.sources {
		articles, err := src.FetchNews(ctx, symbol, limit)
		switch {
		case errors.Is(err, ErrNotConfigured):
			continue
		case err != nil:
			c.logger.Warn().Err(err).Str("source", src.Name()).Str("symbol", symbol).Msg("news source failed")
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		case len(articles) > 0:
			return articles, nil
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}

// finishArticles sorts newest first, drops duplicate titles and applies limit.
func finishArticles(articles []models.NewsArticle, limit int) []models.NewsArticle {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
	seen := make(map[string]bool, len(articles))
	out := articles[:0]
	for _, a := range articles {
		key := strings.ToLower(strings.TrimSpace(a.Title))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
