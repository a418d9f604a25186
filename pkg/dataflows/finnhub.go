package dataflows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dyike/FinSight/config"
	"github.com/dyike/FinSight/models"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubClient handles Finnhub API operations
type FinnhubClient struct {
	client *resty.Client
	cache  *CacheManager
	retry  *RetryConfig
	apiKey string
	now    func() time.Time
}

// NewFinnhubClient creates a new Finnhub client
func NewFinnhubClient(cfg *config.Config) *FinnhubClient {
	cacheDir := filepath.Join(cfg.DataCacheDir, "finnhub")

	client := resty.New()
	client.SetBaseURL(finnhubBaseURL)
	client.SetTimeout(30 * time.Second)

	return &FinnhubClient{
		client: client,
		cache:  NewCacheManager(cacheDir, 6*time.Hour, cfg.CacheEnabled),
		retry:  DefaultRetryConfig(),
		apiKey: cfg.FinnhubAPIKey,
		now:    time.Now,
	}
}

// FinnhubNews represents news from Finnhub API
type FinnhubNews struct {
	Category string `json:"category"`
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

func (fc *FinnhubClient) Name() string { return "finnhub" }

// FetchNews gets the last week of company news.
func (fc *FinnhubClient) FetchNews(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error) {
	if fc.apiKey == "" {
		return nil, fmt.Errorf("%w: finnhub api key", ErrNotConfigured)
	}
	symbol, err := ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}

	to := fc.now()
	from := to.AddDate(0, 0, -7)
	cacheKey := map[string]string{
		"symbol": symbol,
		"from":   from.Format(models.DateLayout),
		"to":     to.Format(models.DateLayout),
	}
	var cached []models.NewsArticle
	if fc.cache.Get("finnhub", "company_news", cacheKey, &cached) {
		return finishArticles(cached, limit), nil
	}

	var result []models.NewsArticle
	err = WithRetry(ctx, fc.retry, func() error {
		resp, err := fc.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"symbol": symbol,
				"from":   from.Format(models.DateLayout),
				"to":     to.Format(models.DateLayout),
				"token":  fc.apiKey,
			}).
			Get("/company-news")
		if err != nil {
			return fmt.Errorf("failed to fetch news for %s: %w", symbol, err)
		}
		switch {
		case resp.StatusCode() == http.StatusUnauthorized, resp.StatusCode() == http.StatusForbidden:
			return Permanent(fmt.Errorf("API error %d: %s", resp.StatusCode(), resp.String()))
		case resp.StatusCode() != http.StatusOK:
			return fmt.Errorf("API error %d: %s", resp.StatusCode(), resp.String())
		}

		var items []FinnhubNews
		if err := json.Unmarshal(resp.Body(), &items); err != nil {
			return Permanent(fmt.Errorf("failed to parse news response: %w", err))
		}
		result = make([]models.NewsArticle, 0, len(items))
		for _, n := range items {
			result = append(result, models.NewsArticle{
				Title:       n.Headline,
				Summary:     n.Summary,
				Source:      n.Source,
				URL:         n.URL,
				PublishedAt: time.Unix(n.DateTime, 0).UTC(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = fc.cache.Set("finnhub", "company_news", cacheKey, result)
	return finishArticles(result, limit), nil
}

type finnhubProfile struct {
	Name     string `json:"name"`
	Industry string `json:"finnhubIndustry"`
}

// FetchSector returns the industry classification from the company profile.
// An empty string means Finnhub has no profile for the symbol.
func (fc *FinnhubClient) FetchSector(ctx context.Context, symbol string) (string, error) {
	if fc.apiKey == "" {
		return "", fmt.Errorf("%w: finnhub api key", ErrNotConfigured)
	}
	symbol, err := ValidateSymbol(symbol)
	if err != nil {
		return "", err
	}

	var profile finnhubProfile
	if fc.cache.Get("finnhub", "profile", symbol, &profile) {
		return profile.Industry, nil
	}

	err = WithRetry(ctx, fc.retry, func() error {
		resp, err := fc.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{"symbol": symbol, "token": fc.apiKey}).
			Get("/stock/profile2")
		if err != nil {
			return fmt.Errorf("failed to fetch profile for %s: %w", symbol, err)
		}
		switch {
		case resp.StatusCode() == http.StatusUnauthorized, resp.StatusCode() == http.StatusForbidden:
			return Permanent(fmt.Errorf("API error %d: %s", resp.StatusCode(), resp.String()))
		case resp.StatusCode() != http.StatusOK:
			return fmt.Errorf("API error %d: %s", resp.StatusCode(), resp.String())
		}
		if err := json.Unmarshal(resp.Body(), &profile); err != nil {
			return Permanent(fmt.Errorf("failed to parse profile response: %w", err))
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	_ = fc.cache.Set("finnhub", "profile", symbol, profile)
	return profile.Industry, nil
}
