package dataflows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dyike/FinSight/config"
	"github.com/dyike/FinSight/models"
)

const redditBaseURL = "https://www.reddit.com"

// RedditClient searches finance subreddits for posts that mention a symbol.
// Posts are returned as articles so the sentiment lexicon can score them.
type RedditClient struct {
	client     *resty.Client
	cache      *CacheManager
	retry      *RetryConfig
	subreddits []string
}

// NewRedditClient creates a new Reddit client
func NewRedditClient(cfg *config.Config) *RedditClient {
	cacheDir := filepath.Join(cfg.DataCacheDir, "reddit")

	client := resty.New()
	client.SetBaseURL(redditBaseURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "FinSight/1.0")

	return &RedditClient{
		client:     client,
		cache:      NewCacheManager(cacheDir, time.Hour, cfg.CacheEnabled),
		retry:      DefaultRetryConfig(),
		subreddits: []string{"stocks", "investing", "wallstreetbets"},
	}
}

// RedditResponse represents the API response structure
type RedditResponse struct {
	Data struct {
		Children []struct {
			Data RedditPostData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// RedditPostData represents Reddit post data from API
type RedditPostData struct {
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Permalink  string  `json:"permalink"`
	Subreddit  string  `json:"subreddit"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
	Stickied   bool    `json:"stickied"`
}

func (rc *RedditClient) Name() string { return "reddit" }

func (rc *RedditClient) FetchNews(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error) {
	symbol, err := ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	var cached []models.NewsArticle
	if rc.cache.Get("reddit", "mentions", symbol, &cached) {
		return finishArticles(cached, limit), nil
	}

	var posts []RedditPostData
	err = WithRetry(ctx, rc.retry, func() error {
		resp, err := rc.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"q":           symbol,
				"restrict_sr": "on",
				"sort":        "new",
				"t":           "week",
				"limit":       fmt.Sprint(limit),
			}).
			Get("/r/" + strings.Join(rc.subreddits, "+") + "/search.json")
		if err != nil {
			return fmt.Errorf("failed to search reddit: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("HTTP error %d when searching reddit", resp.StatusCode())
		}

		var parsed RedditResponse
		if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
			return Permanent(fmt.Errorf("failed to parse reddit response: %w", err))
		}
		posts = posts[:0]
		for _, child := range parsed.Data.Children {
			posts = append(posts, child.Data)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	mention := symbolMention(symbol)
	var articles []models.NewsArticle
	for _, p := range posts {
		if p.Stickied || !mention.MatchString(p.Title+" "+p.Selftext) {
			continue
		}
		articles = append(articles, models.NewsArticle{
			Title:       p.Title,
			Summary:     truncate(p.Selftext, 500),
			Source:      "r/" + p.Subreddit,
			URL:         redditBaseURL + p.Permalink,
			PublishedAt: time.Unix(int64(p.CreatedUTC), 0).UTC(),
		})
	}

	_ = rc.cache.Set("reddit", "mentions", symbol, articles)
	return finishArticles(articles, limit), nil
}

// symbolMention matches the ticker as a word or a $cashtag.
func symbolMention(symbol string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|[^A-Za-z0-9])\$?` + regexp.QuoteMeta(symbol) + `($|[^A-Za-z0-9])`)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
