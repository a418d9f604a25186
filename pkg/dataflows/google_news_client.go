package dataflows

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/dyike/FinSight/config"
	"github.com/dyike/FinSight/models"
)

const googleNewsRSSURL = "https://news.google.com/rss"

// RSS 结构体定义
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

type Channel struct {
	Title string `xml:"title"`
	Items []Item `xml:"item"`
}

type Item struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Source      Source `xml:"source"`
}

type Source struct {
	URL  string `xml:"url,attr"`
	Text string `xml:",chardata"`
}

// GoogleNewsClient reads the Google News RSS search feed. It needs no key.
type GoogleNewsClient struct {
	client   *resty.Client
	cache    *CacheManager
	retry    *RetryConfig
	baseURL  string
	language string
	country  string
}

// NewGoogleNewsClient creates a new Google News client
func NewGoogleNewsClient(cfg *config.Config) *GoogleNewsClient {
	cacheDir := filepath.Join(cfg.DataCacheDir, "google_news")

	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")

	return &GoogleNewsClient{
		client:   client,
		cache:    NewCacheManager(cacheDir, 30*time.Minute, cfg.CacheEnabled),
		retry:    DefaultRetryConfig(),
		baseURL:  googleNewsRSSURL,
		language: "en-US",
		country:  "US",
	}
}

func (gnc *GoogleNewsClient) Name() string { return "google_news" }

func (gnc *GoogleNewsClient) FetchNews(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error) {
	symbol, err := ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	query := symbol + " stock"

	cacheKey := fmt.Sprintf("rss_%s_%s_%s", query, gnc.language, gnc.country)
	var cached []models.NewsArticle
	if gnc.cache.Get("google_news_rss", "query", cacheKey, &cached) {
		return finishArticles(cached, limit), nil
	}

	var articles []models.NewsArticle
	err = WithRetry(ctx, gnc.retry, func() error {
		resp, err := gnc.client.R().SetContext(ctx).Get(gnc.searchURL(query))
		if err != nil {
			return fmt.Errorf("failed to fetch RSS feed: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("HTTP error %d when fetching RSS feed", resp.StatusCode())
		}

		var rss RSS
		if err := xml.Unmarshal(resp.Body(), &rss); err != nil {
			return Permanent(fmt.Errorf("failed to parse RSS XML: %w", err))
		}
		articles = make([]models.NewsArticle, 0, len(rss.Channel.Items))
		for _, item := range rss.Channel.Items {
			articles = append(articles, convertRSSItem(item))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = gnc.cache.Set("google_news_rss", "query", cacheKey, articles)
	return finishArticles(articles, limit), nil
}

func (gnc *GoogleNewsClient) searchURL(query string) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("hl", gnc.language)
	v.Set("gl", gnc.country)
	v.Set("ceid", fmt.Sprintf("%s:%s", gnc.country, strings.Split(gnc.language, "-")[0]))
	return gnc.baseURL + "/search?" + v.Encode()
}

func convertRSSItem(item Item) models.NewsArticle {
	pubTime, err := time.Parse(time.RFC1123Z, item.PubDate)
	if err != nil {
		pubTime, _ = time.Parse(time.RFC1123, item.PubDate)
	}

	source := strings.TrimSpace(item.Source.Text)
	if source == "" && item.Source.URL != "" {
		if u, err := url.Parse(item.Source.URL); err == nil {
			source = u.Host
		}
	}

	return models.NewsArticle{
		Title:       strings.TrimSpace(item.Title),
		Summary:     cleanHTMLContent(item.Description),
		Source:      source,
		URL:         item.Link,
		PublishedAt: pubTime.UTC(),
	}
}

var (
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	spaceRegex   = regexp.MustCompile(`\s+`)
)

// cleanHTMLContent 清理HTML标签并提取纯文本内容
func cleanHTMLContent(htmlContent string) string {
	if strings.TrimSpace(htmlContent) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err == nil {
		if text := spaceRegex.ReplaceAllString(strings.TrimSpace(doc.Text()), " "); text != "" {
			return text
		}
	}
	text := htmlTagRegex.ReplaceAllString(htmlContent, "")
	return strings.TrimSpace(spaceRegex.ReplaceAllString(text, " "))
}
