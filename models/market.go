package models

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// PriceBar is a single daily observation.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceSeries is ordered chronologically ascending with unique dates.
type PriceSeries []PriceBar

var ErrEmptySeries = errors.New("price series is empty")

func (s PriceSeries) Len() int { return len(s) }

func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

func (s PriceSeries) Highs() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.High
	}
	return out
}

func (s PriceSeries) Lows() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Low
	}
	return out
}

// Bounds returns the first and last date. Both are zero for an empty series.
func (s PriceSeries) Bounds() (start, end time.Time) {
	if len(s) == 0 {
		return time.Time{}, time.Time{}
	}
	return s[0].Date, s[len(s)-1].Date
}

// Validate checks ordering and uniqueness of dates.
func (s PriceSeries) Validate() error {
	if len(s) == 0 {
		return ErrEmptySeries
	}
	for i := 1; i < len(s); i++ {
		prev, cur := dayOf(s[i-1].Date), dayOf(s[i].Date)
		if !cur.After(prev) {
			return fmt.Errorf("price series not strictly ascending at %s", cur.Format(DateLayout))
		}
	}
	return nil
}

// Normalize returns a sorted copy with duplicate days collapsed (last write
// wins). Bars without a positive close carry no price and are dropped.
func (s PriceSeries) Normalize() PriceSeries {
	sorted := make(PriceSeries, 0, len(s))
	for _, bar := range s {
		if bar.Close > 0 {
			sorted = append(sorted, bar)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	out := sorted[:0:0]
	for _, bar := range sorted {
		if n := len(out); n > 0 && dayOf(out[n-1].Date).Equal(dayOf(bar.Date)) {
			out[n-1] = bar
			continue
		}
		out = append(out, bar)
	}
	return out
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Quote is a point-in-time price snapshot derived from recent bars.
type Quote struct {
	Symbol        string  `json:"symbol"`
	CurrentPrice  float64 `json:"current_price"`
	PreviousClose float64 `json:"previous_close"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	High52w       float64 `json:"high_52w"`
	Low52w        float64 `json:"low_52w"`
}

// QuoteFromSeries summarises the last two bars and the trailing 252-day range.
func QuoteFromSeries(symbol string, s PriceSeries) (Quote, bool) {
	if len(s) == 0 {
		return Quote{}, false
	}
	latest := s[len(s)-1]
	previous := latest
	if len(s) > 1 {
		previous = s[len(s)-2]
	}

	q := Quote{
		Symbol:        symbol,
		CurrentPrice:  latest.Close,
		PreviousClose: previous.Close,
		Volume:        latest.Volume,
	}
	if previous.Close != 0 {
		q.ChangePercent = (latest.Close - previous.Close) / previous.Close * 100
	}

	window := s
	if len(window) > 252 {
		window = window[len(window)-252:]
	}
	q.High52w, q.Low52w = window[0].High, window[0].Low
	for _, b := range window[1:] {
		if b.High > q.High52w {
			q.High52w = b.High
		}
		if b.Low < q.Low52w {
			q.Low52w = b.Low
		}
	}
	return q, true
}

// NewsArticle is a headline from one of the news sources.
type NewsArticle struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}
