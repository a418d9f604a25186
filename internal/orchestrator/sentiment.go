package orchestrator

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dyike/FinSight/models"
)

const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Lexicon scores finance words in [-1, 1].
var Lexicon = map[string]float64{
	"bullish": 0.8, "buy": 0.6, "strong": 0.5, "growth": 0.4, "profit": 0.5,
	"gain": 0.4, "upgrade": 0.7, "beat": 0.6, "surge": 0.7, "rally": 0.6,
	"bearish": -0.8, "sell": -0.6, "weak": -0.5, "decline": -0.4, "loss": -0.5,
	"drop": -0.4, "downgrade": -0.7, "miss": -0.6, "plunge": -0.7, "crash": -0.8,
}

var wordPattern = regexp.MustCompile(`\w+`)

type Distribution struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

type SentimentReport struct {
	OverallSentiment string       `json:"overall_sentiment"`
	SentimentScore   float64      `json:"sentiment_score"`
	Confidence       float64      `json:"confidence"`
	ArticlesAnalyzed int          `json:"articles_analyzed"`
	Distribution     Distribution `json:"distribution"`
	Outcome
}

type SentimentAgent struct {
	lexicon map[string]float64
	tracker *tracker
}

func NewSentimentAgent(logger zerolog.Logger) *SentimentAgent {
	return &SentimentAgent{
		lexicon: Lexicon,
		tracker: newTracker("Sentiment Agent", "sentiment", logger),
	}
}

func (a *SentimentAgent) Run(articles []models.NewsArticle) SentimentReport {
	var report SentimentReport
	outcome := a.tracker.run(func() error {
		report = a.analyze(articles)
		return nil
	})
	report.Outcome = outcome
	return report
}

func (a *SentimentAgent) analyze(articles []models.NewsArticle) SentimentReport {
	if len(articles) == 0 {
		return SentimentReport{OverallSentiment: SentimentNeutral}
	}

	scores := make([]float64, 0, len(articles))
	var sum float64
	for _, art := range articles {
		s := a.ScoreText(art.Title + " " + art.Summary)
		scores = append(scores, s)
		sum += s
	}
	avg := sum / float64(len(scores))

	confidence := float64(len(scores)) / 10
	if confidence > 1 {
		confidence = 1
	}
	return SentimentReport{
		OverallSentiment: ClassifySentiment(avg),
		SentimentScore:   avg,
		Confidence:       confidence,
		ArticlesAnalyzed: len(scores),
		Distribution:     distribution(scores),
	}
}

// ScoreText averages the lexicon scores of the words found in text; text
// without any lexicon word scores 0.
func (a *SentimentAgent) ScoreText(text string) float64 {
	var sum float64
	var n int
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if v, ok := a.lexicon[w]; ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func ClassifySentiment(score float64) string {
	switch {
	case score >= 0.3:
		return SentimentPositive
	case score <= -0.3:
		return SentimentNegative
	}
	return SentimentNeutral
}

func distribution(scores []float64) Distribution {
	var d Distribution
	for _, s := range scores {
		switch {
		case s > 0.1:
			d.Positive++
		case s < -0.1:
			d.Negative++
		default:
			d.Neutral++
		}
	}
	return d
}
