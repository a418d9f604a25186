package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// State is threaded through the pipeline stages. Stages never mutate the
// value they receive; they return an updated copy.
type State struct {
	Identifier  string
	PriceSeries PriceSeries
	StartDate   time.Time
	EndDate     time.Time

	Fundamentals *Fundamentals
	Technicals   *TechnicalIndicators
	Risk         *RiskMetrics

	Recommendation Recommendation
	RiskLevel      RiskLevel
	Reasoning      string
	KeyDrivers     []string
	FinalReport    string
	UsedModelPath  bool

	Error     string
	Succeeded bool
}

func NewState(identifier string) State {
	return State{
		Identifier: strings.ToUpper(strings.TrimSpace(identifier)),
		RiskLevel:  RiskUnknown,
		Succeeded:  true,
	}
}

// Failed reports whether any stage has recorded an error.
func (s State) Failed() bool {
	return !s.Succeeded || s.Error != ""
}

// Fail records msg unless an earlier error is already present; the first
// error always wins.
func (s State) Fail(msg string) State {
	next := s.Clone()
	if next.Error == "" {
		next.Error = msg
	}
	next.Succeeded = false
	return next
}

// Clone copies every reference field so callers can modify the result freely.
func (s State) Clone() State {
	next := s
	if s.PriceSeries != nil {
		next.PriceSeries = make(PriceSeries, len(s.PriceSeries))
		copy(next.PriceSeries, s.PriceSeries)
	}
	if s.Fundamentals != nil {
		f := *s.Fundamentals
		next.Fundamentals = &f
	}
	if s.Technicals != nil {
		t := *s.Technicals
		next.Technicals = &t
	}
	if s.Risk != nil {
		r := *s.Risk
		next.Risk = &r
	}
	if s.KeyDrivers != nil {
		next.KeyDrivers = append([]string(nil), s.KeyDrivers...)
	}
	return next
}

// Date marshals as YYYY-MM-DD, or null when zero.
type Date struct {
	time.Time
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(DateLayout, *s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", *s, err)
	}
	d.Time = t
	return nil
}

type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Result is the serialisable record handed to callers and sinks.
type Result struct {
	RunID        string     `json:"run_id"`
	Identifier   string     `json:"identifier"`
	DateRange    *DateRange `json:"date_range"`
	Observations int        `json:"observations"`

	FundamentalMetrics  map[string]any `json:"fundamental_metrics"`
	TechnicalIndicators map[string]any `json:"technical_indicators"`
	RiskMetrics         map[string]any `json:"risk_metrics"`

	Recommendation Recommendation `json:"recommendation"`
	RiskLevel      RiskLevel      `json:"risk_level"`
	Reasoning      string         `json:"reasoning"`
	KeyDrivers     []string       `json:"key_drivers"`
	FinalReport    string         `json:"final_report"`
	UsedModelPath  bool           `json:"used_model_path"`

	Error     string    `json:"error,omitempty"`
	Succeeded bool      `json:"succeeded"`
	CreatedAt time.Time `json:"created_at"`
}

// ResultFromState projects the final state into its public record.
func ResultFromState(runID string, s State, createdAt time.Time) Result {
	r := Result{
		RunID:               runID,
		Identifier:          s.Identifier,
		Observations:        len(s.PriceSeries),
		FundamentalMetrics:  map[string]any{},
		TechnicalIndicators: map[string]any{},
		RiskMetrics:         map[string]any{},
		Recommendation:      s.Recommendation,
		RiskLevel:           s.RiskLevel,
		Reasoning:           s.Reasoning,
		KeyDrivers:          append([]string{}, s.KeyDrivers...),
		FinalReport:         s.FinalReport,
		UsedModelPath:       s.UsedModelPath,
		Error:               s.Error,
		Succeeded:           !s.Failed(),
		CreatedAt:           createdAt,
	}
	if !s.StartDate.IsZero() {
		r.DateRange = &DateRange{Start: Date{s.StartDate}, End: Date{s.EndDate}}
	}
	if s.Fundamentals != nil {
		r.FundamentalMetrics = s.Fundamentals.Map()
	}
	if s.Technicals != nil {
		r.TechnicalIndicators = s.Technicals.Map()
	}
	if s.Risk != nil {
		r.RiskMetrics = s.Risk.Map()
	}
	return r
}
