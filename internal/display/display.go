package display

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/FinSight/internal/orchestrator"
	"github.com/dyike/FinSight/models"
)

// Printer writes reports either as styled panels or as indented JSON.
type Printer struct {
	out  io.Writer
	json bool
}

func NewPrinter(out io.Writer, asJSON bool) *Printer {
	return &Printer{out: out, json: asJSON}
}

func (p *Printer) Results(results []models.Result) error {
	if p.json {
		return p.encode(results)
	}
	for _, r := range results {
		if _, err := fmt.Fprintln(p.out, RenderResult(r)); err != nil {
			return err
		}
	}
	if len(results) > 1 {
		_, err := fmt.Fprintln(p.out, RenderBatchSummary(results))
		return err
	}
	return nil
}

func (p *Printer) Analysis(a orchestrator.Analysis) error {
	if p.json {
		return p.encode(a)
	}
	_, err := fmt.Fprintln(p.out, RenderAnalysis(a))
	return err
}

func (p *Printer) History(records []models.AnalysisRecord) error {
	if p.json {
		return p.encode(records)
	}
	_, err := fmt.Fprintln(p.out, RenderHistory(records))
	return err
}

func (p *Printer) Health(h orchestrator.Health) error {
	if p.json {
		return p.encode(h)
	}
	_, err := fmt.Fprintln(p.out, RenderHealth(h))
	return err
}

// JSON writes v as indented JSON regardless of the printer mode.
func (p *Printer) JSON(v any) error {
	return p.encode(v)
}

func (p *Printer) encode(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RenderResult draws one pipeline result as a bordered panel.
func RenderResult(r models.Result) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("FinSight Analysis: "+r.Identifier) + "\n\n")

	b.WriteString(row("Recommendation", decisionStyle(string(r.Recommendation)).Render(string(r.Recommendation))))
	b.WriteString(row("Risk level", string(r.RiskLevel)))
	if r.DateRange != nil {
		b.WriteString(row("Date range", r.DateRange.Start.Format(models.DateLayout)+" to "+r.DateRange.End.Format(models.DateLayout)))
	}
	b.WriteString(row("Observations", strconv.Itoa(r.Observations)))
	b.WriteString(row("Synthesis", synthesisPath(r.UsedModelPath)))
	b.WriteString(row("Run", r.RunID))

	if !r.Succeeded {
		b.WriteString("\n" + errorStyle.Render("Error: "+r.Error) + "\n")
		b.WriteString("\n" + r.FinalReport)
		return panelStyle.Render(b.String())
	}

	writeMetrics(&b, "Fundamentals", r.FundamentalMetrics)
	writeMetrics(&b, "Technicals", r.TechnicalIndicators)
	writeMetrics(&b, "Risk", r.RiskMetrics)

	if len(r.KeyDrivers) > 0 {
		b.WriteString("\n" + sectionStyle.Render("Key drivers") + "\n")
		for _, d := range r.KeyDrivers {
			b.WriteString("  • " + d + "\n")
		}
	}
	if r.Reasoning != "" {
		b.WriteString("\n" + sectionStyle.Render("Reasoning") + "\n")
		b.WriteString(r.Reasoning + "\n")
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// RenderBatchSummary is a one-line-per-symbol table.
func RenderBatchSummary(results []models.Result) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Batch summary") + "\n")
	ok := 0
	for _, r := range results {
		if r.Succeeded {
			ok++
		}
		b.WriteString(fmt.Sprintf("  %-12s %s  %s\n",
			r.Identifier,
			decisionStyle(string(r.Recommendation)).Render(fmt.Sprintf("%-5s", r.Recommendation)),
			r.RiskLevel,
		))
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d/%d succeeded", ok, len(results))))
	return b.String()
}

// RenderAnalysis draws a multi-agent orchestration result.
func RenderAnalysis(a orchestrator.Analysis) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("FinSight Orchestration: %s (%s)", a.Symbol, a.Period)) + "\n\n")

	if a.Error != "" {
		b.WriteString(errorStyle.Render("Error: "+a.Error) + "\n")
	}
	rec := strings.ToUpper(a.Recommendation)
	b.WriteString(row("Recommendation", decisionStyle(a.Recommendation).Render(rec)))
	b.WriteString(row("Confidence", fmt.Sprintf("%.0f%%", a.Confidence*100)))
	if a.Overall.CurrentPrice != nil {
		b.WriteString(row("Price", fmt.Sprintf("%.2f", *a.Overall.CurrentPrice)))
	}
	if a.Overall.PriceChange != nil {
		b.WriteString(row("Change", fmt.Sprintf("%+.2f%%", *a.Overall.PriceChange)))
	}
	if a.Overall.Sentiment != "" {
		b.WriteString(row("Sentiment", a.Overall.Sentiment))
	}
	b.WriteString(row("Risk level", string(a.Overall.RiskLevel)))
	b.WriteString(row("Volatility", fmt.Sprintf("%.2f%%", a.Overall.Volatility*100)))

	b.WriteString("\n" + sectionStyle.Render("Agents") + "\n")
	for _, o := range []orchestrator.Outcome{
		a.AgentResults.MarketData.Outcome,
		a.AgentResults.Sentiment.Outcome,
		a.AgentResults.Risk.Outcome,
	} {
		if o.AgentName == "" {
			continue
		}
		status := buyStyle.Render(string(o.Status))
		if !o.OK() {
			status = errorStyle.Render(string(o.Status))
		}
		b.WriteString(fmt.Sprintf("  %-22s %s %s\n", o.AgentName, status, mutedStyle.Render(fmt.Sprintf("%.2fs", o.ExecutionTime))))
	}

	if news := a.AgentResults.MarketData.News; len(news) > 0 {
		b.WriteString("\n" + sectionStyle.Render("Headlines") + "\n")
		for i, n := range news {
			if i == 5 {
				break
			}
			b.WriteString("  • " + n.Title + "\n")
		}
	}
	if a.LLMSummary != "" {
		b.WriteString("\n" + sectionStyle.Render("Summary") + "\n")
		b.WriteString(a.LLMSummary + "\n")
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// RenderHistory lists stored analyses, newest first.
func RenderHistory(records []models.AnalysisRecord) string {
	if len(records) == 0 {
		return mutedStyle.Render("No analyses recorded yet.")
	}
	var b strings.Builder
	b.WriteString(sectionStyle.Render(fmt.Sprintf("%-6s %-12s %-6s %-8s %-6s %s", "ID", "SYMBOL", "REC", "RISK", "MODEL", "CREATED")) + "\n")
	for _, r := range records {
		model := "no"
		if r.UsedModelPath {
			model = "yes"
		}
		b.WriteString(fmt.Sprintf("%-6d %-12s %s %-8s %-6s %s\n",
			r.ID,
			r.Symbol,
			decisionStyle(string(r.Recommendation)).Render(fmt.Sprintf("%-6s", r.Recommendation)),
			r.RiskLevel,
			model,
			r.CreatedAt.Local().Format(time.DateTime),
		))
	}
	last := records[len(records)-1]
	b.WriteString(mutedStyle.Render(fmt.Sprintf("next page: --cursor %d", last.ID)))
	return b.String()
}

func RenderHealth(h orchestrator.Health) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Agent health") + "\n")
	names := make([]string, 0, len(h.Agents))
	for name := range h.Agents {
		names = append(names, name)
	}
	sort.Strings(names)
	all := []orchestrator.AgentMetrics{h.Orchestrator}
	for _, name := range names {
		all = append(all, h.Agents[name])
	}
	for _, m := range all {
		b.WriteString(fmt.Sprintf("  %-22s runs=%d ok=%.0f%% avg=%.2fs\n",
			m.AgentName, m.TotalExecutions, m.SuccessRate*100, m.AvgExecutionTime))
	}
	llm := "unavailable"
	if h.LLMAvailable {
		llm = "available"
	}
	b.WriteString(mutedStyle.Render("  llm summary: " + llm))
	return b.String()
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value) + "\n"
}

func synthesisPath(model bool) string {
	if model {
		return "language model"
	}
	return "deterministic"
}

func writeMetrics(b *strings.Builder, title string, m map[string]any) {
	if len(m) == 0 {
		return
	}
	b.WriteString("\n" + sectionStyle.Render(title) + "\n")
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(row("  "+k, formatValue(m[k])))
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
