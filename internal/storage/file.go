package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dyike/FinSight/models"
)

// FileSink writes each result as indented JSON under dir, one file per run,
// plus a markdown copy of the final report next to it.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

func (f *FileSink) Name() string { return "file" }

func (f *FileSink) Save(ctx context.Context, result models.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	path := f.Path(result)
	if err := writeAtomic(path, data); err != nil {
		return err
	}
	if result.FinalReport == "" {
		return nil
	}
	return writeAtomic(strings.TrimSuffix(path, ".json")+".md", []byte(markdownReport(result)))
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func markdownReport(r models.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Identifier)
	fmt.Fprintf(&b, "- Run: `%s`\n", r.RunID)
	fmt.Fprintf(&b, "- Created: %s\n", r.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Recommendation: **%s**\n", r.Recommendation)
	fmt.Fprintf(&b, "- Risk level: %s\n\n", r.RiskLevel)
	b.WriteString(r.FinalReport)
	b.WriteString("\n")
	return b.String()
}

// Path is <dir>/<SYMBOL>_<YYYYMMDD_HHMMSS>_<run prefix>.json.
func (f *FileSink) Path(result models.Result) string {
	symbol := strings.NewReplacer("^", "", "=", "_", "/", "_").Replace(result.Identifier)
	if symbol == "" {
		symbol = "UNKNOWN"
	}
	run := result.RunID
	if len(run) > 8 {
		run = run[:8]
	}
	name := fmt.Sprintf("%s_%s_%s.json", symbol, result.CreatedAt.Format("20060102_150405"), run)
	return filepath.Join(f.dir, name)
}
