package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dyike/FinSight/models"
)

var historyHeaders = []string{
	"ID", "RunID", "Symbol", "Recommendation", "RiskLevel",
	"UsedModelPath", "Succeeded", "KeyDrivers", "CreatedAt",
}

// WriteHistoryCSV exports analysis records, one row per run.
func WriteHistoryCSV(w io.Writer, records []models.AnalysisRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(historyHeaders); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	for _, r := range records {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.RunID,
			r.Symbol,
			string(r.Recommendation),
			string(r.RiskLevel),
			strconv.FormatBool(r.UsedModelPath),
			strconv.FormatBool(r.Succeeded),
			strings.Join(r.Payload.KeyDrivers, "; "),
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", r.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
