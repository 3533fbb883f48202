package ml

import (
	"fmt"
	"math"
)

// maxMeasurementCM bounds plausible iris measurements; anything larger is a
// unit or entry error.
const maxMeasurementCM = 100

// CleaningStats counts what Clean kept and why it dropped rows.
type CleaningStats struct {
	TotalProcessed int            `json:"total_processed"`
	Passed         int            `json:"passed"`
	Rejected       int            `json:"rejected"`
	Issues         map[string]int `json:"issues"`
}

// Clean returns a copy of d without rows that have a non-finite,
// non-positive or implausibly large measurement, and without exact
// duplicates of an earlier row. Classes are kept as they are so labels stay
// valid.
func (d *Dataset) Clean() (*Dataset, CleaningStats) {
	stats := CleaningStats{Issues: make(map[string]int)}
	cleaned := &Dataset{Classes: d.Classes}
	seen := make(map[string]bool, d.Len())

	for i, row := range d.Features {
		stats.TotalProcessed++
		if issue := measurementIssue(row); issue != "" {
			stats.Rejected++
			stats.Issues[issue]++
			continue
		}
		key := fmt.Sprint(row, d.Labels[i])
		if seen[key] {
			stats.Rejected++
			stats.Issues["duplicate"]++
			continue
		}
		seen[key] = true
		stats.Passed++
		cleaned.Features = append(cleaned.Features, row)
		cleaned.Labels = append(cleaned.Labels, d.Labels[i])
	}
	return cleaned, stats
}

func measurementIssue(row []float64) string {
	for _, v := range row {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			return "non_finite"
		case v <= 0:
			return "non_positive"
		case v > maxMeasurementCM:
			return "out_of_range"
		}
	}
	return ""
}
