package dispatch

import "fmt"

// Aggregate partitions outcomes into successful and failed, keeping their
// relative order and error details.
func Aggregate(outcomes []DispatchOutcome) BatchSummary {
	summary := BatchSummary{
		Total:      len(outcomes),
		Successful: make([]DispatchOutcome, 0, len(outcomes)),
		Failed:     make([]DispatchOutcome, 0),
	}

	for _, outcome := range outcomes {
		if outcome.Status == StatusSent {
			summary.Successful = append(summary.Successful, outcome)
			continue
		}
		summary.Failed = append(summary.Failed, outcome)
	}

	return summary
}

// Stats rolls the summary up for the response.
func (s BatchSummary) Stats() BatchStats {
	return BatchStats{
		TotalSent:   len(s.Successful),
		TotalFailed: len(s.Failed),
		SuccessRate: FormatSuccessRate(len(s.Successful), s.Total),
	}
}

// FormatSuccessRate renders successful/total as a percentage with one decimal,
// e.g. "66.7%". An empty batch reports "0.0%".
func FormatSuccessRate(successful, total int) string {
	if total <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(successful)/float64(total)*100)
}
