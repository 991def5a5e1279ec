package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// GenerateCSV creates a CSV report
func GenerateCSV(report *Report, writer io.Writer) error {
	w := csv.NewWriter(writer)

	header := []string{
		"Created",
		"Namespace",
		"Deployment",
		"Strategy",
		"Type",
		"Score",
		"Current Replicas",
		"Recommended Replicas",
		"Utilization",
		"Hourly Savings ($)",
		"Risk",
		"Reason",
		"Command",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, rec := range report.Recommendations {
		row := []string{
			rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			rec.Workload.Namespace,
			rec.Workload.Deployment,
			rec.Strategy,
			string(rec.Type),
			fmt.Sprintf("%.1f", rec.Score),
			strconv.Itoa(int(rec.CurrentReplicas)),
			strconv.Itoa(int(rec.RecommendedReplicas)),
			fmt.Sprintf("%.3f", rec.Utilization),
			fmt.Sprintf("%.4f", rec.SavingsHourly),
			string(rec.Risk),
			rec.Reason,
			rec.Command,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	// Summary rows
	w.Write([]string{})
	w.Write([]string{"SUMMARY"})
	w.Write([]string{"Total Workloads", strconv.Itoa(report.WorkloadCount)})
	w.Write([]string{"Optimization Opportunities", strconv.Itoa(report.OptimizableCount)})
	w.Write([]string{"Total Hourly Savings", fmt.Sprintf("$%.4f", report.TotalSavingsHourly)})

	w.Write([]string{})
	w.Write([]string{"STRATEGY BREAKDOWN"})
	w.Write([]string{"Strategy", "Recommendations", "Actionable", "Savings"})
	for _, stat := range report.sortedStats() {
		w.Write([]string{
			stat.Strategy,
			strconv.Itoa(stat.Count),
			strconv.Itoa(stat.Recommendations),
			fmt.Sprintf("$%.4f", stat.TotalSavingsHourly),
		})
	}

	w.Flush()
	return w.Error()
}

// GeneratePassCSV writes one row per workload failure after a summary row
func GeneratePassCSV(s PassSummary, writer io.Writer) error {
	w := csv.NewWriter(writer)

	w.Write([]string{"Pass ID", "Started", "Attempted", "Succeeded", "Failed", "Aborted", "Error"})
	w.Write([]string{
		s.PassID,
		s.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		strconv.Itoa(s.Attempted),
		strconv.Itoa(s.Succeeded),
		strconv.Itoa(s.Failed),
		strconv.FormatBool(s.Aborted),
		s.Error,
	})

	if len(s.Errors) > 0 {
		w.Write([]string{})
		w.Write([]string{"Workload", "Kind", "Error"})
		for _, e := range s.Errors {
			w.Write([]string{e.Workload, e.Kind, e.Message})
		}
	}

	w.Flush()
	return w.Error()
}
