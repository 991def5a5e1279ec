package reporter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

func writePassText(w io.Writer, s PassSummary) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Optimization pass %s\n", s.PassID)
	fmt.Fprintf(&b, "%s\n", strings.Repeat("=", 60))
	if s.Error != "" {
		fmt.Fprintf(&b, "Error:     %s\n", s.Error)
	}
	if s.PassID == "" {
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "Started:   %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Duration:  %.2fs\n", s.DurationSeconds)
	fmt.Fprintf(&b, "Attempted: %d\n", s.Attempted)
	fmt.Fprintf(&b, "Succeeded: %d\n", s.Succeeded)
	fmt.Fprintf(&b, "Failed:    %d\n", s.Failed)
	if s.Aborted {
		b.WriteString("Status:    ABORTED\n")
	}
	if len(s.Cancelled) > 0 {
		fmt.Fprintf(&b, "Cancelled: %s\n", strings.Join(s.Cancelled, ", "))
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(s.Dispatches) > 0 {
		fmt.Fprintln(tw, "\nSTRATEGY\tDISPATCHES")
		for _, band := range []string{"performance", "balanced", "cost-efficient"} {
			if n, ok := s.Dispatches[band]; ok {
				fmt.Fprintf(tw, "%s\t%d\n", band, n)
			}
		}
	}
	if len(s.Errors) > 0 {
		fmt.Fprintln(tw, "\nWORKLOAD\tKIND\tERROR")
		for _, e := range s.Errors {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Workload, e.Kind, e.Message)
		}
	}
	return tw.Flush()
}

func writeRecommendationsText(w io.Writer, report *Report) error {
	if len(report.Recommendations) == 0 {
		_, err := fmt.Fprintln(w, "No recommendations recorded")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tWORKLOAD\tSTRATEGY\tTYPE\tREPLICAS\tUTIL\tSAVINGS/H\tRISK\tREASON")
	for _, rec := range report.Recommendations {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d -> %d\t%.0f%%\t$%.4f\t%s\t%s\n",
			rec.CreatedAt.Format("2006-01-02 15:04"),
			rec.Workload.String(),
			rec.Strategy,
			rec.Type,
			rec.CurrentReplicas,
			rec.RecommendedReplicas,
			rec.Utilization*100,
			rec.SavingsHourly,
			rec.Risk,
			rec.Reason,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nWorkloads: %d  Actionable: %d  Potential savings: $%.4f/hour\n",
		report.WorkloadCount, report.OptimizableCount, report.TotalSavingsHourly)

	for _, rec := range report.Recommendations {
		if rec.Command != "" {
			fmt.Fprintf(w, "  %s\n", rec.Command)
		}
	}
	return nil
}
