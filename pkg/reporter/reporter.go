package reporter

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/opscart/k8s-workload-optimizer/pkg/models"
)

// ReportFormat represents the output format
type ReportFormat string

const (
	FormatText ReportFormat = "text"
	FormatJSON ReportFormat = "json"
	FormatYAML ReportFormat = "yaml"
	FormatCSV  ReportFormat = "csv"
	FormatHTML ReportFormat = "html"
)

// ParseFormat validates a user supplied format name
func ParseFormat(s string) (ReportFormat, error) {
	switch f := ReportFormat(s); f {
	case FormatText, FormatJSON, FormatYAML, FormatCSV, FormatHTML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use text, json, yaml, csv or html)", s)
	}
}

// Report summarizes recommendation history
type Report struct {
	Namespace          string                    `json:"namespace,omitempty"`
	GeneratedAt        time.Time                 `json:"generatedAt"`
	Recommendations    []*models.Recommendation  `json:"recommendations"`
	TotalSavingsHourly float64                   `json:"totalSavingsHourly"`
	WorkloadCount      int                       `json:"workloadCount"`
	OptimizableCount   int                       `json:"optimizableCount"`
	StrategyStats      map[string]*StrategyStats `json:"strategyStats"`
}

// StrategyStats holds statistics per strategy
type StrategyStats struct {
	Strategy           string  `json:"strategy"`
	Count              int     `json:"count"`
	Recommendations    int     `json:"recommendations"`
	TotalSavingsHourly float64 `json:"totalSavingsHourly"`
	OptimizationRate   float64 `json:"optimizationRate"` // Percentage of workloads with an action
}

// Reporter renders pass reports and recommendation history
type Reporter struct {
	format ReportFormat
	now    func() time.Time
}

// New creates a new reporter
func New(format ReportFormat) *Reporter {
	return &Reporter{
		format: format,
		now:    time.Now,
	}
}

// Format returns the output format
func (r *Reporter) Format() ReportFormat {
	return r.format
}

// Generate builds a report from recommendations
func (r *Reporter) Generate(recommendations []*models.Recommendation, namespace string) *Report {
	report := &Report{
		Namespace:       namespace,
		GeneratedAt:     r.now(),
		Recommendations: recommendations,
		StrategyStats:   make(map[string]*StrategyStats),
	}
	calculateStats(report)
	return report
}

func calculateStats(report *Report) {
	workloads := make(map[string]struct{})
	for _, rec := range report.Recommendations {
		workloads[rec.Workload.Key()] = struct{}{}

		actionable := rec.Type != models.RecommendationNoAction
		if actionable {
			report.OptimizableCount++
			report.TotalSavingsHourly += rec.SavingsHourly
		}

		stat, ok := report.StrategyStats[rec.Strategy]
		if !ok {
			stat = &StrategyStats{Strategy: rec.Strategy}
			report.StrategyStats[rec.Strategy] = stat
		}
		stat.Count++
		if actionable {
			stat.Recommendations++
			stat.TotalSavingsHourly += rec.SavingsHourly
		}
	}
	report.WorkloadCount = len(workloads)

	for _, stat := range report.StrategyStats {
		if stat.Count > 0 {
			stat.OptimizationRate = float64(stat.Recommendations) / float64(stat.Count) * 100
		}
	}
}

// sortedStats returns strategy stats ordered by name
func (r *Report) sortedStats() []*StrategyStats {
	stats := make([]*StrategyStats, 0, len(r.StrategyStats))
	for _, s := range r.StrategyStats {
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Strategy < stats[j].Strategy })
	return stats
}

// WriteRecommendations renders a recommendation report
func (r *Reporter) WriteRecommendations(w io.Writer, report *Report) error {
	switch r.format {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatYAML:
		return writeYAML(w, report)
	case FormatCSV:
		return GenerateCSV(report, w)
	case FormatHTML:
		return GenerateHTML(report, w)
	default:
		return writeRecommendationsText(w, report)
	}
}

// WritePass renders the outcome of one optimization pass
func (r *Reporter) WritePass(w io.Writer, summary PassSummary) error {
	switch r.format {
	case FormatJSON:
		return writeJSON(w, summary)
	case FormatYAML:
		return writeYAML(w, summary)
	case FormatCSV:
		return GeneratePassCSV(summary, w)
	case FormatHTML:
		return fmt.Errorf("html output is only available for recommendation reports")
	default:
		return writePassText(w, summary)
	}
}
