package reporter

import (
	"fmt"
	"html/template"
	"io"
)

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Workload Optimizer Report{{if .Namespace}} - {{.Namespace}}{{end}}</title>
    <style>
        body { font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; background: #f5f7fa; color: #333; padding: 20px; }
        .container { max-width: 1400px; margin: 0 auto; background: white; border-radius: 8px; box-shadow: 0 2px 8px rgba(0,0,0,0.1); }
        .header { background: linear-gradient(135deg, #326ce5 0%, #1a4d8f 100%); color: white; padding: 30px 40px; }
        .summary { display: grid; grid-template-columns: repeat(auto-fit, minmax(220px, 1fr)); gap: 20px; padding: 30px 40px; }
        .card { border: 1px solid #e1e4e8; border-radius: 8px; padding: 20px; }
        .card .value { font-size: 2em; font-weight: bold; color: #326ce5; }
        table { width: 100%; border-collapse: collapse; }
        th, td { padding: 10px 14px; border-bottom: 1px solid #e1e4e8; text-align: left; font-size: 0.9em; }
        th { background: #f6f8fa; }
        .section { padding: 0 40px 30px; }
        .SCALE_UP { color: #d73a49; } .SCALE_DOWN { color: #28a745; } .NO_ACTION { color: #6a737d; }
        code { background: #f6f8fa; padding: 2px 6px; border-radius: 4px; }
    </style>
</head>
<body>
<div class="container">
    <div class="header">
        <h1>Workload Optimizer Report</h1>
        <div>{{if .Namespace}}Namespace <strong>{{.Namespace}}</strong> · {{end}}Generated {{.GeneratedAt.Format "2006-01-02 15:04 MST"}}</div>
    </div>
    <div class="summary">
        <div class="card"><div>Workloads</div><div class="value">{{.WorkloadCount}}</div></div>
        <div class="card"><div>Actionable</div><div class="value">{{.OptimizableCount}}</div></div>
        <div class="card"><div>Savings per hour</div><div class="value">{{money .TotalSavingsHourly}}</div></div>
    </div>
    <div class="section">
        <h2>By strategy</h2>
        <table>
            <tr><th>Strategy</th><th>Recommendations</th><th>Actionable</th><th>Rate</th><th>Savings/h</th></tr>
            {{range .Stats}}<tr><td>{{.Strategy}}</td><td>{{.Count}}</td><td>{{.Recommendations}}</td><td>{{printf "%.0f" .OptimizationRate}}%</td><td>{{money .TotalSavingsHourly}}</td></tr>
            {{end}}
        </table>
    </div>
    <div class="section">
        <h2>Recommendations</h2>
        <table>
            <tr><th>Workload</th><th>Strategy</th><th>Type</th><th>Replicas</th><th>Utilization</th><th>Risk</th><th>Reason</th><th>Command</th></tr>
            {{range .Recommendations}}<tr>
                <td>{{.Workload}}</td><td>{{.Strategy}}</td><td class="{{.Type}}">{{.Type}}</td>
                <td>{{.CurrentReplicas}} → {{.RecommendedReplicas}}</td><td>{{percent .Utilization}}</td>
                <td>{{.Risk}}</td><td>{{.Reason}}</td><td>{{if .Command}}<code>{{.Command}}</code>{{end}}</td>
            </tr>
            {{end}}
        </table>
    </div>
</div>
</body>
</html>
`

// GenerateHTML creates an HTML report
func GenerateHTML(report *Report, writer io.Writer) error {
	funcs := template.FuncMap{
		"money":   func(v float64) string { return fmt.Sprintf("$%.4f", v) },
		"percent": func(v float64) string { return fmt.Sprintf("%.0f%%", v*100) },
	}

	tmpl, err := template.New("report").Funcs(funcs).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	data := struct {
		*Report
		Stats []*StrategyStats
	}{report, report.sortedStats()}

	if err := tmpl.Execute(writer, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}
