package report

import (
	"fmt"
	"html/template"
	"io"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"usd": func(v float64) string { return fmt.Sprintf("$%.2f", v) },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<title>Cloud audit dashboard</title>
<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #ccc; padding: 6px 12px; text-align: left; }
th { background: #f0f0f0; }
.severity-critical { color: #b00020; font-weight: bold; }
.severity-high { color: #d35400; font-weight: bold; }
.cards { display: flex; gap: 1em; }
.card { border: 1px solid #ccc; border-radius: 6px; padding: 1em 2em; }
.card .value { font-size: 1.6em; font-weight: bold; }
</style>
</head>
<body>
<h1>Cloud audit dashboard</h1>
<p>Generated {{.Summary.GeneratedAt.Format "2006-01-02 15:04 MST"}}</p>

<div class="cards">
<div class="card"><div>Resources</div><div class="value">{{.Summary.ResourceCount}}</div></div>
<div class="card"><div>Findings</div><div class="value">{{.Summary.FindingCount}}</div></div>
<div class="card"><div>Monthly cost</div><div class="value">{{usd .Summary.TotalMonthlyCost}}</div></div>
<div class="card"><div>Potential savings</div><div class="value">{{usd .Summary.TotalMonthlySavings}}</div></div>
</div>

<h2>Findings by severity</h2>
<table>
<tr><th>Severity</th><th>Count</th></tr>
{{range $sev, $count := .Summary.BySeverity}}<tr><td>{{$sev}}</td><td>{{$count}}</td></tr>
{{end}}
</table>

<h2>Critical and high findings</h2>
<table>
<tr><th>Severity</th><th>Type</th><th>Resource</th><th>Risk</th><th>Remediation</th></tr>
{{range .Urgent}}<tr>
<td class="severity-{{.Severity}}">{{.Severity}}</td>
<td>{{.Type}}</td>
<td>{{.Resource.Name}}</td>
<td>{{printf "%.1f" .RiskScore}}</td>
<td>{{.Remediation}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`))

type dashboardData struct {
	Summary domain.Summary
	Urgent  []domain.Finding
}

// WriteHTML renders a static dashboard: severity counts and the
// critical/high finding table.
func WriteHTML(w io.Writer, result *domain.AuditResult, summary domain.Summary) error {
	var urgent []domain.Finding
	for _, f := range result.Findings {
		if f.Severity >= domain.SeverityHigh {
			urgent = append(urgent, f)
		}
	}
	if err := dashboardTmpl.Execute(w, dashboardData{Summary: summary, Urgent: urgent}); err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}
	return nil
}
