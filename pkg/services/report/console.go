package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

type TableConfig struct {
	NameWidth  int
	ValueWidth int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		NameWidth:  56,
		ValueWidth: 14,
	}
}

// ConsoleReporter renders the run summary as formatted text.
type ConsoleReporter struct {
	writer io.Writer
	config TableConfig
}

func NewConsoleReporter(writer io.Writer) *ConsoleReporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &ConsoleReporter{
		writer: writer,
		config: DefaultTableConfig(),
	}
}

func (c *ConsoleReporter) Handle(summary domain.Summary) error {
	funcMap := template.FuncMap{
		"formatRow": func(name string, value any) string {
			return fmt.Sprintf("| %-*s | %*v |",
				c.config.NameWidth, name,
				c.config.ValueWidth, value)
		},
		"separator": func() string {
			return fmt.Sprintf("+%s+%s+",
				strings.Repeat("-", c.config.NameWidth+2),
				strings.Repeat("-", c.config.ValueWidth+2))
		},
		"usd": func(v float64) string {
			return fmt.Sprintf("$%.2f", v)
		},
		"join": func(items []string) string {
			return strings.Join(items, ", ")
		},
	}

	tmpl := `
Cloud audit report ({{.GeneratedAt.Format "2006-01-02 15:04"}})

Resources audited: {{.ResourceCount}}
Findings: {{.FindingCount}}
Current monthly cost: {{usd .TotalMonthlyCost}}
Estimated monthly savings: {{usd .TotalMonthlySavings}}
Optimized monthly cost: {{usd .OptimizedMonthlyCost}}
{{if .MessagesAtRisk}}Messages at risk in dead-letter queues: {{.MessagesAtRisk}}
{{end}}
=== Findings by severity ===
{{range $sev, $count := .BySeverity}}{{$sev}}: {{$count}}
{{end}}
=== Most expensive resources ===
{{separator}}
{{formatRow "Resource" "Monthly"}}
{{separator}}
{{range .TopByCost}}{{formatRow .Resource.Name (usd .Value)}}
{{end}}{{separator}}

=== Highest risk resources ===
{{separator}}
{{formatRow "Resource" "Risk"}}
{{separator}}
{{range .TopByRisk}}{{formatRow .Resource.Name (printf "%.1f" .Value)}}
{{end}}{{separator}}

=== Findings by type ===
{{range .TypeBreakdown}}
[{{.Severity}}] {{.Type}} ({{.Count}})
  {{join .Resources}}{{if .More}} ... and {{.More}} more{{end}}
{{end}}
`

	t, err := template.New("console").Funcs(funcMap).Parse(tmpl)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	return t.Execute(c.writer, summary)
}
