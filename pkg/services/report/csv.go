package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

// WriteCSV renders one row per finding with the owning resource's cost and
// savings figures.
func WriteCSV(w io.Writer, result *domain.AuditResult, summary domain.Summary) error {
	cw := csv.NewWriter(w)

	header := []string{
		"resource_id", "resource_name", "family", "finding_type", "severity",
		"risk_score", "monthly_cost", "monthly_savings", "frameworks",
		"exception", "remediation",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, f := range result.Findings {
		row := []string{
			f.Resource.ID,
			f.Resource.Name,
			string(f.Resource.Family),
			string(f.Type),
			f.Severity.String(),
			strconv.FormatFloat(f.RiskScore, 'f', 1, 64),
			strconv.FormatFloat(result.Costs[f.Resource.ID].TotalMonthly, 'f', 2, 64),
			strconv.FormatFloat(f.MonthlySavings, 'f', 2, 64),
			strings.Join(f.Frameworks, ";"),
			strconv.FormatBool(f.Exception),
			f.Remediation,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
