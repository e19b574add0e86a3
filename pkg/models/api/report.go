package api

import (
	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

// Resource is the wire representation of one audited resource with its cost
// arithmetic attached.
type Resource struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Family               string   `json:"family"`
	MonthlyCost          float64  `json:"monthly_cost"`
	OptimizedMonthlyCost float64  `json:"optimized_monthly_cost,omitempty"`
	MonthlySavings       float64  `json:"monthly_savings,omitempty"`
	FindingTypes         []string `json:"finding_types,omitempty"`

	Tags map[string]string `json:"tags,omitempty"`
}

// Report is the top-level JSON output: the full resource and finding lists
// plus the run summary.
type Report struct {
	Summary   domain.Summary   `json:"summary"`
	Resources []Resource       `json:"resources"`
	Findings  []domain.Finding `json:"findings"`
}

// NewReport maps a finished audit run into its wire form.
func NewReport(result *domain.AuditResult, summary domain.Summary) Report {
	findingTypes := map[string][]string{}
	for _, f := range result.Findings {
		findingTypes[f.Resource.ID] = append(findingTypes[f.Resource.ID], string(f.Type))
	}

	resources := make([]Resource, 0, len(result.Resources))
	for _, res := range result.Resources {
		id := res.ResourceID()
		r := Resource{
			ID:           id,
			Name:         res.ResourceName(),
			Family:       string(res.Family()),
			MonthlyCost:  result.Costs[id].TotalMonthly,
			FindingTypes: findingTypes[id],
			Tags:         res.ResourceTags(),
		}
		if opt, ok := result.Optimizations[id]; ok {
			r.OptimizedMonthlyCost = opt.OptimizedMonthly
			r.MonthlySavings = opt.Savings
		}
		resources = append(resources, r)
	}

	return Report{
		Summary:   summary,
		Resources: resources,
		Findings:  result.Findings,
	}
}
