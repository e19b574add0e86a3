package domain

import "time"

// AuditResult is the complete output of one audit run: the filtered resource
// snapshot, every finding, and per-resource cost arithmetic. All entities are
// built fresh per run; re-running on the same snapshot reproduces them.
type AuditResult struct {
	GeneratedAt   time.Time
	Resources     []Resource
	Findings      []Finding
	Costs         map[string]CostBreakdown
	Optimizations map[string]Optimization
}

// TypeGroup is the per-finding-type breakdown shown in reports. Resources
// holds at most the first ten affected resources; More counts the rest.
type TypeGroup struct {
	Type      FindingType `json:"type"`
	Severity  Severity    `json:"severity"`
	Count     int         `json:"count"`
	Resources []string    `json:"resources"`
	More      int         `json:"more,omitempty"`
}

// RankedResource pairs a resource reference with the metric it is ranked by.
type RankedResource struct {
	Resource ResourceRef `json:"resource"`
	Value    float64     `json:"value"`
}

// Summary aggregates one run for all report representations.
type Summary struct {
	GeneratedAt          time.Time           `json:"generated_at"`
	ResourceCount        int                 `json:"resource_count"`
	FindingCount         int                 `json:"finding_count"`
	TotalMonthlyCost     float64             `json:"total_monthly_cost"`
	TotalMonthlySavings  float64             `json:"total_monthly_savings"`
	OptimizedMonthlyCost float64             `json:"optimized_monthly_cost"`
	BySeverity           map[string]int      `json:"by_severity"`
	ByType               map[string]int      `json:"by_type"`
	TypeBreakdown        []TypeGroup         `json:"type_breakdown"`
	TopByCost            []RankedResource    `json:"top_by_cost"`
	TopByRisk            []RankedResource    `json:"top_by_risk"`
	// MessagesAtRisk totals visible messages sitting in dead-letter queues
	// across the run.
	MessagesAtRisk int64 `json:"messages_at_risk"`
}
