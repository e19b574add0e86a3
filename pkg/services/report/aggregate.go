package report

import (
	"sort"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

// breakdownLimit caps the resources listed per finding type; the remainder
// is reported as a count.
const breakdownLimit = 10

const rankingLimit = 10

// Aggregate computes the summary every report representation renders from.
// The messages-at-risk total is an explicit accumulator over the findings,
// recomputed fresh per run.
func Aggregate(result *domain.AuditResult) domain.Summary {
	summary := domain.Summary{
		GeneratedAt:   result.GeneratedAt,
		ResourceCount: len(result.Resources),
		FindingCount:  len(result.Findings),
		BySeverity:    map[string]int{},
		ByType:        map[string]int{},
	}

	for _, c := range result.Costs {
		summary.TotalMonthlyCost += c.TotalMonthly
	}
	for _, o := range result.Optimizations {
		summary.TotalMonthlySavings += o.Savings
	}
	summary.OptimizedMonthlyCost = summary.TotalMonthlyCost - summary.TotalMonthlySavings

	byType := map[domain.FindingType][]domain.Finding{}
	for _, f := range result.Findings {
		summary.BySeverity[f.Severity.String()]++
		summary.ByType[string(f.Type)]++
		byType[f.Type] = append(byType[f.Type], f)

		if f.Type == domain.FindingDLQAccumulation {
			if messages, ok := f.Details["messages"].(int); ok {
				summary.MessagesAtRisk += int64(messages)
			}
		}
	}

	summary.TypeBreakdown = typeBreakdown(byType)
	summary.TopByCost = topByCost(result)
	summary.TopByRisk = topByRisk(result)
	return summary
}

func typeBreakdown(byType map[domain.FindingType][]domain.Finding) []domain.TypeGroup {
	groups := make([]domain.TypeGroup, 0, len(byType))
	for t, findings := range byType {
		group := domain.TypeGroup{
			Type:     t,
			Severity: findings[0].Severity,
			Count:    len(findings),
		}
		for _, f := range findings {
			if f.Severity > group.Severity {
				group.Severity = f.Severity
			}
			if len(group.Resources) < breakdownLimit {
				group.Resources = append(group.Resources, f.Resource.Name)
			}
		}
		group.More = group.Count - len(group.Resources)
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Severity != groups[j].Severity {
			return groups[i].Severity > groups[j].Severity
		}
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Type < groups[j].Type
	})
	return groups
}

func topByCost(result *domain.AuditResult) []domain.RankedResource {
	ranked := make([]domain.RankedResource, 0, len(result.Resources))
	for _, res := range result.Resources {
		c, ok := result.Costs[res.ResourceID()]
		if !ok || c.TotalMonthly == 0 {
			continue
		}
		ranked = append(ranked, domain.RankedResource{Resource: domain.Ref(res), Value: c.TotalMonthly})
	}
	sortRanked(ranked)
	return truncate(ranked)
}

func topByRisk(result *domain.AuditResult) []domain.RankedResource {
	maxRisk := map[string]float64{}
	refs := map[string]domain.ResourceRef{}
	for _, f := range result.Findings {
		if f.RiskScore > maxRisk[f.Resource.ID] {
			maxRisk[f.Resource.ID] = f.RiskScore
			refs[f.Resource.ID] = f.Resource
		}
	}
	ranked := make([]domain.RankedResource, 0, len(maxRisk))
	for id, score := range maxRisk {
		ranked = append(ranked, domain.RankedResource{Resource: refs[id], Value: score})
	}
	sortRanked(ranked)
	return truncate(ranked)
}

func sortRanked(ranked []domain.RankedResource) {
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Value != ranked[j].Value {
			return ranked[i].Value > ranked[j].Value
		}
		return ranked[i].Resource.Name < ranked[j].Resource.Name
	})
}

func truncate(ranked []domain.RankedResource) []domain.RankedResource {
	if len(ranked) > rankingLimit {
		return ranked[:rankingLimit]
	}
	return ranked
}
