package cost

import (
	"strings"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

// Pricing constants for the log-group audit domain, USD. Fixed per domain,
// not derived from the billing API.
const (
	StorageRateGBMonth = 0.03
	IngestionRateGB    = 0.50
	QueryScanRateGB    = 0.005
)

const bytesPerGiB = 1024 * 1024 * 1024

// Ingestion reduction factors applied cumulatively when simulating the
// optimized configuration. Each factor is the fraction of ingestion kept
// after the corresponding remediation.
const (
	SamplingFactor    = 0.7
	FlowCaptureFactor = 0.2
	VerbosityFactor   = 0.8
)

// defaultRetentionRatio stands in for min(days/365, 1) when retention is
// unset on the current configuration.
const defaultRetentionRatio = 30.0 / 365.0

// MonthlyCost computes the current monthly cost of a log group.
func MonthlyCost(storedGiB, dailyIngestionGiB float64) domain.CostBreakdown {
	storage := storedGiB * StorageRateGBMonth
	ingestion := dailyIngestionGiB * 30 * IngestionRateGB
	return domain.CostBreakdown{
		StorageMonthly:   storage,
		IngestionMonthly: ingestion,
		TotalMonthly:     storage + ingestion,
	}
}

// ForResource maps any resource to its cost breakdown. Only log groups carry
// storage/ingestion pricing; other families audit free or request-priced
// resources and report zero.
func ForResource(res domain.Resource) domain.CostBreakdown {
	lg, ok := res.(domain.LogGroup)
	if !ok {
		return domain.CostBreakdown{}
	}
	return MonthlyCost(StoredGiB(lg), DailyIngestionGiB(lg))
}

func StoredGiB(lg domain.LogGroup) float64 {
	return float64(lg.StoredBytes) / bytesPerGiB
}

func DailyIngestionGiB(lg domain.LogGroup) float64 {
	return lg.IngestedBytesPerDay / bytesPerGiB
}

// RetentionSavings estimates the monthly storage cost recovered by lowering
// retention from oldDays to newDays. Zero when newDays >= oldDays.
func RetentionSavings(storedGiB float64, newDays, oldDays int32) float64 {
	if oldDays <= newDays || oldDays <= 0 {
		return 0
	}
	return storedGiB * (1 - float64(newDays)/float64(oldDays)) * StorageRateGBMonth
}

// RecommendedRetention picks a retention period from the group's
// classification. First matching rule wins, in this order: debug indicators,
// audit indicators, confidential data classification, application indicators.
func RecommendedRetention(lg domain.LogGroup) int32 {
	name := strings.ToLower(lg.Name)
	switch {
	case containsAny(name, "debug", "trace", "verbose", "dev"):
		return 30
	case containsAny(name, "audit", "compliance", "security", "access"):
		return 7
	case strings.EqualFold(lg.Tags["DataClassification"], "confidential"):
		return 90
	case containsAny(name, "app", "application", "service", "/aws/lambda/", "/ecs/", "/eks/"):
		return 60
	default:
		return 30
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Optimize simulates the monthly cost after applying every cost-reducing
// remediation implied by the group's findings. Savings is clamped at zero;
// the caller logs a modeling bug if the raw value was negative.
func Optimize(lg domain.LogGroup, findings []domain.Finding) domain.Optimization {
	current := MonthlyCost(StoredGiB(lg), DailyIngestionGiB(lg))

	recommended := RecommendedRetention(lg)
	ratio := defaultRetentionRatio
	if lg.RetentionDays != nil {
		ratio = float64(recommended) / 365.0
		if ratio > 1.0 {
			ratio = 1.0
		}
	}
	optimizedStored := StoredGiB(lg) * ratio

	optimizedIngestion := DailyIngestionGiB(lg)
	for _, f := range findings {
		if f.Resource.ID != lg.ResourceID() {
			continue
		}
		switch f.Type {
		case domain.FindingHighIngestionRate:
			optimizedIngestion *= SamplingFactor
		case domain.FindingFlowLogsAllTraffic:
			optimizedIngestion *= FlowCaptureFactor
		case domain.FindingVerboseLogFormat:
			optimizedIngestion *= VerbosityFactor
		}
	}

	optimized := optimizedStored*StorageRateGBMonth + optimizedIngestion*30*IngestionRateGB
	savings := current.TotalMonthly - optimized
	if savings < 0 {
		savings = 0
	}
	return domain.Optimization{
		RecommendedRetentionDays: recommended,
		OptimizedMonthly:         optimized,
		Savings:                  savings,
	}
}
