package cost

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

const gib = int64(1024 * 1024 * 1024)

func TestMonthlyCost(t *testing.T) {
	t.Run("storage only", func(t *testing.T) {
		b := MonthlyCost(1, 0)
		assert.InDelta(t, 0.03, b.StorageMonthly, 1e-9)
		assert.Zero(t, b.IngestionMonthly)
		assert.InDelta(t, 0.03, b.TotalMonthly, 1e-9)
	})

	t.Run("storage and ingestion", func(t *testing.T) {
		b := MonthlyCost(10, 1)
		assert.InDelta(t, 0.3, b.StorageMonthly, 1e-9)
		assert.InDelta(t, 15.0, b.IngestionMonthly, 1e-9)
		assert.InDelta(t, 15.3, b.TotalMonthly, 1e-9)
	})
}

func TestForResource_NonLogGroupIsFree(t *testing.T) {
	b := ForResource(domain.SecurityGroup{ID: "sg-1"})
	assert.Zero(t, b.TotalMonthly)

	b = ForResource(domain.Queue{Name: "orders"})
	assert.Zero(t, b.TotalMonthly)
}

func TestRetentionSavings(t *testing.T) {
	t.Run("documented example", func(t *testing.T) {
		// 1 GiB, 365 -> 30 days
		got := RetentionSavings(1, 30, 365)
		assert.InDelta(t, 1*(1-30.0/365.0)*0.03, got, 1e-9)
		assert.InDelta(t, 0.0276, got, 0.0001)
	})

	t.Run("zero when new retention is not shorter", func(t *testing.T) {
		assert.Zero(t, RetentionSavings(1, 365, 365))
		assert.Zero(t, RetentionSavings(1, 400, 365))
		assert.Zero(t, RetentionSavings(1, 30, 0))
	})

	t.Run("monotonically non-increasing in new days", func(t *testing.T) {
		prev := RetentionSavings(5, 1, 365)
		for newDays := int32(2); newDays <= 400; newDays++ {
			cur := RetentionSavings(5, newDays, 365)
			assert.LessOrEqual(t, cur, prev, "newDays=%d", newDays)
			prev = cur
		}
	})
}

func TestRecommendedRetention_FirstMatchWins(t *testing.T) {
	tests := []struct {
		name  string
		group domain.LogGroup
		want  int32
	}{
		{"debug indicator", domain.LogGroup{Name: "/apps/checkout/debug-logs"}, 30},
		{"audit indicator", domain.LogGroup{Name: "/org/audit-trail"}, 7},
		{
			"confidential tag",
			domain.LogGroup{Name: "/data/payments", Tags: map[string]string{"DataClassification": "Confidential"}},
			90,
		},
		{"application indicator", domain.LogGroup{Name: "/aws/lambda/checkout"}, 60},
		{"fallback", domain.LogGroup{Name: "/misc/other"}, 30},
		// "dev" is a debug indicator and beats the audit match in "access".
		{"debug beats audit", domain.LogGroup{Name: "/dev-tools/access"}, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RecommendedRetention(tt.group))
		})
	}
}

func TestOptimize(t *testing.T) {
	lg := domain.LogGroup{
		Name:                "/apps/orders/app",
		ARN:                 "arn:aws:logs:us-east-1:1:log-group:/apps/orders/app",
		RetentionDays:       aws.Int32(365),
		StoredBytes:         10 * gib,
		IngestedBytesPerDay: float64(2 * gib),
	}

	t.Run("no findings still simulates retention", func(t *testing.T) {
		opt := Optimize(lg, nil)
		current := MonthlyCost(10, 2)
		assert.Equal(t, int32(60), opt.RecommendedRetentionDays)
		assert.LessOrEqual(t, opt.OptimizedMonthly, current.TotalMonthly)
		assert.InDelta(t, current.TotalMonthly-opt.OptimizedMonthly, opt.Savings, 1e-9)
	})

	t.Run("ingestion factors compose cumulatively", func(t *testing.T) {
		findings := []domain.Finding{
			{Type: domain.FindingHighIngestionRate, Resource: domain.ResourceRef{ID: lg.ARN}},
			{Type: domain.FindingVerboseLogFormat, Resource: domain.ResourceRef{ID: lg.ARN}},
		}
		opt := Optimize(lg, findings)

		wantStored := 10 * (60.0 / 365.0) * StorageRateGBMonth
		wantIngest := 2 * SamplingFactor * VerbosityFactor * 30 * IngestionRateGB
		assert.InDelta(t, wantStored+wantIngest, opt.OptimizedMonthly, 1e-9)
	})

	t.Run("ignores findings for other resources", func(t *testing.T) {
		other := []domain.Finding{
			{Type: domain.FindingFlowLogsAllTraffic, Resource: domain.ResourceRef{ID: "arn:other"}},
		}
		assert.Equal(t, Optimize(lg, nil), Optimize(lg, other))
	})

	t.Run("optimized never exceeds current", func(t *testing.T) {
		findings := []domain.Finding{
			{Type: domain.FindingHighIngestionRate, Resource: domain.ResourceRef{ID: lg.ARN}},
			{Type: domain.FindingFlowLogsAllTraffic, Resource: domain.ResourceRef{ID: lg.ARN}},
			{Type: domain.FindingVerboseLogFormat, Resource: domain.ResourceRef{ID: lg.ARN}},
		}
		opt := Optimize(lg, findings)
		assert.LessOrEqual(t, opt.OptimizedMonthly, MonthlyCost(10, 2).TotalMonthly)
		assert.GreaterOrEqual(t, opt.Savings, 0.0)
	})

	t.Run("unset retention uses default ratio", func(t *testing.T) {
		unset := lg
		unset.RetentionDays = nil
		opt := Optimize(unset, nil)
		wantStored := 10 * (30.0 / 365.0) * StorageRateGBMonth
		wantIngest := 2 * 30 * IngestionRateGB
		assert.InDelta(t, wantStored+wantIngest, opt.OptimizedMonthly, 1e-9)
	})
}
