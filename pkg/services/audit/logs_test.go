package audit

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

const gib = int64(1024 * 1024 * 1024)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func evalOne(t *testing.T, res domain.Resource, rctx *Context) []domain.Finding {
	t.Helper()
	if rctx == nil {
		rctx = &Context{Now: testNow}
	}
	if rctx.Now.IsZero() {
		rctx.Now = testNow
	}
	if rctx.Resources == nil {
		rctx.Resources = []domain.Resource{res}
	}
	return NewEngine(DefaultSettings()).Evaluate(res, rctx)
}

func ofType(findings []domain.Finding, t domain.FindingType) []domain.Finding {
	var matched []domain.Finding
	for _, f := range findings {
		if f.Type == t {
			matched = append(matched, f)
		}
	}
	return matched
}

func TestIndefiniteRetention(t *testing.T) {
	t.Run("unset retention yields exactly one high finding", func(t *testing.T) {
		lg := domain.LogGroup{Name: "/platform/base", ARN: "arn:lg:base", StoredBytes: gib}
		findings := ofType(evalOne(t, lg, nil), domain.FindingIndefiniteRetention)
		require.Len(t, findings, 1)
		assert.Equal(t, domain.SeverityHigh, findings[0].Severity)
		assert.Equal(t, "arn:lg:base", findings[0].Resource.ID)
	})

	t.Run("set retention yields none", func(t *testing.T) {
		lg := domain.LogGroup{Name: "/platform/base", ARN: "arn:lg:base", RetentionDays: aws.Int32(14)}
		assert.Empty(t, ofType(evalOne(t, lg, nil), domain.FindingIndefiniteRetention))
	})
}

func TestRetentionClassification(t *testing.T) {
	tests := []struct {
		name      string
		group     string
		retention int32
		want      domain.FindingType
		severity  domain.Severity
	}{
		{"debug over limit", "/apps/checkout-debug", 90, domain.FindingExcessiveDebugRetention, domain.SeverityMedium},
		{"audit over limit", "/org/audit-trail", 30, domain.FindingExcessiveAuditRetention, domain.SeverityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lg := domain.LogGroup{Name: tt.group, ARN: "arn:" + tt.group, RetentionDays: aws.Int32(tt.retention)}
			findings := ofType(evalOne(t, lg, nil), tt.want)
			require.Len(t, findings, 1)
			assert.Equal(t, tt.severity, findings[0].Severity)
		})
	}

	t.Run("debug and audit branches are mutually exclusive", func(t *testing.T) {
		// Matches both indicator sets; only the debug branch fires.
		lg := domain.LogGroup{Name: "/org/security-trace", ARN: "arn:lg:st", RetentionDays: aws.Int32(400)}
		findings := evalOne(t, lg, nil)
		assert.Len(t, ofType(findings, domain.FindingExcessiveDebugRetention), 1)
		assert.Empty(t, ofType(findings, domain.FindingExcessiveAuditRetention))
	})

	t.Run("within limits yields none", func(t *testing.T) {
		lg := domain.LogGroup{Name: "/apps/checkout-debug", ARN: "arn:lg:cd", RetentionDays: aws.Int32(30)}
		findings := evalOne(t, lg, nil)
		assert.Empty(t, ofType(findings, domain.FindingExcessiveDebugRetention))
	})
}

func TestMissingMetricFilters(t *testing.T) {
	lg := domain.LogGroup{Name: "/aws/lambda/orders", ARN: "arn:lg:o", RetentionDays: aws.Int32(30)}
	assert.Len(t, ofType(evalOne(t, lg, nil), domain.FindingMissingMetricFilters), 1)

	lg.MetricFilterCount = 2
	assert.Empty(t, ofType(evalOne(t, lg, nil), domain.FindingMissingMetricFilters))

	other := domain.LogGroup{Name: "/infra/vpn", ARN: "arn:lg:v", RetentionDays: aws.Int32(30)}
	assert.Empty(t, ofType(evalOne(t, other, nil), domain.FindingMissingMetricFilters))
}

func TestUnusedLogGroup(t *testing.T) {
	stale := testNow.Add(-90 * 24 * time.Hour)
	lg := domain.LogGroup{
		Name:          "/infra/old",
		ARN:           "arn:lg:old",
		RetentionDays: aws.Int32(30),
		StoredBytes:   2 * gib,
		LastEventAt:   &stale,
	}
	findings := ofType(evalOne(t, lg, nil), domain.FindingUnusedLogGroup)
	require.Len(t, findings, 1)
	assert.Equal(t, domain.SeverityLow, findings[0].Severity)
	// Savings equal the full current monthly cost.
	assert.InDelta(t, 2*0.03, findings[0].MonthlySavings, 1e-9)

	recent := testNow.Add(-24 * time.Hour)
	lg.LastEventAt = &recent
	assert.Empty(t, ofType(evalOne(t, lg, nil), domain.FindingUnusedLogGroup))
}

func TestMissingEncryption(t *testing.T) {
	lg := domain.LogGroup{
		Name:          "/data/payments",
		ARN:           "arn:lg:p",
		RetentionDays: aws.Int32(90),
		Tags:          map[string]string{"DataClassification": "Confidential"},
	}
	findings := ofType(evalOne(t, lg, nil), domain.FindingMissingEncryption)
	require.Len(t, findings, 1)
	assert.Equal(t, domain.SeverityHigh, findings[0].Severity)
	assert.Contains(t, findings[0].Frameworks, "HIPAA")

	lg.KMSKeyID = "arn:aws:kms:us-east-1:1:key/k"
	assert.Empty(t, ofType(evalOne(t, lg, nil), domain.FindingMissingEncryption))
}

func TestExcessiveSubscriptions(t *testing.T) {
	subs := []domain.LogSubscription{
		{Name: "a"}, {Name: "b"}, {Name: "c"},
	}
	lg := domain.LogGroup{Name: "/infra/busy", ARN: "arn:lg:b", RetentionDays: aws.Int32(30), Subscriptions: subs}
	findings := ofType(evalOne(t, lg, nil), domain.FindingExcessiveSubscriptions)
	require.Len(t, findings, 1)
	assert.Equal(t, 3, findings[0].Details["subscription_count"])

	lg.Subscriptions = subs[:2]
	assert.Empty(t, ofType(evalOne(t, lg, nil), domain.FindingExcessiveSubscriptions))
}

func TestMissingLogStreams(t *testing.T) {
	lg := domain.LogGroup{Name: "/aws/lambda/ghost", ARN: "arn:lg:g", RetentionDays: aws.Int32(30)}
	assert.Len(t, ofType(evalOne(t, lg, nil), domain.FindingMissingLogStreams), 1)

	lg.StreamCount = 1
	assert.Empty(t, ofType(evalOne(t, lg, nil), domain.FindingMissingLogStreams))
}

func TestHighIngestionRate(t *testing.T) {
	// 6 MiB/s sustained.
	lg := domain.LogGroup{
		Name:                "/apps/firehose",
		ARN:                 "arn:lg:f",
		RetentionDays:       aws.Int32(30),
		StoredBytes:         gib,
		IngestedBytesPerDay: 6 * 1024 * 1024 * 86400,
	}
	findings := ofType(evalOne(t, lg, nil), domain.FindingHighIngestionRate)
	require.Len(t, findings, 1)
	assert.Equal(t, domain.SeverityMedium, findings[0].Severity)
	assert.Greater(t, findings[0].MonthlySavings, 0.0)

	lg.IngestedBytesPerDay = 1024 * 86400
	assert.Empty(t, ofType(evalOne(t, lg, nil), domain.FindingHighIngestionRate))
}

func TestMissingCrossRegionBackup(t *testing.T) {
	base := domain.LogGroup{
		Name:          "/apps/checkout",
		ARN:           "arn:aws:logs:us-east-1:1:log-group:/apps/checkout",
		RetentionDays: aws.Int32(30),
		Tags:          map[string]string{"Environment": "production"},
	}

	t.Run("critical without cross-region delivery", func(t *testing.T) {
		findings := ofType(evalOne(t, base, nil), domain.FindingMissingCrossRegionBackup)
		require.Len(t, findings, 1)
		assert.Equal(t, domain.SeverityHigh, findings[0].Severity)
	})

	t.Run("cross-region subscription satisfies", func(t *testing.T) {
		lg := base
		lg.Subscriptions = []domain.LogSubscription{
			{Name: "dr", DestinationARN: "arn:aws:logs:eu-west-1:1:destination:dr", Region: "eu-west-1"},
		}
		assert.Empty(t, ofType(evalOne(t, lg, nil), domain.FindingMissingCrossRegionBackup))
	})

	t.Run("same-region subscription does not satisfy", func(t *testing.T) {
		lg := base
		lg.Subscriptions = []domain.LogSubscription{
			{Name: "local", DestinationARN: "arn:aws:logs:us-east-1:1:destination:l", Region: "us-east-1"},
		}
		assert.Len(t, ofType(evalOne(t, lg, nil), domain.FindingMissingCrossRegionBackup), 1)
	})

	t.Run("non-critical resource skipped", func(t *testing.T) {
		lg := base
		lg.Tags = nil
		assert.Empty(t, ofType(evalOne(t, lg, nil), domain.FindingMissingCrossRegionBackup))
	})
}

func TestMissingSavedQueries(t *testing.T) {
	lg := domain.LogGroup{Name: "/aws/lambda/orders", ARN: "arn:lg:o", RetentionDays: aws.Int32(30)}

	t.Run("no query references the group", func(t *testing.T) {
		rctx := &Context{Resources: []domain.Resource{lg}, SavedQueriesOK: true, Now: testNow}
		assert.Len(t, ofType(evalOne(t, lg, rctx), domain.FindingMissingSavedQueries), 1)
	})

	t.Run("referencing query suppresses the finding", func(t *testing.T) {
		rctx := &Context{
			Resources:       []domain.Resource{lg},
			SavedQueryNames: []string{"errors fields @message | filter @logStream /aws/lambda/orders"},
			SavedQueriesOK:  true,
			Now:             testNow,
		}
		assert.Empty(t, ofType(evalOne(t, lg, rctx), domain.FindingMissingSavedQueries))
	})

	t.Run("degraded API assumes queries exist", func(t *testing.T) {
		rctx := &Context{Resources: []domain.Resource{lg}, SavedQueriesOK: false, Now: testNow}
		assert.Empty(t, ofType(evalOne(t, lg, rctx), domain.FindingMissingSavedQueries))
	})
}

func TestFlowLogsAllTraffic(t *testing.T) {
	lg := domain.LogGroup{
		Name:               "/vpc/flow-logs/main",
		ARN:                "arn:lg:fl",
		RetentionDays:      aws.Int32(30),
		StoredBytes:        10 * gib,
		FlowLogTrafficType: "ALL",
	}
	findings := ofType(evalOne(t, lg, nil), domain.FindingFlowLogsAllTraffic)
	require.Len(t, findings, 1)
	assert.InDelta(t, 10*0.03*0.8, findings[0].MonthlySavings, 1e-9)

	lg.FlowLogTrafficType = "REJECT"
	assert.Empty(t, ofType(evalOne(t, lg, nil), domain.FindingFlowLogsAllTraffic))
}

func TestVerboseLogFormat(t *testing.T) {
	wideJSON := func(fields int) string {
		payload := map[string]int{}
		for i := 0; i < fields; i++ {
			payload["field_"+strings.Repeat("x", i%5)+string(rune('a'+i%26))+string(rune('a'+i/26))] = i
		}
		raw, _ := json.Marshal(payload)
		return string(raw)
	}

	t.Run("wide structured payload", func(t *testing.T) {
		lg := domain.LogGroup{
			Name: "/apps/chatty", ARN: "arn:lg:c", RetentionDays: aws.Int32(30),
			StoredBytes:     gib,
			SampledMessages: []string{wideJSON(25)},
		}
		findings := ofType(evalOne(t, lg, nil), domain.FindingVerboseLogFormat)
		require.Len(t, findings, 1)
		assert.InDelta(t, 0.03*0.2, findings[0].MonthlySavings, 1e-9)
	})

	t.Run("oversized raw line", func(t *testing.T) {
		lg := domain.LogGroup{
			Name: "/apps/chatty", ARN: "arn:lg:c", RetentionDays: aws.Int32(30),
			SampledMessages: []string{strings.Repeat("x", 1500)},
		}
		assert.Len(t, ofType(evalOne(t, lg, nil), domain.FindingVerboseLogFormat), 1)
	})

	t.Run("malformed samples are skipped", func(t *testing.T) {
		lg := domain.LogGroup{
			Name: "/apps/quiet", ARN: "arn:lg:q", RetentionDays: aws.Int32(30),
			SampledMessages: []string{"{not json", "plain line"},
		}
		assert.Empty(t, ofType(evalOne(t, lg, nil), domain.FindingVerboseLogFormat))
	})
}

func TestExceptionTags(t *testing.T) {
	lg := domain.LogGroup{
		Name: "/platform/base", ARN: "arn:lg:base",
		Tags: map[string]string{
			"AuditException":       "indefinite_retention",
			"AuditExceptionReason": "retention managed by archival pipeline",
		},
	}
	findings := ofType(evalOne(t, lg, nil), domain.FindingIndefiniteRetention)
	require.Len(t, findings, 1)
	assert.True(t, findings[0].Exception)
	assert.Equal(t, "retention managed by archival pipeline", findings[0].ExceptionReason)
}
