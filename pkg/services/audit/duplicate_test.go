package audit

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

func TestSourceIdentifier(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"/apps/checkout/orders-app", "orders"},
		{"/apps/checkout/orders-service", "orders"},
		{"/apps/checkout/Orders-Logs", "orders"},
		{"/apps/checkout/orders", "orders"},
		{"/apps/checkout/payments-lambda", "payments"},
		// Only one suffix is stripped.
		{"/apps/checkout/orders-app-logs", "orders-app"},
		// A leading slash counts as a segment on a plain split.
		{"/apps/orders-app", "orders"},
		{"/apps/orders", "orders"},
		// Fewer than three segments carries no source identity.
		{"/orders", ""},
		{"orders-app", ""},
		{"/apps/orders/", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sourceIdentifier(tt.name), tt.name)
	}
}

func TestDuplicateLogging(t *testing.T) {
	a := domain.LogGroup{
		Name: "/apps/checkout/orders-app", ARN: "arn:lg:a",
		RetentionDays: aws.Int32(30), StoredBytes: 4 * gib,
	}
	b := domain.LogGroup{
		Name: "/apps/checkout/orders-service", ARN: "arn:lg:b",
		RetentionDays: aws.Int32(30),
	}
	c := domain.LogGroup{
		Name: "/apps/checkout/payments-app", ARN: "arn:lg:c",
		RetentionDays: aws.Int32(30),
	}
	rctx := &Context{Resources: []domain.Resource{a, b, c}, Now: testNow}
	engine := NewEngine(DefaultSettings())

	t.Run("both sides of a pair are flagged", func(t *testing.T) {
		for _, lg := range []domain.LogGroup{a, b} {
			findings := ofType(engine.Evaluate(lg, rctx), domain.FindingDuplicateLogging)
			require.Len(t, findings, 1, lg.Name)
			require.Len(t, findings[0].Related, 1)
		}
		fa := ofType(engine.Evaluate(a, rctx), domain.FindingDuplicateLogging)
		assert.Equal(t, "arn:lg:b", fa[0].Related[0].ID)
		assert.Equal(t, "orders", fa[0].Details["source_identifier"])
		assert.InDelta(t, 4*0.03*0.5, fa[0].MonthlySavings, 1e-9)
	})

	t.Run("unmatched source stays clean", func(t *testing.T) {
		assert.Empty(t, ofType(engine.Evaluate(c, rctx), domain.FindingDuplicateLogging))
	})

	t.Run("two-level names can match", func(t *testing.T) {
		x := domain.LogGroup{Name: "/apps/orders-app", ARN: "arn:lg:x", RetentionDays: aws.Int32(30)}
		y := domain.LogGroup{Name: "/apps/orders-service", ARN: "arn:lg:y", RetentionDays: aws.Int32(30)}
		pair := &Context{Resources: []domain.Resource{x, y}, Now: testNow}
		findings := ofType(engine.Evaluate(x, pair), domain.FindingDuplicateLogging)
		require.Len(t, findings, 1)
		assert.Equal(t, "arn:lg:y", findings[0].Related[0].ID)
	})

	t.Run("shallow names never match", func(t *testing.T) {
		x := domain.LogGroup{Name: "/orders-app", ARN: "arn:lg:x", RetentionDays: aws.Int32(30)}
		y := domain.LogGroup{Name: "/orders-service", ARN: "arn:lg:y", RetentionDays: aws.Int32(30)}
		shallow := &Context{Resources: []domain.Resource{x, y}, Now: testNow}
		assert.Empty(t, ofType(engine.Evaluate(x, shallow), domain.FindingDuplicateLogging))
	})
}
