package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

func TestScore_SeverityBases(t *testing.T) {
	assert.Equal(t, 10.0, Score(domain.SeverityCritical, 0, 0))
	assert.Equal(t, 8.0, Score(domain.SeverityHigh, 0, 0))
	assert.Equal(t, 5.0, Score(domain.SeverityMedium, 0, 0))
	assert.Equal(t, 3.0, Score(domain.SeverityLow, 0, 0))
	assert.Equal(t, 1.0, Score(domain.SeverityInformational, 0, 0))
}

func TestScore_AttachmentsAndFrameworks(t *testing.T) {
	assert.Equal(t, 6.5, Score(domain.SeverityMedium, 2, 1))
	assert.Equal(t, 9.0, Score(domain.SeverityHigh, 1, 1))
}

func TestScore_ClampedToTen(t *testing.T) {
	assert.Equal(t, 10.0, Score(domain.SeverityCritical, 5, 5))
	assert.Equal(t, 10.0, Score(domain.SeverityHigh, 100, 100))
}

func TestScore_AlwaysWithinBounds(t *testing.T) {
	severities := []domain.Severity{
		domain.SeverityInformational, domain.SeverityLow, domain.SeverityMedium,
		domain.SeverityHigh, domain.SeverityCritical,
	}
	for _, sev := range severities {
		for attached := 0; attached <= 20; attached++ {
			for frameworks := 0; frameworks <= 10; frameworks++ {
				score := Score(sev, attached, frameworks)
				assert.GreaterOrEqual(t, score, 1.0)
				assert.LessOrEqual(t, score, 10.0)
			}
		}
	}
}

func TestApply(t *testing.T) {
	sg := domain.SecurityGroup{
		ID: "sg-1",
		AttachedInterfaces: []domain.AttachedInterface{
			{ID: "eni-1"}, {ID: "eni-2"},
		},
	}
	findings := []domain.Finding{
		{
			Type:       domain.FindingUnrestrictedInbound,
			Severity:   domain.SeverityCritical,
			Resource:   domain.Ref(sg),
			Frameworks: []string{"CIS", "PCI-DSS"},
		},
		{
			Type:     domain.FindingMissingRuleDescription,
			Severity: domain.SeverityLow,
			Resource: domain.Ref(sg),
		},
	}

	Apply(findings, []domain.Resource{sg})

	assert.Equal(t, 10.0, findings[0].RiskScore) // 10 + 1 + 1 clamped
	assert.Equal(t, 4.0, findings[1].RiskScore)  // 3 + 0.5*2
}
