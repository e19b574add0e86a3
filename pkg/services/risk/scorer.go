package risk

import "github.com/de-tools/cloud-sentry/pkg/models/domain"

const maxScore = 10.0

func severityBase(s domain.Severity) float64 {
	switch s {
	case domain.SeverityCritical:
		return 10
	case domain.SeverityHigh:
		return 8
	case domain.SeverityMedium:
		return 5
	case domain.SeverityLow:
		return 3
	default:
		return 1
	}
}

// Score maps a finding's severity and context into a bounded risk score:
// severity base plus half a point per attached resource and per compliance
// framework, clamped to 10.
func Score(severity domain.Severity, attachedResources, frameworks int) float64 {
	score := severityBase(severity) + 0.5*float64(attachedResources) + 0.5*float64(frameworks)
	if score > maxScore {
		return maxScore
	}
	return score
}

// Apply fills in the risk score of every finding in place, using the owning
// resource's attachment count.
func Apply(findings []domain.Finding, resources []domain.Resource) {
	attachments := make(map[string]int, len(resources))
	for _, r := range resources {
		attachments[r.ResourceID()] = r.AttachmentCount()
	}
	for i := range findings {
		f := &findings[i]
		f.RiskScore = Score(f.Severity, attachments[f.Resource.ID], len(f.Frameworks))
	}
}
