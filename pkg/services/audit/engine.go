package audit

import (
	"strings"
	"time"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

// Context is the read-only shared state every rule may consult. The resource
// slice is the complete filtered snapshot; no rule runs before collection
// finishes, because duplicate detection needs the full set.
type Context struct {
	Resources []domain.Resource
	// SavedQueryNames holds every saved Insights query definition in the
	// account; the API cannot filter server-side, so rules scan it whole.
	SavedQueryNames []string
	// SavedQueriesOK is false when the saved-query lookup failed. Rules
	// then assume queries exist rather than flag (benefit of the doubt).
	SavedQueriesOK bool
	Now            time.Time
}

// Rule is one independent, side-effect-free detection heuristic. Rules are
// order-insensitive: a resource's finding set is the union of their outputs.
type Rule struct {
	Name  string
	Check func(res domain.Resource, rctx *Context) []domain.Finding
}

// Settings groups the per-family thresholds.
type Settings struct {
	Logs    LogSettings
	Network NetworkSettings
	Queue   QueueSettings
}

// DefaultSettings returns the default audit thresholds.
func DefaultSettings() Settings {
	return Settings{
		Logs:    DefaultLogSettings(),
		Network: DefaultNetworkSettings(),
		Queue:   DefaultQueueSettings(),
	}
}

// Engine evaluates an explicit ordered list of rules against each resource.
type Engine struct {
	rules []Rule
}

func NewEngine(settings Settings) *Engine {
	var rules []Rule
	rules = append(rules, LogGroupRules(settings.Logs)...)
	rules = append(rules, NetworkRules(settings.Network)...)
	rules = append(rules, QueueRules(settings.Queue)...)
	return &Engine{rules: rules}
}

// Evaluate runs every rule against one resource and returns the union of
// their findings, with operator exceptions applied.
func (e *Engine) Evaluate(res domain.Resource, rctx *Context) []domain.Finding {
	var findings []domain.Finding
	for _, rule := range e.rules {
		findings = append(findings, rule.Check(res, rctx)...)
	}
	applyExceptions(res, findings)
	return findings
}

// EvaluateAll runs the engine over the whole snapshot.
func (e *Engine) EvaluateAll(resources []domain.Resource, rctx *Context) []domain.Finding {
	var findings []domain.Finding
	for _, res := range resources {
		findings = append(findings, e.Evaluate(res, rctx)...)
	}
	return findings
}

// applyExceptions marks findings covered by an operator-approved exception
// tag. The finding stays visible but carries the accepted-risk flag.
// Tag format: AuditException = "all" or a comma-separated finding-type list,
// with the justification in AuditExceptionReason.
func applyExceptions(res domain.Resource, findings []domain.Finding) {
	var exception, reason string
	for key, value := range res.ResourceTags() {
		switch strings.ToLower(key) {
		case "auditexception":
			exception = value
		case "auditexceptionreason":
			reason = value
		}
	}
	if exception == "" {
		return
	}

	covered := map[string]bool{}
	all := strings.EqualFold(exception, "all")
	for _, t := range strings.Split(exception, ",") {
		covered[strings.ToLower(strings.TrimSpace(t))] = true
	}

	for i := range findings {
		if all || covered[string(findings[i].Type)] {
			findings[i].Exception = true
			findings[i].ExceptionReason = reason
		}
	}
}

func finding(t domain.FindingType, sev domain.Severity, res domain.Resource, details map[string]any, remediation string, frameworks ...string) domain.Finding {
	return domain.Finding{
		Type:        t,
		Severity:    sev,
		Resource:    domain.Ref(res),
		Details:     details,
		Remediation: remediation,
		Frameworks:  frameworks,
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
