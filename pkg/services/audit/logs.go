package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
	"github.com/de-tools/cloud-sentry/pkg/services/cost"
)

// LogSettings contains configurable thresholds for log-group rules.
type LogSettings struct {
	// DebugRetentionMaxDays flags debug-style groups kept longer (default: 30).
	DebugRetentionMaxDays int32
	// AuditRetentionMaxDays flags audit-style groups kept longer (default: 7).
	AuditRetentionMaxDays int32
	// UnusedAfter flags groups with no ingestion for this long (default: 60 days).
	UnusedAfter time.Duration
	// MaxSubscriptions is the fan-out limit before flagging (default: 2).
	MaxSubscriptions int
	// HighIngestionBytesPerSec flags sustained ingestion above this rate
	// (default: 5 MiB/s).
	HighIngestionBytesPerSec float64
	// VerboseFieldLimit / VerboseLengthLimit bound sampled structured
	// payloads (defaults: 20 fields, 1000 chars).
	VerboseFieldLimit  int
	VerboseLengthLimit int
}

// DefaultLogSettings returns the default log-group rule thresholds.
func DefaultLogSettings() LogSettings {
	return LogSettings{
		DebugRetentionMaxDays:    30,
		AuditRetentionMaxDays:    7,
		UnusedAfter:              60 * 24 * time.Hour,
		MaxSubscriptions:         2,
		HighIngestionBytesPerSec: 5 * 1024 * 1024,
		VerboseFieldLimit:        20,
		VerboseLengthLimit:       1000,
	}
}

var (
	debugIndicators = []string{"debug", "trace", "verbose", "dev"}
	auditIndicators = []string{"audit", "compliance", "security", "access"}
	appIndicators   = []string{"app", "application", "service", "/aws/lambda/", "/ecs/", "/eks/"}
)

func isDebugGroup(name string) bool { return containsAny(strings.ToLower(name), debugIndicators...) }
func isAuditGroup(name string) bool { return containsAny(strings.ToLower(name), auditIndicators...) }
func isAppGroup(name string) bool   { return containsAny(strings.ToLower(name), appIndicators...) }

// isCriticalResource judges whether a resource warrants cross-region backup:
// explicit criticality tag, production environment, or "critical" in the name.
func isCriticalResource(lg domain.LogGroup) bool {
	if strings.EqualFold(lg.Tags["Criticality"], "high") {
		return true
	}
	env := strings.ToLower(lg.Tags["Environment"])
	if env == "production" || env == "prod" {
		return true
	}
	return strings.Contains(strings.ToLower(lg.Name), "critical")
}

// LogGroupRules returns the ordered log-group rule set.
func LogGroupRules(s LogSettings) []Rule {
	return []Rule{
		{Name: "indefinite_retention", Check: logRule(checkIndefiniteRetention)},
		{Name: "retention_classification", Check: logRule(retentionClassificationCheck(s))},
		{Name: "missing_metric_filters", Check: logRule(checkMissingMetricFilters)},
		{Name: "unused_log_group", Check: logRuleCtx(checkUnusedLogGroup(s))},
		{Name: "missing_encryption", Check: logRule(checkMissingEncryption)},
		{Name: "excessive_subscriptions", Check: logRule(checkExcessiveSubscriptions(s))},
		{Name: "missing_log_streams", Check: logRule(checkMissingLogStreams)},
		{Name: "high_ingestion_rate", Check: logRule(checkHighIngestionRate(s))},
		{Name: "missing_cross_region_backup", Check: logRule(checkMissingCrossRegionBackup)},
		{Name: "duplicate_logging", Check: logRuleCtx(checkDuplicateLogging)},
		{Name: "missing_saved_queries", Check: logRuleCtx(checkMissingSavedQueries)},
		{Name: "flow_logs_all_traffic", Check: logRule(checkFlowLogsAllTraffic)},
		{Name: "verbose_log_format", Check: logRule(checkVerboseLogFormat(s))},
	}
}

func logRule(check func(domain.LogGroup) []domain.Finding) func(domain.Resource, *Context) []domain.Finding {
	return func(res domain.Resource, _ *Context) []domain.Finding {
		lg, ok := res.(domain.LogGroup)
		if !ok {
			return nil
		}
		return check(lg)
	}
}

func logRuleCtx(check func(domain.LogGroup, *Context) []domain.Finding) func(domain.Resource, *Context) []domain.Finding {
	return func(res domain.Resource, rctx *Context) []domain.Finding {
		lg, ok := res.(domain.LogGroup)
		if !ok {
			return nil
		}
		return check(lg, rctx)
	}
}

func checkIndefiniteRetention(lg domain.LogGroup) []domain.Finding {
	if lg.RetentionDays != nil {
		return nil
	}
	return []domain.Finding{finding(
		domain.FindingIndefiniteRetention, domain.SeverityHigh, lg,
		map[string]any{
			"description": "Log group retains data indefinitely; storage cost grows without bound.",
			"stored_gib":  cost.StoredGiB(lg),
		},
		fmt.Sprintf("Set a retention policy; %d days recommended for this group's classification.", cost.RecommendedRetention(lg)),
		"CIS", "FinOps",
	)}
}

// retentionClassificationCheck flags debug-style groups retained beyond the
// debug limit, or audit-style groups beyond the audit limit. The branches
// are mutually exclusive: a name matching both is treated as debug.
func retentionClassificationCheck(s LogSettings) func(domain.LogGroup) []domain.Finding {
	return func(lg domain.LogGroup) []domain.Finding {
		if lg.RetentionDays == nil {
			return nil
		}
		retention := *lg.RetentionDays
		if isDebugGroup(lg.Name) {
			if retention > s.DebugRetentionMaxDays {
				return []domain.Finding{finding(
					domain.FindingExcessiveDebugRetention, domain.SeverityMedium, lg,
					map[string]any{
						"description":    "Debug/trace logs are kept far longer than their diagnostic value.",
						"retention_days": retention,
					},
					fmt.Sprintf("Reduce retention to %d days for debug-class logs.", s.DebugRetentionMaxDays),
					"FinOps",
				)}
			}
		} else if isAuditGroup(lg.Name) && retention > s.AuditRetentionMaxDays {
			return []domain.Finding{finding(
				domain.FindingExcessiveAuditRetention, domain.SeverityHigh, lg,
				map[string]any{
					"description":    "Audit-class logs exceed the short operational retention window; archive to cold storage instead.",
					"retention_days": retention,
				},
				fmt.Sprintf("Export audit logs to archival storage and reduce hot retention to %d days.", s.AuditRetentionMaxDays),
				"SOC2", "FinOps",
			)}
		}
		return nil
	}
}

func checkMissingMetricFilters(lg domain.LogGroup) []domain.Finding {
	if !isAppGroup(lg.Name) || lg.MetricFilterCount > 0 {
		return nil
	}
	return []domain.Finding{finding(
		domain.FindingMissingMetricFilters, domain.SeverityMedium, lg,
		map[string]any{"description": "Application log group has no metric filters; errors are invisible to alarms."},
		"Add metric filters for error and latency signals, with alarms on each.",
	)}
}

func checkUnusedLogGroup(s LogSettings) func(domain.LogGroup, *Context) []domain.Finding {
	return func(lg domain.LogGroup, rctx *Context) []domain.Finding {
		if lg.LastEventAt == nil || rctx.Now.Sub(*lg.LastEventAt) <= s.UnusedAfter {
			return nil
		}
		f := finding(
			domain.FindingUnusedLogGroup, domain.SeverityLow, lg,
			map[string]any{
				"description":     "No ingestion events for over 60 days; the group is likely abandoned.",
				"last_event_time": lg.LastEventAt.UTC().Format(time.RFC3339),
			},
			"Delete the log group or export its contents to archival storage first.",
			"FinOps",
		)
		f.MonthlySavings = cost.ForResource(lg).TotalMonthly
		return []domain.Finding{f}
	}
}

func checkMissingEncryption(lg domain.LogGroup) []domain.Finding {
	if !strings.EqualFold(lg.Tags["DataClassification"], "confidential") || lg.KMSKeyID != "" {
		return nil
	}
	return []domain.Finding{finding(
		domain.FindingMissingEncryption, domain.SeverityHigh, lg,
		map[string]any{"description": "Confidential-classified log group has no customer-managed encryption key."},
		"Associate a KMS key with the log group.",
		"HIPAA", "PCI-DSS", "SOC2",
	)}
}

func checkExcessiveSubscriptions(s LogSettings) func(domain.LogGroup) []domain.Finding {
	return func(lg domain.LogGroup) []domain.Finding {
		if len(lg.Subscriptions) <= s.MaxSubscriptions {
			return nil
		}
		return []domain.Finding{finding(
			domain.FindingExcessiveSubscriptions, domain.SeverityMedium, lg,
			map[string]any{
				"description":        "Every subscription re-delivers the full log volume; high fan-out multiplies transfer cost.",
				"subscription_count": len(lg.Subscriptions),
			},
			"Consolidate delivery through a single stream and fan out downstream.",
			"FinOps",
		)}
	}
}

// checkMissingLogStreams covers the expected-child rule: a function log
// group with zero streams means the function has never logged, which
// usually indicates a broken execution role or a dead function.
func checkMissingLogStreams(lg domain.LogGroup) []domain.Finding {
	if !strings.Contains(lg.Name, "/aws/lambda/") || lg.StreamCount > 0 {
		return nil
	}
	return []domain.Finding{finding(
		domain.FindingMissingLogStreams, domain.SeverityHigh, lg,
		map[string]any{"description": "Function log group contains no log streams; the function has never written logs."},
		"Verify the function's execution role grants log writes, or remove the unused function and group.",
	)}
}

func checkHighIngestionRate(s LogSettings) func(domain.LogGroup) []domain.Finding {
	return func(lg domain.LogGroup) []domain.Finding {
		rate := lg.IngestedBytesPerDay / 86400
		if rate <= s.HighIngestionBytesPerSec {
			return nil
		}
		f := finding(
			domain.FindingHighIngestionRate, domain.SeverityMedium, lg,
			map[string]any{
				"description":   "Sustained ingestion rate suggests unsampled high-volume logging.",
				"bytes_per_sec": rate,
				"daily_gib":     cost.DailyIngestionGiB(lg),
			},
			"Sample or aggregate high-volume events before shipping them.",
			"FinOps",
		)
		// Sampling heuristic: roughly 30% of the current cost is recoverable.
		f.MonthlySavings = cost.ForResource(lg).TotalMonthly * 0.3
		return []domain.Finding{f}
	}
}

func checkMissingCrossRegionBackup(lg domain.LogGroup) []domain.Finding {
	if !isCriticalResource(lg) {
		return nil
	}
	home := regionFromARN(lg.ARN)
	for _, sub := range lg.Subscriptions {
		if sub.Region != "" && sub.Region != home {
			return nil
		}
	}
	return []domain.Finding{finding(
		domain.FindingMissingCrossRegionBackup, domain.SeverityHigh, lg,
		map[string]any{"description": "Critical log group has no delivery target outside its home region."},
		"Add a subscription or export task delivering to a second region.",
		"SOC2",
	)}
}

func checkMissingSavedQueries(lg domain.LogGroup, rctx *Context) []domain.Finding {
	if !isAppGroup(lg.Name) {
		return nil
	}
	// Degraded saved-query API: assume queries exist rather than flag.
	if !rctx.SavedQueriesOK {
		return nil
	}
	for _, q := range rctx.SavedQueryNames {
		if strings.Contains(q, lg.Name) {
			return nil
		}
	}
	return []domain.Finding{finding(
		domain.FindingMissingSavedQueries, domain.SeverityLow, lg,
		map[string]any{"description": "No saved Insights query references this application log group."},
		"Save the queries your on-call runbook relies on for this group.",
	)}
}

func checkFlowLogsAllTraffic(lg domain.LogGroup) []domain.Finding {
	if !strings.EqualFold(lg.FlowLogTrafficType, "ALL") {
		return nil
	}
	f := finding(
		domain.FindingFlowLogsAllTraffic, domain.SeverityMedium, lg,
		map[string]any{
			"description":  "Flow log captures ALL traffic; REJECT-only covers most security use cases at a fraction of the volume.",
			"traffic_type": lg.FlowLogTrafficType,
		},
		"Recreate the flow log with traffic type REJECT.",
		"FinOps",
	)
	f.MonthlySavings = cost.ForResource(lg).TotalMonthly * 0.8
	return []domain.Finding{f}
}

func checkVerboseLogFormat(s LogSettings) func(domain.LogGroup) []domain.Finding {
	return func(lg domain.LogGroup) []domain.Finding {
		verbose := false
		for _, msg := range lg.SampledMessages {
			if len(msg) > s.VerboseLengthLimit {
				verbose = true
				break
			}
			var payload map[string]json.RawMessage
			// Malformed samples are skipped; the rest of the checks still run.
			if err := json.Unmarshal([]byte(msg), &payload); err != nil {
				continue
			}
			if len(payload) > s.VerboseFieldLimit {
				verbose = true
				break
			}
		}
		if !verbose {
			return nil
		}
		f := finding(
			domain.FindingVerboseLogFormat, domain.SeverityLow, lg,
			map[string]any{
				"description":  "Sampled events carry oversized structured payloads.",
				"sample_count": len(lg.SampledMessages),
			},
			"Trim payload fields to the set your queries actually use.",
			"FinOps",
		)
		f.MonthlySavings = cost.ForResource(lg).TotalMonthly * 0.2
		return []domain.Finding{f}
	}
}

// regionFromARN extracts the region field from an ARN, empty when the ARN
// does not parse.
func regionFromARN(arn string) string {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) < 4 {
		return ""
	}
	return parts[3]
}
