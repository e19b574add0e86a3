package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

// QueueSettings contains configurable thresholds for queue and topic rules.
type QueueSettings struct {
	// MaxReceiveCountLimit flags redrive policies retrying more often (default: 10).
	MaxReceiveCountLimit int
	// VisibilityMin/VisibilityMax bound the visibility timeout (defaults: 30s, 12h).
	VisibilityMin time.Duration
	VisibilityMax time.Duration
	// DLQCapacity is the family's hard in-flight capacity limit (default: 120000).
	DLQCapacity int
	// HighDepthPercent escalates a DLQ at this fill percentage (default: 90).
	HighDepthPercent float64
	// StaleAfter flags untouched empty queues (default: 30 days).
	StaleAfter time.Duration
	// AccumulationHigh/AccumulationMedium scale dlq_accumulation severity
	// by message volume (defaults: 1000, 100).
	AccumulationHigh   int
	AccumulationMedium int
}

// DefaultQueueSettings returns the default queue rule thresholds.
func DefaultQueueSettings() QueueSettings {
	return QueueSettings{
		MaxReceiveCountLimit: 10,
		VisibilityMin:        30 * time.Second,
		VisibilityMax:        12 * time.Hour,
		DLQCapacity:          120000,
		HighDepthPercent:     90,
		StaleAfter:           30 * 24 * time.Hour,
		AccumulationHigh:     1000,
		AccumulationMedium:   100,
	}
}

// QueueRules returns the ordered queue/topic rule set.
func QueueRules(s QueueSettings) []Rule {
	return []Rule{
		{Name: "missing_dlq", Check: queueRule(checkMissingDLQ)},
		{Name: "dlq_accumulation", Check: queueRule(checkDLQAccumulation(s))},
		{Name: "excessive_retry_config", Check: queueRule(checkExcessiveRetryConfig(s))},
		{Name: "visibility_timeout", Check: queueRule(checkVisibilityTimeout(s))},
		{Name: "short_polling", Check: queueRule(checkShortPolling)},
		{Name: "fifo_dedup_disabled", Check: queueRule(checkFIFODedupDisabled)},
		{Name: "retention_gap", Check: queueRuleCtx(checkRetentionGap)},
		{Name: "high_dlq_depth", Check: queueRule(checkHighDLQDepth(s))},
		{Name: "stale_queue", Check: queueRuleCtx(checkStaleQueue(s))},
		{Name: "topic_subscriptions", Check: topicRule(checkTopicSubscriptions)},
	}
}

func queueRule(check func(domain.Queue) []domain.Finding) func(domain.Resource, *Context) []domain.Finding {
	return func(res domain.Resource, _ *Context) []domain.Finding {
		q, ok := res.(domain.Queue)
		if !ok {
			return nil
		}
		return check(q)
	}
}

func queueRuleCtx(check func(domain.Queue, *Context) []domain.Finding) func(domain.Resource, *Context) []domain.Finding {
	return func(res domain.Resource, rctx *Context) []domain.Finding {
		q, ok := res.(domain.Queue)
		if !ok {
			return nil
		}
		return check(q, rctx)
	}
}

func topicRule(check func(domain.Topic) []domain.Finding) func(domain.Resource, *Context) []domain.Finding {
	return func(res domain.Resource, _ *Context) []domain.Finding {
		t, ok := res.(domain.Topic)
		if !ok {
			return nil
		}
		return check(t)
	}
}

// isDLQName judges whether a queue is itself a dead-letter queue, by naming
// convention.
func isDLQName(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "dlq") || strings.HasPrefix(lower, "dead-letter-")
}

func checkMissingDLQ(q domain.Queue) []domain.Finding {
	if q.Redrive != nil || isDLQName(q.Name) {
		return nil
	}
	return []domain.Finding{finding(
		domain.FindingMissingDLQ, domain.SeverityHigh, q,
		map[string]any{"description": "Queue has no redrive policy; poison messages retry forever or vanish on expiry."},
		"Attach a dead-letter queue with a bounded max receive count.",
		"SOC2",
	)}
}

func checkDLQAccumulation(s QueueSettings) func(domain.Queue) []domain.Finding {
	return func(q domain.Queue) []domain.Finding {
		if !isDLQName(q.Name) || q.ApproxMessages <= 0 {
			return nil
		}
		severity := domain.SeverityLow
		switch {
		case q.ApproxMessages >= s.AccumulationHigh:
			severity = domain.SeverityHigh
		case q.ApproxMessages >= s.AccumulationMedium:
			severity = domain.SeverityMedium
		}
		return []domain.Finding{finding(
			domain.FindingDLQAccumulation, severity, q,
			map[string]any{
				"description": "Dead-letter queue holds failed messages awaiting triage.",
				"messages":    q.ApproxMessages,
			},
			"Inspect, redrive or purge the dead-lettered messages and fix the failing consumer.",
		)}
	}
}

func checkExcessiveRetryConfig(s QueueSettings) func(domain.Queue) []domain.Finding {
	return func(q domain.Queue) []domain.Finding {
		if q.Redrive == nil || q.Redrive.MaxReceiveCount <= s.MaxReceiveCountLimit {
			return nil
		}
		return []domain.Finding{finding(
			domain.FindingExcessiveRetryConfig, domain.SeverityMedium, q,
			map[string]any{
				"description":       "High max receive count delays dead-lettering and burns throughput on poison messages.",
				"max_receive_count": q.Redrive.MaxReceiveCount,
			},
			fmt.Sprintf("Lower maxReceiveCount to %d or below.", s.MaxReceiveCountLimit),
		)}
	}
}

func checkVisibilityTimeout(s QueueSettings) func(domain.Queue) []domain.Finding {
	return func(q domain.Queue) []domain.Finding {
		timeout := time.Duration(q.VisibilityTimeoutSeconds) * time.Second
		if timeout < s.VisibilityMin {
			return []domain.Finding{finding(
				domain.FindingVisibilityTimeoutTooShort, domain.SeverityMedium, q,
				map[string]any{
					"description":        "Visibility timeout is shorter than typical processing time; messages are redelivered mid-flight.",
					"visibility_seconds": q.VisibilityTimeoutSeconds,
				},
				"Raise the visibility timeout above the consumer's worst-case processing time.",
			)}
		}
		if timeout > s.VisibilityMax {
			return []domain.Finding{finding(
				domain.FindingVisibilityTimeoutTooLong, domain.SeverityMedium, q,
				map[string]any{
					"description":        "Visibility timeout exceeds twelve hours; a crashed consumer blocks messages for the full window.",
					"visibility_seconds": q.VisibilityTimeoutSeconds,
				},
				"Reduce the visibility timeout and rely on the redrive policy for stuck messages.",
			)}
		}
		return nil
	}
}

func checkShortPolling(q domain.Queue) []domain.Finding {
	if q.ReceiveWaitSeconds != 0 {
		return nil
	}
	return []domain.Finding{finding(
		domain.FindingShortPolling, domain.SeverityLow, q,
		map[string]any{"description": "Receive wait time of zero enables short polling; empty receives are billed."},
		"Set ReceiveMessageWaitTimeSeconds to 20 for long polling.",
		"FinOps",
	)}
}

func checkFIFODedupDisabled(q domain.Queue) []domain.Finding {
	if !q.IsFIFO || q.ContentDeduplication {
		return nil
	}
	return []domain.Finding{finding(
		domain.FindingFIFODedupDisabled, domain.SeverityMedium, q,
		map[string]any{"description": "FIFO queue without content-based deduplication requires every producer to supply dedup IDs."},
		"Enable content-based deduplication unless producers already send explicit deduplication IDs.",
	)}
}

// checkRetentionGap verifies a source queue's DLQ keeps messages longer than
// the source does; otherwise dead-lettered messages can expire before triage.
func checkRetentionGap(q domain.Queue, rctx *Context) []domain.Finding {
	if q.Redrive == nil {
		return nil
	}
	for _, res := range rctx.Resources {
		dlq, ok := res.(domain.Queue)
		if !ok || dlq.ARN != q.Redrive.DeadLetterTargetARN {
			continue
		}
		if dlq.RetentionSeconds <= q.RetentionSeconds {
			f := finding(
				domain.FindingRetentionGap, domain.SeverityHigh, q,
				map[string]any{
					"description":              "DLQ retention does not exceed the source queue's; failed messages can expire before anyone looks.",
					"source_retention_seconds": q.RetentionSeconds,
					"dlq_retention_seconds":    dlq.RetentionSeconds,
				},
				"Set the DLQ's retention to its maximum, comfortably above the source queue's.",
			)
			f.Related = []domain.ResourceRef{domain.Ref(dlq)}
			return []domain.Finding{f}
		}
		return nil
	}
	return nil
}

func checkHighDLQDepth(s QueueSettings) func(domain.Queue) []domain.Finding {
	return func(q domain.Queue) []domain.Finding {
		if !isDLQName(q.Name) || s.DLQCapacity <= 0 {
			return nil
		}
		percent := float64(q.ApproxMessages) / float64(s.DLQCapacity) * 100
		if percent < s.HighDepthPercent {
			return nil
		}
		return []domain.Finding{finding(
			domain.FindingHighDLQDepth, domain.SeverityCritical, q,
			map[string]any{
				"description":     "Dead-letter queue is close to its capacity limit; further failures will be dropped.",
				"messages":        q.ApproxMessages,
				"capacity":        s.DLQCapacity,
				"percentage_full": percent,
			},
			"Drain the DLQ immediately and stop the failing producer path.",
		)}
	}
}

func checkStaleQueue(s QueueSettings) func(domain.Queue, *Context) []domain.Finding {
	return func(q domain.Queue, rctx *Context) []domain.Finding {
		if q.ApproxMessages != 0 || q.ApproxNotVisible != 0 || q.ApproxDelayed != 0 {
			return nil
		}
		if q.LastModified.IsZero() || rctx.Now.Sub(q.LastModified) <= s.StaleAfter {
			return nil
		}
		return []domain.Finding{finding(
			domain.FindingStaleQueue, domain.SeverityLow, q,
			map[string]any{
				"description":   "Queue is empty and untouched for over thirty days.",
				"last_modified": q.LastModified.UTC().Format(time.RFC3339),
			},
			"Delete the queue if the owning service is gone.",
			"FinOps",
		)}
	}
}

func checkTopicSubscriptions(t domain.Topic) []domain.Finding {
	var findings []domain.Finding
	for _, sub := range t.Subscriptions {
		if sub.PendingConfirmation {
			findings = append(findings, finding(
				domain.FindingPendingConfirmation, domain.SeverityHigh, t,
				map[string]any{
					"description": "Subscription was never confirmed; its endpoint receives nothing.",
					"endpoint":    sub.Endpoint,
					"protocol":    sub.Protocol,
				},
				"Confirm the subscription from the endpoint or remove it.",
			))
			continue
		}
		if !sub.HasFilterPolicy {
			findings = append(findings, finding(
				domain.FindingMissingFilterPolicy, domain.SeverityLow, t,
				map[string]any{
					"description": "Fan-out subscription has no filter policy; the endpoint receives every message published.",
					"endpoint":    sub.Endpoint,
					"protocol":    sub.Protocol,
				},
				"Attach a filter policy matching the message types the endpoint handles.",
				"FinOps",
			))
		}
	}
	return findings
}
