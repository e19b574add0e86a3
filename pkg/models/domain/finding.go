package domain

import (
	"encoding/json"
	"fmt"
)

type Severity int

const (
	SeverityInformational Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	case SeverityLow:
		return "low"
	default:
		return "informational"
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "critical":
		*s = SeverityCritical
	case "high":
		*s = SeverityHigh
	case "medium":
		*s = SeverityMedium
	case "low":
		*s = SeverityLow
	case "informational":
		*s = SeverityInformational
	default:
		return fmt.Errorf("unknown severity %q", name)
	}
	return nil
}

// FindingType identifies one detection rule's output. The set is fixed per
// resource family; values double as JSON/CSV identifiers.
type FindingType string

const (
	// Log-group family.
	FindingIndefiniteRetention      FindingType = "indefinite_retention"
	FindingExcessiveDebugRetention  FindingType = "excessive_debug_retention"
	FindingExcessiveAuditRetention  FindingType = "excessive_audit_retention"
	FindingMissingMetricFilters     FindingType = "missing_metric_filters"
	FindingUnusedLogGroup           FindingType = "unused_log_group"
	FindingMissingEncryption        FindingType = "missing_encryption"
	FindingExcessiveSubscriptions   FindingType = "excessive_subscriptions"
	FindingMissingLogStreams        FindingType = "missing_log_streams"
	FindingHighIngestionRate        FindingType = "high_ingestion_rate"
	FindingMissingCrossRegionBackup FindingType = "missing_cross_region_backup"
	FindingDuplicateLogging         FindingType = "duplicate_logging"
	FindingMissingSavedQueries      FindingType = "missing_saved_queries"
	FindingFlowLogsAllTraffic       FindingType = "flow_logs_all_traffic"
	FindingVerboseLogFormat         FindingType = "verbose_log_format"

	// Security-group family.
	FindingUnrestrictedInbound         FindingType = "unrestricted_inbound"
	FindingUnrestrictedEgressSensitive FindingType = "unrestricted_egress_sensitive"
	FindingOverlyBroadCIDR             FindingType = "overly_broad_cidr"
	FindingDefaultGroupInUse           FindingType = "default_group_in_use"
	FindingMissingRuleDescription      FindingType = "missing_rule_description"
	FindingDeprecatedProtocol          FindingType = "deprecated_protocol"
	FindingIPv6Unrestricted            FindingType = "ipv6_unrestricted"
	FindingAllProtocolRule             FindingType = "all_protocol_rule"
	FindingManagementPortExposure      FindingType = "management_port_exposure"
	FindingUnscopedICMP                FindingType = "unscoped_icmp"
	FindingCrossVPCReference           FindingType = "cross_vpc_reference"

	// Queue/topic family.
	FindingMissingDLQ                FindingType = "missing_dlq"
	FindingDLQAccumulation           FindingType = "dlq_accumulation"
	FindingExcessiveRetryConfig      FindingType = "excessive_retry_config"
	FindingVisibilityTimeoutTooShort FindingType = "visibility_timeout_too_short"
	FindingVisibilityTimeoutTooLong  FindingType = "visibility_timeout_too_long"
	FindingShortPolling              FindingType = "short_polling"
	FindingFIFODedupDisabled         FindingType = "fifo_dedup_disabled"
	FindingRetentionGap              FindingType = "retention_gap"
	FindingHighDLQDepth              FindingType = "high_dlq_depth"
	FindingStaleQueue                FindingType = "stale_queue"
	FindingMissingFilterPolicy       FindingType = "missing_filter_policy"
	FindingPendingConfirmation       FindingType = "pending_confirmation"
)

// ResourceRef is a lightweight reference to a resource for display purposes.
// It carries no ownership of the referenced resource.
type ResourceRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Family Family `json:"family"`
}

// Finding is one detected issue instance tied to a specific resource.
type Finding struct {
	Type            FindingType    `json:"type"`
	Severity        Severity       `json:"severity"`
	Resource        ResourceRef    `json:"resource"`
	Details         map[string]any `json:"details,omitempty"`
	Remediation     string         `json:"remediation"`
	Frameworks      []string       `json:"frameworks,omitempty"`
	Exception       bool           `json:"exception,omitempty"`
	ExceptionReason string         `json:"exception_reason,omitempty"`
	RiskScore       float64        `json:"risk_score"`
	// MonthlySavings is the estimated monthly cost recovered by remediating
	// this finding, in USD. Zero for findings that are not cost related.
	MonthlySavings float64 `json:"monthly_savings"`
	// Related references peer resources (duplicate detection, DLQ pairs).
	Related []ResourceRef `json:"related,omitempty"`
}
