package domain

import "time"

type Family string

const (
	FamilyLogGroup Family = "log_group"
	FamilyNetwork  Family = "network_access"
	FamilyQueue    Family = "queue"
)

// Resource is an immutable snapshot of one audited cloud resource. The
// typed records below spell out the family-specific attributes; the tag map
// carries free-form metadata only.
type Resource interface {
	ResourceID() string
	ResourceName() string
	Family() Family
	ResourceTags() map[string]string
	CreatedTime() time.Time
	// AttachmentCount reports how many downstream consumers or workloads
	// are wired to the resource; it feeds the risk scorer.
	AttachmentCount() int
}

// Ref builds a display reference for any resource.
func Ref(r Resource) ResourceRef {
	return ResourceRef{ID: r.ResourceID(), Name: r.ResourceName(), Family: r.Family()}
}

// LogSubscription is one delivery/subscription filter on a log group.
type LogSubscription struct {
	Name           string
	DestinationARN string
	// Region parsed from the destination ARN, empty when unparseable.
	Region string
}

type LogGroup struct {
	Name string
	ARN  string
	// RetentionDays is nil when the group never expires.
	RetentionDays *int32
	StoredBytes   int64
	CreatedAt     time.Time
	KMSKeyID      string
	// IngestedBytesPerDay is the average daily ingestion volume; zero when
	// the metric lookup failed or the group is idle.
	IngestedBytesPerDay float64
	LastEventAt         *time.Time
	MetricFilterCount   int
	StreamCount         int
	Subscriptions       []LogSubscription
	// SampledMessages holds a handful of recent events for format checks.
	SampledMessages []string
	// FlowLogTrafficType is ALL/ACCEPT/REJECT when the group is a VPC flow
	// log destination, empty otherwise.
	FlowLogTrafficType string
	Tags               map[string]string
}

func (g LogGroup) ResourceID() string            { return g.ARN }
func (g LogGroup) ResourceName() string          { return g.Name }
func (g LogGroup) Family() Family                { return FamilyLogGroup }
func (g LogGroup) ResourceTags() map[string]string { return g.Tags }
func (g LogGroup) CreatedTime() time.Time        { return g.CreatedAt }
func (g LogGroup) AttachmentCount() int          { return len(g.Subscriptions) }

type IPRange struct {
	CIDR        string
	Description string
}

type PeerGroupRef struct {
	GroupID     string
	VPCID       string
	Description string
}

// AccessRule is one inbound or outbound permission on a security group.
type AccessRule struct {
	// Protocol is tcp/udp/icmp/icmpv6 or "-1" for all protocols.
	Protocol string
	// FromPort/ToPort are nil for all-protocol and untyped ICMP rules.
	FromPort   *int32
	ToPort     *int32
	IPRanges   []IPRange
	IPv6Ranges []IPRange
	PeerGroups []PeerGroupRef
}

type AttachedInterface struct {
	ID          string
	Description string
}

type SecurityGroup struct {
	ID          string
	Name        string
	VPCID       string
	Description string
	Inbound     []AccessRule
	Outbound    []AccessRule
	// AttachedInterfaces lists network interfaces using this group.
	AttachedInterfaces []AttachedInterface
	// PeeredVPCs holds VPC IDs reachable through an active peering
	// connection from this group's VPC.
	PeeredVPCs []string
	IsDefault  bool
	CreatedAt  time.Time
	Tags       map[string]string
}

func (g SecurityGroup) ResourceID() string            { return g.ID }
func (g SecurityGroup) ResourceName() string          { return g.Name }
func (g SecurityGroup) Family() Family                { return FamilyNetwork }
func (g SecurityGroup) ResourceTags() map[string]string { return g.Tags }
func (g SecurityGroup) CreatedTime() time.Time        { return g.CreatedAt }
func (g SecurityGroup) AttachmentCount() int          { return len(g.AttachedInterfaces) }

// RedrivePolicy mirrors the SQS redrive policy attribute.
type RedrivePolicy struct {
	DeadLetterTargetARN string
	MaxReceiveCount     int
}

type Queue struct {
	URL    string
	ARN    string
	Name   string
	IsFIFO bool
	// Redrive is nil when the queue has no DLQ configured.
	Redrive                  *RedrivePolicy
	VisibilityTimeoutSeconds int
	RetentionSeconds         int
	ReceiveWaitSeconds       int
	ContentDeduplication     bool
	ApproxMessages           int
	ApproxNotVisible         int
	ApproxDelayed            int
	LastModified             time.Time
	CreatedAt                time.Time
	Tags                     map[string]string
}

func (q Queue) ResourceID() string            { return q.ARN }
func (q Queue) ResourceName() string          { return q.Name }
func (q Queue) Family() Family                { return FamilyQueue }
func (q Queue) ResourceTags() map[string]string { return q.Tags }
func (q Queue) CreatedTime() time.Time        { return q.CreatedAt }
func (q Queue) AttachmentCount() int          { return 0 }

type TopicSubscription struct {
	ARN                 string
	Protocol            string
	Endpoint            string
	HasFilterPolicy     bool
	PendingConfirmation bool
}

// Topic is an SNS topic; it belongs to the queue family for audit purposes.
type Topic struct {
	ARN           string
	Name          string
	Subscriptions []TopicSubscription
	CreatedAt     time.Time
	Tags          map[string]string
}

func (t Topic) ResourceID() string            { return t.ARN }
func (t Topic) ResourceName() string          { return t.Name }
func (t Topic) Family() Family                { return FamilyQueue }
func (t Topic) ResourceTags() map[string]string { return t.Tags }
func (t Topic) CreatedTime() time.Time        { return t.CreatedAt }
func (t Topic) AttachmentCount() int          { return len(t.Subscriptions) }
