package audit

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

const (
	anywhereV4 = "0.0.0.0/0"
	anywhereV6 = "::/0"
)

// NetworkSettings contains configurable thresholds for security-group rules.
type NetworkSettings struct {
	// BroadCIDRPrefixLimit flags inbound source prefixes at or below this
	// length (default: 16).
	BroadCIDRPrefixLimit int
	// HighRiskPorts are services that must never face the open internet.
	HighRiskPorts []int32
	// ManagementPorts are remote-administration ports.
	ManagementPorts []int32
	// DeprecatedPorts carry legacy cleartext protocols.
	DeprecatedPorts []int32
}

// DefaultNetworkSettings returns the default security-group rule thresholds.
func DefaultNetworkSettings() NetworkSettings {
	return NetworkSettings{
		BroadCIDRPrefixLimit: 16,
		HighRiskPorts: []int32{
			22, 3389, // SSH, RDP
			3306, 5432, 1433, 27017, // MySQL, PostgreSQL, MSSQL, MongoDB
			6379, 9200, 9300, 5984, // Redis, Elasticsearch, CouchDB
			7000, 7001, 8020, 9092, 2181, 2379, // Cassandra, HDFS, Kafka, ZooKeeper, etcd
		},
		ManagementPorts: []int32{22, 3389, 5900, 5985, 5986, 8443},
		DeprecatedPorts: []int32{21, 23, 69, 512, 513, 514},
	}
}

var sensitiveNameIndicators = []string{"database", "cache", "redis", "memcached", "elasticsearch"}

// NetworkRules returns the ordered security-group rule set.
func NetworkRules(s NetworkSettings) []Rule {
	return []Rule{
		{Name: "unrestricted_inbound", Check: sgRule(checkUnrestrictedInbound(s))},
		{Name: "unrestricted_egress_sensitive", Check: sgRule(checkUnrestrictedEgressSensitive)},
		{Name: "overly_broad_cidr", Check: sgRule(checkOverlyBroadCIDR(s))},
		{Name: "default_group_in_use", Check: sgRule(checkDefaultGroupInUse)},
		{Name: "missing_rule_description", Check: sgRule(checkMissingRuleDescription)},
		{Name: "deprecated_protocol", Check: sgRule(checkDeprecatedProtocol(s))},
		{Name: "ipv6_unrestricted", Check: sgRule(checkIPv6Unrestricted)},
		{Name: "all_protocol_rule", Check: sgRule(checkAllProtocolRule)},
		{Name: "management_port_exposure", Check: sgRule(checkManagementPortExposure(s))},
		{Name: "unscoped_icmp", Check: sgRule(checkUnscopedICMP)},
		{Name: "cross_vpc_reference", Check: sgRule(checkCrossVPCReference)},
	}
}

func sgRule(check func(domain.SecurityGroup) []domain.Finding) func(domain.Resource, *Context) []domain.Finding {
	return func(res domain.Resource, _ *Context) []domain.Finding {
		sg, ok := res.(domain.SecurityGroup)
		if !ok {
			return nil
		}
		return check(sg)
	}
}

func ruleAllowsAnywhere(rule domain.AccessRule) bool {
	for _, r := range rule.IPRanges {
		if r.CIDR == anywhereV4 {
			return true
		}
	}
	return false
}

func ruleCoversPort(rule domain.AccessRule, port int32) bool {
	if rule.Protocol == "-1" {
		return true
	}
	if rule.FromPort == nil || rule.ToPort == nil {
		return false
	}
	return *rule.FromPort <= port && port <= *rule.ToPort
}

func matchedPorts(rule domain.AccessRule, ports []int32) []int32 {
	var matched []int32
	for _, p := range ports {
		if ruleCoversPort(rule, p) {
			matched = append(matched, p)
		}
	}
	return matched
}

func portRangeLabel(rule domain.AccessRule) string {
	if rule.FromPort == nil || rule.ToPort == nil {
		return "all"
	}
	if *rule.FromPort == *rule.ToPort {
		return fmt.Sprintf("%d", *rule.FromPort)
	}
	return fmt.Sprintf("%d-%d", *rule.FromPort, *rule.ToPort)
}

func checkUnrestrictedInbound(s NetworkSettings) func(domain.SecurityGroup) []domain.Finding {
	return func(sg domain.SecurityGroup) []domain.Finding {
		var findings []domain.Finding
		for _, rule := range sg.Inbound {
			if !ruleAllowsAnywhere(rule) {
				continue
			}
			ports := matchedPorts(rule, s.HighRiskPorts)
			if len(ports) == 0 {
				continue
			}
			findings = append(findings, finding(
				domain.FindingUnrestrictedInbound, domain.SeverityCritical, sg,
				map[string]any{
					"description": "Inbound rule exposes high-risk service ports to the entire internet.",
					"ports":       ports,
					"port_range":  portRangeLabel(rule),
					"protocol":    rule.Protocol,
				},
				"Restrict the source to known CIDR ranges or a bastion security group.",
				"CIS", "PCI-DSS",
			))
		}
		return findings
	}
}

// isSensitiveGroup judges whether a group guards a data-tier workload, from
// its tier tag, its own name, or the descriptions of attached interfaces.
func isSensitiveGroup(sg domain.SecurityGroup) bool {
	tier := strings.ToLower(sg.Tags["Tier"])
	if tier == "data" || tier == "database" {
		return true
	}
	if containsAny(strings.ToLower(sg.Name), sensitiveNameIndicators...) {
		return true
	}
	for _, iface := range sg.AttachedInterfaces {
		if containsAny(strings.ToLower(iface.Description), sensitiveNameIndicators...) {
			return true
		}
	}
	return false
}

func checkUnrestrictedEgressSensitive(sg domain.SecurityGroup) []domain.Finding {
	if !isSensitiveGroup(sg) {
		return nil
	}
	for _, rule := range sg.Outbound {
		if rule.Protocol == "-1" && ruleAllowsAnywhere(rule) {
			return []domain.Finding{finding(
				domain.FindingUnrestrictedEgressSensitive, domain.SeverityHigh, sg,
				map[string]any{"description": "Data-tier security group allows unrestricted egress; exfiltration paths are wide open."},
				"Limit egress to the specific destinations the tier requires.",
				"CIS", "PCI-DSS",
			)}
		}
	}
	return nil
}

func checkOverlyBroadCIDR(s NetworkSettings) func(domain.SecurityGroup) []domain.Finding {
	return func(sg domain.SecurityGroup) []domain.Finding {
		var findings []domain.Finding
		for _, rule := range sg.Inbound {
			for _, r := range rule.IPRanges {
				if r.CIDR == anywhereV4 {
					continue
				}
				prefix, err := netip.ParsePrefix(r.CIDR)
				if err != nil {
					// Malformed range: skip the data point, keep checking.
					continue
				}
				if prefix.Bits() <= s.BroadCIDRPrefixLimit {
					findings = append(findings, finding(
						domain.FindingOverlyBroadCIDR, domain.SeverityMedium, sg,
						map[string]any{
							"description":   "Inbound source covers a very large address space.",
							"cidr":          r.CIDR,
							"prefix_length": prefix.Bits(),
							"port_range":    portRangeLabel(rule),
						},
						"Narrow the source range to the subnets that actually connect.",
						"CIS",
					))
				}
			}
		}
		return findings
	}
}

func checkDefaultGroupInUse(sg domain.SecurityGroup) []domain.Finding {
	if !sg.IsDefault || len(sg.AttachedInterfaces) == 0 {
		return nil
	}
	return []domain.Finding{finding(
		domain.FindingDefaultGroupInUse, domain.SeverityMedium, sg,
		map[string]any{
			"description":         "Workloads are attached to the VPC's implicit default security group.",
			"attached_interfaces": len(sg.AttachedInterfaces),
		},
		"Move workloads to purpose-built groups and strip all rules from the default group.",
		"CIS",
	)}
}

func checkMissingRuleDescription(sg domain.SecurityGroup) []domain.Finding {
	undocumented := 0
	count := func(rules []domain.AccessRule) {
		for _, rule := range rules {
			documented := false
			for _, r := range rule.IPRanges {
				if r.Description != "" {
					documented = true
				}
			}
			for _, r := range rule.IPv6Ranges {
				if r.Description != "" {
					documented = true
				}
			}
			if !documented && (len(rule.IPRanges) > 0 || len(rule.IPv6Ranges) > 0) {
				undocumented++
			}
		}
	}
	count(sg.Inbound)
	count(sg.Outbound)
	if undocumented == 0 {
		return nil
	}
	return []domain.Finding{finding(
		domain.FindingMissingRuleDescription, domain.SeverityLow, sg,
		map[string]any{
			"description":        "Rules without descriptions make review and cleanup guesswork.",
			"undocumented_rules": undocumented,
		},
		"Add a description to every rule stating what it permits and why.",
	)}
}

func checkDeprecatedProtocol(s NetworkSettings) func(domain.SecurityGroup) []domain.Finding {
	return func(sg domain.SecurityGroup) []domain.Finding {
		var findings []domain.Finding
		for _, rule := range sg.Inbound {
			ports := matchedPorts(rule, s.DeprecatedPorts)
			if len(ports) == 0 {
				continue
			}
			findings = append(findings, finding(
				domain.FindingDeprecatedProtocol, domain.SeverityHigh, sg,
				map[string]any{
					"description": "Inbound rule permits legacy cleartext protocols (FTP, telnet, rsh family).",
					"ports":       ports,
				},
				"Replace with SFTP/SSH equivalents and remove the legacy ports.",
				"CIS", "PCI-DSS",
			))
		}
		return findings
	}
}

func checkIPv6Unrestricted(sg domain.SecurityGroup) []domain.Finding {
	var findings []domain.Finding
	for _, rule := range sg.Inbound {
		open := false
		for _, r := range rule.IPv6Ranges {
			if r.CIDR == anywhereV6 {
				open = true
				break
			}
		}
		if !open {
			continue
		}
		// Escalate when the same rule has no tighter IPv4 counterpart:
		// nothing suggests the exposure is intentional and scoped.
		severity := domain.SeverityHigh
		restricted := false
		for _, r := range rule.IPRanges {
			if r.CIDR != anywhereV4 {
				restricted = true
				break
			}
		}
		if !restricted {
			severity = domain.SeverityCritical
		}
		findings = append(findings, finding(
			domain.FindingIPv6Unrestricted, severity, sg,
			map[string]any{
				"description": "Inbound rule is open to all IPv6 addresses.",
				"port_range":  portRangeLabel(rule),
			},
			"Scope the IPv6 source the same way the IPv4 side is scoped.",
			"CIS",
		))
	}
	return findings
}

func checkAllProtocolRule(sg domain.SecurityGroup) []domain.Finding {
	var findings []domain.Finding
	for _, rule := range sg.Inbound {
		if rule.Protocol == "-1" {
			findings = append(findings, finding(
				domain.FindingAllProtocolRule, domain.SeverityHigh, sg,
				map[string]any{"description": "Inbound rule permits every protocol and port.", "direction": "inbound"},
				"Split the rule into the specific protocols and ports in use.",
				"CIS",
			))
		}
	}
	for _, rule := range sg.Outbound {
		if rule.Protocol == "-1" {
			findings = append(findings, finding(
				domain.FindingAllProtocolRule, domain.SeverityMedium, sg,
				map[string]any{"description": "Outbound rule permits every protocol and port.", "direction": "outbound"},
				"Split the rule into the specific protocols and ports in use.",
				"CIS",
			))
		}
	}
	return findings
}

func checkManagementPortExposure(s NetworkSettings) func(domain.SecurityGroup) []domain.Finding {
	return func(sg domain.SecurityGroup) []domain.Finding {
		var findings []domain.Finding
		for _, rule := range sg.Inbound {
			if !ruleAllowsAnywhere(rule) {
				continue
			}
			ports := matchedPorts(rule, s.ManagementPorts)
			if len(ports) == 0 {
				continue
			}
			findings = append(findings, finding(
				domain.FindingManagementPortExposure, domain.SeverityCritical, sg,
				map[string]any{
					"description": "Remote-administration ports are reachable from the entire internet.",
					"ports":       ports,
				},
				"Front management access with a VPN or session-manager service; never expose it directly.",
				"CIS", "SOC2",
			))
		}
		return findings
	}
}

func checkUnscopedICMP(sg domain.SecurityGroup) []domain.Finding {
	var findings []domain.Finding
	for _, rule := range sg.Inbound {
		if rule.Protocol != "icmp" && rule.Protocol != "icmpv6" {
			continue
		}
		// FromPort carries the ICMP type; -1 or unset means every type.
		if rule.FromPort == nil || *rule.FromPort == -1 {
			findings = append(findings, finding(
				domain.FindingUnscopedICMP, domain.SeverityLow, sg,
				map[string]any{"description": "ICMP rule allows every message type.", "protocol": rule.Protocol},
				"Restrict ICMP to echo request/reply if ping is all that is needed.",
			))
		}
	}
	return findings
}

func checkCrossVPCReference(sg domain.SecurityGroup) []domain.Finding {
	peered := make(map[string]bool, len(sg.PeeredVPCs))
	for _, vpc := range sg.PeeredVPCs {
		peered[vpc] = true
	}

	var findings []domain.Finding
	seen := map[string]bool{}
	for _, rules := range [][]domain.AccessRule{sg.Inbound, sg.Outbound} {
		for _, rule := range rules {
			for _, peer := range rule.PeerGroups {
				if peer.VPCID == "" || peer.VPCID == sg.VPCID || peered[peer.VPCID] || seen[peer.GroupID] {
					continue
				}
				seen[peer.GroupID] = true
				findings = append(findings, finding(
					domain.FindingCrossVPCReference, domain.SeverityHigh, sg,
					map[string]any{
						"description": "Rule references a security group in another VPC with no active peering connection; the rule silently matches nothing.",
						"peer_group":  peer.GroupID,
						"peer_vpc":    peer.VPCID,
					},
					"Remove the stale reference or establish the intended peering connection.",
				))
			}
		}
	}
	return findings
}
