package audit

import (
	"strings"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
	"github.com/de-tools/cloud-sentry/pkg/services/cost"
)

// sourceSuffixes are stripped before comparing source identifiers, so that
// ".../orders-app" and ".../orders-service" resolve to the same source.
var sourceSuffixes = []string{"-logs", "-log", "-app", "-service", "-lambda", "-function"}

// sourceIdentifier extracts the emitting source from a hierarchical log
// group name: the last path segment when a plain split on "/" yields at
// least three segments, empty otherwise. A leading slash counts as a
// segment, so "/apps/orders" qualifies while "orders-app" does not.
func sourceIdentifier(name string) string {
	segments := strings.Split(name, "/")
	if len(segments) < 3 {
		return ""
	}
	id := strings.ToLower(segments[len(segments)-1])
	if id == "" {
		return ""
	}
	for _, suffix := range sourceSuffixes {
		if strings.HasSuffix(id, suffix) {
			id = strings.TrimSuffix(id, suffix)
			break
		}
	}
	return id
}

// checkDuplicateLogging compares this group's source identifier against
// every other log group in the batch. Pairwise over the full set, so a
// matching pair present together always flags both sides.
func checkDuplicateLogging(lg domain.LogGroup, rctx *Context) []domain.Finding {
	id := sourceIdentifier(lg.Name)
	if id == "" {
		return nil
	}

	var peers []domain.ResourceRef
	for _, other := range rctx.Resources {
		peer, ok := other.(domain.LogGroup)
		if !ok || peer.ResourceID() == lg.ResourceID() {
			continue
		}
		if sourceIdentifier(peer.Name) == id {
			peers = append(peers, domain.Ref(peer))
		}
	}
	if len(peers) == 0 {
		return nil
	}

	peerNames := make([]string, len(peers))
	for i, p := range peers {
		peerNames[i] = p.Name
	}
	f := finding(
		domain.FindingDuplicateLogging, domain.SeverityLow, lg,
		map[string]any{
			"description":       "Another log group appears to receive the same source's output.",
			"source_identifier": id,
			"duplicates":        peerNames,
		},
		"Consolidate the source's output into one log group.",
		"FinOps",
	)
	f.Related = peers
	// Consolidation heuristic: roughly half of this group's cost.
	f.MonthlySavings = cost.ForResource(lg).TotalMonthly * 0.5
	return []domain.Finding{f}
}
