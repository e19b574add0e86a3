package exclusion

import (
	"strings"
	"time"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

// Settings contains configurable thresholds for the exclusion filter.
type Settings struct {
	// ExclusionWindow drops resources created too recently to have a
	// meaningful usage history (default: 30 days).
	ExclusionWindow time.Duration
	// LocalEndpoint disables the age check entirely when the run targets a
	// local/mock endpoint. Integration suites create resources seconds
	// before auditing them, so this bypass must stay.
	LocalEndpoint bool
	// Now allows tests to pin the reference time; zero means time.Now.
	Now time.Time
}

// DefaultSettings returns the default exclusion filter configuration.
func DefaultSettings() Settings {
	return Settings{ExclusionWindow: 30 * 24 * time.Hour}
}

var optOutTags = []string{"excludefromanalysis", "excludefromaudit"}

// Filter removes resources that should not be audited: explicit opt-out tag,
// transient/dev/test naming, or creation inside the exclusion window.
// Resources with no tags (including failed tag lookups upstream) pass the
// tag check and stay included.
func Filter(resources []domain.Resource, settings Settings) []domain.Resource {
	now := settings.Now
	if now.IsZero() {
		now = time.Now()
	}

	kept := make([]domain.Resource, 0, len(resources))
	for _, res := range resources {
		if Excluded(res, settings, now) {
			continue
		}
		kept = append(kept, res)
	}
	return kept
}

// Excluded reports whether a single resource is removed from the audit.
func Excluded(res domain.Resource, settings Settings, now time.Time) bool {
	if hasOptOutTag(res.ResourceTags()) {
		return true
	}
	if transientName(res.ResourceName()) {
		return true
	}
	if !settings.LocalEndpoint && settings.ExclusionWindow > 0 {
		created := res.CreatedTime()
		if !created.IsZero() && now.Sub(created) < settings.ExclusionWindow {
			return true
		}
	}
	return false
}

func hasOptOutTag(tags map[string]string) bool {
	for key, value := range tags {
		if !strings.EqualFold(value, "true") {
			continue
		}
		lower := strings.ToLower(key)
		for _, optOut := range optOutTags {
			if lower == optOut {
				return true
			}
		}
	}
	return false
}

func transientName(name string) bool {
	if strings.HasPrefix(name, "temp-") {
		return true
	}
	for _, segment := range strings.Split(name, "/") {
		if strings.HasPrefix(segment, "dev-") || strings.HasPrefix(segment, "test-") {
			return true
		}
	}
	return false
}
