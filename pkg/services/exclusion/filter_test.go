package exclusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

func group(name string, age time.Duration, tags map[string]string, now time.Time) domain.LogGroup {
	return domain.LogGroup{Name: name, ARN: "arn:" + name, CreatedAt: now.Add(-age), Tags: tags}
}

func TestFilter(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	settings := DefaultSettings()
	settings.Now = now
	old := 90 * 24 * time.Hour

	tests := []struct {
		name     string
		resource domain.Resource
		excluded bool
	}{
		{
			"plain old resource stays",
			group("/apps/orders", old, nil, now),
			false,
		},
		{
			"opt-out tag",
			group("/apps/orders", old, map[string]string{"ExcludeFromAnalysis": "true"}, now),
			true,
		},
		{
			"opt-out tag alternate spelling, mixed case",
			group("/apps/orders", old, map[string]string{"excludefromaudit": "TRUE"}, now),
			true,
		},
		{
			"opt-out tag with false value stays",
			group("/apps/orders", old, map[string]string{"ExcludeFromAnalysis": "false"}, now),
			false,
		},
		{
			"dev path segment",
			group("/apps/dev-orders/logs", old, nil, now),
			true,
		},
		{
			"test prefix",
			group("test-harness", old, nil, now),
			true,
		},
		{
			"temp prefix",
			group("temp-scratch", old, nil, now),
			true,
		},
		{
			"devops is not a dev- segment",
			group("/apps/devops/logs", old, nil, now),
			false,
		},
		{
			"too young",
			group("/apps/orders", 10*24*time.Hour, nil, now),
			true,
		},
		{
			"no tags from failed lookup stays included",
			group("/apps/orders", old, nil, now),
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept := Filter([]domain.Resource{tt.resource}, settings)
			if tt.excluded {
				assert.Empty(t, kept)
			} else {
				assert.Len(t, kept, 1)
			}
		})
	}
}

func TestFilter_LocalEndpointSkipsAgeCheck(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	young := group("/apps/orders", time.Hour, nil, now)

	settings := DefaultSettings()
	settings.Now = now
	assert.Empty(t, Filter([]domain.Resource{young}, settings))

	settings.LocalEndpoint = true
	assert.Len(t, Filter([]domain.Resource{young}, settings), 1)

	// The bypass only covers age; the other exclusions still apply.
	tagged := group("/apps/orders", time.Hour, map[string]string{"ExcludeFromAudit": "true"}, now)
	assert.Empty(t, Filter([]domain.Resource{tagged}, settings))
}

func TestFilter_ZeroCreationTimeStays(t *testing.T) {
	// Security groups carry no creation timestamp.
	sg := domain.SecurityGroup{ID: "sg-1", Name: "web"}
	settings := DefaultSettings()
	settings.Now = time.Now()
	assert.Len(t, Filter([]domain.Resource{sg}, settings), 1)
}
