package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
	"github.com/de-tools/cloud-sentry/pkg/services/cost"
	"github.com/de-tools/cloud-sentry/pkg/services/exclusion"
	"github.com/de-tools/cloud-sentry/pkg/services/risk"
)

// Collector returns the normalized resource snapshot for one resource
// family. Implementations fully drain pagination before returning and
// substitute defaults for individual per-resource lookup failures; only a
// failure to enumerate at all is returned as an error.
type Collector interface {
	Collect(ctx context.Context) ([]domain.Resource, error)
}

// SavedQueryLister lists every saved query definition in the account.
type SavedQueryLister interface {
	ListSavedQueryNames(ctx context.Context) ([]string, error)
}

// Runner drives one batch audit: drain collectors, filter, evaluate rules,
// price, score. Strictly synchronous; the resource set is immutable once
// built and no rule runs before collection completes.
type Runner struct {
	collectors []Collector
	queries    SavedQueryLister
	engine     *Engine
	exclusion  exclusion.Settings
}

func NewRunner(collectors []Collector, queries SavedQueryLister, settings Settings, excl exclusion.Settings) *Runner {
	return &Runner{
		collectors: collectors,
		queries:    queries,
		engine:     NewEngine(settings),
		exclusion:  excl,
	}
}

// Run executes one audit over a point-in-time snapshot. Re-running on the
// same snapshot reproduces identical findings and costs.
func (r *Runner) Run(ctx context.Context) (*domain.AuditResult, error) {
	logger := zerolog.Ctx(ctx)
	now := time.Now()

	var resources []domain.Resource
	for _, c := range r.collectors {
		collected, err := c.Collect(ctx)
		if err != nil {
			return nil, fmt.Errorf("resource enumeration failed: %w", err)
		}
		resources = append(resources, collected...)
	}
	logger.Info().Int("resources", len(resources)).Msg("collection complete")

	filtered := exclusion.Filter(resources, r.exclusion)
	if dropped := len(resources) - len(filtered); dropped > 0 {
		logger.Info().Int("excluded", dropped).Msg("exclusion filter applied")
	}

	rctx := &Context{Resources: filtered, Now: now}
	if r.queries != nil {
		names, err := r.queries.ListSavedQueryNames(ctx)
		if err != nil {
			// Degraded saved-query API: the rule assumes queries exist.
			logger.Warn().Err(err).Msg("saved query listing failed, assuming queries exist")
		} else {
			rctx.SavedQueryNames = names
			rctx.SavedQueriesOK = true
		}
	}

	findings := r.engine.EvaluateAll(filtered, rctx)

	costs := make(map[string]domain.CostBreakdown, len(filtered))
	optimizations := make(map[string]domain.Optimization, len(filtered))
	for _, res := range filtered {
		costs[res.ResourceID()] = cost.ForResource(res)
		if lg, ok := res.(domain.LogGroup); ok {
			opt := cost.Optimize(lg, findings)
			if opt.OptimizedMonthly > costs[res.ResourceID()].TotalMonthly {
				logger.Warn().Str("resource", res.ResourceName()).Msg("optimized cost exceeds current cost, modeling bug")
			}
			optimizations[res.ResourceID()] = opt
		}
	}

	risk.Apply(findings, filtered)

	logger.Info().Int("findings", len(findings)).Msg("audit complete")
	return &domain.AuditResult{
		GeneratedAt:   now,
		Resources:     filtered,
		Findings:      findings,
		Costs:         costs,
		Optimizations: optimizations,
	}, nil
}
