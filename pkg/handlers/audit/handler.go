package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/de-tools/cloud-sentry/pkg/models/api"
	"github.com/de-tools/cloud-sentry/pkg/models/domain"
	"github.com/de-tools/cloud-sentry/pkg/services/report"
)

// Auditor runs one batch audit over the account snapshot.
type Auditor interface {
	Run(ctx context.Context) (*domain.AuditResult, error)
}

// Handler serves audit results over HTTP. The run is executed lazily on the
// first request and cached; POST /refresh re-runs it.
type Handler struct {
	auditor Auditor

	mu      sync.Mutex
	result  *domain.AuditResult
	summary domain.Summary
}

func NewHandler(auditor Auditor) *Handler {
	return &Handler{auditor: auditor}
}

func (h *Handler) latest(ctx context.Context, force bool) (*domain.AuditResult, domain.Summary, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.result == nil || force {
		result, err := h.auditor.Run(ctx)
		if err != nil {
			return nil, domain.Summary{}, err
		}
		h.result = result
		h.summary = report.Aggregate(result)
	}
	return h.result, h.summary, nil
}

func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	result, summary, err := h.latest(ctx, false)
	if err != nil {
		logger.Error().Err(err).Msg("audit run failed")
		http.Error(w, "audit run failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(api.NewReport(result, summary)); err != nil {
		logger.Error().Err(err).Msg("failed to encode audit report")
	}
}

func (h *Handler) GetFindings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	result, _, err := h.latest(ctx, false)
	if err != nil {
		logger.Error().Err(err).Msg("audit run failed")
		http.Error(w, "audit run failed", http.StatusBadGateway)
		return
	}

	severity := r.URL.Query().Get("severity")
	findings := result.Findings
	if severity != "" {
		filtered := make([]domain.Finding, 0, len(findings))
		for _, f := range findings {
			if f.Severity.String() == severity {
				filtered = append(filtered, f)
			}
		}
		findings = filtered
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(findings); err != nil {
		logger.Error().Err(err).Str("severity", severity).Msg("failed to encode findings")
	}
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	_, summary, err := h.latest(ctx, true)
	if err != nil {
		logger.Error().Err(err).Msg("audit refresh failed")
		http.Error(w, "audit run failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		logger.Error().Err(err).Msg("failed to encode summary")
	}
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	result, summary, err := h.latest(ctx, false)
	if err != nil {
		logger.Error().Err(err).Msg("audit run failed")
		http.Error(w, "audit run failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteHTML(w, result, summary); err != nil {
		logger.Error().Err(err).Msg("failed to render dashboard")
	}
}
