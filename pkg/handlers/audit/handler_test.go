package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

type stubAuditor struct {
	result *domain.AuditResult
	err    error
	runs   int
}

func (s *stubAuditor) Run(context.Context) (*domain.AuditResult, error) {
	s.runs++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func auditResult() *domain.AuditResult {
	return &domain.AuditResult{
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Resources:   []domain.Resource{domain.LogGroup{Name: "/a", ARN: "arn:a"}},
		Findings: []domain.Finding{
			{
				Type:     domain.FindingIndefiniteRetention,
				Severity: domain.SeverityHigh,
				Resource: domain.ResourceRef{ID: "arn:a", Name: "/a", Family: domain.FamilyLogGroup},
			},
			{
				Type:     domain.FindingShortPolling,
				Severity: domain.SeverityLow,
				Resource: domain.ResourceRef{ID: "arn:q", Name: "orders", Family: domain.FamilyQueue},
			},
		},
		Costs: map[string]domain.CostBreakdown{"arn:a": {TotalMonthly: 2.0}},
	}
}

func TestGetAudit(t *testing.T) {
	auditor := &stubAuditor{result: auditResult()}
	handler := NewHandler(auditor)

	rec := httptest.NewRecorder()
	handler.GetAudit(rec, httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Summary struct {
			FindingCount int `json:"finding_count"`
		} `json:"summary"`
		Findings []json.RawMessage `json:"findings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Summary.FindingCount)
	assert.Len(t, body.Findings, 2)

	// A second request serves the cached result without re-running.
	handler.GetAudit(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil))
	assert.Equal(t, 1, auditor.runs)
}

func TestGetFindingsSeverityFilter(t *testing.T) {
	handler := NewHandler(&stubAuditor{result: auditResult()})

	rec := httptest.NewRecorder()
	handler.GetFindings(rec, httptest.NewRequest(http.MethodGet, "/api/v1/audit/findings?severity=high", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var findings []domain.Finding
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &findings))
	require.Len(t, findings, 1)
	assert.Equal(t, domain.FindingIndefiniteRetention, findings[0].Type)
}

func TestRefreshReruns(t *testing.T) {
	auditor := &stubAuditor{result: auditResult()}
	handler := NewHandler(auditor)

	handler.GetAudit(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil))
	rec := httptest.NewRecorder()
	handler.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/v1/audit/refresh", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, auditor.runs)
}

func TestAuditFailure(t *testing.T) {
	handler := NewHandler(&stubAuditor{err: errors.New("enumeration failed")})

	rec := httptest.NewRecorder()
	handler.GetAudit(rec, httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDashboard(t *testing.T) {
	handler := NewHandler(&stubAuditor{result: auditResult()})

	rec := httptest.NewRecorder()
	handler.Dashboard(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "indefinite_retention")
}
