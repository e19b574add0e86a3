package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/de-tools/cloud-sentry/pkg/models/api"
	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

// WriteJSON renders the run as one top-level JSON object.
func WriteJSON(w io.Writer, result *domain.AuditResult, summary domain.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(api.NewReport(result, summary)); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
