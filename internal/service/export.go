package service

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mmynk/tripledger/internal/ledger"
	"github.com/mmynk/tripledger/internal/middleware"
)

// ExportPattern is the mux pattern the CSV export is served on.
const ExportPattern = "GET /groups/{gid}/expenses/export.csv"

// ExportHandler serves a group's expenses as a CSV download.
type ExportHandler struct {
	ledger *ledger.Ledger
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(l *ledger.Ledger) *ExportHandler {
	return &ExportHandler{ledger: l}
}

func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("gid")
	memberID := middleware.GetMemberID(r.Context())
	if memberID == "" {
		http.Error(w, errNoActor.Error(), http.StatusUnauthorized)
		return
	}

	// A failed export never sends a partial body.
	var buf bytes.Buffer
	if err := h.ledger.ExportCSV(r.Context(), memberID, groupID, &buf); err != nil {
		status := exportStatus(err)
		if status == http.StatusInternalServerError {
			slog.Error("Export failed", "group_id", groupID, "error", err)
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="expenses-%s.csv"`, groupID))
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("Export write failed", "group_id", groupID, "error", err)
	}
}

func exportStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrPermissionDenied):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
