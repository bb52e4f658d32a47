package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/dialer-sync/internal/pkg/httputil"
	"github.com/ignite/dialer-sync/internal/pkg/logger"
	"github.com/ignite/dialer-sync/internal/syncer"
)

// TriggerResync runs a full resync synchronously and returns the aggregate
// counts. Large CRM lists make this a slow call; the admin caller owns the
// request timeout.
func (h *Handlers) TriggerResync(w http.ResponseWriter, r *http.Request) {
	summary := h.engine.ResyncAll(r.Context())

	if summary.Failed > 0 {
		httputil.Fail(w, http.StatusOK, "resync completed with failures", summary)
		return
	}
	httputil.OK(w, "resync complete", summary)
}

// GetSyncStats returns ledger record counts grouped by status.
func (h *Handlers) GetSyncStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.ledger.StatusCounts(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, "sync stats", counts)
}

// MarkCustomer is the administrative override forcing a contact into the
// sticky excluded state.
func (h *Handlers) MarkCustomer(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	if sourceID == "" {
		httputil.BadRequest(w, "missing source id")
		return
	}

	if err := h.ledger.MarkCustomer(r.Context(), sourceID); err != nil {
		if errors.Is(err, syncer.ErrNotFound) {
			httputil.NotFound(w, "no sync record for contact "+sourceID)
			return
		}
		httputil.InternalError(w, err)
		return
	}

	logger.Info("contact marked as customer", "source_id", sourceID)
	httputil.OK(w, "contact marked as customer", map[string]string{"source_id": sourceID})
}
