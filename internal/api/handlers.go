// Package api exposes the inbound HTTP surface: webhook ingestion from the
// CRM and the administrative sync endpoints.
package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/ignite/dialer-sync/internal/config"
	"github.com/ignite/dialer-sync/internal/pkg/httputil"
	"github.com/ignite/dialer-sync/internal/syncer"
)

// Reconciler is the engine capability the handlers depend on.
type Reconciler interface {
	Reconcile(ctx context.Context, sourceID string, snapshot *syncer.ContactSnapshot) syncer.Result
	ResyncAll(ctx context.Context) syncer.ResyncSummary
}

// Pinger probes a remote vendor API for reachability.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Handlers contains all HTTP handlers and their dependencies
type Handlers struct {
	engine  Reconciler
	ledger  syncer.Ledger
	webhook config.WebhookConfig
	db      *sql.DB
	crm     Pinger
	dialer  Pinger
}

// NewHandlers creates the handler set. db may be nil; the health endpoint
// then skips the database probe.
func NewHandlers(engine Reconciler, ledger syncer.Ledger, webhook config.WebhookConfig, db *sql.DB) *Handlers {
	return &Handlers{engine: engine, ledger: ledger, webhook: webhook, db: db}
}

// SetVendorProbes wires the CRM and dialer clients into the health endpoint.
// Either may be nil to skip that probe.
func (h *Handlers) SetVendorProbes(crm, dialer Pinger) {
	h.crm = crm
	h.dialer = dialer
}

// HealthCheck reports process liveness plus reachability of the database and
// both vendor APIs. Any dependency being down answers 503 so a load balancer
// stops routing webhooks the engine cannot act on.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"server": "up"}
	healthy := true

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			checks["database"] = "down"
			healthy = false
		} else {
			checks["database"] = "up"
		}
	}
	if h.crm != nil {
		if err := h.crm.HealthCheck(ctx); err != nil {
			checks["crm"] = "down"
			healthy = false
		} else {
			checks["crm"] = "up"
		}
	}
	if h.dialer != nil {
		if err := h.dialer.HealthCheck(ctx); err != nil {
			checks["dialer"] = "down"
			healthy = false
		} else {
			checks["dialer"] = "up"
		}
	}

	if !healthy {
		httputil.Fail(w, http.StatusServiceUnavailable, "dependencies unreachable", checks)
		return
	}
	httputil.OK(w, "healthy", checks)
}
