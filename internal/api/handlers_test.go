package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ignite/dialer-sync/internal/config"
	"github.com/ignite/dialer-sync/internal/pkg/httputil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (p *fakePinger) HealthCheck(ctx context.Context) error { return p.err }

func TestHealthCheck(t *testing.T) {
	t.Run("all dependencies up", func(t *testing.T) {
		h := NewHandlers(&fakeEngine{}, &fakeStatsLedger{}, config.WebhookConfig{}, nil)
		h.SetVendorProbes(&fakePinger{}, &fakePinger{})
		router := SetupRoutes(h, "")

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var env httputil.Envelope
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
		assert.True(t, env.Success)

		checks := env.Data.(map[string]any)
		assert.Equal(t, "up", checks["crm"])
		assert.Equal(t, "up", checks["dialer"])
	})

	t.Run("dialer down answers 503", func(t *testing.T) {
		h := NewHandlers(&fakeEngine{}, &fakeStatsLedger{}, config.WebhookConfig{}, nil)
		h.SetVendorProbes(&fakePinger{}, &fakePinger{err: fmt.Errorf("API error (status 503)")})
		router := SetupRoutes(h, "")

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var env httputil.Envelope
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
		assert.False(t, env.Success)

		checks := env.Data.(map[string]any)
		assert.Equal(t, "up", checks["crm"])
		assert.Equal(t, "down", checks["dialer"])
	})

	t.Run("no probes configured stays healthy", func(t *testing.T) {
		h := NewHandlers(&fakeEngine{}, &fakeStatsLedger{}, config.WebhookConfig{}, nil)
		router := SetupRoutes(h, "")

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
