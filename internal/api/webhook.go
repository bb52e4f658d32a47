package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/dialer-sync/internal/pkg/httputil"
	"github.com/ignite/dialer-sync/internal/pkg/logger"
	"github.com/ignite/dialer-sync/internal/syncer"
)

// signatureHeader carries the hex HMAC-SHA256 of the raw request body.
const signatureHeader = "X-Signature"

// contactIDAliases are the field names probed for the source contact id.
// The CRM uses different event shapes across webhook and workflow
// deliveries, so the id can arrive under any of these.
var contactIDAliases = []string{"contact_id", "contactId", "id"}

// HandleWebhook is the signed event path. The body is verified against the
// shared secret (when configured) and a freshness timestamp before any
// reconciliation runs.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	// Limit webhook payload to 1MB to prevent OOM
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.BadRequest(w, "unable to read request body")
		return
	}

	if h.webhook.Secret != "" {
		if !verifySignature(raw, r.Header.Get(signatureHeader), h.webhook.Secret) {
			logger.Warn("webhook signature rejected", "remote_addr", r.RemoteAddr)
			httputil.Unauthorized(w, "invalid signature")
			return
		}

		event, ok := parseEvent(w, raw)
		if !ok {
			return
		}
		if !h.checkFreshness(w, event) {
			return
		}
		h.reconcileEvent(w, r, event)
		return
	}

	event, ok := parseEvent(w, raw)
	if !ok {
		return
	}
	h.reconcileEvent(w, r, event)
}

// HandleWorkflowWebhook is the unsigned workflow path. The operator's
// automation posts a user-defined body, so only the contact id is required.
func (h *Handlers) HandleWorkflowWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.BadRequest(w, "unable to read request body")
		return
	}

	event, ok := parseEvent(w, raw)
	if !ok {
		return
	}
	h.reconcileEvent(w, r, event)
}

func parseEvent(w http.ResponseWriter, raw []byte) (map[string]any, bool) {
	var event map[string]any
	if err := json.Unmarshal(raw, &event); err != nil {
		httputil.BadRequest(w, "invalid JSON: "+err.Error())
		return nil, false
	}
	return event, true
}

func (h *Handlers) reconcileEvent(w http.ResponseWriter, r *http.Request, event map[string]any) {
	sourceID := extractContactID(event)
	if sourceID == "" {
		httputil.BadRequest(w, "no contact id found in event")
		return
	}

	snapshot := extractSnapshot(sourceID, event)
	result := h.engine.Reconcile(r.Context(), sourceID, snapshot)

	data := map[string]any{
		"contact_id": sourceID,
		"action":     string(result.Status),
		"bucket_id":  result.BucketID,
	}

	// Upstream failures ride a 200 envelope with success=false; the failure is
	// already persisted in the ledger and the sender's retry policy decides
	// redelivery, not the status code.
	if result.Status == syncer.ActionFailed {
		httputil.Fail(w, http.StatusOK, result.Err, data)
		return
	}
	httputil.OK(w, "contact reconciled", data)
}

func verifySignature(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// checkFreshness rejects signed events older than the staleness window.
// Signed deliveries must carry a parseable timestamp; a replayed body with a
// valid signature is exactly what the window exists to stop.
func (h *Handlers) checkFreshness(w http.ResponseWriter, event map[string]any) bool {
	ts, ok := extractTimestamp(event)
	if !ok {
		httputil.Unauthorized(w, "missing or invalid event timestamp")
		return false
	}
	if age := time.Since(ts); age > h.webhook.MaxAge() {
		logger.Warn("stale webhook rejected", "event_age", age.String())
		httputil.Unauthorized(w, "event timestamp too old")
		return false
	}
	return true
}

func extractTimestamp(event map[string]any) (time.Time, bool) {
	v, ok := event["timestamp"]
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case float64:
		// Unix seconds, or milliseconds for values too large to be seconds.
		if t > math.MaxInt32 {
			return time.UnixMilli(int64(t)), true
		}
		return time.Unix(int64(t), 0), true
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// extractContactID probes the known id aliases at the top level, then inside
// a nested contact object.
func extractContactID(event map[string]any) string {
	for _, key := range contactIDAliases {
		if id, ok := event[key].(string); ok && id != "" {
			return id
		}
	}
	if contact, ok := event["contact"].(map[string]any); ok {
		for _, key := range contactIDAliases {
			if id, ok := contact[key].(string); ok && id != "" {
				return id
			}
		}
	}
	return ""
}

// extractSnapshot builds an inline contact snapshot from the event when the
// payload carries contact fields. A payload without tag data returns nil,
// which makes the engine fetch the contact from the CRM instead: classifying
// a tagless partial snapshot would read as "no recognized labels" and could
// stickily exclude a contact whose CRM tags still say cold-lead.
func extractSnapshot(sourceID string, event map[string]any) *syncer.ContactSnapshot {
	fields := event
	if contact, ok := event["contact"].(map[string]any); ok {
		fields = contact
	}

	tags := tagsField(fields)
	if tags == nil {
		return nil
	}

	return &syncer.ContactSnapshot{
		ID:        sourceID,
		FirstName: stringField(fields, "first_name", "firstName"),
		LastName:  stringField(fields, "last_name", "lastName"),
		Phone:     stringField(fields, "phone", "phone_number"),
		Email:     stringField(fields, "email"),
		Tags:      tags,
	}
}

func stringField(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := fields[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// tagsField accepts tags as a JSON array or as a comma-separated string;
// workflow senders emit either depending on how the automation is built.
func tagsField(fields map[string]any) []string {
	switch v := fields["tags"].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, tag := range v {
			if s, ok := tag.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return nil
}
