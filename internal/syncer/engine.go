// Package syncer converges dialer-side state to the classification of each
// source contact: classifier outcome drives contact upsert plus bucket/tag
// membership in the dialer, and every attempt is recorded in the sync ledger.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/dialer-sync/internal/classify"
	"github.com/ignite/dialer-sync/internal/phone"
	"github.com/ignite/dialer-sync/internal/pkg/distlock"
	"github.com/ignite/dialer-sync/internal/pkg/logger"
)

// Config holds the engine's per-environment wiring: which dialer buckets and
// tags represent the cold and active tracks, and how bulk resyncs pace
// themselves against the remote rate limits.
type Config struct {
	ColdBucketID   string
	ActiveBucketID string
	ColdTagName    string
	ActiveTagName  string
	// ResyncTag is the CRM tag that enumerates full-resync candidates.
	ResyncTag   string
	WorkerWidth int
	ChunkDelay  time.Duration
}

// Engine orchestrates classification against the two gateways and the ledger.
type Engine struct {
	source     SourceClient
	dialer     DialerClient
	ledger     Ledger
	classifier *classify.Classifier
	locks      *distlock.Factory
	cfg        Config

	// Tag name → dialer tag id, resolved once per process. Tags must be
	// resolved-or-created before first membership edit.
	tagMu    sync.Mutex
	tagCache map[string]string
}

// NewEngine creates a reconciliation engine. locks may be nil, in which case
// concurrent reconciliations of one contact race last-writer-wins.
func NewEngine(source SourceClient, dialer DialerClient, ledger Ledger, classifier *classify.Classifier, locks *distlock.Factory, cfg Config) *Engine {
	return &Engine{
		source:     source,
		dialer:     dialer,
		ledger:     ledger,
		classifier: classifier,
		locks:      locks,
		cfg:        cfg,
		tagCache:   make(map[string]string),
	}
}

// Reconcile converges the dialer to the current classification of one source
// contact. snapshot may carry the contact inline (webhook payloads usually
// do); when nil, the contact is fetched from the CRM.
//
// Re-invoking with unchanged labels and phone produces the same dialer state:
// lookup-by-phone plus create-if-absent guarantees repeated deliveries never
// create duplicate dialer contacts.
func (e *Engine) Reconcile(ctx context.Context, sourceID string, snapshot *ContactSnapshot) Result {
	if e.locks != nil {
		lock := e.locks.ForContact(sourceID)
		if ok, err := lock.Acquire(ctx); err != nil || !ok {
			// Last-writer-wins beats rejecting the sender's delivery.
			logger.Warn("reconciling without contact lock", "source_id", sourceID)
		} else {
			defer lock.Release(ctx)
		}
	}

	snap := snapshot
	if snap == nil {
		fetched, err := e.source.GetContact(ctx, sourceID)
		if err != nil {
			return e.fail(ctx, sourceID, nil, fmt.Errorf("resolve source contact: %w", err))
		}
		snap = fetched
	}
	if snap.ID == "" {
		snap.ID = sourceID
	}

	outcome := e.classifier.Classify(snap.Tags)

	prior, err := e.ledger.Get(ctx, sourceID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		logger.Error("ledger read failed", "source_id", sourceID, "error", err)
		return Result{Status: ActionFailed, Err: fmt.Sprintf("ledger read: %v", err)}
	}

	// Sticky exclusion: a known customer stays excluded unless the current
	// labels promote it back to active-client.
	if prior != nil && prior.IsCustomer && outcome != classify.ActiveClient {
		outcome = classify.Excluded
	}

	switch outcome {
	case classify.Excluded:
		if prior == nil {
			// No record, no writes anywhere.
			return Result{Status: ActionExcluded}
		}
		if err := e.ledger.MarkCustomer(ctx, sourceID); err != nil {
			return Result{Status: ActionFailed, Err: fmt.Sprintf("mark customer: %v", err)}
		}
		return Result{Status: ActionExcluded, TargetID: prior.TargetID}

	case classify.GenericCustomer:
		// Customers outside the two tracked buckets have no dialer
		// representation; the ledger still remembers them so they are never
		// re-synced as leads.
		rec := recordFromSnapshot(snap)
		rec.Status = StatusExcluded
		rec.IsCustomer = true
		if prior != nil {
			rec.TargetID = prior.TargetID
		}
		if err := e.ledger.Upsert(ctx, rec); err != nil {
			return Result{Status: ActionFailed, Err: fmt.Sprintf("ledger write: %v", err)}
		}
		return Result{Status: ActionExcluded, TargetID: rec.TargetID}
	}

	// cold-lead or active-client: a dialer mutation is required, and the
	// dialer cannot queue a contact it cannot call.
	normalized, err := phone.Normalize(snap.Phone)
	if err != nil {
		return e.fail(ctx, sourceID, snap, err)
	}

	existing, err := e.dialer.FindContactByPhone(ctx, normalized)
	if err != nil {
		return e.fail(ctx, sourceID, snap, fmt.Errorf("find dialer contact: %w", err))
	}

	mirrored := DialerContact{
		FirstName: snap.FirstName,
		LastName:  snap.LastName,
		Phone:     normalized,
		Email:     snap.Email,
	}

	var targetID string
	created := false
	if existing == nil {
		out, err := e.dialer.CreateContact(ctx, mirrored)
		if err != nil {
			return e.fail(ctx, sourceID, snap, fmt.Errorf("create dialer contact: %w", err))
		}
		targetID = out.ID
		created = true
	} else {
		targetID = existing.ID
		if err := e.dialer.UpdateContact(ctx, targetID, mirrored); err != nil {
			return e.fail(ctx, sourceID, snap, fmt.Errorf("update dialer contact: %w", err))
		}
	}

	var bucketID string
	isCustomer := prior != nil && prior.IsCustomer

	switch outcome {
	case classify.ColdLead:
		bucketID = e.cfg.ColdBucketID
		if err := e.dialer.AddToBucket(ctx, bucketID, targetID); err != nil {
			return e.fail(ctx, sourceID, snap, fmt.Errorf("add to cold bucket: %w", err))
		}
		coldTagID, err := e.tagID(ctx, e.cfg.ColdTagName)
		if err != nil {
			return e.fail(ctx, sourceID, snap, err)
		}
		if err := e.dialer.AddTag(ctx, coldTagID, targetID); err != nil {
			return e.fail(ctx, sourceID, snap, fmt.Errorf("add cold tag: %w", err))
		}

	case classify.ActiveClient:
		bucketID = e.cfg.ActiveBucketID
		if err := e.dialer.AddToBucket(ctx, bucketID, targetID); err != nil {
			return e.fail(ctx, sourceID, snap, fmt.Errorf("add to active bucket: %w", err))
		}
		activeTagID, err := e.tagID(ctx, e.cfg.ActiveTagName)
		if err != nil {
			return e.fail(ctx, sourceID, snap, err)
		}
		if err := e.dialer.AddTag(ctx, activeTagID, targetID); err != nil {
			return e.fail(ctx, sourceID, snap, fmt.Errorf("add active tag: %w", err))
		}

		// Cleanup of the cold track is best effort: the new membership
		// already succeeded, so removal failures are logged and swallowed.
		if err := e.dialer.RemoveFromBucket(ctx, e.cfg.ColdBucketID, targetID); err != nil {
			logger.Warn("cold bucket removal failed", "source_id", sourceID, "target_id", targetID, "error", err)
		}
		if coldTagID, err := e.tagID(ctx, e.cfg.ColdTagName); err != nil {
			logger.Warn("cold tag lookup failed during cleanup", "source_id", sourceID, "error", err)
		} else if err := e.dialer.RemoveTag(ctx, coldTagID, targetID); err != nil {
			logger.Warn("cold tag removal failed", "source_id", sourceID, "target_id", targetID, "error", err)
		}

		isCustomer = true
	}

	now := time.Now().UTC()
	rec := recordFromSnapshot(snap)
	rec.TargetID = targetID
	rec.Phone = normalized
	rec.Status = StatusSynced
	rec.LastSyncedAt = &now
	rec.IsCustomer = isCustomer
	if err := e.ledger.Upsert(ctx, rec); err != nil {
		return Result{Status: ActionFailed, TargetID: targetID, BucketID: bucketID, Err: fmt.Sprintf("ledger write: %v", err)}
	}

	action := ActionUpdated
	if created && (prior == nil || prior.TargetID == "") {
		action = ActionSynced
	}

	resultTarget := targetID
	if prior != nil && prior.TargetID != "" {
		// target_id is write-once; the ledger keeps the original.
		resultTarget = prior.TargetID
	}

	logger.Info("reconciled contact",
		"source_id", sourceID,
		"target_id", resultTarget,
		"outcome", string(outcome),
		"action", string(action),
	)
	return Result{Status: action, TargetID: resultTarget, BucketID: bucketID}
}

// fail records a failed attempt in the ledger and returns the failed result.
// No dialer writes happen after a failure is declared.
func (e *Engine) fail(ctx context.Context, sourceID string, snap *ContactSnapshot, cause error) Result {
	logger.Error("reconcile failed", "source_id", sourceID, "error", cause)

	rec := &SyncRecord{SourceID: sourceID, Status: StatusFailed, Error: cause.Error()}
	if snap != nil {
		rec.FirstName = snap.FirstName
		rec.LastName = snap.LastName
		rec.Phone = snap.Phone
		rec.Email = snap.Email
	}
	if err := e.ledger.Upsert(ctx, rec); err != nil {
		logger.Error("ledger write failed after reconcile failure", "source_id", sourceID, "error", err)
	}

	return Result{Status: ActionFailed, Err: cause.Error()}
}

// tagID resolves a tag name to its dialer id, creating the tag on first use.
func (e *Engine) tagID(ctx context.Context, name string) (string, error) {
	e.tagMu.Lock()
	defer e.tagMu.Unlock()

	if id, ok := e.tagCache[name]; ok {
		return id, nil
	}
	id, err := e.dialer.FindOrCreateTag(ctx, name)
	if err != nil {
		return "", fmt.Errorf("resolve tag %q: %w", name, err)
	}
	e.tagCache[name] = id
	return id, nil
}

func recordFromSnapshot(snap *ContactSnapshot) *SyncRecord {
	return &SyncRecord{
		SourceID:  snap.ID,
		FirstName: snap.FirstName,
		LastName:  snap.LastName,
		Phone:     snap.Phone,
		Email:     snap.Email,
	}
}
