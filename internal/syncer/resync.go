package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/dialer-sync/internal/pkg/logger"
)

// ResyncAll reconciles every CRM contact carrying the resync tag. Distinct
// contacts are reconciled in parallel across a small fixed worker width with
// a short pause between chunks, purely to respect the remote rate limits; no
// shared mutable state crosses the chunk boundary.
func (e *Engine) ResyncAll(ctx context.Context) ResyncSummary {
	summary := ResyncSummary{RunID: uuid.NewString(), Errors: []string{}}

	logger.Info("full resync starting", "run_id", summary.RunID, "tag", e.cfg.ResyncTag)

	contacts, err := e.source.ListContactsByTag(ctx, e.cfg.ResyncTag)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("list contacts: %v", err))
		logger.Error("full resync aborted", "run_id", summary.RunID, "error", err)
		return summary
	}

	width := e.cfg.WorkerWidth
	if width <= 0 {
		width = 4
	}

	for start := 0; start < len(contacts); start += width {
		end := start + width
		if end > len(contacts) {
			end = len(contacts)
		}
		chunk := contacts[start:end]

		results := make([]Result, len(chunk))
		var wg sync.WaitGroup
		for i := range chunk {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				snap := chunk[i]
				results[i] = e.Reconcile(ctx, snap.ID, &snap)
			}(i)
		}
		wg.Wait()

		for i, res := range results {
			summary.Processed++
			switch res.Status {
			case ActionSynced:
				summary.Synced++
			case ActionUpdated:
				summary.Updated++
			case ActionExcluded:
				summary.Excluded++
			case ActionFailed:
				summary.Failed++
			}
			if res.Err != "" {
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", chunk[i].ID, res.Err))
			}
		}

		if end < len(contacts) && e.cfg.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				summary.Errors = append(summary.Errors, fmt.Sprintf("resync canceled: %v", ctx.Err()))
				return summary
			case <-time.After(e.cfg.ChunkDelay):
			}
		}
	}

	logger.Info("full resync complete",
		"run_id", summary.RunID,
		"processed", summary.Processed,
		"synced", summary.Synced,
		"updated", summary.Updated,
		"excluded", summary.Excluded,
		"failed", summary.Failed,
	)
	return summary
}

// StartScheduled runs ResyncAll on a fixed interval until ctx is canceled.
// The scheduled pass is the at-least-once fallback: it catches any webhook
// delivery the sender never retried.
func (e *Engine) StartScheduled(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	logger.Info("scheduled resync enabled", "interval", interval.String())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.ResyncAll(ctx)
		}
	}
}
