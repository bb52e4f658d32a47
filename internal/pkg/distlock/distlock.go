// Package distlock provides the per-contact reconcile lock.
//
// Two rapid-fire tag-change webhooks for the same contact may be processed
// concurrently by the host runtime; the lock serializes reconciliations of a
// single source contact id. The reconciler treats lock acquisition as best
// effort: if the lock cannot be obtained, it proceeds last-writer-wins rather
// than rejecting the sender's delivery.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Factory creates per-contact locks using the best available backend:
// Redis when configured (preferred for cross-host locking), otherwise
// PostgreSQL advisory locks on the ledger database.
type Factory struct {
	redisClient *redis.Client
	db          *sql.DB
	ttl         time.Duration
}

// NewFactory creates a lock factory. redisClient may be nil, in which case
// all locks are Postgres advisory locks. ttl only applies to Redis locks
// (advisory locks are released with the session).
func NewFactory(redisClient *redis.Client, db *sql.DB, ttl time.Duration) *Factory {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Factory{redisClient: redisClient, db: db, ttl: ttl}
}

// ForContact returns a lock scoped to one source contact id.
func (f *Factory) ForContact(sourceID string) DistLock {
	key := "reconcile:" + sourceID
	if f.redisClient != nil {
		return NewRedisLock(f.redisClient, key, f.ttl)
	}
	return NewPGAdvisoryLock(f.db, key)
}

// =============================================================================
// PostgreSQL Advisory Lock (fallback when Redis is unavailable)
// =============================================================================
// Uses pg_try_advisory_lock / pg_advisory_unlock which are session-scoped.
// Acquire pins a dedicated connection for the lock's lifetime: running the
// unlock through the pool would hit an arbitrary session that holds no lock,
// leaking the advisory lock until the holding connection recycles. The lock
// is automatically released if the pinned connection drops, providing
// crash-safety similar to Redis TTL expiration.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to acquire the advisory lock. Returns true if successful.
// Uses pg_try_advisory_lock which returns immediately (non-blocking). On
// success the checked-out connection stays pinned until Release.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Release unlocks on the session that acquired the lock and returns the
// pinned connection to the pool. Calling Release without a held lock is a
// no-op.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	closeErr := l.conn.Close()
	l.conn = nil
	if err != nil {
		return err
	}
	return closeErr
}
