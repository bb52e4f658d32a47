// Package postgres holds the PostgreSQL-backed repositories.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/dialer-sync/internal/syncer"
)

// LedgerRepo implements syncer.Ledger against PostgreSQL.
type LedgerRepo struct{ db *sql.DB }

// NewLedgerRepo creates a Postgres-backed sync ledger.
func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

func (r *LedgerRepo) Get(ctx context.Context, sourceID string) (*syncer.SyncRecord, error) {
	var (
		rec          syncer.SyncRecord
		targetID     sql.NullString
		firstName    sql.NullString
		lastName     sql.NullString
		phone        sql.NullString
		email        sql.NullString
		lastSyncedAt sql.NullTime
		syncError    sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT source_id, target_id, first_name, last_name, phone, email,
		       status, last_synced_at, error, is_customer
		FROM sync_ledger
		WHERE source_id = $1
	`, sourceID).Scan(
		&rec.SourceID, &targetID, &firstName, &lastName, &phone, &email,
		&rec.Status, &lastSyncedAt, &syncError, &rec.IsCustomer,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, syncer.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sync record: %w", err)
	}

	rec.TargetID = targetID.String
	rec.FirstName = firstName.String
	rec.LastName = lastName.String
	rec.Phone = phone.String
	rec.Email = email.String
	rec.Error = syncError.String
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time
		rec.LastSyncedAt = &t
	}
	return &rec, nil
}

// Upsert writes the record keyed by source_id. target_id is write-once and
// is_customer never flips back to false, both enforced in the conflict clause
// so concurrent writers cannot regress either field.
func (r *LedgerRepo) Upsert(ctx context.Context, rec *syncer.SyncRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_ledger (source_id, target_id, first_name, last_name, phone, email,
		                         status, last_synced_at, error, is_customer, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, NOW(), NOW())
		ON CONFLICT (source_id) DO UPDATE SET
			target_id = COALESCE(sync_ledger.target_id, EXCLUDED.target_id),
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			status = EXCLUDED.status,
			last_synced_at = COALESCE(EXCLUDED.last_synced_at, sync_ledger.last_synced_at),
			error = EXCLUDED.error,
			is_customer = sync_ledger.is_customer OR EXCLUDED.is_customer,
			updated_at = NOW()
	`, rec.SourceID, rec.TargetID, rec.FirstName, rec.LastName, rec.Phone, rec.Email,
		rec.Status, rec.LastSyncedAt, rec.Error, rec.IsCustomer)
	if err != nil {
		return fmt.Errorf("upsert sync record: %w", err)
	}
	return nil
}

func (r *LedgerRepo) MarkCustomer(ctx context.Context, sourceID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_ledger
		SET is_customer = true, status = $2, updated_at = NOW()
		WHERE source_id = $1
	`, sourceID, syncer.StatusExcluded)
	if err != nil {
		return fmt.Errorf("mark customer: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return syncer.ErrNotFound
	}
	return nil
}

func (r *LedgerRepo) StatusCounts(ctx context.Context) (map[syncer.Status]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM sync_ledger GROUP BY status`,
	)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[syncer.Status]int)
	for rows.Next() {
		var (
			status syncer.Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
