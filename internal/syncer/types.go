package syncer

import (
	"context"
	"errors"
	"time"
)

// Status is the persisted state of a ledger record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusSynced   Status = "synced"
	StatusFailed   Status = "failed"
	StatusExcluded Status = "excluded"
)

// SyncRecord is the ledger row for one source contact: the last known
// mirrored state of that contact in the dialer.
//
// TargetID is written once, on the first successful create in the dialer,
// and never changed afterward; updates reuse it. IsCustomer is sticky —
// once true, future reconciliations short-circuit to excluded unless the
// contact is promoted back to active-client.
type SyncRecord struct {
	SourceID     string
	TargetID     string
	FirstName    string
	LastName     string
	Phone        string
	Email        string
	Status       Status
	LastSyncedAt *time.Time
	Error        string
	IsCustomer   bool
}

// ErrNotFound is returned when no ledger record exists for a source id.
var ErrNotFound = errors.New("sync record not found")

// Ledger is the durable per-contact sync state store.
type Ledger interface {
	Get(ctx context.Context, sourceID string) (*SyncRecord, error)
	// Upsert creates or updates the record for rec.SourceID. Implementations
	// must preserve an already-set target_id and never clear is_customer.
	Upsert(ctx context.Context, rec *SyncRecord) error
	// MarkCustomer forces is_customer=true, status=excluded on an existing
	// record. Returns ErrNotFound if no record exists.
	MarkCustomer(ctx context.Context, sourceID string) error
	StatusCounts(ctx context.Context) (map[Status]int, error)
}

// ContactSnapshot is a resolved source contact: the field snapshot plus the
// tag set that drives classification. Webhook deliveries may carry one
// inline, which saves the CRM fetch.
type ContactSnapshot struct {
	ID        string
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Tags      []string
}

// DialerContact is the mirrored contact shape pushed to the dialer.
type DialerContact struct {
	ID        string
	FirstName string
	LastName  string
	Phone     string
	Email     string
}

// SourceClient is the CRM capability the engine depends on.
type SourceClient interface {
	GetContact(ctx context.Context, id string) (*ContactSnapshot, error)
	ListContactsByTag(ctx context.Context, tag string) ([]ContactSnapshot, error)
}

// DialerClient is the dialer capability the engine depends on.
type DialerClient interface {
	FindContactByPhone(ctx context.Context, phone string) (*DialerContact, error)
	CreateContact(ctx context.Context, c DialerContact) (*DialerContact, error)
	UpdateContact(ctx context.Context, id string, c DialerContact) error
	AddToBucket(ctx context.Context, bucketID, contactID string) error
	RemoveFromBucket(ctx context.Context, bucketID, contactID string) error
	FindOrCreateTag(ctx context.Context, name string) (string, error)
	AddTag(ctx context.Context, tagID, contactID string) error
	RemoveTag(ctx context.Context, tagID, contactID string) error
}

// Action is the outcome of a single reconciliation.
type Action string

const (
	// ActionSynced is the first-ever successful create of the dialer contact.
	ActionSynced Action = "synced"
	// ActionUpdated is any subsequent successful write for an existing contact.
	ActionUpdated Action = "updated"
	ActionExcluded Action = "excluded"
	ActionFailed   Action = "failed"
)

// Result is the contract of one reconcile call.
type Result struct {
	Status   Action
	TargetID string
	BucketID string
	Err      string
}

// ResyncSummary aggregates a full resync run.
type ResyncSummary struct {
	RunID     string   `json:"run_id"`
	Processed int      `json:"processed"`
	Synced    int      `json:"synced"`
	Updated   int      `json:"updated"`
	Excluded  int      `json:"excluded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}
