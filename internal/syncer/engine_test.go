package syncer

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/ignite/dialer-sync/internal/classify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== fakes =====

type fakeLedger struct {
	mu      sync.Mutex
	records map[string]*SyncRecord
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[string]*SyncRecord)}
}

func (l *fakeLedger) Get(ctx context.Context, sourceID string) (*SyncRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[sourceID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// Upsert mirrors the SQL semantics: target_id is write-once and is_customer
// never flips back to false.
func (l *fakeLedger) Upsert(ctx context.Context, rec *SyncRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *rec
	if existing, ok := l.records[rec.SourceID]; ok {
		if existing.TargetID != "" {
			cp.TargetID = existing.TargetID
		}
		cp.IsCustomer = cp.IsCustomer || existing.IsCustomer
	}
	l.records[rec.SourceID] = &cp
	return nil
}

func (l *fakeLedger) MarkCustomer(ctx context.Context, sourceID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[sourceID]
	if !ok {
		return ErrNotFound
	}
	rec.IsCustomer = true
	rec.Status = StatusExcluded
	return nil
}

func (l *fakeLedger) StatusCounts(ctx context.Context) (map[Status]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[Status]int)
	for _, rec := range l.records {
		counts[rec.Status]++
	}
	return counts, nil
}

type fakeSource struct {
	contacts map[string]ContactSnapshot
	listed   []ContactSnapshot
	fetchErr error
}

func (s *fakeSource) GetContact(ctx context.Context, id string) (*ContactSnapshot, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	c, ok := s.contacts[id]
	if !ok {
		return nil, fmt.Errorf("contact %s not found", id)
	}
	return &c, nil
}

func (s *fakeSource) ListContactsByTag(ctx context.Context, tag string) ([]ContactSnapshot, error) {
	return s.listed, nil
}

type fakeDialer struct {
	mu         sync.Mutex
	nextID     int
	byPhone    map[string]DialerContact
	tags       map[string]string
	nextTagID  int
	calls      []string
	failRemove bool
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		byPhone: make(map[string]DialerContact),
		tags:    make(map[string]string),
	}
}

func (d *fakeDialer) record(call string) {
	d.calls = append(d.calls, call)
}

func (d *fakeDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *fakeDialer) has(call string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (d *fakeDialer) FindContactByPhone(ctx context.Context, phone string) (*DialerContact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("FindContactByPhone:" + phone)
	if c, ok := d.byPhone[phone]; ok {
		cp := c
		return &cp, nil
	}
	return nil, nil
}

func (d *fakeDialer) CreateContact(ctx context.Context, c DialerContact) (*DialerContact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	c.ID = "t" + strconv.Itoa(d.nextID)
	d.byPhone[c.Phone] = c
	d.record("CreateContact:" + c.ID)
	return &c, nil
}

func (d *fakeDialer) UpdateContact(ctx context.Context, id string, c DialerContact) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c.ID = id
	d.byPhone[c.Phone] = c
	d.record("UpdateContact:" + id)
	return nil
}

func (d *fakeDialer) AddToBucket(ctx context.Context, bucketID, contactID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("AddToBucket:" + bucketID)
	return nil
}

func (d *fakeDialer) RemoveFromBucket(ctx context.Context, bucketID, contactID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("RemoveFromBucket:" + bucketID)
	if d.failRemove {
		return fmt.Errorf("remove failed")
	}
	return nil
}

func (d *fakeDialer) FindOrCreateTag(ctx context.Context, name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("FindOrCreateTag:" + name)
	if id, ok := d.tags[name]; ok {
		return id, nil
	}
	d.nextTagID++
	id := "tag" + strconv.Itoa(d.nextTagID)
	d.tags[name] = id
	return id, nil
}

func (d *fakeDialer) AddTag(ctx context.Context, tagID, contactID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("AddTag:" + tagID)
	return nil
}

func (d *fakeDialer) RemoveTag(ctx context.Context, tagID, contactID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("RemoveTag:" + tagID)
	if d.failRemove {
		return fmt.Errorf("remove failed")
	}
	return nil
}

// ===== setup =====

func testEngine(source SourceClient, dialer DialerClient, ledger Ledger) *Engine {
	classifier := classify.New(classify.Config{
		ActiveLabels:       []string{"ACA Active 2025"},
		CustomerSubstrings: []string{"customer", "won"},
		ColdSubstrings:     []string{"cold lead", "prospect"},
	})
	return NewEngine(source, dialer, ledger, classifier, nil, Config{
		ColdBucketID:   "b-cold",
		ActiveBucketID: "b-active",
		ColdTagName:    "cold lead",
		ActiveTagName:  "active client",
		ResyncTag:      "cold lead",
		WorkerWidth:    2,
	})
}

func coldSnapshot() *ContactSnapshot {
	return &ContactSnapshot{
		ID:        "c1",
		FirstName: "Jane",
		LastName:  "Smith",
		Phone:     "+15551234567",
		Tags:      []string{"cold lead"},
	}
}

// ===== tests =====

func TestReconcileColdLeadCreates(t *testing.T) {
	ledger := newFakeLedger()
	dialer := newFakeDialer()
	engine := testEngine(&fakeSource{}, dialer, ledger)

	res := engine.Reconcile(context.Background(), "c1", coldSnapshot())

	assert.Equal(t, ActionSynced, res.Status)
	assert.Equal(t, "t1", res.TargetID)
	assert.Equal(t, "b-cold", res.BucketID)
	assert.Empty(t, res.Err)

	assert.True(t, dialer.has("AddToBucket:b-cold"))
	assert.True(t, dialer.has("AddTag:tag1"))

	rec, err := ledger.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, StatusSynced, rec.Status)
	assert.Equal(t, "t1", rec.TargetID)
	assert.NotNil(t, rec.LastSyncedAt)
	assert.Empty(t, rec.Error)
	assert.False(t, rec.IsCustomer)
}

func TestReconcileIdempotent(t *testing.T) {
	ledger := newFakeLedger()
	dialer := newFakeDialer()
	engine := testEngine(&fakeSource{}, dialer, ledger)

	first := engine.Reconcile(context.Background(), "c1", coldSnapshot())
	second := engine.Reconcile(context.Background(), "c1", coldSnapshot())

	assert.Equal(t, ActionSynced, first.Status)
	assert.Equal(t, ActionUpdated, second.Status)
	assert.Equal(t, first.TargetID, second.TargetID)

	// Exactly one dialer contact exists after repeated deliveries
	assert.Len(t, dialer.byPhone, 1)
	assert.False(t, dialer.has("CreateContact:t2"))

	rec, err := ledger.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, first.TargetID, rec.TargetID)
}

func TestReconcileColdThenActive(t *testing.T) {
	ledger := newFakeLedger()
	dialer := newFakeDialer()
	engine := testEngine(&fakeSource{}, dialer, ledger)

	res := engine.Reconcile(context.Background(), "c1", coldSnapshot())
	require.Equal(t, ActionSynced, res.Status)

	active := coldSnapshot()
	active.Tags = []string{"ACA Active 2025"}
	res = engine.Reconcile(context.Background(), "c1", active)

	assert.Equal(t, ActionUpdated, res.Status)
	assert.Equal(t, "t1", res.TargetID, "same dialer contact reused")
	assert.Equal(t, "b-active", res.BucketID)

	assert.True(t, dialer.has("AddToBucket:b-active"))
	// Cleanup of the cold track was attempted
	assert.True(t, dialer.has("RemoveFromBucket:b-cold"))
	assert.True(t, dialer.has("RemoveTag:tag1"))

	rec, err := ledger.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, rec.IsCustomer)
	assert.Equal(t, StatusSynced, rec.Status)
}

func TestReconcileActiveSwallowsRemovalFailures(t *testing.T) {
	ledger := newFakeLedger()
	dialer := newFakeDialer()
	dialer.failRemove = true
	engine := testEngine(&fakeSource{}, dialer, ledger)

	active := coldSnapshot()
	active.Tags = []string{"ACA Active 2025", "cold lead"}
	res := engine.Reconcile(context.Background(), "c1", active)

	// Removal failures never fail the reconcile
	assert.Equal(t, ActionSynced, res.Status)
	assert.True(t, dialer.has("RemoveFromBucket:b-cold"))

	rec, err := ledger.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, StatusSynced, rec.Status)
	assert.True(t, rec.IsCustomer)
}

func TestReconcileMissingPhone(t *testing.T) {
	ledger := newFakeLedger()
	dialer := newFakeDialer()
	engine := testEngine(&fakeSource{}, dialer, ledger)

	snap := coldSnapshot()
	snap.Phone = ""
	res := engine.Reconcile(context.Background(), "c1", snap)

	assert.Equal(t, ActionFailed, res.Status)
	assert.Contains(t, res.Err, "phone")
	assert.Zero(t, dialer.callCount(), "no dialer writes on missing phone")

	rec, err := ledger.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "phone")
}

func TestReconcileGenericCustomer(t *testing.T) {
	ledger := newFakeLedger()
	dialer := newFakeDialer()
	engine := testEngine(&fakeSource{}, dialer, ledger)

	snap := coldSnapshot()
	snap.Tags = []string{"customer"}
	res := engine.Reconcile(context.Background(), "c1", snap)

	assert.Equal(t, ActionExcluded, res.Status)
	assert.Zero(t, dialer.callCount(), "no bucket/tag writes for generic customers")

	rec, err := ledger.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, rec.IsCustomer)
	assert.Equal(t, StatusExcluded, rec.Status)
}

func TestReconcileExcludedWithoutPriorRecord(t *testing.T) {
	ledger := newFakeLedger()
	dialer := newFakeDialer()
	engine := testEngine(&fakeSource{}, dialer, ledger)

	snap := coldSnapshot()
	snap.Tags = []string{"newsletter"}
	res := engine.Reconcile(context.Background(), "c1", snap)

	assert.Equal(t, ActionExcluded, res.Status)
	assert.Zero(t, dialer.callCount())

	_, err := ledger.Get(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrNotFound, "no ledger row is created for a no-op exclusion")
}

func TestReconcileStickyCustomerShortCircuits(t *testing.T) {
	ledger := newFakeLedger()
	dialer := newFakeDialer()
	engine := testEngine(&fakeSource{}, dialer, ledger)

	// Establish a customer record first
	won := coldSnapshot()
	won.Tags = []string{"closed won customer"}
	require.Equal(t, ActionExcluded, engine.Reconcile(context.Background(), "c1", won).Status)
	dialer.calls = nil

	// Stale cold tag arrives later: still excluded, no dialer writes
	res := engine.Reconcile(context.Background(), "c1", coldSnapshot())
	assert.Equal(t, ActionExcluded, res.Status)
	assert.Zero(t, dialer.callCount())

	// But an active-client label promotes the contact back
	active := coldSnapshot()
	active.Tags = []string{"ACA Active 2025"}
	res = engine.Reconcile(context.Background(), "c1", active)
	assert.Equal(t, ActionSynced, res.Status)
	assert.True(t, dialer.has("AddToBucket:b-active"))
}

func TestReconcileFetchesWhenNoSnapshot(t *testing.T) {
	ledger := newFakeLedger()
	dialer := newFakeDialer()
	source := &fakeSource{contacts: map[string]ContactSnapshot{
		"c1": *coldSnapshot(),
	}}
	engine := testEngine(source, dialer, ledger)

	res := engine.Reconcile(context.Background(), "c1", nil)
	assert.Equal(t, ActionSynced, res.Status)
}

func TestReconcileResolveFailure(t *testing.T) {
	ledger := newFakeLedger()
	dialer := newFakeDialer()
	source := &fakeSource{fetchErr: fmt.Errorf("upstream 503")}
	engine := testEngine(source, dialer, ledger)

	res := engine.Reconcile(context.Background(), "c1", nil)

	assert.Equal(t, ActionFailed, res.Status)
	assert.Zero(t, dialer.callCount())

	rec, err := ledger.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "503")
}

func TestResyncAll(t *testing.T) {
	ledger := newFakeLedger()
	dialer := newFakeDialer()
	noPhone := ContactSnapshot{ID: "c3", Tags: []string{"cold lead"}}
	source := &fakeSource{listed: []ContactSnapshot{
		{ID: "c1", Phone: "+15551110001", Tags: []string{"cold lead"}},
		{ID: "c2", Phone: "+15551110002", Tags: []string{"cold lead"}},
		noPhone,
	}}
	engine := testEngine(source, dialer, ledger)

	summary := engine.ResyncAll(context.Background())

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 2, summary.Synced)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "c3")
}
