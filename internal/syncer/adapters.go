package syncer

import (
	"context"

	"github.com/ignite/dialer-sync/internal/calltools"
	"github.com/ignite/dialer-sync/internal/highlevel"
)

// highLevelSource adapts the HighLevel client to the engine's SourceClient.
type highLevelSource struct {
	client *highlevel.Client
}

// NewHighLevelSource wraps a HighLevel client as a SourceClient.
func NewHighLevelSource(client *highlevel.Client) SourceClient {
	return &highLevelSource{client: client}
}

func (s *highLevelSource) GetContact(ctx context.Context, id string) (*ContactSnapshot, error) {
	contact, err := s.client.GetContact(ctx, id)
	if err != nil {
		return nil, err
	}
	return snapshotFromContact(*contact), nil
}

func (s *highLevelSource) ListContactsByTag(ctx context.Context, tag string) ([]ContactSnapshot, error) {
	contacts, err := s.client.ListContactsByTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	out := make([]ContactSnapshot, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, *snapshotFromContact(c))
	}
	return out, nil
}

func snapshotFromContact(c highlevel.Contact) *ContactSnapshot {
	return &ContactSnapshot{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Phone:     c.Phone,
		Email:     c.Email,
		Tags:      c.Tags,
	}
}

// callToolsDialer adapts the CallTools client to the engine's DialerClient.
type callToolsDialer struct {
	client *calltools.Client
}

// NewCallToolsDialer wraps a CallTools client as a DialerClient.
func NewCallToolsDialer(client *calltools.Client) DialerClient {
	return &callToolsDialer{client: client}
}

func (d *callToolsDialer) FindContactByPhone(ctx context.Context, phone string) (*DialerContact, error) {
	contact, err := d.client.FindContactByPhone(ctx, phone)
	if err != nil || contact == nil {
		return nil, err
	}
	return dialerFromContact(*contact), nil
}

func (d *callToolsDialer) CreateContact(ctx context.Context, c DialerContact) (*DialerContact, error) {
	created, err := d.client.CreateContact(ctx, contactFromDialer(c))
	if err != nil {
		return nil, err
	}
	return dialerFromContact(*created), nil
}

func (d *callToolsDialer) UpdateContact(ctx context.Context, id string, c DialerContact) error {
	return d.client.UpdateContact(ctx, id, contactFromDialer(c))
}

func (d *callToolsDialer) AddToBucket(ctx context.Context, bucketID, contactID string) error {
	return d.client.AddToBucket(ctx, bucketID, contactID)
}

func (d *callToolsDialer) RemoveFromBucket(ctx context.Context, bucketID, contactID string) error {
	return d.client.RemoveFromBucket(ctx, bucketID, contactID)
}

func (d *callToolsDialer) FindOrCreateTag(ctx context.Context, name string) (string, error) {
	return d.client.FindOrCreateTag(ctx, name)
}

func (d *callToolsDialer) AddTag(ctx context.Context, tagID, contactID string) error {
	return d.client.AddTag(ctx, tagID, contactID)
}

func (d *callToolsDialer) RemoveTag(ctx context.Context, tagID, contactID string) error {
	return d.client.RemoveTag(ctx, tagID, contactID)
}

func dialerFromContact(c calltools.Contact) *DialerContact {
	return &DialerContact{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Phone:     c.Phone,
		Email:     c.Email,
	}
}

func contactFromDialer(c DialerContact) calltools.Contact {
	return calltools.Contact{
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Phone:     c.Phone,
		Email:     c.Email,
	}
}
