// Package calltools is the gateway to the target dialer platform.
//
// Bucket membership and tag membership are both "named collection, add or
// remove a member by contact id" operations. Tags have to be resolved or
// created before first use: the remote API has no atomic "add named tag to
// contact" endpoint, only tag collections addressable by id.
package calltools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ignite/dialer-sync/internal/pkg/httpretry"
)

// Client is the CallTools API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a new CallTools API client
func NewClient(config Config) *Client {
	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: timeout,
		}, 3),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// doRequest performs an authenticated request to the CallTools API
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	reqURL := fmt.Sprintf("%s%s", c.baseURL, endpoint)

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// ========== Contact Methods ==========

// CreateContact creates a dialer contact and returns it with its assigned id.
func (c *Client) CreateContact(ctx context.Context, contact Contact) (*Contact, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/contacts/", contact)
	if err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}

	var created Contact
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("failed to parse created contact: %w", err)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("create contact: no id in response")
	}

	return &created, nil
}

// UpdateContact updates an existing dialer contact's fields in place.
func (c *Client) UpdateContact(ctx context.Context, contactID string, contact Contact) error {
	endpoint := fmt.Sprintf("/contacts/%s/", url.PathEscape(contactID))
	if _, err := c.doRequest(ctx, http.MethodPatch, endpoint, contact); err != nil {
		return fmt.Errorf("update contact %s: %w", contactID, err)
	}
	return nil
}

// FindContactByPhone searches for a contact by normalized phone number.
// Returns (nil, nil) when no contact matches; the phone number is the only
// stable cross-system correlation key, so callers pass E.164 form only.
func (c *Client) FindContactByPhone(ctx context.Context, phone string) (*Contact, error) {
	params := url.Values{}
	params.Set("phone_number", phone)

	respBody, err := c.doRequest(ctx, http.MethodGet, "/contacts/?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("find contact by phone: %w", err)
	}

	var response searchResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse contact search: %w", err)
	}

	if len(response.Results) == 0 {
		return nil, nil
	}
	return &response.Results[0], nil
}

// ========== Bucket Methods ==========

// ListBuckets retrieves all buckets.
func (c *Client) ListBuckets(ctx context.Context) ([]Bucket, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/buckets/", nil)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	var response bucketListResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse buckets: %w", err)
	}
	return response.Results, nil
}

// CreateBucket creates a named bucket and returns it with its assigned id.
func (c *Client) CreateBucket(ctx context.Context, name string) (*Bucket, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/buckets/", map[string]string{"name": name})
	if err != nil {
		return nil, fmt.Errorf("create bucket %q: %w", name, err)
	}

	var bucket Bucket
	if err := json.Unmarshal(respBody, &bucket); err != nil {
		return nil, fmt.Errorf("failed to parse created bucket: %w", err)
	}
	return &bucket, nil
}

// AddToBucket adds a contact to a bucket. Adding a contact that is already a
// member is a no-op on the remote side, which keeps reconciliation idempotent.
func (c *Client) AddToBucket(ctx context.Context, bucketID, contactID string) error {
	endpoint := fmt.Sprintf("/buckets/%s/contacts/", url.PathEscape(bucketID))
	if _, err := c.doRequest(ctx, http.MethodPost, endpoint, memberRequest{ContactID: contactID}); err != nil {
		return fmt.Errorf("add contact %s to bucket %s: %w", contactID, bucketID, err)
	}
	return nil
}

// RemoveFromBucket removes a contact from a bucket.
func (c *Client) RemoveFromBucket(ctx context.Context, bucketID, contactID string) error {
	endpoint := fmt.Sprintf("/buckets/%s/contacts/%s/", url.PathEscape(bucketID), url.PathEscape(contactID))
	if _, err := c.doRequest(ctx, http.MethodDelete, endpoint, nil); err != nil {
		return fmt.Errorf("remove contact %s from bucket %s: %w", contactID, bucketID, err)
	}
	return nil
}

// ========== Tag Methods ==========

// FindOrCreateTag resolves a tag name to its id, creating the tag if it does
// not exist. Lookup is by exact name (case-insensitive).
func (c *Client) FindOrCreateTag(ctx context.Context, name string) (string, error) {
	params := url.Values{}
	params.Set("name", name)

	respBody, err := c.doRequest(ctx, http.MethodGet, "/tags/?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("look up tag %q: %w", name, err)
	}

	var response tagListResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to parse tags: %w", err)
	}

	// The name filter can match on substring; require an exact match.
	for _, tag := range response.Results {
		if strings.EqualFold(tag.Name, name) {
			return tag.ID, nil
		}
	}

	created, err := c.doRequest(ctx, http.MethodPost, "/tags/", createTagRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("create tag %q: %w", name, err)
	}

	var tag Tag
	if err := json.Unmarshal(created, &tag); err != nil {
		return "", fmt.Errorf("failed to parse created tag: %w", err)
	}
	if tag.ID == "" {
		return "", fmt.Errorf("create tag %q: no id in response", name)
	}
	return tag.ID, nil
}

// AddTag adds a contact to a tag collection.
func (c *Client) AddTag(ctx context.Context, tagID, contactID string) error {
	endpoint := fmt.Sprintf("/tags/%s/contacts/", url.PathEscape(tagID))
	if _, err := c.doRequest(ctx, http.MethodPost, endpoint, memberRequest{ContactID: contactID}); err != nil {
		return fmt.Errorf("add tag %s to contact %s: %w", tagID, contactID, err)
	}
	return nil
}

// RemoveTag removes a contact from a tag collection.
func (c *Client) RemoveTag(ctx context.Context, tagID, contactID string) error {
	endpoint := fmt.Sprintf("/tags/%s/contacts/%s/", url.PathEscape(tagID), url.PathEscape(contactID))
	if _, err := c.doRequest(ctx, http.MethodDelete, endpoint, nil); err != nil {
		return fmt.Errorf("remove tag %s from contact %s: %w", tagID, contactID, err)
	}
	return nil
}

// ========== Health Check ==========

// HealthCheck performs a simple API health check
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.ListBuckets(ctx)
	return err
}
