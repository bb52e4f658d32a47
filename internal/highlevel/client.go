// Package highlevel is the gateway to the source CRM platform.
// It covers the two capabilities reconciliation needs: fetch a contact by
// id, and enumerate contacts carrying a tag (paginated, for full resyncs).
package highlevel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ignite/dialer-sync/internal/pkg/httpretry"
)

// pageSize is the CRM's maximum contacts-per-page.
const pageSize = 100

// Client is the HighLevel API client
type Client struct {
	baseURL    string
	apiKey     string
	locationID string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a new HighLevel API client
func NewClient(config Config) *Client {
	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		locationID: config.LocationID,
		httpClient: httpretry.NewRetryClient(&http.Client{Timeout: timeout}, 3),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// doRequest performs an authenticated request to the HighLevel API
func (c *Client) doRequest(ctx context.Context, method, endpoint string) ([]byte, error) {
	reqURL := fmt.Sprintf("%s%s", c.baseURL, endpoint)

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Version", "2021-07-28")

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

// GetContact retrieves a single contact by id
func (c *Client) GetContact(ctx context.Context, contactID string) (*Contact, error) {
	endpoint := fmt.Sprintf("/contacts/%s", url.PathEscape(contactID))

	respBody, err := c.doRequest(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}

	var response contactResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse contact response: %w", err)
	}
	if response.Contact.ID == "" {
		return nil, fmt.Errorf("contact %s not found in response", contactID)
	}

	return &response.Contact, nil
}

// ListContactsByTag retrieves every contact carrying the given tag,
// following pagination until a short page is returned.
func (c *Client) ListContactsByTag(ctx context.Context, tag string) ([]Contact, error) {
	var all []Contact

	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("locationId", c.locationID)
		params.Set("tag", tag)
		params.Set("limit", strconv.Itoa(pageSize))
		params.Set("page", strconv.Itoa(page))

		respBody, err := c.doRequest(ctx, http.MethodGet, "/contacts/?"+params.Encode())
		if err != nil {
			return nil, fmt.Errorf("list contacts page %d: %w", page, err)
		}

		var response contactListResponse
		if err := json.Unmarshal(respBody, &response); err != nil {
			return nil, fmt.Errorf("failed to parse contacts page %d: %w", page, err)
		}

		all = append(all, response.Contacts...)

		if len(response.Contacts) < pageSize {
			return all, nil
		}
	}
}

// HealthCheck performs a simple API health check
func (c *Client) HealthCheck(ctx context.Context) error {
	params := url.Values{}
	params.Set("locationId", c.locationID)
	params.Set("limit", "1")
	_, err := c.doRequest(ctx, http.MethodGet, "/contacts/?"+params.Encode())
	return err
}
