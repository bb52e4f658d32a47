package highlevel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetContact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify auth headers
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Missing or wrong Authorization header: %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Version") == "" {
			t.Error("Missing Version header")
		}
		if r.URL.Path != "/contacts/c1" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}

		json.NewEncoder(w).Encode(contactResponse{
			Contact: Contact{
				ID:        "c1",
				FirstName: "Jane",
				LastName:  "Smith",
				Phone:     "+15551234567",
				Email:     "jane@example.com",
				Tags:      []string{"cold lead"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", LocationID: "loc1"})

	contact, err := client.GetContact(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetContact failed: %v", err)
	}

	if contact.FirstName != "Jane" {
		t.Errorf("Expected first name Jane, got %s", contact.FirstName)
	}
	if len(contact.Tags) != 1 || contact.Tags[0] != "cold lead" {
		t.Errorf("Unexpected tags: %v", contact.Tags)
	}
}

func TestGetContactUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"contact not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})

	_, err := client.GetContact(context.Background(), "missing")
	if err == nil {
		t.Fatal("Expected error for 404 response")
	}
}

func TestListContactsByTagPaginates(t *testing.T) {
	pages := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		if r.URL.Query().Get("tag") != "cold lead" {
			t.Errorf("Missing tag filter, got query %s", r.URL.RawQuery)
		}
		if r.URL.Query().Get("locationId") != "loc1" {
			t.Errorf("Missing locationId, got query %s", r.URL.RawQuery)
		}

		var resp contactListResponse
		if r.URL.Query().Get("page") == "1" {
			// Full first page
			for i := 0; i < pageSize; i++ {
				resp.Contacts = append(resp.Contacts, Contact{ID: "c" + r.URL.Query().Get("page")})
			}
		} else {
			// Short final page
			resp.Contacts = []Contact{{ID: "last"}}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", LocationID: "loc1"})

	contacts, err := client.ListContactsByTag(context.Background(), "cold lead")
	if err != nil {
		t.Fatalf("ListContactsByTag failed: %v", err)
	}

	if pages != 2 {
		t.Errorf("Expected 2 pages fetched, got %d", pages)
	}
	if len(contacts) != pageSize+1 {
		t.Errorf("Expected %d contacts, got %d", pageSize+1, len(contacts))
	}
}
