package calltools

// Config holds connection settings for the dialer API.
type Config struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// Contact is a dialer contact. The dialer has no external-id field, so the
// phone number is the only key that correlates back to the CRM.
type Contact struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone_number"`
	Email     string `json:"email,omitempty"`
}

// Bucket is a named collection of contacts used for campaign targeting.
type Bucket struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Tag is a named marker. Structurally a bucket: the API models tags as
// addressable collections of contact ids, not as contact attributes.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// searchResponse wraps a contact search result page.
type searchResponse struct {
	Count   int       `json:"count"`
	Results []Contact `json:"results"`
}

// bucketListResponse wraps a bucket listing.
type bucketListResponse struct {
	Count   int      `json:"count"`
	Results []Bucket `json:"results"`
}

// tagListResponse wraps a tag listing.
type tagListResponse struct {
	Count   int   `json:"count"`
	Results []Tag `json:"results"`
}

// memberRequest adds a contact to a bucket or tag collection.
type memberRequest struct {
	ContactID string `json:"contact_id"`
}

// createTagRequest creates a named tag.
type createTagRequest struct {
	Name string `json:"name"`
}
