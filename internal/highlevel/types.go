package highlevel

// Config holds connection settings for the source CRM API.
type Config struct {
	BaseURL        string
	APIKey         string
	LocationID     string
	TimeoutSeconds int
}

// Contact is a CRM contact as returned by the contacts API.
// Tags carry the classification signal; everything else is the field
// snapshot mirrored into the dialer.
type Contact struct {
	ID        string   `json:"id"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Phone     string   `json:"phone"`
	Email     string   `json:"email"`
	Tags      []string `json:"tags"`
}

// contactResponse wraps a single-contact fetch.
type contactResponse struct {
	Contact Contact `json:"contact"`
}

// contactListResponse wraps a paginated contact listing.
type contactListResponse struct {
	Contacts []Contact `json:"contacts"`
	Meta     struct {
		Total       int `json:"total"`
		CurrentPage int `json:"currentPage"`
		NextPage    int `json:"nextPage"`
	} `json:"meta"`
}
