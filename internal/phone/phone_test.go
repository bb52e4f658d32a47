package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"ten digits", "5551234567", "+15551234567", false},
		{"formatted nanp", "(555) 123-4567", "+15551234567", false},
		{"dotted nanp", "555.123.4567", "+15551234567", false},
		{"eleven with country code", "15551234567", "+15551234567", false},
		{"already e164", "+15551234567", "+15551234567", false},
		{"e164 with punctuation", "+1 (555) 123-4567", "+15551234567", false},
		{"international e164", "+447911123456", "+447911123456", false},
		{"surrounding whitespace", "  5551234567  ", "+15551234567", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"too short", "12345", "", true},
		{"eleven not nanp", "25551234567", "", true},
		{"letters only", "call me", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Two representations of the same number must normalize identically,
// otherwise repeated deliveries would create duplicate dialer contacts.
func TestNormalizeStableAcrossFormats(t *testing.T) {
	forms := []string{"5551234567", "(555) 123-4567", "1-555-123-4567", "+15551234567"}
	for _, f := range forms {
		got, err := Normalize(f)
		assert.NoError(t, err)
		assert.Equal(t, "+15551234567", got, "form %q", f)
	}
}
