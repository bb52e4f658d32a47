package logger

import "testing"

func TestRedactEmail(t *testing.T) {
	tests := []struct{ in, want string }{
		{"john.doe@example.com", "jo***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"not-an-email", "***@***"},
	}
	for _, tt := range tests {
		if got := RedactEmail(tt.in); got != tt.want {
			t.Errorf("RedactEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactPhone(t *testing.T) {
	tests := []struct{ in, want string }{
		{"+15551234567", "***4567"},
		{"(555) 123-4567", "***4567"},
		{"123", "***"},
		{"", "***"},
	}
	for _, tt := range tests {
		if got := RedactPhone(tt.in); got != tt.want {
			t.Errorf("RedactPhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
