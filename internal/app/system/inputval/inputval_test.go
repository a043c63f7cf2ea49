package inputval

import "testing"

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		// Valid emails
		{"user@example.com", true},
		{"user.name@example.com", true},
		{"user+tag@example.com", true},
		{"user@subdomain.example.com", true},
		{"a@b.co", true},
		{"  padded@example.com  ", true},
		{"NEW@X.COM", true},

		// Invalid emails - empty/whitespace
		{"", false},
		{"   ", false},

		// Invalid emails - missing parts
		{"user", false},
		{"user@", false},
		{"@example.com", false},
		{"user@localhost", false}, // domain needs a dot

		// Invalid emails - malformed
		{"user @example.com", false},
		{"user@exam ple.com", false},
		{"user@@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			got := IsValidEmail(tt.email)
			if got != tt.want {
				t.Errorf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestIsBlank(t *testing.T) {
	if !IsBlank("  \t ") {
		t.Error("expected whitespace to be blank")
	}
	if IsBlank(" x ") {
		t.Error("expected non-empty string not to be blank")
	}
}

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{"admin", true},
		{"USER", true},
		{"  user  ", true},
		{"leader", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			if got := IsValidRole(tt.role); got != tt.want {
				t.Errorf("IsValidRole(%q) = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}

func TestIsValidHistoryType(t *testing.T) {
	if !IsValidHistoryType("Upload") || !IsValidHistoryType("download") {
		t.Error("expected upload/download to be valid")
	}
	if IsValidHistoryType("delete") {
		t.Error("expected delete to be invalid")
	}
}
