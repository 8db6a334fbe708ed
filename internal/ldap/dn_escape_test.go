package ldap

import (
	"testing"
)

func TestEscapeDNValue(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "plain address",
			input:    "postmaster@example.com",
			expected: "postmaster@example.com",
		},
		{
			name:     "value with space in middle",
			input:    "John Doe",
			expected: "John Doe",
		},
		{
			name:     "comma in value",
			input:    "a,b@example.com",
			expected: "a\\,b@example.com",
		},
		{
			name:     "plus sign",
			input:    "sales+eu@example.com",
			expected: "sales\\+eu@example.com",
		},
		{
			name:     "double quote",
			input:    "\"boss\"@example.com",
			expected: "\\\"boss\\\"@example.com",
		},
		{
			name:     "backslash",
			input:    "a\\b@example.com",
			expected: "a\\\\b@example.com",
		},
		{
			name:     "angle brackets",
			input:    "<a>@example.com",
			expected: "\\<a\\>@example.com",
		},
		{
			name:     "semicolon",
			input:    "a;b@example.com",
			expected: "a\\;b@example.com",
		},
		{
			name:     "leading space",
			input:    " admin@example.com",
			expected: "\\ admin@example.com",
		},
		{
			name:     "trailing space",
			input:    "admin@example.com ",
			expected: "admin@example.com\\ ",
		},
		{
			name:     "single space",
			input:    " ",
			expected: "\\ ",
		},
		{
			name:     "leading hash",
			input:    "#ops@example.com",
			expected: "\\#ops@example.com",
		},
		{
			name:     "hash in middle",
			input:    "ops#1@example.com",
			expected: "ops#1@example.com",
		},
		{
			name:     "NUL byte",
			input:    "a\x00b",
			expected: "a\\00b",
		},
		{
			name:     "equals sign is not escaped",
			input:    "a=b@example.com",
			expected: "a=b@example.com",
		},
		{
			name:     "unicode passes through",
			input:    "josé@example.com",
			expected: "josé@example.com",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := EscapeDNValue(tc.input)
			if result != tc.expected {
				t.Errorf("EscapeDNValue(%q) = %q, expected %q", tc.input, result, tc.expected)
			}
		})
	}
}

func TestEscapeDNValue_Distinct(t *testing.T) {
	// Pairs that a lossy escape would collapse.
	pairs := [][2]string{
		{"a,b", "a\\,b"},
		{"a+b", "a\\+b"},
		{"#a", "\\#a"},
		{" a", "\\ a"},
		{"a\x00", "a\\00"},
	}

	for _, p := range pairs {
		if EscapeDNValue(p[0]) == EscapeDNValue(p[1]) {
			t.Errorf("EscapeDNValue(%q) and EscapeDNValue(%q) collide: %q", p[0], p[1], EscapeDNValue(p[0]))
		}
	}
}

func BenchmarkEscapeDNValue_NoEscaping(b *testing.B) {
	for b.Loop() {
		_ = EscapeDNValue("postmaster@example.com")
	}
}

func BenchmarkEscapeDNValue_WithEscaping(b *testing.B) {
	for b.Loop() {
		_ = EscapeDNValue(" a,b+c@example.com ")
	}
}
