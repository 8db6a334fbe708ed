package ldap

import (
	"strings"
)

// EscapeDNValue escapes special characters in a DN attribute value according to RFC 4514.
//
// Always escaped: , + " \ < > ; and NUL (as \00). A leading # and leading or
// trailing spaces are escaped as well. The mapping is injective, so distinct
// values never produce the same RDN.
//
// Examples:
//   - "postmaster@example.com" → "postmaster@example.com"
//   - "Doe, John" → "Doe\, John"
//   - " admin " → "\ admin\ "
//   - "#1" → "\#1"
func EscapeDNValue(value string) string {
	if value == "" {
		return value
	}

	var result strings.Builder
	result.Grow(len(value) + 8)

	last := len(value) - 1
	for i := 0; i < len(value); i++ {
		b := value[i]
		switch b {
		case ',', '+', '"', '\\', '<', '>', ';':
			result.WriteByte('\\')
			result.WriteByte(b)
		case '#':
			if i == 0 {
				result.WriteByte('\\')
			}
			result.WriteByte(b)
		case ' ':
			if i == 0 || i == last {
				result.WriteByte('\\')
			}
			result.WriteByte(b)
		case 0:
			result.WriteString("\\00")
		default:
			result.WriteByte(b)
		}
	}

	return result.String()
}
