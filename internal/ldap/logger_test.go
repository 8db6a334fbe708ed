package ldap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFields(t *testing.T) {
	fields := map[string]any{
		"dn":            "mail=a@example.com,o=domainAdmins,dc=example,dc=com",
		"Password":      "hunter2",
		"bind_password": "secret",
		"filter":        "(mail=a@example.com)",
		"query":         "password=abc",
		"attempt":       2,
	}

	got := SanitizeFields(fields)

	assert.Equal(t, "mail=a@example.com,o=domainAdmins,dc=example,dc=com", got["dn"])
	assert.Equal(t, "[REDACTED]", got["Password"])
	assert.Equal(t, "[REDACTED]", got["bind_password"])
	assert.Equal(t, "(mail=a@example.com)", got["filter"])
	assert.Equal(t, "[REDACTED]", got["query"])
	assert.Equal(t, 2, got["attempt"])
	assert.Equal(t, "hunter2", fields["Password"], "input is not modified")
}

func TestLogOperation(t *testing.T) {
	boom := errors.New("boom")

	err := LogOperation(context.Background(), SubsystemLDAP, "test", nil, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	fields := map[string]any{"dn": "dc=example,dc=com"}
	assert.NoError(t, LogOperation(context.Background(), SubsystemLDAP, "test", fields, func() error { return nil }))
	assert.Equal(t, "test", fields["operation"])
	assert.Contains(t, fields, "duration_ms")
}
