// Package password implements the admin password policy and the
// userPassword storage schemes.
package password

import (
	"fmt"
	"unicode/utf8"

	"github.com/isometry/iredadmin/internal/panel"
)

// Policy validates new passwords and hashes the accepted ones.
type Policy struct {
	MinLength int
	MaxLength int // 0 means unlimited
	Scheme    Scheme
}

// DefaultPolicy matches the stock console settings.
func DefaultPolicy() Policy {
	return Policy{MinLength: 8, MaxLength: 0, Scheme: SchemeSSHA}
}

// Check validates a new password against its confirmation and the length
// limits. On success it returns the hashed value ready for storage.
func (p Policy) Check(newPassword, confirm string) (string, error) {
	if newPassword == "" || confirm == "" {
		return "", panel.NewError(panel.KindEmptyPassword, "")
	}

	if newPassword != confirm {
		return "", panel.NewError(panel.KindPasswordMismatch, "")
	}

	n := utf8.RuneCountInString(newPassword)
	if n < p.MinLength {
		return "", panel.NewError(panel.KindPasswordTooShort, fmt.Sprintf("minimum %d characters", p.MinLength))
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		return "", panel.NewError(panel.KindPasswordTooLong, fmt.Sprintf("maximum %d characters", p.MaxLength))
	}

	scheme := p.Scheme
	if scheme == "" {
		scheme = SchemeSSHA
	}
	if scheme == SchemeBcrypt && len(newPassword) > BcryptMaxBytes {
		return "", panel.NewError(panel.KindPasswordTooLong, fmt.Sprintf("maximum %d bytes for %s", BcryptMaxBytes, scheme))
	}

	hashed, err := Hash(scheme, newPassword)
	if err != nil {
		return "", panel.StoreError(err.Error(), err)
	}
	return hashed, nil
}
