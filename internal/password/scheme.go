package password

import (
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // SSHA is an LDAP interoperability format
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Scheme names a userPassword storage scheme.
type Scheme string

const (
	SchemeSSHA    Scheme = "SSHA"
	SchemeSSHA512 Scheme = "SSHA512"
	SchemeBcrypt  Scheme = "BCRYPT"
	SchemePlain   Scheme = "PLAIN"
)

const saltSize = 8

// BcryptMaxBytes is the longest input bcrypt accepts.
const BcryptMaxBytes = 72

// ParseScheme accepts a scheme name in any case.
func ParseScheme(name string) (Scheme, error) {
	switch s := Scheme(strings.ToUpper(strings.TrimSpace(name))); s {
	case SchemeSSHA, SchemeSSHA512, SchemeBcrypt, SchemePlain:
		return s, nil
	default:
		return "", fmt.Errorf("unsupported password scheme %q", name)
	}
}

// Hash returns plain encoded for the userPassword attribute.
func Hash(scheme Scheme, plain string) (string, error) {
	switch scheme {
	case SchemeSSHA:
		return saltedDigest("{SSHA}", sha1.New, plain)
	case SchemeSSHA512:
		return saltedDigest("{SSHA512}", sha512.New, plain)
	case SchemeBcrypt:
		out, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
		if err != nil {
			return "", fmt.Errorf("bcrypt: %w", err)
		}
		return "{CRYPT}" + string(out), nil
	case SchemePlain:
		return plain, nil
	default:
		return "", fmt.Errorf("unsupported password scheme %q", scheme)
	}
}

func saltedDigest(prefix string, newHash func() hash.Hash, plain string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	h := newHash()
	h.Write([]byte(plain))
	h.Write(salt)
	return prefix + base64.StdEncoding.EncodeToString(append(h.Sum(nil), salt...)), nil
}
