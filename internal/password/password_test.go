package password

import (
	"bytes"
	"crypto/sha1" //nolint:gosec
	"crypto/sha512"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/isometry/iredadmin/internal/panel"
)

func TestPolicy_Check(t *testing.T) {
	policy := Policy{MinLength: 8, MaxLength: 12, Scheme: SchemePlain}

	tests := []struct {
		name     string
		newPw    string
		confirm  string
		wantKind panel.Kind
	}{
		{"ok", "correct-pw", "correct-pw", ""},
		{"empty new", "", "correct-pw", panel.KindEmptyPassword},
		{"empty confirm", "correct-pw", "", panel.KindEmptyPassword},
		{"mismatch", "correct-pw", "correct-px", panel.KindPasswordMismatch},
		{"too short", "short", "short", panel.KindPasswordTooShort},
		{"too long", "much-too-long-pw", "much-too-long-pw", panel.KindPasswordTooLong},
		{"length counts characters", "pässwörd", "pässwörd", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hashed, err := policy.Check(tt.newPw, tt.confirm)
			if tt.wantKind == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.newPw, hashed)
				return
			}
			assert.Equal(t, tt.wantKind, panel.KindOf(err))
			assert.Empty(t, hashed)
		})
	}
}

func TestPolicy_CheckUnlimited(t *testing.T) {
	policy := DefaultPolicy()
	long := strings.Repeat("x", 200)

	hashed, err := policy.Check(long, long)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hashed, "{SSHA}"))
	assert.True(t, sshaMatches(t, hashed, long))
}

func TestPolicy_CheckBcryptLimit(t *testing.T) {
	policy := Policy{MinLength: 1, Scheme: SchemeBcrypt}

	tests := []struct {
		name     string
		password string
		wantKind panel.Kind
	}{
		{"at limit", strings.Repeat("x", BcryptMaxBytes), ""},
		{"over limit", strings.Repeat("x", BcryptMaxBytes+1), panel.KindPasswordTooLong},
		{"multibyte over limit", strings.Repeat("ä", 37), panel.KindPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hashed, err := policy.Check(tt.password, tt.password)
			if tt.wantKind == "" {
				require.NoError(t, err)
				require.True(t, strings.HasPrefix(hashed, "{CRYPT}$2"))
				assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimPrefix(hashed, "{CRYPT}")), []byte(tt.password)))
				return
			}
			assert.Equal(t, tt.wantKind, panel.KindOf(err))
			assert.Empty(t, hashed)
		})
	}
}

// sshaMatches recomputes a {SSHA} value with its stored salt.
func sshaMatches(t *testing.T, stored, plain string) bool {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, "{SSHA}"))
	require.NoError(t, err)
	require.Len(t, raw, sha1.Size+saltSize)

	h := sha1.New() //nolint:gosec
	h.Write([]byte(plain))
	h.Write(raw[sha1.Size:])
	return bytes.Equal(h.Sum(nil), raw[:sha1.Size])
}

func TestHash(t *testing.T) {
	tests := []struct {
		scheme  Scheme
		prefix  string
		rawSize int
	}{
		{SchemeSSHA, "{SSHA}", sha1.Size + saltSize},
		{SchemeSSHA512, "{SSHA512}", sha512.Size + saltSize},
		{SchemeBcrypt, "{CRYPT}$2", 0},
		{SchemePlain, "s3cret-pass", 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.scheme), func(t *testing.T) {
			hashed, err := Hash(tt.scheme, "s3cret-pass")
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(hashed, tt.prefix), hashed)

			switch tt.scheme {
			case SchemeSSHA:
				assert.True(t, sshaMatches(t, hashed, "s3cret-pass"))
				assert.False(t, sshaMatches(t, hashed, "wrong-pass"))
			case SchemeSSHA512:
				raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(hashed, tt.prefix))
				require.NoError(t, err)
				assert.Len(t, raw, tt.rawSize)
			case SchemeBcrypt:
				body := []byte(strings.TrimPrefix(hashed, "{CRYPT}"))
				assert.NoError(t, bcrypt.CompareHashAndPassword(body, []byte("s3cret-pass")))
				assert.Error(t, bcrypt.CompareHashAndPassword(body, []byte("wrong-pass")))
			}
		})
	}
}

func TestHash_Salted(t *testing.T) {
	a, err := Hash(SchemeSSHA, "same")
	require.NoError(t, err)
	b, err := Hash(SchemeSSHA, "same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestParseScheme(t *testing.T) {
	s, err := ParseScheme(" ssha512 ")
	require.NoError(t, err)
	assert.Equal(t, SchemeSSHA512, s)

	_, err = ParseScheme("md5")
	assert.Error(t, err)

	_, err = Hash("md5", "x")
	assert.Error(t, err)
}
