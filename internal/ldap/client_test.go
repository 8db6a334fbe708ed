package ldap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPool is a ConnectionPool that never reaches a server.
type stubPool struct {
	getErr  error
	dialErr error
	gets    int
	dials   int
	closed  bool
}

func (p *stubPool) Get(context.Context) (*PooledConnection, error) {
	p.gets++
	if p.getErr != nil {
		return nil, p.getErr
	}
	return nil, errors.New("stub pool has no connections")
}

func (p *stubPool) Dial(context.Context) (*ldap.Conn, error) {
	p.dials++
	if p.dialErr != nil {
		return nil, p.dialErr
	}
	return nil, errors.New("stub pool cannot dial")
}

func (p *stubPool) Close() error {
	p.closed = true
	return nil
}

func (p *stubPool) Stats() PoolStats { return PoolStats{Created: 7} }

func (p *stubPool) HealthCheck(context.Context) error { return nil }

func newStubClient(pool *stubPool) *client {
	config := DefaultConfig()
	config.LDAPURLs = []string{"ldap://ldap.example.com"}
	config.MaxRetries = 2
	config.InitialBackoff = time.Millisecond
	return &client{pool: pool, config: config}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		config  func() *ConnectionConfig
		wantErr bool
	}{
		{
			name: "default config with URLs",
			config: func() *ConnectionConfig {
				cfg := DefaultConfig()
				cfg.LDAPURLs = []string{"ldaps://ldap.example.com:636"}
				return cfg
			},
		},
		{
			name: "simple bind",
			config: func() *ConnectionConfig {
				cfg := DefaultConfig()
				cfg.LDAPURLs = []string{"ldap://ldap.example.com"}
				cfg.Username = "cn=vmail,dc=example,dc=com"
				cfg.Password = "secret"
				return cfg
			},
		},
		{
			name: "no URLs",
			config: func() *ConnectionConfig {
				return DefaultConfig()
			},
			wantErr: true,
		},
		{
			name: "bad max connections",
			config: func() *ConnectionConfig {
				cfg := DefaultConfig()
				cfg.LDAPURLs = []string{"ldap://ldap.example.com"}
				cfg.MaxConnections = 0
				return cfg
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(t.Context(), tt.config())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, c.Close())
			assert.NoError(t, c.Close())
		})
	}
}

func TestClient_Stats(t *testing.T) {
	config := DefaultConfig()
	config.LDAPURLs = []string{"ldaps://ldap.example.com:636"}

	c, err := NewClient(t.Context(), config)
	require.NoError(t, err)
	defer c.Close()

	stats := c.Stats()
	assert.Positive(t, stats.Uptime)
	assert.Zero(t, stats.Active)
}

func TestClient_RequestValidation(t *testing.T) {
	c := newStubClient(&stubPool{})
	ctx := context.Background()

	_, err := c.Search(ctx, nil)
	assert.Error(t, err)

	assert.Error(t, c.Add(ctx, nil))
	assert.Error(t, c.Add(ctx, &AddRequest{DN: "cn=x,dc=example,dc=com"}))
	assert.Error(t, c.Modify(ctx, nil))
	assert.Error(t, c.Modify(ctx, &ModifyRequest{DN: "cn=x,dc=example,dc=com"}))
	assert.Error(t, c.Delete(ctx, ""))
	assert.Error(t, c.VerifyPassword(ctx, "", "pw"))
}

func TestClient_PoolFailure(t *testing.T) {
	pool := &stubPool{getErr: errors.New("no LDAP server reachable")}
	c := newStubClient(pool)

	err := c.Delete(context.Background(), "mail=a@example.com,o=domainAdmins,dc=example,dc=com")
	require.Error(t, err)

	var ldapErr *LDAPError
	require.ErrorAs(t, err, &ldapErr)
	assert.Equal(t, "delete", ldapErr.Operation)
	assert.Equal(t, "mail=a@example.com,o=domainAdmins,dc=example,dc=com", ldapErr.DN)
	assert.Equal(t, 1, pool.gets, "pool errors are not retried")
}

func TestClient_VerifyPassword(t *testing.T) {
	const dn = "mail=a@example.com,o=domainAdmins,dc=example,dc=com"

	t.Run("empty password never dials", func(t *testing.T) {
		pool := &stubPool{}
		c := newStubClient(pool)

		err := c.VerifyPassword(context.Background(), dn, "")
		assert.True(t, IsAuthenticationError(err))
		assert.Zero(t, pool.dials)
	})

	t.Run("dial failure", func(t *testing.T) {
		pool := &stubPool{dialErr: NewConnectionError("no LDAP server reachable", true, nil)}
		c := newStubClient(pool)

		err := c.VerifyPassword(context.Background(), dn, "pw")
		require.Error(t, err)
		assert.False(t, IsAuthenticationError(err))
		assert.Equal(t, 1, pool.dials)
		assert.Zero(t, pool.gets, "pooled connections keep the service bind")
	})
}

func TestClient_Close(t *testing.T) {
	pool := &stubPool{}
	c := newStubClient(pool)

	require.NoError(t, c.Close())
	assert.True(t, pool.closed)
	assert.Equal(t, int64(7), c.Stats().Created)
}

func TestIsRetryableError_ResultCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"retryable connection error", NewConnectionError("connection failed", true, nil), true},
		{"non-retryable connection error", NewConnectionError("config error", false, nil), false},
		{"busy", ldap.NewError(ldap.LDAPResultBusy, errors.New("server busy")), true},
		{"operations error", ldap.NewError(ldap.LDAPResultOperationsError, errors.New("x")), true},
		{"network", ldap.NewError(ldap.ErrorNetwork, errors.New("reset")), true},
		{"invalid credentials", ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("bad password")), false},
		{"no such object with connection text", ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("connection")), false},
		{"connection timeout", errors.New("connection timeout"), true},
		{"broken pipe", errors.New("broken pipe"), true},
		{"bind required", errors.New("LDAP Result Code 1: bind must be completed"), true},
		{"wrapped busy", NewLDAPError("search", ldap.NewError(ldap.LDAPResultBusy, errors.New("x"))), true},
		{"validation", errors.New("invalid syntax"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}

func TestClient_WithRetry(t *testing.T) {
	c := newStubClient(&stubPool{})

	t.Run("succeeds after retries", func(t *testing.T) {
		attempts := 0
		err := c.withRetry(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return NewConnectionError("temporary failure", true, nil)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("non-retryable stops at once", func(t *testing.T) {
		attempts := 0
		err := c.withRetry(context.Background(), func() error {
			attempts++
			return NewConnectionError("permanent failure", false, nil)
		})
		require.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("exhausted", func(t *testing.T) {
		attempts := 0
		err := c.withRetry(context.Background(), func() error {
			attempts++
			return NewConnectionError("temporary failure", true, nil)
		})
		require.Error(t, err)
		assert.Equal(t, 3, attempts)
		assert.Contains(t, err.Error(), "operation failed after retries")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := c.withRetry(ctx, func() error {
			return NewConnectionError("temporary failure", true, nil)
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSearchScope_Constants(t *testing.T) {
	assert.Equal(t, ldap.ScopeBaseObject, int(ScopeBaseObject))
	assert.Equal(t, ldap.ScopeSingleLevel, int(ScopeSingleLevel))
	assert.Equal(t, ldap.ScopeWholeSubtree, int(ScopeWholeSubtree))
	assert.Equal(t, "sub", ScopeWholeSubtree.String())
}

func TestDerefAliases_Constants(t *testing.T) {
	assert.Equal(t, ldap.NeverDerefAliases, int(NeverDerefAliases))
	assert.Equal(t, ldap.DerefInSearching, int(DerefInSearching))
	assert.Equal(t, ldap.DerefFindingBaseObj, int(DerefFindingBaseObj))
	assert.Equal(t, ldap.DerefAlways, int(DerefAlways))
}

func TestGetAuthMethod(t *testing.T) {
	tests := []struct {
		name   string
		config ConnectionConfig
		want   AuthMethod
	}{
		{"anonymous", ConnectionConfig{}, AuthMethodAnonymous},
		{"simple", ConnectionConfig{Username: "cn=vmail,dc=example,dc=com"}, AuthMethodSimpleBind},
		{"kerberos keytab", ConnectionConfig{KerberosRealm: "EXAMPLE.COM", KerberosKeytab: "/etc/krb5.keytab"}, AuthMethodKerberos},
		{"realm alone is not enough", ConnectionConfig{KerberosRealm: "EXAMPLE.COM"}, AuthMethodAnonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.config.GetAuthMethod())
			assert.Equal(t, tt.want != AuthMethodAnonymous, tt.config.HasAuthentication())
		})
	}
}
