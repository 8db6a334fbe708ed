package ldap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePrincipal(t *testing.T) {
	tests := []struct {
		name    string
		config  *ConnectionConfig
		want    kerberosPrincipal
		wantErr string
	}{
		{
			name:   "explicit realm",
			config: &ConnectionConfig{Username: "vmail", KerberosRealm: "EXAMPLE.COM"},
			want:   kerberosPrincipal{user: "vmail", realm: "EXAMPLE.COM"},
		},
		{
			name:   "realm from username",
			config: &ConnectionConfig{Username: "vmail@EXAMPLE.COM"},
			want:   kerberosPrincipal{user: "vmail", realm: "EXAMPLE.COM"},
		},
		{
			name:   "ccache without user",
			config: &ConnectionConfig{KerberosRealm: "EXAMPLE.COM", KerberosCCache: "/tmp/krb5cc_0"},
			want:   kerberosPrincipal{realm: "EXAMPLE.COM"},
		},
		{
			name:    "nil config",
			wantErr: "configuration cannot be nil",
		},
		{
			name:    "no realm",
			config:  &ConnectionConfig{Username: "vmail"},
			wantErr: "kerberos realm is required",
		},
		{
			name:    "no user and no ccache",
			config:  &ConnectionConfig{KerberosRealm: "EXAMPLE.COM", KerberosKeytab: "/etc/krb5.keytab"},
			wantErr: "username (principal) is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolvePrincipal(tt.config)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildServicePrincipal(t *testing.T) {
	server := &ServerInfo{Host: "ldap1.example.com", Port: 389}

	spn, err := buildServicePrincipal(&ConnectionConfig{}, server)
	require.NoError(t, err)
	assert.Equal(t, "ldap/ldap1.example.com", spn)

	spn, err = buildServicePrincipal(&ConnectionConfig{KerberosSPN: "ldap/ldap.example.com@EXAMPLE.COM"}, server)
	require.NoError(t, err)
	assert.Equal(t, "ldap/ldap.example.com@EXAMPLE.COM", spn)

	_, err = buildServicePrincipal(&ConnectionConfig{}, &ServerInfo{})
	assert.Error(t, err)

	_, err = buildServicePrincipal(nil, nil)
	assert.Error(t, err)
}

func TestCreateGSSAPIClient_MissingKrb5Conf(t *testing.T) {
	cfg := &ConnectionConfig{
		Username:       "vmail",
		Password:       "secret",
		KerberosRealm:  "EXAMPLE.COM",
		KerberosConfig: filepath.Join(t.TempDir(), "missing-krb5.conf"),
	}

	_, _, err := createGSSAPIClient(cfg, kerberosPrincipal{user: "vmail", realm: "EXAMPLE.COM"})
	assert.ErrorContains(t, err, "kerberos configuration file not found")
}

func TestCreateGSSAPIClient_NoCredentials(t *testing.T) {
	t.Setenv("KRB5_KTNAME", filepath.Join(t.TempDir(), "none.keytab"))

	conf := filepath.Join(t.TempDir(), "krb5.conf")
	require.NoError(t, os.WriteFile(conf, []byte("[libdefaults]\n  default_realm = EXAMPLE.COM\n"), 0o600))

	cfg := &ConnectionConfig{KerberosRealm: "EXAMPLE.COM", KerberosConfig: conf}

	_, _, err := createGSSAPIClient(cfg, kerberosPrincipal{user: "vmail", realm: "EXAMPLE.COM"})
	assert.ErrorContains(t, err, "no suitable credentials")
}

func TestGetDefaultKeytabPath(t *testing.T) {
	t.Setenv("KRB5_KTNAME", "FILE:/var/lib/iredadmin/ldap.keytab")
	assert.Equal(t, "/var/lib/iredadmin/ldap.keytab", getDefaultKeytabPath())

	t.Setenv("KRB5_KTNAME", "")
	assert.Equal(t, "/etc/krb5.keytab", getDefaultKeytabPath())
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "present")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	assert.True(t, fileExists(file))
	assert.False(t, fileExists(dir), "directories do not count")
	assert.False(t, fileExists(filepath.Join(dir, "absent")))
	assert.False(t, fileExists(""))
}
