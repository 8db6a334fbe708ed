package ldap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

const defaultKrb5Conf = "/etc/krb5.conf"

// kerberosPrincipal is the resolved user and realm for a GSSAPI bind.
type kerberosPrincipal struct {
	user  string
	realm string
}

// performKerberosAuth performs a GSSAPI bind on an LDAP connection.
func performKerberosAuth(ctx context.Context, conn *ldap.Conn, cfg *ConnectionConfig, serverInfo *ServerInfo) error {
	principal, err := resolvePrincipal(cfg)
	if err != nil {
		return fmt.Errorf("kerberos configuration error: %w", err)
	}

	gssapiClient, source, err := createGSSAPIClient(cfg, principal)
	if err != nil {
		LogKerberosEvent(ctx, "authentication_failed", map[string]any{
			"realm": principal.realm,
			"error": err.Error(),
		})
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}
	defer func() {
		_ = gssapiClient.DeleteSecContext()
	}()

	spn, err := buildServicePrincipal(cfg, serverInfo)
	if err != nil {
		return fmt.Errorf("failed to build service principal: %w", err)
	}

	LogKerberosEvent(ctx, "principal_resolved", map[string]any{
		"principal":   principal.user,
		"realm":       principal.realm,
		"spn":         spn,
		"credentials": source,
	})

	if err := conn.GSSAPIBind(gssapiClient, spn, ""); err != nil {
		LogKerberosEvent(ctx, "authentication_failed", map[string]any{
			"spn":   spn,
			"error": err.Error(),
		})
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}

	LogKerberosEvent(ctx, "ticket_acquired", map[string]any{"spn": spn})
	return nil
}

// resolvePrincipal splits user@REALM when no realm is configured.
func resolvePrincipal(cfg *ConnectionConfig) (kerberosPrincipal, error) {
	if cfg == nil {
		return kerberosPrincipal{}, fmt.Errorf("configuration cannot be nil")
	}

	p := kerberosPrincipal{user: cfg.Username, realm: cfg.KerberosRealm}
	if p.realm == "" {
		if user, realm, ok := strings.Cut(cfg.Username, "@"); ok {
			p.user, p.realm = user, realm
		}
	}

	if p.realm == "" {
		return p, fmt.Errorf("kerberos realm is required (set kerberos_realm or include realm in username)")
	}

	if p.user == "" && cfg.KerberosCCache == "" {
		return p, fmt.Errorf("username (principal) is required for Kerberos authentication")
	}

	return p, nil
}

// createGSSAPIClient picks credentials in order: credential cache, keytab, password.
func createGSSAPIClient(cfg *ConnectionConfig, p kerberosPrincipal) (ldap.GSSAPIClient, string, error) {
	krb5conf := cfg.KerberosConfig
	if krb5conf == "" {
		krb5conf = defaultKrb5Conf
	}

	if !fileExists(krb5conf) {
		return nil, "", fmt.Errorf("kerberos configuration file not found at %s", krb5conf)
	}

	disableFAST := krb5client.DisablePAFXFAST(true)

	if cfg.KerberosCCache != "" && fileExists(cfg.KerberosCCache) {
		c, err := gssapi.NewClientFromCCache(cfg.KerberosCCache, krb5conf, disableFAST)
		return c, "ccache", err
	}

	if cfg.KerberosKeytab != "" && fileExists(cfg.KerberosKeytab) {
		c, err := gssapi.NewClientWithKeytab(p.user, p.realm, cfg.KerberosKeytab, krb5conf, disableFAST)
		return c, "keytab", err
	}

	if defaultKeytab := getDefaultKeytabPath(); p.user != "" && cfg.Password == "" && fileExists(defaultKeytab) {
		c, err := gssapi.NewClientWithKeytab(p.user, p.realm, defaultKeytab, krb5conf, disableFAST)
		return c, "keytab", err
	}

	if p.user != "" && cfg.Password != "" {
		c, err := gssapi.NewClientWithPassword(p.user, p.realm, cfg.Password, krb5conf, disableFAST)
		return c, "password", err
	}

	return nil, "", fmt.Errorf("no suitable credentials found for Kerberos authentication")
}

// buildServicePrincipal returns the explicit SPN or ldap/<host>.
func buildServicePrincipal(cfg *ConnectionConfig, serverInfo *ServerInfo) (string, error) {
	if cfg != nil && cfg.KerberosSPN != "" {
		return cfg.KerberosSPN, nil
	}

	if serverInfo == nil || serverInfo.Host == "" {
		return "", fmt.Errorf("hostname is required for service principal")
	}

	return "ldap/" + serverInfo.Host, nil
}

func getDefaultKeytabPath() string {
	if keytab := os.Getenv("KRB5_KTNAME"); keytab != "" {
		return strings.TrimPrefix(keytab, "FILE:")
	}
	return "/etc/krb5.keytab"
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
