// Package config loads the console settings from a YAML file.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/isometry/iredadmin/internal/i18n"
	"github.com/isometry/iredadmin/internal/ldap"
	"github.com/isometry/iredadmin/internal/password"
)

// Config is the whole settings file.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LDAP     LDAPConfig     `yaml:"ldap"`
	Database DatabaseConfig `yaml:"database"`
	General  GeneralConfig  `yaml:"general"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Listen          string        `yaml:"listen" default:":8080" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s" validate:"gt=0"`
	Mode            string        `yaml:"mode" default:"release" validate:"oneof=debug release test"`
}

// LDAPConfig configures the account directory.
type LDAPConfig struct {
	URLs         []string `yaml:"urls" default:"[\"ldap://127.0.0.1:389\"]" validate:"min=1,dive,required"`
	BaseDN       string   `yaml:"base_dn" validate:"required"`
	AdminsDN     string   `yaml:"admins_dn"` // defaults to o=domainAdmins,<base_dn>
	BindDN       string   `yaml:"bind_dn"`
	BindPassword string   `yaml:"bind_password"`

	StartTLS           bool   `yaml:"use_starttls"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	CACertFile         string `yaml:"ca_cert_file"`
	CACert             string `yaml:"ca_cert"`

	KerberosRealm  string `yaml:"kerberos_realm"`
	KerberosKeytab string `yaml:"kerberos_keytab"`
	KerberosConfig string `yaml:"kerberos_config"`
	KerberosCCache string `yaml:"kerberos_ccache"`
	KerberosSPN    string `yaml:"kerberos_spn"`

	Timeout        time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
	MaxConnections int           `yaml:"max_connections" default:"10" validate:"min=1,max=100"`
	MaxIdleTime    time.Duration `yaml:"max_idle_time" default:"5m" validate:"gt=0"`
	HealthCheck    time.Duration `yaml:"health_check_interval" default:"30s" validate:"gte=0"`
	MaxRetries     int           `yaml:"max_retries" default:"3" validate:"min=0"`
	InitialBackoff time.Duration `yaml:"initial_backoff" default:"500ms" validate:"gt=0"`
	MaxBackoff     time.Duration `yaml:"max_backoff" default:"30s" validate:"gt=0"`
	BackoffFactor  float64       `yaml:"backoff_factor" default:"2.0" validate:"gt=1"`
}

// DatabaseConfig configures the PostgreSQL database holding the log table.
type DatabaseConfig struct {
	Host         string `yaml:"host" default:"127.0.0.1" validate:"required"`
	Port         int    `yaml:"port" default:"5432" validate:"min=1,max=65535"`
	User         string `yaml:"user" default:"iredadmin" validate:"required"`
	Password     string `yaml:"password"`
	DBName       string `yaml:"dbname" default:"iredadmin" validate:"required"`
	SSLMode      string `yaml:"sslmode" default:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns int    `yaml:"max_open_conns" default:"10" validate:"min=0"`
}

// GeneralConfig holds console behaviour settings.
type GeneralConfig struct {
	DefaultLanguage       string `yaml:"default_language" default:"en_US" validate:"required"`
	I18nDir               string `yaml:"i18n_dir" default:"i18n"`
	PageSizeLimit         int    `yaml:"page_size_limit" default:"50" validate:"min=1"`
	DefaultPasswordScheme string `yaml:"default_password_scheme" default:"SSHA" validate:"required"`
	MinPasswordLength     int    `yaml:"min_passwd_length" default:"8" validate:"min=1"`
	MaxPasswordLength     int    `yaml:"max_passwd_length" default:"0" validate:"min=0"` // 0 means unlimited
}

// LogConfig sets the root log level.
type LogConfig struct {
	Level string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error off"`
}

// Default returns a Config with every default applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to set default values: %w", err)
	}
	return cfg, nil
}

// Load reads path over the defaults. Missing keys keep their default.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.LDAP.AdminsDN == "" && cfg.LDAP.BaseDN != "" {
		cfg.LDAP.AdminsDN = "o=domainAdmins," + cfg.LDAP.BaseDN
	}

	return cfg, nil
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	var errs []error
	for _, u := range c.LDAP.URLs {
		if _, err := ldap.ParseLDAPURL(u); err != nil {
			errs = append(errs, fmt.Errorf("ldap.urls: %s: %w", u, err))
		}
	}
	if !i18n.IsSupported(c.General.DefaultLanguage) {
		errs = append(errs, fmt.Errorf("general.default_language: unsupported language %q", c.General.DefaultLanguage))
	}
	scheme, err := password.ParseScheme(c.General.DefaultPasswordScheme)
	if err != nil {
		errs = append(errs, fmt.Errorf("general.default_password_scheme: %w", err))
	}
	if maxLen := c.General.MaxPasswordLength; scheme == password.SchemeBcrypt && maxLen > password.BcryptMaxBytes {
		errs = append(errs, fmt.Errorf("general.max_passwd_length (%d) exceeds the %d byte BCRYPT limit", maxLen, password.BcryptMaxBytes))
	}
	if maxLen := c.General.MaxPasswordLength; maxLen > 0 && maxLen < c.General.MinPasswordLength {
		errs = append(errs, fmt.Errorf("general.max_passwd_length (%d) is below min_passwd_length (%d)", maxLen, c.General.MinPasswordLength))
	}
	if c.LDAP.BindDN != "" && c.LDAP.BindPassword == "" && c.LDAP.KerberosRealm == "" {
		errs = append(errs, errors.New("ldap.bind_password is required with bind_dn"))
	}

	return errors.Join(errs...)
}

// LDAPConnectionConfig converts the ldap section for the directory client.
func (c *Config) LDAPConnectionConfig() *ldap.ConnectionConfig {
	l := c.LDAP

	return &ldap.ConnectionConfig{
		LDAPURLs:       l.URLs,
		BaseDN:         l.BaseDN,
		Timeout:        l.Timeout,
		Username:       l.BindDN,
		Password:       l.BindPassword,
		KerberosRealm:  l.KerberosRealm,
		KerberosKeytab: l.KerberosKeytab,
		KerberosConfig: l.KerberosConfig,
		KerberosCCache: l.KerberosCCache,
		KerberosSPN:    l.KerberosSPN,
		TLSConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: l.InsecureSkipVerify, //nolint:gosec // opt-in for lab directories
		},
		UseTLS:         l.StartTLS,
		SkipTLS:        !l.StartTLS,
		TLSCACertFile:  l.CACertFile,
		TLSCACert:      l.CACert,
		MaxConnections: l.MaxConnections,
		MaxIdleTime:    l.MaxIdleTime,
		HealthCheck:    l.HealthCheck,
		MaxRetries:     l.MaxRetries,
		InitialBackoff: l.InitialBackoff,
		MaxBackoff:     l.MaxBackoff,
		BackoffFactor:  l.BackoffFactor,
	}
}

// PasswordPolicy returns the policy for new admin passwords.
func (c *Config) PasswordPolicy() password.Policy {
	p := password.DefaultPolicy()
	if c.General.MinPasswordLength > 0 {
		p.MinLength = c.General.MinPasswordLength
	}
	p.MaxLength = c.General.MaxPasswordLength
	if scheme, err := password.ParseScheme(c.General.DefaultPasswordScheme); err == nil {
		p.Scheme = scheme
	}
	return p
}

// DSN returns the lib/pq connection string.
func (d *DatabaseConfig) DSN() string {
	parts := []string{
		"host=" + quoteDSN(d.Host),
		fmt.Sprintf("port=%d", d.Port),
		"user=" + quoteDSN(d.User),
		"dbname=" + quoteDSN(d.DBName),
		"sslmode=" + d.SSLMode,
	}
	if d.Password != "" {
		parts = append(parts, "password="+quoteDSN(d.Password))
	}
	return strings.Join(parts, " ")
}

// quoteDSN quotes a key/value connection string value when needed.
func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
}
