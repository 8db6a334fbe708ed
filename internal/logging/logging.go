// Package logging sets up the structured root logger and its subsystems.
package logging

import (
	"context"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/hashicorp/terraform-plugin-log/tfsdklog"
)

const (
	// LogName is the root logger name.
	LogName = "iredadmin"

	// EnvPrefix prefixes the per-subsystem level overrides, for example
	// IREDADMIN_LOG_LDAP=trace.
	EnvPrefix = "IREDADMIN_LOG"
)

// Subsystems lists the subsystems registered on every context.
var Subsystems = []string{"ldap", "pool", "kerberos", "i18n", "auditlog", "server"}

// ParseLevel maps a level name to an hclog level. Unknown names mean info.
func ParseLevel(level string) hclog.Level {
	l := hclog.LevelFromString(strings.TrimSpace(level))
	if l == hclog.NoLevel {
		return hclog.Info
	}
	return l
}

// Init attaches the stderr root logger at level, and every subsystem, to ctx.
// Subsystem levels may be raised or lowered with IREDADMIN_LOG_<SUBSYSTEM>.
func Init(ctx context.Context, level string) context.Context {
	ctx = tfsdklog.NewRootProviderLogger(ctx,
		tfsdklog.WithLogName(LogName),
		tfsdklog.WithLevel(ParseLevel(level)),
		tfsdklog.WithoutLocation(),
	)
	return WithSubsystems(ctx)
}

// WithSubsystems registers every subsystem on the root logger in ctx.
func WithSubsystems(ctx context.Context) context.Context {
	for _, sub := range Subsystems {
		ctx = tflog.NewSubsystem(ctx, sub, tflog.WithLevelFromEnv(EnvPrefix, sub))
	}
	return ctx
}
