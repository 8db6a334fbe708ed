package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/spf13/cobra"

	"github.com/isometry/iredadmin/internal/auditlog"
	"github.com/isometry/iredadmin/internal/config"
	"github.com/isometry/iredadmin/internal/i18n"
	"github.com/isometry/iredadmin/internal/ldap"
	"github.com/isometry/iredadmin/internal/logging"
	"github.com/isometry/iredadmin/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the admin console API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(logging.Init(ctx, cfg.Log.Level), cfg)
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
}

// backends holds the connected directory and log stores.
type backends struct {
	client ldap.Client
	store  *auditlog.Store
	admins *ldap.AdminManager
}

func (b *backends) Close() {
	if b.store != nil {
		_ = b.store.Close()
	}
	if b.client != nil {
		_ = b.client.Close()
	}
}

// connect opens the LDAP pool and the log database described by cfg.
func connect(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}

	client, err := ldap.NewClient(ctx, cfg.LDAPConnectionConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create LDAP client: %w", err)
	}
	b.client = client

	db, err := auditlog.Open(ctx, cfg.Database.DSN(), cfg.Database.MaxOpenConns)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.store = auditlog.New(db)

	b.admins = ldap.NewAdminManager(client, cfg.LDAP.AdminsDN, ldap.AdminSettings{
		Policy:          cfg.PasswordPolicy(),
		Catalog:         i18n.Catalog{Root: cfg.General.I18nDir},
		DefaultLanguage: cfg.General.DefaultLanguage,
		PageSize:        cfg.General.PageSizeLimit,
	})
	b.admins.SetTimeout(cfg.LDAP.Timeout)

	return b, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	b, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.client.Connect(ctx); err != nil {
		tflog.Warn(ctx, "LDAP directory not reachable at startup", map[string]any{"error": err.Error()})
	}

	srv := server.New(b.admins, b.store, server.Options{
		Listen:          cfg.Server.Listen,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Mode:            cfg.Server.Mode,
		LogContext: func(ctx context.Context) context.Context {
			return logging.Init(ctx, cfg.Log.Level)
		},
		Checks: map[string]server.Pinger{
			"ldap":     b.client,
			"database": b.store,
		},
	})

	tflog.Info(ctx, "Starting iredadmin", map[string]any{
		"version":   Version,
		"listen":    cfg.Server.Listen,
		"ldap_urls": cfg.LDAP.URLs,
		"admins_dn": cfg.LDAP.AdminsDN,
	})

	return srv.Run(ctx)
}
