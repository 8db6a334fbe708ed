// Package server exposes the admin console operations over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/iredadmin/internal/auditlog"
	"github.com/isometry/iredadmin/internal/i18n"
	"github.com/isometry/iredadmin/internal/ldap"
	"github.com/isometry/iredadmin/internal/panel"
)

// SubsystemServer is the logging subsystem of this package.
const SubsystemServer = "server"

// AdminService is the account directory as seen by the handlers.
type AdminService interface {
	AdminDN(email string) string
	Authenticate(ctx context.Context, email, secret string) (*panel.Session, error)
	ResolvePreferredLanguage(ctx context.Context, sess *panel.Session, dn string) string
	ListAvailableLanguages(ctx context.Context) []i18n.Language
	ListAdmins(ctx context.Context) ([]*ldap.Admin, error)
	GetProfile(ctx context.Context, email string) (*ldap.Admin, error)
	AddAdmin(ctx context.Context, form ldap.AddAdminForm) error
	UpdateAdmin(ctx context.Context, sess *panel.Session, profileType, email string, form ldap.UpdateForm) error
	DeleteAdmins(ctx context.Context, emails []string) error
	SetAccountStatus(ctx context.Context, emails []string, value string) error
}

// LogStore is the audit log as seen by the handlers.
type LogStore interface {
	ListLogs(ctx context.Context, sess *panel.Session, q auditlog.Query) (int, []auditlog.Entry, error)
	DeleteLogs(ctx context.Context, ids []int64) error
	Record(ctx context.Context, e auditlog.Entry) error
}

// Pinger checks a backend for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	Listen          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Mode            string

	// LogContext attaches loggers to each request context. Nil leaves the
	// context untouched.
	LogContext func(context.Context) context.Context

	// Checks are pinged by /readyz, keyed by name.
	Checks map[string]Pinger
}

// Server wires the admin and log handlers onto a gin engine.
type Server struct {
	admins AdminService
	logs   LogStore
	opts   Options
	engine *gin.Engine
}

// New builds the router.
func New(admins AdminService, logs LogStore, opts Options) *Server {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}

	s := &Server{
		admins: admins,
		logs:   logs,
		opts:   opts,
		engine: gin.New(),
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) logContext(ctx context.Context) context.Context {
	if s.opts.LogContext == nil {
		return ctx
	}
	return s.opts.LogContext(ctx)
}

func (s *Server) routes() {
	r := s.engine
	r.Use(gin.Recovery(), RequestID(), s.Logging())

	r.GET("/healthz", s.healthz)
	r.GET("/readyz", s.readyz)

	api := r.Group("/api/v1", s.BasicAuth())
	{
		api.GET("/me", s.me)
		api.GET("/languages", s.languages)
		api.GET("/logs", s.listLogs)

		// Self or global, checked per account.
		api.GET("/admins/:mail", s.getAdmin)
		api.PUT("/admins/:mail/:profile", s.updateAdmin)

		global := api.Group("", RequireGlobalAdmin())
		global.GET("/admins", s.listAdmins)
		global.POST("/admins", s.addAdmin)
		global.POST("/admins/delete", s.deleteAdmins)
		global.POST("/admins/status", s.setAccountStatus)
		global.POST("/logs/delete", s.deleteLogs)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadTimeout:       s.opts.ReadTimeout,
		ReadHeaderTimeout: s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		tflog.SubsystemInfo(ctx, SubsystemServer, "HTTP server starting", map[string]any{
			"address": ln.Addr().String(),
		})
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	tflog.SubsystemInfo(ctx, SubsystemServer, "Shutting down HTTP server")

	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server forced to shutdown: %w", err)
	}

	tflog.SubsystemInfo(ctx, SubsystemServer, "HTTP server stopped")
	return nil
}
