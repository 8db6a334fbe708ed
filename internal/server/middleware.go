package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/iredadmin/internal/panel"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
	sessionKey      = "session"
)

// RequestID tags each request with an id, reusing the client's X-Request-ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = "req_" + uuid.New().String()[:12]
		}
		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

// Logging attaches the root logger to the request context and logs the
// outcome of every request.
func (s *Server) Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx := s.logContext(c.Request.Context())
		ctx = tflog.SetField(ctx, "request_id", c.GetString(requestIDKey))
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		fields := map[string]any{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		// c.Request carries the admin field set by BasicAuth.
		ctx = c.Request.Context()
		switch status := c.Writer.Status(); {
		case status >= 500:
			tflog.SubsystemError(ctx, SubsystemServer, "Request failed", fields)
		case status >= 400:
			tflog.SubsystemWarn(ctx, SubsystemServer, "Request rejected", fields)
		default:
			tflog.SubsystemDebug(ctx, SubsystemServer, "Request handled", fields)
		}
	}
}

// BasicAuth authenticates the admin of every request and stores the session.
func (s *Server) BasicAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		email, secret, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="iredadmin"`)
			WriteError(c, panel.NewError(panel.KindInvalidCredentials, "missing basic auth"))
			return
		}

		ctx := c.Request.Context()
		sess, err := s.admins.Authenticate(ctx, email, secret)
		if err != nil {
			tflog.SubsystemWarn(ctx, SubsystemServer, "Authentication failed", map[string]any{
				"mail":  email,
				"error": err.Error(),
			})
			if panel.KindOf(err) == panel.KindInvalidCredentials {
				c.Header("WWW-Authenticate", `Basic realm="iredadmin"`)
			}
			WriteError(c, err)
			return
		}

		ctx = tflog.SetField(panel.WithSession(ctx, sess), "admin", sess.Username)
		c.Request = c.Request.WithContext(ctx)
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// RequireGlobalAdmin rejects sessions without global privileges.
func RequireGlobalAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := panel.RequireGlobalAdmin(session(c)); err != nil {
			WriteError(c, err)
			return
		}
		c.Next()
	}
}

// session returns the authenticated session, or nil outside BasicAuth.
func session(c *gin.Context) *panel.Session {
	sess, _ := panel.FromContext(c.Request.Context())
	return sess
}
