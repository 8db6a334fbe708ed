package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/iredadmin/internal/auditlog"
	"github.com/isometry/iredadmin/internal/ldap"
	"github.com/isometry/iredadmin/internal/panel"
)

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) readyz(c *gin.Context) {
	checks := make(map[string]string, len(s.opts.Checks))
	status := http.StatusOK

	for name, p := range s.opts.Checks {
		if err := p.Ping(c.Request.Context()); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(status, gin.H{"checks": checks})
}

// GET /api/v1/me
func (s *Server) me(c *gin.Context) {
	sess := session(c)
	ctx := c.Request.Context()

	c.JSON(http.StatusOK, gin.H{
		"username":          sess.Username,
		"globalAdmin":       sess.GlobalAdmin,
		"lang":              sess.Lang,
		"pageSize":          sess.Limit(),
		"preferredLanguage": s.admins.ResolvePreferredLanguage(ctx, sess, s.admins.AdminDN(sess.Username)),
	})
}

// GET /api/v1/languages
func (s *Server) languages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": s.admins.ListAvailableLanguages(c.Request.Context())})
}

// GET /api/v1/admins
func (s *Server) listAdmins(c *gin.Context) {
	admins, err := s.admins.ListAdmins(c.Request.Context())
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(admins), "admins": admins})
}

// POST /api/v1/admins
func (s *Server) addAdmin(c *gin.Context) {
	var form ldap.AddAdminForm
	if err := c.ShouldBindJSON(&form); err != nil {
		WriteError(c, typeError(bindField(err)))
		return
	}

	ctx := c.Request.Context()
	if err := s.admins.AddAdmin(ctx, form); err != nil {
		WriteError(c, err)
		return
	}

	email := panel.NormalizeEmail(form.Username) + "@" + panel.NormalizeEmail(form.Domain)
	s.record(c, auditlog.EventCreate, email, "Create admin: "+email)

	c.JSON(http.StatusCreated, gin.H{"mail": email})
}

// GET /api/v1/admins/:mail
func (s *Server) getAdmin(c *gin.Context) {
	email := panel.NormalizeEmail(c.Param("mail"))
	if !session(c).CanManage(email) {
		WriteError(c, panel.NewError(panel.KindPermissionDenied, ""))
		return
	}

	admin, err := s.admins.GetProfile(c.Request.Context(), email)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, admin)
}

// PUT /api/v1/admins/:mail/:profile
func (s *Server) updateAdmin(c *gin.Context) {
	email := panel.NormalizeEmail(c.Param("mail"))
	profile := c.Param("profile")

	var form ldap.UpdateForm
	if err := c.ShouldBindJSON(&form); err != nil {
		WriteError(c, typeError(bindField(err)))
		return
	}

	if err := s.admins.UpdateAdmin(c.Request.Context(), session(c), profile, email, form); err != nil {
		WriteError(c, err)
		return
	}

	msg := fmt.Sprintf("Update admin profile (%s): %s", profile, email)
	s.record(c, auditlog.EventUpdate, email, msg)

	c.JSON(http.StatusOK, gin.H{"mail": email, "profile": profile})
}

// POST /api/v1/admins/delete
func (s *Server) deleteAdmins(c *gin.Context) {
	var emails []string
	if err := bindList(c, "mail", &emails); err != nil {
		WriteError(c, err)
		return
	}
	normalizeEmails(emails)

	err := s.admins.DeleteAdmins(c.Request.Context(), emails)
	s.recordEach(c, auditlog.EventDelete, emails, err, "Delete admin: ")
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": emails})
}

type statusRequest struct {
	Mail   json.RawMessage `json:"mail"`
	Status string          `json:"status"`
}

// POST /api/v1/admins/status
func (s *Server) setAccountStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteError(c, typeError("body"))
		return
	}

	var emails []string
	if err := decodeList(req.Mail, "mail", &emails); err != nil {
		WriteError(c, err)
		return
	}
	normalizeEmails(emails)

	event := auditlog.EventActive
	if req.Status == ldap.AccountStatusDisabled {
		event = auditlog.EventDisable
	}

	err := s.admins.SetAccountStatus(c.Request.Context(), emails, req.Status)
	s.recordEach(c, event, emails, err, "Set account status "+req.Status+": ")
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": emails, "status": req.Status})
}

// GET /api/v1/logs
func (s *Server) listLogs(c *gin.Context) {
	var q auditlog.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		WriteError(c, typeError("query"))
		return
	}

	total, entries, err := s.logs.ListLogs(c.Request.Context(), session(c), q)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":   total,
		"page":    max(q.Page, 1),
		"entries": entries,
	})
}

// POST /api/v1/logs/delete
func (s *Server) deleteLogs(c *gin.Context) {
	var ids []int64
	if err := bindList(c, "id", &ids); err != nil {
		WriteError(c, err)
		return
	}

	if err := s.logs.DeleteLogs(c.Request.Context(), ids); err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": len(ids)})
}

// record writes one audit entry for a successful mutation. Failures are
// logged and never fail the request.
func (s *Server) record(c *gin.Context, event, username, msg string) {
	s.recordEntry(c.Request.Context(), auditlog.Entry{
		Admin:    session(c).Username,
		IP:       c.ClientIP(),
		Domain:   panel.DomainOf(username),
		Username: username,
		Event:    event,
		Msg:      msg,
	})
}

// recordEach records event for every email that is not listed as failed in err.
func (s *Server) recordEach(c *gin.Context, event string, emails []string, err error, msgPrefix string) {
	var failures map[string]string
	var be *panel.BatchError
	switch {
	case err == nil:
	case errors.As(err, &be):
		failures = be.Failures
	default:
		return
	}

	for _, email := range emails {
		if _, failed := failures[email]; failed {
			continue
		}
		s.record(c, event, email, msgPrefix+email)
	}
}

func (s *Server) recordEntry(ctx context.Context, e auditlog.Entry) {
	if err := s.logs.Record(ctx, e); err != nil {
		tflog.SubsystemWarn(ctx, SubsystemServer, "Failed to record audit entry", map[string]any{
			"event": e.Event,
			"error": err.Error(),
		})
	}
}

// bindList decodes field of a JSON object body into dst, which must be a
// pointer to a slice. Missing or null fields leave dst empty.
func bindList(c *gin.Context, field string, dst any) error {
	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		return typeError(field)
	}
	return decodeList(body[field], field, dst)
}

func decodeList(raw json.RawMessage, field string, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if !strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		return typeError(field)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return typeError(field)
	}
	return nil
}

// normalizeEmails lowercases and trims each address in place.
func normalizeEmails(emails []string) {
	for i, e := range emails {
		emails[i] = panel.NormalizeEmail(e)
	}
}

// bindField names the first field rejected by gin binding.
func bindField(err error) string {
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) && ute.Field != "" {
		return ute.Field
	}
	return "body"
}
