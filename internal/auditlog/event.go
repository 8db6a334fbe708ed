// Package auditlog stores and queries the admin activity log kept in the
// SQL table "log".
package auditlog

import (
	"slices"
	"time"
)

// Event kinds. EventAll is a filter sentinel and is never recorded.
const (
	EventAll     = "all"
	EventLogin   = "login"
	EventActive  = "active"
	EventDisable = "disable"
	EventCreate  = "create"
	EventDelete  = "delete"
	EventUpdate  = "update"
	EventGrant   = "grant"
	EventRevoke  = "revoke"
	EventBackup  = "backup"
)

// Events lists every recognized event kind, EventAll first.
var Events = []string{
	EventAll, EventLogin, EventActive, EventDisable, EventCreate,
	EventDelete, EventUpdate, EventGrant, EventRevoke, EventBackup,
}

// IsValidEvent reports whether event is a recognized kind, EventAll included.
func IsValidEvent(event string) bool {
	return slices.Contains(Events, event)
}

const (
	LevelInfo  = "info"
	LevelWarn  = "warning"
	LevelError = "error"
)

// Entry is one row of the log table.
type Entry struct {
	ID        int64     `db:"id" json:"id"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	Admin     string    `db:"admin" json:"admin"`
	IP        string    `db:"ip" json:"ip"`
	Domain    string    `db:"domain" json:"domain"`
	Username  string    `db:"username" json:"username"`
	Event     string    `db:"event" json:"event"`
	LogLevel  string    `db:"loglevel" json:"loglevel"`
	Msg       string    `db:"msg" json:"msg"`
}

// Query selects a page of entries. Empty fields and "all" do not filter.
type Query struct {
	Event  string `form:"event"`
	Domain string `form:"domain"`
	Admin  string `form:"admin"`
	Page   int    `form:"page"`
}
