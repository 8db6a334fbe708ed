package auditlog

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/isometry/iredadmin/internal/panel"
)

// SubsystemAuditLog is the logging subsystem of this package.
const SubsystemAuditLog = "auditlog"

const entryColumns = "id, timestamp, admin, ip, domain, username, event, loglevel, msg"

// Store reads and writes the log table.
type Store struct {
	db *sqlx.DB
}

// New returns a Store over db.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL and checks the connection.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to audit log database: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	return db, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ListLogs returns the total number of matching entries and the requested
// page, newest first. Non-global admins only ever see their own entries.
func (s *Store) ListLogs(ctx context.Context, sess *panel.Session, q Query) (int, []Entry, error) {
	if sess == nil {
		return 0, nil, panel.NewError(panel.KindPermissionDenied, "no session")
	}

	where, args := buildFilter(sess, q)

	var total int
	countQuery := s.db.Rebind("SELECT COUNT(*) FROM log" + where)
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return 0, nil, s.storeError(ctx, "count", err)
	}

	limit := sess.Limit()
	page := min(max(q.Page, 1), math.MaxInt/limit)
	offset := (page - 1) * limit

	entries := []Entry{}
	pageQuery := s.db.Rebind("SELECT " + entryColumns + " FROM log" + where + " ORDER BY timestamp DESC LIMIT ? OFFSET ?")
	if err := s.db.SelectContext(ctx, &entries, pageQuery, append(args, limit, offset)...); err != nil {
		return 0, nil, s.storeError(ctx, "select", err)
	}

	tflog.SubsystemDebug(ctx, SubsystemAuditLog, "Listed log entries", map[string]any{
		"total":    total,
		"returned": len(entries),
		"page":     page,
		"filtered": where != "",
	})

	return total, entries, nil
}

// buildFilter returns the WHERE clause, with ? placeholders, and its arguments.
// Columns always appear in the order event, domain, admin.
func buildFilter(sess *panel.Session, q Query) (string, []any) {
	var conds []string
	var args []any

	if q.Event != EventAll && IsValidEvent(q.Event) {
		conds = append(conds, "event = ?")
		args = append(args, q.Event)
	}

	if q.Domain != "" && q.Domain != "all" {
		conds = append(conds, "domain = ?")
		args = append(args, q.Domain)
	}

	switch {
	case !sess.GlobalAdmin:
		conds = append(conds, "admin = ?")
		args = append(args, sess.Username)
	case panel.IsEmail(q.Admin):
		conds = append(conds, "admin = ?")
		args = append(args, q.Admin)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// DeleteLogs removes the entries with the given ids in one statement.
// Authorization is the caller's job.
func (s *Store) DeleteLogs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return panel.NewError(panel.KindTypeError, "id")
	}

	query, args, err := sqlx.In("DELETE FROM log WHERE id IN (?)", ids)
	if err != nil {
		return panel.NewError(panel.KindTypeError, err.Error())
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return s.storeError(ctx, "delete", err)
	}

	fields := map[string]any{"requested": len(ids)}
	if n, err := res.RowsAffected(); err == nil {
		fields["deleted"] = n
	}
	tflog.SubsystemInfo(ctx, SubsystemAuditLog, "Deleted log entries", fields)

	return nil
}

// Record inserts one entry. A zero timestamp means now and an empty level
// means info.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.Event == EventAll || !IsValidEvent(e.Event) {
		return panel.NewError(panel.KindTypeError, fmt.Sprintf("invalid event %q", e.Event))
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.LogLevel == "" {
		e.LogLevel = LevelInfo
	}

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO log (timestamp, admin, ip, domain, username, event, loglevel, msg)
		 VALUES (:timestamp, :admin, :ip, :domain, :username, :event, :loglevel, :msg)`, e)
	if err != nil {
		return s.storeError(ctx, "insert", err)
	}

	tflog.SubsystemTrace(ctx, SubsystemAuditLog, "Recorded log entry", map[string]any{
		"event": e.Event,
		"admin": e.Admin,
	})
	return nil
}

func (s *Store) storeError(ctx context.Context, op string, err error) error {
	tflog.SubsystemError(ctx, SubsystemAuditLog, "Log table operation failed", map[string]any{
		"operation": op,
		"error":     err.Error(),
	})
	return panel.StoreError(err.Error(), err)
}
