package ldap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// client implements the Client interface.
type client struct {
	pool   ConnectionPool
	config *ConnectionConfig
}

// NewClient creates a new LDAP client with connection pooling.
func NewClient(ctx context.Context, config *ConnectionConfig) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Creating new LDAP client", map[string]any{
		"ldap_urls":       config.LDAPURLs,
		"base_dn":         config.BaseDN,
		"auth_method":     config.GetAuthMethod().String(),
		"use_tls":         config.UseTLS,
		"max_connections": config.MaxConnections,
	})

	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		tflog.SubsystemError(ctx, SubsystemLDAP, "Failed to create connection pool", map[string]any{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &client{
		pool:   pool,
		config: config,
	}, nil
}

// Connect checks that a bound connection can be obtained and used.
func (c *client) Connect(ctx context.Context) error {
	return LogOperation(ctx, SubsystemLDAP, "connection_test", map[string]any{
		"ldap_urls": c.config.LDAPURLs,
	}, func() error {
		conn, err := c.pool.Get(ctx)
		if err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}
		defer conn.Close()

		if _, err := conn.Conn().Search(rootDSERequest()); err != nil {
			return WrapError("connection_test", err)
		}

		LogConnectionEvent(ctx, "connection_established", map[string]any{
			"server":      ServerInfoToURL(conn.ServerInfo()),
			"auth_method": c.config.GetAuthMethod().String(),
		})
		return nil
	})
}

// Close closes the client and all its connections.
func (c *client) Close() error {
	return c.pool.Close()
}

// do runs fn on a pooled connection with retry. Each attempt takes its own
// connection so that a broken one is not reused.
func (c *client) do(ctx context.Context, operation, dn string, fn func(conn *ldap.Conn) error) error {
	err := c.withRetry(ctx, func() error {
		conn, err := c.pool.Get(ctx)
		if err != nil {
			return NewConnectionError("failed to get connection", false, err)
		}
		defer conn.Close()

		if err := fn(conn.Conn()); err != nil {
			if IsRetryableError(err) {
				conn.healthy = false
			}
			return err
		}
		return nil
	})
	if err == nil {
		return nil
	}

	LogLDAPError(ctx, SubsystemLDAP, operation, err, map[string]any{"dn": dn})

	ldapErr := NewLDAPError(operation, err)
	if ldapErr.DN == "" {
		ldapErr.DN = dn
	}
	return ldapErr
}

// Search performs an LDAP search.
func (c *client) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req == nil {
		return nil, fmt.Errorf("search request cannot be nil")
	}

	fields := map[string]any{
		"base_dn":    req.BaseDN,
		"scope":      req.Scope.String(),
		"filter":     req.Filter,
		"attributes": req.Attributes,
		"paging":     req.PagingSize,
	}
	start := time.Now()

	var result *ldap.SearchResult
	err := c.do(ctx, "search", req.BaseDN, func(conn *ldap.Conn) error {
		ldapReq := ldap.NewSearchRequest(
			req.BaseDN,
			int(req.Scope),
			int(req.DerefAliases),
			req.SizeLimit,
			int(req.TimeLimit.Seconds()),
			false,
			req.Filter,
			req.Attributes,
			nil,
		)

		var searchErr error
		if req.PagingSize > 0 {
			result, searchErr = conn.SearchWithPaging(ldapReq, req.PagingSize)
		} else {
			result, searchErr = conn.Search(ldapReq)
		}
		return searchErr
	})
	fields["duration_ms"] = time.Since(start).Milliseconds()
	if err != nil {
		return nil, err
	}

	hasMore := req.SizeLimit > 0 && len(result.Entries) >= req.SizeLimit
	fields["entries_found"] = len(result.Entries)
	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Search completed", fields)

	return &SearchResult{
		Entries: result.Entries,
		Total:   len(result.Entries),
		HasMore: hasMore,
	}, nil
}

// Add creates a new LDAP entry.
func (c *client) Add(ctx context.Context, req *AddRequest) error {
	if req == nil {
		return fmt.Errorf("add request cannot be nil")
	}
	if req.DN == "" {
		return fmt.Errorf("DN cannot be empty")
	}
	if len(req.Attributes) == 0 {
		return fmt.Errorf("add request for %s has no attributes", req.DN)
	}

	ldapReq := ldap.NewAddRequest(req.DN, nil)
	for attr, values := range req.Attributes {
		ldapReq.Attribute(attr, values)
	}

	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Adding entry", map[string]any{
		"dn":              req.DN,
		"attribute_count": len(req.Attributes),
	})

	return c.do(ctx, "add", req.DN, func(conn *ldap.Conn) error {
		return conn.Add(ldapReq)
	})
}

// Modify modifies an existing LDAP entry.
func (c *client) Modify(ctx context.Context, req *ModifyRequest) error {
	if req == nil {
		return fmt.Errorf("modify request cannot be nil")
	}
	if req.DN == "" {
		return fmt.Errorf("DN cannot be empty")
	}
	if len(req.AddAttributes)+len(req.ReplaceAttributes)+len(req.DeleteAttributes) == 0 {
		return fmt.Errorf("modify request for %s has no changes", req.DN)
	}

	ldapReq := ldap.NewModifyRequest(req.DN, nil)
	for attr, values := range req.AddAttributes {
		ldapReq.Add(attr, values)
	}
	for attr, values := range req.ReplaceAttributes {
		ldapReq.Replace(attr, values)
	}
	for _, attr := range req.DeleteAttributes {
		ldapReq.Delete(attr, []string{})
	}

	changed := make([]string, 0, len(req.ReplaceAttributes)+len(req.AddAttributes))
	for attr := range req.ReplaceAttributes {
		changed = append(changed, attr)
	}
	for attr := range req.AddAttributes {
		changed = append(changed, attr)
	}
	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Modifying entry", map[string]any{
		"dn":         req.DN,
		"attributes": changed,
		"deleted":    req.DeleteAttributes,
	})

	return c.do(ctx, "modify", req.DN, func(conn *ldap.Conn) error {
		return conn.Modify(ldapReq)
	})
}

// Delete removes an LDAP entry.
func (c *client) Delete(ctx context.Context, dn string) error {
	if dn == "" {
		return fmt.Errorf("DN cannot be empty")
	}

	return c.do(ctx, "delete", dn, func(conn *ldap.Conn) error {
		return conn.Del(ldap.NewDelRequest(dn, nil))
	})
}

// VerifyPassword binds as dn on a fresh connection and closes it afterwards.
func (c *client) VerifyPassword(ctx context.Context, dn, password string) error {
	if dn == "" {
		return fmt.Errorf("DN cannot be empty")
	}
	if password == "" {
		return NewLDAPError("verify_password", ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("empty password")))
	}

	return LogOperation(ctx, SubsystemLDAP, "verify_password", map[string]any{"dn": dn}, func() error {
		conn, err := c.pool.Dial(ctx)
		if err != nil {
			return WrapError("verify_password", err)
		}
		defer conn.Close()

		if err := conn.Bind(dn, password); err != nil {
			ldapErr := NewLDAPError("verify_password", err)
			ldapErr.DN = dn
			return ldapErr
		}
		return nil
	})
}

// Ping tests connectivity to the LDAP server.
func (c *client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", "", func(conn *ldap.Conn) error {
		_, err := conn.Search(rootDSERequest())
		return err
	})
}

// Stats returns pool statistics.
func (c *client) Stats() PoolStats {
	return c.pool.Stats()
}

// withRetry executes an operation with retry logic.
func (c *client) withRetry(ctx context.Context, operation func() error) error {
	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			tflog.SubsystemDebug(ctx, SubsystemLDAP, "Retrying operation", map[string]any{
				"attempt":    attempt,
				"max_retry":  c.config.MaxRetries,
				"backoff_ms": backoff.Milliseconds(),
				"last_error": lastErr.Error(),
			})
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryableError(err) {
			return err
		}

		if attempt == c.config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			tflog.SubsystemWarn(ctx, SubsystemLDAP, "Operation cancelled during retry", map[string]any{
				"context_error": ctx.Err().Error(),
				"attempt":       attempt + 1,
			})
			return ctx.Err()
		case <-time.After(backoff):
			backoff = min(time.Duration(float64(backoff)*c.config.BackoffFactor), c.config.MaxBackoff)
		}
	}

	tflog.SubsystemError(ctx, SubsystemLDAP, "Operation failed after all retries exhausted", map[string]any{
		"total_attempts": c.config.MaxRetries + 1,
		"final_error":    lastErr.Error(),
	})

	return NewConnectionError("operation failed after retries", false, lastErr)
}
