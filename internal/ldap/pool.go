package ldap

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// MaxConnectionPoolLimit is the maximum allowed connections in a pool.
const MaxConnectionPoolLimit = 100

// reauthInterval bounds how long a pooled bind is trusted before rebinding.
const reauthInterval = 5 * time.Minute

// connectionPool implements ConnectionPool interface.
type connectionPool struct {
	ctx         context.Context // Logging context with LDAP subsystem
	config      *ConnectionConfig
	servers     []*ServerInfo
	connections chan *PooledConnection
	mu          sync.RWMutex
	closed      bool

	// Statistics
	activeConns  int64
	totalCreated int64
	totalErrors  int64
	startTime    time.Time

	// Health checking
	healthTicker *time.Ticker
	healthStop   chan struct{}
	healthWg     sync.WaitGroup
}

// NewConnectionPool creates a new connection pool. No connection is opened
// until the first Get.
func NewConnectionPool(ctx context.Context, config *ConnectionConfig) (ConnectionPool, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	servers := make([]*ServerInfo, 0, len(config.LDAPURLs))
	for _, u := range config.LDAPURLs {
		server, err := ParseLDAPURL(u)
		if err != nil {
			return nil, fmt.Errorf("invalid LDAP URL %s: %w", u, err)
		}
		servers = append(servers, server)
	}

	if config.TLSConfig == nil {
		config.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if config.TLSConfig.RootCAs == nil {
		rootCAs, err := buildCertPool(config.TLSCACertFile, config.TLSCACert)
		if err != nil {
			return nil, fmt.Errorf("failed to build CA pool: %w", err)
		}
		config.TLSConfig.RootCAs = rootCAs
	}

	pool := &connectionPool{
		ctx:         ctx,
		config:      config,
		servers:     servers,
		connections: make(chan *PooledConnection, config.MaxConnections),
		startTime:   time.Now(),
		healthStop:  make(chan struct{}),
	}

	if config.HealthCheck > 0 {
		pool.startHealthChecker()
	}

	LogPoolEvent(ctx, "pool_initialized", map[string]any{
		"server_count":    len(servers),
		"max_connections": config.MaxConnections,
	})

	return pool, nil
}

// buildCertPool returns the system roots extended with a CA from file or inline PEM.
func buildCertPool(caFile, caContent string) (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}

	if caFile != "" {
		data, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file %s: %w", caFile, err)
		}
		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("invalid PEM format in CA certificate file %s", caFile)
		}
	}

	if caContent != "" {
		if !pool.AppendCertsFromPEM([]byte(caContent)) {
			return nil, errors.New("invalid PEM format in CA certificate content")
		}
	}

	return pool, nil
}

// Get retrieves a connection from the pool.
func (p *connectionPool) Get(ctx context.Context) (*PooledConnection, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, errors.New("connection pool is closed")
	}
	p.mu.RUnlock()

	select {
	case conn := <-p.connections:
		if p.isConnectionHealthy(conn) {
			if p.config.HasAuthentication() && p.needsReAuthentication(conn) {
				if err := p.authenticateConnection(ctx, conn); err != nil {
					p.closeConnection(conn)
					return p.createConnection(ctx)
				}
			}
			conn.lastUsed = time.Now()
			atomic.AddInt64(&p.activeConns, 1)
			LogPoolEvent(p.ctx, "connection_acquired", map[string]any{"reused": true})
			return conn, nil
		}
		p.closeConnection(conn)
	default:
	}

	return p.createConnection(ctx)
}

// Dial opens an unbound connection to the first reachable server.
func (p *connectionPool) Dial(ctx context.Context) (*ldap.Conn, error) {
	var lastErr error
	for _, server := range p.servers {
		conn, err := p.dialServer(ctx, server)
		if err != nil {
			lastErr = err
			atomic.AddInt64(&p.totalErrors, 1)
			continue
		}
		return conn, nil
	}
	return nil, NewConnectionError("no LDAP server reachable", true, lastErr)
}

// createConnection creates a new connection with retry logic.
func (p *connectionPool) createConnection(ctx context.Context) (*PooledConnection, error) {
	var lastErr error
	backoff := p.config.InitialBackoff

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		for _, server := range p.servers {
			conn, err := p.createSingleConnection(ctx, server)
			if err != nil {
				lastErr = err
				atomic.AddInt64(&p.totalErrors, 1)
				LogPoolEvent(p.ctx, "connection_failed", map[string]any{
					"server":  ServerInfoToURL(server),
					"attempt": attempt + 1,
					"error":   err.Error(),
				})
				continue
			}

			atomic.AddInt64(&p.totalCreated, 1)
			atomic.AddInt64(&p.activeConns, 1)
			return conn, nil
		}

		if attempt < p.config.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff = min(time.Duration(float64(backoff)*p.config.BackoffFactor), p.config.MaxBackoff)
			}
		}
	}

	LogPoolEvent(p.ctx, "all_connections_failed", map[string]any{
		"attempts": p.config.MaxRetries + 1,
	})
	return nil, NewConnectionError("failed to create connection after retries", true, lastErr)
}

// dialServer connects to one server, applying LDAPS or StartTLS as configured.
func (p *connectionPool) dialServer(ctx context.Context, server *ServerInfo) (*ldap.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target := ServerInfoToURL(server)
	tlsConfig := p.tlsConfigFor(server)

	var conn *ldap.Conn
	var err error

	if server.UseTLS {
		conn, err = ldap.DialURL(target, ldap.DialWithTLSConfig(tlsConfig))
	} else {
		conn, err = ldap.DialURL(target)
		if err == nil && p.config.UseTLS && !p.config.SkipTLS {
			if tlsErr := conn.StartTLS(tlsConfig); tlsErr != nil {
				conn.Close()
				err = fmt.Errorf("StartTLS failed: %w", tlsErr)
			}
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}

	conn.SetTimeout(p.config.Timeout)
	return conn, nil
}

// tlsConfigFor clones the configured TLS settings with ServerName set for verification.
func (p *connectionPool) tlsConfigFor(server *ServerInfo) *tls.Config {
	if p.config.TLSConfig == nil {
		return &tls.Config{MinVersion: tls.VersionTLS12, ServerName: server.Host}
	}
	cfg := p.config.TLSConfig.Clone()
	if !cfg.InsecureSkipVerify && cfg.ServerName == "" {
		cfg.ServerName = server.Host
	}
	return cfg
}

// createSingleConnection creates and binds a connection to a specific server.
func (p *connectionPool) createSingleConnection(ctx context.Context, server *ServerInfo) (*PooledConnection, error) {
	conn, err := p.dialServer(ctx, server)
	if err != nil {
		return nil, err
	}

	pooledConn := &PooledConnection{
		conn:         conn,
		lastUsed:     time.Now(),
		healthy:      true,
		serverInfo:   server,
		returnToPool: p.returnConnection,
	}

	if p.config.HasAuthentication() {
		if err := p.authenticateConnection(ctx, pooledConn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to authenticate connection to %s: %w", ServerInfoToURL(server), err)
		}
	}

	return pooledConn, nil
}

// authenticateConnection binds a pooled connection with the service credentials.
func (p *connectionPool) authenticateConnection(ctx context.Context, pooledConn *PooledConnection) error {
	if pooledConn == nil || pooledConn.conn == nil {
		return fmt.Errorf("connection is nil")
	}

	authMethod := p.config.GetAuthMethod()
	var err error

	switch authMethod {
	case AuthMethodSimpleBind:
		err = pooledConn.conn.Bind(p.config.Username, p.config.Password)
	case AuthMethodKerberos:
		err = performKerberosAuth(ctx, pooledConn.conn, p.config, pooledConn.serverInfo)
	case AuthMethodAnonymous:
		return nil
	default:
		return fmt.Errorf("unsupported authentication method: %s", authMethod.String())
	}

	if err != nil {
		pooledConn.authenticated = false
		pooledConn.authTime = time.Time{}
		LogConnectionEvent(p.ctx, "authentication_failed", map[string]any{
			"auth_method": authMethod.String(),
			"error":       err.Error(),
		})
		return err
	}

	pooledConn.authenticated = true
	pooledConn.authTime = time.Now()
	return nil
}

func (p *connectionPool) needsReAuthentication(conn *PooledConnection) bool {
	if conn == nil || !conn.authenticated {
		return true
	}
	return time.Since(conn.authTime) > reauthInterval
}

// returnConnection returns a connection to the pool.
func (p *connectionPool) returnConnection(conn *PooledConnection) {
	if conn == nil {
		return
	}

	atomic.AddInt64(&p.activeConns, -1)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.closeConnection(conn)
		return
	}

	if p.isConnectionHealthy(conn) {
		select {
		case p.connections <- conn:
		default:
			p.closeConnection(conn)
		}
		return
	}

	p.closeConnection(conn)
}

// isConnectionHealthy checks if a connection is healthy.
func (p *connectionPool) isConnectionHealthy(conn *PooledConnection) bool {
	if conn == nil || conn.conn == nil || !conn.IsHealthy() {
		return false
	}

	if conn.conn.IsClosing() {
		return false
	}

	if time.Since(conn.lastUsed) > p.config.MaxIdleTime {
		return false
	}

	if p.config.HasAuthentication() && !conn.authenticated {
		return false
	}

	return true
}

// closeConnection closes a pooled connection.
func (p *connectionPool) closeConnection(conn *PooledConnection) {
	if conn != nil && conn.conn != nil {
		conn.conn.Close()
		conn.healthy = false
		conn.authenticated = false
		conn.authTime = time.Time{}
	}
}

// Close closes all connections and shuts down the pool.
func (p *connectionPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if p.healthTicker != nil {
		close(p.healthStop)
		p.healthWg.Wait()
		p.healthTicker.Stop()
	}

	for {
		select {
		case conn := <-p.connections:
			p.closeConnection(conn)
		default:
			return nil
		}
	}
}

// Stats returns pool statistics.
func (p *connectionPool) Stats() PoolStats {
	idle := len(p.connections)
	active := atomic.LoadInt64(&p.activeConns)

	return PoolStats{
		Total:   idle + int(active),
		Active:  active,
		Idle:    idle,
		Created: atomic.LoadInt64(&p.totalCreated),
		Errors:  atomic.LoadInt64(&p.totalErrors),
		Uptime:  time.Since(p.startTime),
	}
}

// HealthCheck reports whether the pool is usable.
func (p *connectionPool) HealthCheck(_ context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return errors.New("pool is closed")
	}
	return nil
}

func (p *connectionPool) startHealthChecker() {
	p.healthTicker = time.NewTicker(p.config.HealthCheck)

	p.healthWg.Go(func() {
		for {
			select {
			case <-p.healthTicker.C:
				p.performHealthCheck()
			case <-p.healthStop:
				return
			}
		}
	})
}

// performHealthCheck tests up to three idle connections and drops the broken ones.
func (p *connectionPool) performHealthCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
	defer cancel()

	var toCheck []*PooledConnection
collect:
	for range 3 {
		select {
		case conn := <-p.connections:
			toCheck = append(toCheck, conn)
		default:
			break collect
		}
	}

	for _, conn := range toCheck {
		if p.testConnection(ctx, conn) {
			// returnConnection decrements the active counter
			atomic.AddInt64(&p.activeConns, 1)
			p.returnConnection(conn)
		} else {
			LogPoolEvent(p.ctx, "health_check_failed", map[string]any{
				"server": ServerInfoToURL(conn.serverInfo),
			})
			p.closeConnection(conn)
		}
	}

	tflog.SubsystemTrace(p.ctx, "pool", "Health check completed", map[string]any{
		"checked": len(toCheck),
	})
}

// testConnection runs a root DSE read on the connection.
func (p *connectionPool) testConnection(ctx context.Context, conn *PooledConnection) bool {
	if conn == nil || conn.conn == nil {
		return false
	}

	if p.config.HasAuthentication() && p.needsReAuthentication(conn) {
		if err := p.authenticateConnection(ctx, conn); err != nil {
			return false
		}
	}

	if _, err := conn.conn.Search(rootDSERequest()); err != nil {
		conn.authenticated = false
		conn.authTime = time.Time{}
		return false
	}

	conn.lastUsed = time.Now()
	return true
}

func rootDSERequest() *ldap.SearchRequest {
	return ldap.NewSearchRequest(
		"",
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1, 5, false,
		"(objectClass=*)",
		[]string{"namingContexts"},
		nil,
	)
}

// validateConfig validates the connection configuration.
func validateConfig(config *ConnectionConfig) error {
	if len(config.LDAPURLs) == 0 {
		return errors.New("at least one LDAP URL must be specified")
	}

	if config.MaxConnections <= 0 {
		return errors.New("MaxConnections must be positive")
	}

	if config.MaxConnections > MaxConnectionPoolLimit {
		return fmt.Errorf("MaxConnections too high (max %d)", MaxConnectionPoolLimit)
	}

	if config.MaxIdleTime <= 0 {
		return errors.New("MaxIdleTime must be positive")
	}

	if config.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}

	if config.MaxRetries < 0 {
		return errors.New("MaxRetries cannot be negative")
	}

	if config.BackoffFactor <= 1.0 {
		return errors.New("BackoffFactor must be greater than 1.0")
	}

	return nil
}

// Close returns the connection to its pool.
func (pc *PooledConnection) Close() {
	if pc.returnToPool != nil {
		pc.returnToPool(pc)
	}
}

func (pc *PooledConnection) Conn() *ldap.Conn {
	return pc.conn
}

func (pc *PooledConnection) ServerInfo() *ServerInfo {
	return pc.serverInfo
}

func (pc *PooledConnection) IsHealthy() bool {
	return pc.healthy
}
