package ldap

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

const (
	defaultLDAPPort  = 389
	defaultLDAPSPort = 636
)

// ParseLDAPURL parses an ldap:// or ldaps:// URL into ServerInfo.
// Any DN or query part of the URL is ignored.
func ParseLDAPURL(rawURL string) (*ServerInfo, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid LDAP URL: %w", err)
	}

	server := &ServerInfo{Host: u.Hostname()}
	switch u.Scheme {
	case "ldaps":
		server.UseTLS = true
		server.Port = defaultLDAPSPort
	case "ldap":
		server.Port = defaultLDAPPort
	default:
		return nil, fmt.Errorf("unsupported scheme %q, must be ldap:// or ldaps://", u.Scheme)
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid port number: %s", p)
		}
		server.Port = port
	}

	return server, ValidateServerInfo(server)
}

// ValidateServerInfo checks that a server has a usable host and port.
func ValidateServerInfo(server *ServerInfo) error {
	if server == nil {
		return fmt.Errorf("server info cannot be nil")
	}

	if server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if server.Port <= 0 || server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", server.Port)
	}

	return nil
}

// ServerInfoToURL converts ServerInfo to LDAP URL.
func ServerInfoToURL(server *ServerInfo) string {
	scheme := "ldap"
	if server.UseTLS {
		scheme = "ldaps"
	}

	return scheme + "://" + net.JoinHostPort(server.Host, strconv.Itoa(server.Port))
}
