/*
Package ldap provides the iRedMail account directory operations used by the
admin console.

# Architecture Overview

The package is organized into a few core components:

  - Client: Connection management with pooling and health checks
  - AdminManager: Mail administrator accounts under the admins branch
  - DeleteTree: Recursive removal of an entry and its children

# Connection Management

The Client interface provides connection pooling with failover across the
configured server URLs:

  - ldap:// with optional StartTLS, or ldaps://
  - Connection pooling with periodic health checks
  - Automatic retry with exponential backoff
  - Simple bind, Kerberos (GSSAPI) or anonymous service identity

Per-admin password checks never touch pooled connections. VerifyPassword binds
on a dedicated connection that is closed afterwards, so the pool keeps the
service identity.

# Account Entries

Admin entries live at mail=<escaped address>,<admins DN>. Attribute values
are escaped per RFC 4514 when building DNs and per RFC 4515 when building
filters.

# Error Handling

The package provides structured error handling through LDAPError:

  - Categorized errors (connection, authentication, conflict, etc.)
  - Retryable error classification
  - Server message integration

AdminManager converts these into panel errors so callers see a stable kind
such as ALREADY_EXISTS or STORE_ERROR with the directory's own description.

# Example Usage

	config := ldap.DefaultConfig()
	config.LDAPURLs = []string{"ldap://127.0.0.1"}
	config.Username = "cn=vmailadmin,dc=example,dc=com"
	config.Password = "password"

	client, err := ldap.NewClient(ctx, config)
	if err != nil {
		return err
	}
	defer client.Close()

	admins := ldap.NewAdminManager(client, "o=domainAdmins,dc=example,dc=com", ldap.AdminSettings{})
	sess, err := admins.Authenticate(ctx, "postmaster@example.com", secret)
	if err != nil {
		return err
	}
*/
package ldap
