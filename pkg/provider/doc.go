// Package provider defines the contract every secret backend implements.
//
// A secret is addressed by (project, key, profile). The backend decides how
// that triple maps onto its own namespace: a flat environment variable, a
// keyring entry, a typed Bitwarden vault item, a cloud secret name, and so on.
// Callers only see two operations:
//
//	value, found, err := p.Get(ctx, "myapp", "DATABASE_URL", "production")
//	err = p.Set(ctx, "myapp", "DATABASE_URL", secure.NewString(url), "production")
//
// # Not found is not an error
//
// Get reports a missing secret with found == false and a nil error. Errors are
// reserved for configuration problems, authentication, transport failures and
// malformed backend responses.
//
// # Field overrides
//
// Backends whose secrets have sub-fields (a Bitwarden login has a username,
// a password and a TOTP seed) additionally implement FieldProvider so that a
// caller can name the field explicitly. An explicit field always takes
// precedence over any environment or configuration default.
//
// # Secret values
//
// Values travel as *secure.String. They print as [REDACTED] in every format
// and must be released with Destroy once the caller is finished.
//
// # Concurrency
//
// Implementations hold no mutable state beyond their construction-time
// configuration. They impose no locking of their own: two concurrent Set calls
// for the same key race and the last write wins.
package provider
