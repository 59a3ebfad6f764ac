package provider

import (
	"context"
	"fmt"

	"github.com/ashebanow/secretspec/pkg/secure"
)

// Provider is implemented by every secret backend.
//
// Example:
//
//	p, err := providers.New("bitwarden://myorg@shared")
//	if err != nil {
//	    return err
//	}
//	v, found, err := p.Get(ctx, "myapp", "API_TOKEN", "dev")
//	if err != nil {
//	    return err
//	}
//	if !found {
//	    return fmt.Errorf("API_TOKEN is not set")
//	}
//	defer v.Destroy()
type Provider interface {
	// Name returns the stable, lowercase provider identifier used in logs,
	// metrics labels and error messages.
	Name() string

	// AllowsSet reports whether Set is supported. Read-only providers return
	// a ReadOnlyError from Set.
	AllowsSet() bool

	// Get retrieves the secret stored under (project, key, profile).
	// A missing secret yields (nil, false, nil).
	Get(ctx context.Context, project, key, profile string) (*secure.String, bool, error)

	// Set creates or replaces the secret stored under (project, key, profile).
	// Calling Set twice with the same value leaves exactly one stored secret.
	Set(ctx context.Context, project, key string, value *secure.String, profile string) error
}

// FieldProvider is implemented by providers whose secrets carry several
// sub-fields. field names the sub-field explicitly; an empty field behaves
// exactly like Get and Set.
type FieldProvider interface {
	Provider
	GetField(ctx context.Context, project, key, profile, field string) (*secure.String, bool, error)
	SetField(ctx context.Context, project, key string, value *secure.String, profile, field string) error
}

// AuthError indicates that the backend rejected or lacks credentials.
type AuthError struct {
	// Provider is the name of the provider that failed authentication.
	Provider string

	// Message tells the user how to authenticate.
	Message string
}

// Error implements the error interface.
func (e AuthError) Error() string {
	return "authentication failed for " + e.Provider + ": " + e.Message
}

// ReadOnlyError is returned by Set on providers that cannot store secrets.
type ReadOnlyError struct {
	Provider string
}

func (e ReadOnlyError) Error() string {
	return fmt.Sprintf("provider %s is read-only", e.Provider)
}

// ProviderNotFoundError is returned when a provider specification names a
// scheme that no backend is registered for.
type ProviderNotFoundError struct {
	// Scheme is the unrecognised scheme exactly as the caller wrote it.
	Scheme string

	// Suggestion is set for well-known misspellings.
	Suggestion string
}

func (e ProviderNotFoundError) Error() string {
	msg := fmt.Sprintf("provider not found: %s", e.Scheme)
	if e.Suggestion != "" {
		msg += ". " + e.Suggestion
	}
	return msg
}
