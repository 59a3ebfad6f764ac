package providers

import (
	"context"
	"sync"

	"github.com/ashebanow/secretspec/pkg/provider"
	"github.com/ashebanow/secretspec/pkg/secure"
)

// MemoryProvider keeps secrets in process memory. It backs tests and
// dry runs; nothing survives the process.
type MemoryProvider struct {
	mu     sync.RWMutex
	values map[string]*secure.String
}

var _ provider.Provider = (*MemoryProvider)(nil)

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{values: make(map[string]*secure.String)}
}

// Name returns the provider name
func (m *MemoryProvider) Name() string {
	return "memory"
}

// AllowsSet returns true
func (m *MemoryProvider) AllowsSet() bool {
	return true
}

// Get returns a copy of the stored secret.
func (m *MemoryProvider) Get(_ context.Context, project, key, profile string) (*secure.String, bool, error) {
	m.mu.RLock()
	stored, ok := m.values[scopedName("/", project, profile, key)]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	plain, err := stored.Expose()
	if err != nil {
		return nil, false, err
	}
	return secure.NewString(plain), true, nil
}

// Set stores a copy of value; the caller keeps ownership of value.
func (m *MemoryProvider) Set(_ context.Context, project, key string, value *secure.String, profile string) error {
	plain, err := value.Expose()
	if err != nil {
		return err
	}

	name := scopedName("/", project, profile, key)

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.values[name]; ok {
		old.Destroy()
	}
	m.values[name] = secure.NewString(plain)
	return nil
}

// scopedName joins project, profile and key with sep.
func scopedName(sep, project, profile, key string) string {
	return project + sep + profile + sep + key
}
