package secure

import (
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
)

// Redacted is what every formatting path prints in place of a secret.
const Redacted = "[REDACTED]"

// String is an opaque secret string. The zero value and a nil *String are
// both valid empty secrets.
type String struct {
	mu sync.RWMutex
	// enclave is nil for the empty string; memguard refuses empty enclaves.
	enclave   *memguard.Enclave
	destroyed bool
}

// NewString copies s into an encrypted enclave.
func NewString(s string) *String {
	return NewStringFromBytes([]byte(s))
}

// NewStringFromBytes moves b into an encrypted enclave. b is wiped.
func NewStringFromBytes(b []byte) *String {
	if len(b) == 0 {
		return &String{}
	}
	return &String{enclave: memguard.NewEnclave(b)}
}

// Expose returns a plaintext copy of the secret. A destroyed secret exposes
// as the empty string.
func (s *String) Expose() (string, error) {
	if s == nil {
		return "", nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed || s.enclave == nil {
		return "", nil
	}

	locked, err := s.enclave.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open secret enclave: %w", err)
	}
	defer locked.Destroy()

	return string(locked.Bytes()), nil
}

// IsEmpty reports whether the secret holds no bytes.
func (s *String) IsEmpty() bool {
	if s == nil {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destroyed || s.enclave == nil
}

// Destroy drops the enclave. It is idempotent.
func (s *String) Destroy() {
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.enclave = nil
	s.destroyed = true
}

func (s *String) String() string {
	return Redacted
}

func (s *String) GoString() string {
	return Redacted
}

// Format makes every fmt verb, including %x and %q, print the placeholder.
func (s *String) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(Redacted))
}

func (s *String) MarshalJSON() ([]byte, error) {
	return []byte(`"` + Redacted + `"`), nil
}

func (s *String) MarshalText() ([]byte, error) {
	return []byte(Redacted), nil
}
