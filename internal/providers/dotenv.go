package providers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/ashebanow/secretspec/pkg/provider"
	"github.com/ashebanow/secretspec/pkg/secure"
)

// DefaultDotenvPath is used when a dotenv spec names no file.
const DefaultDotenvPath = ".env"

// DotenvProvider stores secrets as KEY=value lines in a single file. Like
// the environment it stands in for, it is not scoped by project or profile;
// use one file per profile instead.
type DotenvProvider struct {
	path string
	// mu serialises read-modify-write cycles within this process.
	mu sync.Mutex
}

var _ provider.Provider = (*DotenvProvider)(nil)

// NewDotenvProvider creates a provider for the file at path.
func NewDotenvProvider(path string) *DotenvProvider {
	if path == "" {
		path = DefaultDotenvPath
	}
	return &DotenvProvider{path: path}
}

// Name returns the provider name
func (d *DotenvProvider) Name() string {
	return "dotenv"
}

// AllowsSet returns true
func (d *DotenvProvider) AllowsSet() bool {
	return true
}

// Path returns the backing file.
func (d *DotenvProvider) Path() string {
	return d.path
}

// Get reads key from the file. A missing file holds no secrets.
func (d *DotenvProvider) Get(_ context.Context, _, key, _ string) (*secure.String, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	values, err := d.read()
	if err != nil {
		return nil, false, err
	}
	v, ok := values[key]
	if !ok {
		return nil, false, nil
	}
	return secure.NewString(v), true, nil
}

// Set rewrites the file with key set to value. Comments and ordering of the
// original file are not preserved.
func (d *DotenvProvider) Set(_ context.Context, _, key string, value *secure.String, _ string) error {
	plain, err := value.Expose()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	values, err := d.read()
	if err != nil {
		return err
	}
	values[key] = plain

	if err := os.WriteFile(d.path, marshalDotenv(values), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", d.path, err)
	}
	return nil
}

// dotenvEscaper escapes what godotenv unescapes inside double quotes.
var dotenvEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\n", `\n`,
	"\r", `\r`,
	`"`, `\"`,
	"!", `\!`,
	"$", `\$`,
	"`", "\\`",
)

// marshalDotenv renders values as sorted KEY="value" lines. Unlike
// godotenv.Marshal it quotes every value, so "007" is not rewritten as 7.
func marshalDotenv(values map[string]string) []byte {
	var b strings.Builder
	for _, key := range slices.Sorted(maps.Keys(values)) {
		fmt.Fprintf(&b, "%s=\"%s\"\n", key, dotenvEscaper.Replace(values[key]))
	}
	return []byte(b.String())
}

func (d *DotenvProvider) read() (map[string]string, error) {
	values, err := godotenv.Read(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", d.path, err)
	}
	return values, nil
}
