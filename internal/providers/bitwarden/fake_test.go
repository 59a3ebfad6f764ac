package bitwarden

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/ashebanow/secretspec/internal/testutil"
	pkgexec "github.com/ashebanow/secretspec/pkg/exec"
)

// fakeVault emulates the parts of bw and bws the provider uses, backed by
// in-memory item documents and secrets.
type fakeVault struct {
	mu      sync.Mutex
	status  string
	items   []map[string]any
	secrets []Secret
	nextID  int
}

func newFakeVault() *fakeVault {
	return &fakeVault{status: "unlocked"}
}

// executor returns a mock executor wired to v.
func (v *fakeVault) executor() *testutil.MockCommandExecutor {
	m := testutil.NewMockCommandExecutor()
	m.StrictMode = true
	m.AddHandler("bw status", v.bwStatus)
	m.AddHandler("bw list items", v.bwList)
	m.AddHandler("bw get item", v.bwGet)
	m.AddHandler("bw create item", v.bwCreate)
	m.AddHandler("bw edit item", v.bwEdit)
	m.AddHandler("bws secret list", v.bwsList)
	m.AddHandler("bws secret create", v.bwsCreate)
	m.AddHandler("bws secret edit", v.bwsEdit)
	return m
}

// newProvider returns a provider backed by v with an empty environment.
func (v *fakeVault) newProvider(t *testing.T, uri string) (*Provider, *testutil.MockCommandExecutor) {
	t.Helper()

	cfg, err := ParseConfig(uri)
	if err != nil {
		t.Fatalf("ParseConfig(%q): %v", uri, err)
	}
	m := v.executor()
	return New(cfg, WithExecutor(m), WithEnvironment(map[string]string{})), m
}

func (v *fakeVault) addItem(doc map[string]any) string {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.nextID++
	id := fmt.Sprintf("item-%d", v.nextID)
	doc["id"] = id
	v.items = append(v.items, doc)
	return id
}

func (v *fakeVault) addSecret(key, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.nextID++
	v.secrets = append(v.secrets, Secret{ID: fmt.Sprintf("secret-%d", v.nextID), Key: key, Value: value})
}

func (v *fakeVault) item(id string) map[string]any {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, it := range v.items {
		if it["id"] == id {
			return it
		}
	}
	return nil
}

func jsonResponse(value any) testutil.MockResponse {
	data, err := json.Marshal(value)
	if err != nil {
		return testutil.ErrorResponse(err.Error(), 1)
	}
	return testutil.MockResponse{Stdout: data}
}

func argAfter(args []string, flag string) string {
	if i := slices.Index(args, flag); i >= 0 && i+1 < len(args) {
		return args[i+1]
	}
	return ""
}

func (v *fakeVault) bwStatus(pkgexec.Command) testutil.MockResponse {
	v.mu.Lock()
	defer v.mu.Unlock()
	return jsonResponse(map[string]string{"status": v.status})
}

func (v *fakeVault) bwList(c pkgexec.Command) testutil.MockResponse {
	v.mu.Lock()
	defer v.mu.Unlock()

	search := strings.ToLower(argAfter(c.Args, "--search"))
	out := []map[string]any{}
	for _, it := range v.items {
		name, _ := it["name"].(string)
		if strings.Contains(strings.ToLower(name), search) {
			out = append(out, it)
		}
	}
	return jsonResponse(out)
}

func (v *fakeVault) bwGet(c pkgexec.Command) testutil.MockResponse {
	if it := v.item(c.Args[2]); it != nil {
		v.mu.Lock()
		defer v.mu.Unlock()
		return jsonResponse(it)
	}
	return testutil.ErrorResponse("Not found.", 1)
}

func decodePayload(stdin []byte) (map[string]any, error) {
	raw, err := base64.StdEncoding.DecodeString(string(stdin))
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	return doc, json.Unmarshal(raw, &doc)
}

func (v *fakeVault) bwCreate(c pkgexec.Command) testutil.MockResponse {
	doc, err := decodePayload(c.Stdin)
	if err != nil {
		return testutil.ErrorResponse(err.Error(), 1)
	}
	v.addItem(doc)
	return jsonResponse(doc)
}

func (v *fakeVault) bwEdit(c pkgexec.Command) testutil.MockResponse {
	doc, err := decodePayload(c.Stdin)
	if err != nil {
		return testutil.ErrorResponse(err.Error(), 1)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for i, it := range v.items {
		if it["id"] == c.Args[2] {
			doc["id"] = c.Args[2]
			v.items[i] = doc
			return jsonResponse(doc)
		}
	}
	return testutil.ErrorResponse("Not found.", 1)
}

func (v *fakeVault) bwsList(pkgexec.Command) testutil.MockResponse {
	v.mu.Lock()
	defer v.mu.Unlock()
	return jsonResponse(append([]Secret{}, v.secrets...))
}

// bwsCreate handles: bws secret create <key> <value> <project> --note <note>.
func (v *fakeVault) bwsCreate(c pkgexec.Command) testutil.MockResponse {
	key, value, project := c.Args[2], c.Args[3], c.Args[4]

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, s := range v.secrets {
		if s.Key == key {
			return testutil.ErrorResponse("Error: \n   0: Received error message from server: [400 Bad Request] {\"message\":\"A secret with this key already exists.\"}", 1)
		}
	}
	v.nextID++
	s := Secret{ID: fmt.Sprintf("secret-%d", v.nextID), ProjectID: project, Key: key, Value: value, Note: argAfter(c.Args, "--note")}
	v.secrets = append(v.secrets, s)
	return jsonResponse(s)
}

// bwsEdit handles: bws secret edit <id> --key <key> --value <value>.
func (v *fakeVault) bwsEdit(c pkgexec.Command) testutil.MockResponse {
	id := c.Args[2]

	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.secrets {
		if v.secrets[i].ID == id {
			v.secrets[i].Key = argAfter(c.Args, "--key")
			v.secrets[i].Value = argAfter(c.Args, "--value")
			return jsonResponse(v.secrets[i])
		}
	}
	return testutil.ErrorResponse("Resource not found.", 1)
}
