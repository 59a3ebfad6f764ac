package providers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	dserrors "github.com/ashebanow/secretspec/internal/errors"
	"github.com/ashebanow/secretspec/pkg/provider"
	"github.com/ashebanow/secretspec/pkg/secure"
)

// fakeGCP keeps the latest version of each secret, keyed by resource name.
type fakeGCP struct {
	mu       sync.Mutex
	secrets  map[string][]byte
	created  []*secretmanagerpb.CreateSecretRequest
	versions int
	err      error
}

func newFakeGCP() *fakeGCP {
	return &fakeGCP{secrets: make(map[string][]byte)}
}

func (f *fakeGCP) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	name := strings.TrimSuffix(req.GetName(), "/versions/latest")
	data, ok := f.secrets[name]
	if !ok || data == nil {
		return nil, status.Errorf(codes.NotFound, "Secret [%s] not found or has no versions.", name)
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: append([]byte(nil), data...)},
	}, nil
}

func (f *fakeGCP) CreateSecret(_ context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := req.GetParent() + "/secrets/" + req.GetSecretId()
	if _, ok := f.secrets[name]; ok {
		return nil, status.Error(codes.AlreadyExists, "exists")
	}
	f.secrets[name] = nil
	f.created = append(f.created, req)
	return &secretmanagerpb.Secret{Name: name}, nil
}

func (f *fakeGCP) AddSecretVersion(_ context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.secrets[req.GetParent()]; !ok {
		return nil, status.Error(codes.NotFound, "secret not found")
	}
	f.secrets[req.GetParent()] = append([]byte(nil), req.GetPayload().GetData()...)
	f.versions++
	return &secretmanagerpb.SecretVersion{Name: req.GetParent() + "/versions/1"}, nil
}

func TestGCPSecretManagerContract(t *testing.T) {
	provider.RunContractTests(t, provider.ContractTest{
		CreateProvider: func(t *testing.T) provider.Provider {
			return NewGCPSecretManagerProvider(GCPSecretManagerConfig{ProjectID: "gcp-proj"}, WithGCPClient(newFakeGCP()))
		},
	})
}

func TestGCPSecretManager_CreateThenVersion(t *testing.T) {
	t.Parallel()

	fake := newFakeGCP()
	p := NewGCPSecretManagerProvider(GCPSecretManagerConfig{ProjectID: "gcp-proj"}, WithGCPClient(fake))
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, "my.app", "API_KEY", secure.NewString("v1"), "dev"))
	require.NoError(t, p.Set(ctx, "my.app", "API_KEY", secure.NewString("v2"), "dev"))

	require.Len(t, fake.created, 1)
	assert.Equal(t, "projects/gcp-proj", fake.created[0].GetParent())
	assert.Equal(t, "my-app--dev--API_KEY", fake.created[0].GetSecretId())
	assert.NotNil(t, fake.created[0].GetSecret().GetReplication().GetAutomatic())
	assert.Equal(t, 2, fake.versions)
	assert.Equal(t, []byte("v2"), fake.secrets["projects/gcp-proj/secrets/my-app--dev--API_KEY"])
}

func TestGCPSecretManager_RequiresProject(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("GCLOUD_PROJECT", "")
	t.Setenv("GCP_PROJECT", "")

	p := NewGCPSecretManagerProvider(GCPSecretManagerConfig{}, WithGCPClient(newFakeGCP()))
	_, _, err := p.Get(context.Background(), "myapp", "KEY", "dev")

	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "project", cfgErr.Field)
}

func TestGCPSecretManager_ProjectFromEnvironment(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "from-env")

	p := NewGCPSecretManagerProvider(GCPSecretManagerConfig{}, WithGCPClient(newFakeGCP()))
	assert.Equal(t, "from-env", p.projectID)
}

func TestGCPSecretManager_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		auth     bool
		contains string
	}{
		{name: "permission denied", err: status.Error(codes.PermissionDenied, "caller lacks secretmanager.versions.access"), auth: true, contains: "gcloud auth"},
		{name: "unauthenticated", err: status.Error(codes.Unauthenticated, "no token"), auth: true, contains: "no token"},
		{name: "quota", err: status.Error(codes.ResourceExhausted, "quota"), contains: "Quota exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := newFakeGCP()
			fake.err = tt.err
			p := NewGCPSecretManagerProvider(GCPSecretManagerConfig{ProjectID: "p"}, WithGCPClient(fake))

			_, _, err := p.Get(context.Background(), "myapp", "KEY", "dev")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)

			var authErr provider.AuthError
			assert.Equal(t, tt.auth, errors.As(err, &authErr))
		})
	}
}

func TestScopedSecretName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                  string
		project, profile, key string
		underscore            bool
		want                  string
	}{
		{name: "dots become dashes", project: "my.app", profile: "dev", key: "API_KEY", underscore: true, want: "my-app--dev--API_KEY"},
		{name: "underscores replaced when not allowed", project: "my.app", profile: "dev", key: "API_KEY", want: "my-app--dev--API-KEY"},
		{name: "runs of invalid characters collapse", project: "a//b", profile: "dev", key: "K", want: "a-b--dev--K"},
		{name: "edge dashes trimmed", project: "-app-", profile: "dev", key: "K.", want: "app--dev--K"},
		{name: "empty part", project: "app", profile: "", key: "K", want: "app----K"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, scopedSecretName(tt.project, tt.profile, tt.key, tt.underscore))
		})
	}
}

func TestScopedSecretName_DashesInPartsStayDistinct(t *testing.T) {
	t.Parallel()

	for _, underscore := range []bool{true, false} {
		assert.NotEqual(t,
			scopedSecretName("a-b", "c", "KEY", underscore),
			scopedSecretName("a", "b-c", "KEY", underscore))
		assert.NotEqual(t,
			scopedSecretName("app", "dev-x", "KEY", underscore),
			scopedSecretName("app", "dev", "x-KEY", underscore))
	}
}
