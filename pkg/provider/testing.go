package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ashebanow/secretspec/pkg/secure"
)

// ContractTest describes a provider under test for RunContractTests.
type ContractTest struct {
	// CreateProvider returns a fresh provider backed by an isolated store.
	CreateProvider func(t *testing.T) Provider

	// Project used for every call. Defaults to "contract".
	Project string

	// SkipProfileIsolation is set for backends whose keys are not scoped
	// by profile.
	SkipProfileIsolation bool
}

// RunContractTests runs the behaviour every provider must share.
func RunContractTests(t *testing.T, contract ContractTest) {
	if contract.Project == "" {
		contract.Project = "contract"
	}

	t.Run("Contract", func(t *testing.T) {
		t.Run("Name", func(t *testing.T) {
			testProviderName(t, contract)
		})

		t.Run("GetMissing", func(t *testing.T) {
			testProviderGetMissing(t, contract)
		})

		p := contract.CreateProvider(t)
		if !p.AllowsSet() {
			t.Run("ReadOnly", func(t *testing.T) {
				testProviderReadOnly(t, contract)
			})
			return
		}

		t.Run("RoundTrip", func(t *testing.T) {
			testProviderRoundTrip(t, contract)
		})

		t.Run("Idempotent", func(t *testing.T) {
			testProviderIdempotent(t, contract)
		})

		if !contract.SkipProfileIsolation {
			t.Run("ProfileIsolation", func(t *testing.T) {
				testProviderProfileIsolation(t, contract)
			})
		}
	})
}

func testProviderName(t *testing.T, contract ContractTest) {
	p := contract.CreateProvider(t)

	name := p.Name()
	if name == "" {
		t.Error("Provider.Name() returned empty string")
	}

	if name2 := p.Name(); name != name2 {
		t.Errorf("Provider.Name() not consistent: %q != %q", name, name2)
	}
}

func testProviderGetMissing(t *testing.T, contract ContractTest) {
	p := contract.CreateProvider(t)
	key := "MISSING_" + time.Now().Format("20060102150405")

	value, found, err := p.Get(context.Background(), contract.Project, key, "default")
	if err != nil {
		t.Fatalf("Provider.Get() of a missing key returned an error: %v", err)
	}
	if found || value != nil {
		t.Errorf("Provider.Get() of a missing key reported found=%v", found)
	}
}

func testProviderReadOnly(t *testing.T, contract ContractTest) {
	p := contract.CreateProvider(t)

	err := p.Set(context.Background(), contract.Project, "ANY", secure.NewString("x"), "default")
	var readOnly ReadOnlyError
	if !errors.As(err, &readOnly) {
		t.Errorf("Provider.Set() on a read-only provider returned %v, want ReadOnlyError", err)
	}
}

func testProviderRoundTrip(t *testing.T, contract ContractTest) {
	p := contract.CreateProvider(t)
	ctx := context.Background()

	values := []string{
		"simple",
		"with spaces and\ttabs",
		"multi\nline\nvalue",
		"ünïcödé 🔐 値",
	}

	for i, want := range values {
		key := fmt.Sprintf("ROUND_TRIP_%d", i)
		if err := p.Set(ctx, contract.Project, key, secure.NewString(want), "default"); err != nil {
			t.Fatalf("Provider.Set(%s) failed: %v", key, err)
		}

		got := mustGet(t, p, contract.Project, key, "default")
		if got != want {
			t.Errorf("round trip of %s: got %q, want %q", key, got, want)
		}
	}
}

func testProviderIdempotent(t *testing.T, contract ContractTest) {
	p := contract.CreateProvider(t)
	ctx := context.Background()

	for range 2 {
		if err := p.Set(ctx, contract.Project, "IDEMPOTENT", secure.NewString("same"), "default"); err != nil {
			t.Fatalf("Provider.Set() failed: %v", err)
		}
	}
	if err := p.Set(ctx, contract.Project, "IDEMPOTENT", secure.NewString("updated"), "default"); err != nil {
		t.Fatalf("Provider.Set() update failed: %v", err)
	}

	if got := mustGet(t, p, contract.Project, "IDEMPOTENT", "default"); got != "updated" {
		t.Errorf("after overwrite got %q, want %q", got, "updated")
	}
}

func testProviderProfileIsolation(t *testing.T, contract ContractTest) {
	p := contract.CreateProvider(t)
	ctx := context.Background()

	if err := p.Set(ctx, contract.Project, "ISOLATED", secure.NewString("dev-only"), "dev"); err != nil {
		t.Fatalf("Provider.Set() failed: %v", err)
	}

	value, found, err := p.Get(ctx, contract.Project, "ISOLATED", "staging")
	if err != nil {
		t.Fatalf("Provider.Get() failed: %v", err)
	}
	if found {
		value.Destroy()
		t.Error("value set under profile dev is visible under profile staging")
	}
}

func mustGet(t *testing.T, p Provider, project, key, profile string) string {
	t.Helper()

	value, found, err := p.Get(context.Background(), project, key, profile)
	if err != nil {
		t.Fatalf("Provider.Get(%s) failed: %v", key, err)
	}
	if !found {
		t.Fatalf("Provider.Get(%s) found nothing", key)
	}
	defer value.Destroy()

	plain, err := value.Expose()
	if err != nil {
		t.Fatalf("Expose failed: %v", err)
	}
	return plain
}
