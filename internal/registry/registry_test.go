package registry

import (
	"path/filepath"
	"testing"

	"github.com/blackms/aistack-sub001/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Enabled = false
	cfg.Dispatch.Enabled = false
	return cfg
}

func TestGetMemoizesByFingerprint(t *testing.T) {
	t.Cleanup(Reset)

	cfg := testConfig(t)
	first, err := Get(cfg)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, err := Get(cfg)
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if first != second {
		t.Error("expected the same component set for an unchanged config")
	}
	if first.Queue == nil || first.Router == nil || first.Consensus == nil ||
		first.Governor == nil || first.Dispatcher == nil {
		t.Error("expected all components wired")
	}
	if first.Store != nil {
		t.Error("expected no store with storage disabled")
	}
}

func TestGetRebuildsOnConfigChange(t *testing.T) {
	t.Cleanup(Reset)

	cfg := testConfig(t)
	first, err := Get(cfg)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	changed := testConfig(t)
	changed.Governor.MaxApiCalls = 5
	second, err := Get(changed)
	if err != nil {
		t.Fatalf("get changed: %v", err)
	}
	if first == second {
		t.Error("expected a fresh component set for a changed config")
	}
}

func TestRebuildForcesFreshComponents(t *testing.T) {
	t.Cleanup(Reset)

	cfg := testConfig(t)
	first, err := Get(cfg)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, err := Rebuild(cfg)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if first == second {
		t.Error("expected rebuild to discard the memoized set")
	}
}

func TestFingerprintStable(t *testing.T) {
	cfg := testConfig(t)
	a, err := Fingerprint(cfg)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	b, err := Fingerprint(cfg)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if a != b {
		t.Error("expected stable fingerprint for equal configs")
	}

	cfg.Governor.MaxTokens++
	c, err := Fingerprint(cfg)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if a == c {
		t.Error("expected fingerprint to change with the config")
	}
}

func TestGetWithStorage(t *testing.T) {
	t.Cleanup(Reset)

	cfg := testConfig(t)
	cfg.Storage.Enabled = true
	cfg.Storage.Path = filepath.Join(t.TempDir(), "state.db")

	components, err := Get(cfg)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if components.Store == nil {
		t.Fatal("expected a store with storage enabled")
	}
	if components.Store.Path() != cfg.Storage.Path {
		t.Errorf("unexpected store path: %s", components.Store.Path())
	}
}
