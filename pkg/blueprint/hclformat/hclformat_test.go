package hclformat

import (
	"os"
	"path/filepath"
	"testing"
)

func writeHCL(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "blueprint.hcl")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoadDecodesHandlersAndConstructors(t *testing.T) {
	path := writeHCL(t, `
handler "GET /users" {
  handler       = "crate::handlers::list_users"
  error_handler = "crate::errors::handle_list_users_error"
}

constructor "crate::db::Pool" {
  lifecycle = "singleton"
}
`)

	bp, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bp.Handlers) != 1 || bp.Handlers[0].Route != "GET /users" {
		t.Fatalf("expected one handler for GET /users, got %+v", bp.Handlers)
	}
	if len(bp.HandlerErrorHandlers) != 1 {
		t.Fatalf("expected the handler's error_handler to be recorded, got %+v", bp.HandlerErrorHandlers)
	}
	if len(bp.Constructors) != 1 || bp.Constructors[0].Callable != "crate::db::Pool" {
		t.Fatalf("expected one constructor for crate::db::Pool, got %+v", bp.Constructors)
	}
}

func TestLoadRejectsUnknownLifecycle(t *testing.T) {
	path := writeHCL(t, `
constructor "crate::db::Pool" {
  lifecycle = "eternal"
}
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for an unknown lifecycle")
	}
}

func TestLoadSkipsRegistrationWhenWhenIsFalse(t *testing.T) {
	path := writeHCL(t, `
constructor "crate::db::Pool" {
  lifecycle = "singleton"
  when      = env("BPCOMPILE_TEST_POOL_ENABLED") == "true"
}
`)

	bp, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bp.Constructors) != 0 {
		t.Fatalf("expected the gated constructor to be skipped when the env var is unset, got %+v", bp.Constructors)
	}
}

func TestLoadKeepsRegistrationWhenWhenIsTrue(t *testing.T) {
	if err := os.Setenv("BPCOMPILE_TEST_POOL_ENABLED", "true"); err != nil {
		t.Fatalf("setting env var: %v", err)
	}
	defer os.Unsetenv("BPCOMPILE_TEST_POOL_ENABLED")

	path := writeHCL(t, `
constructor "crate::db::Pool" {
  lifecycle = "singleton"
  when      = env("BPCOMPILE_TEST_POOL_ENABLED") == "true"
}
`)

	bp, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bp.Constructors) != 1 {
		t.Fatalf("expected the gated constructor to be kept when the env var matches, got %+v", bp.Constructors)
	}
}

func TestLoadTreatsOmittedWhenAsAlwaysEnabled(t *testing.T) {
	path := writeHCL(t, `
handler "GET /health" {
  handler = "crate::handlers::health"
}
`)

	bp, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bp.Handlers) != 1 {
		t.Fatalf("expected the handler with no when attribute to be kept, got %+v", bp.Handlers)
	}
}
