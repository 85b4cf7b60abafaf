package enforce

import (
	"testing"
)

func testPolicy(id string, rev int64) *Policy {
	return NewPolicyBuilder().
		ID(id).
		Revision(rev).
		Entry(NewEntryBuilder("owner").Subject("google:alice").Grant("/", PermissionRead).Build()).
		Build()
}

func TestRegistryReusesCompiledEnforcer(t *testing.T) {
	r, err := NewEnforcerRegistry(EngineConfig{})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	defer r.Close()

	p := testPolicy("twin-1", 1)
	e1, err := r.Get(p)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	r.Wait()
	e2, err := r.Get(p)
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if e1 != e2 {
		t.Fatal("same id and revision must return the cached enforcer")
	}
}

func TestRegistryRevisionBumpRecompiles(t *testing.T) {
	r, err := NewEnforcerRegistry(EngineConfig{})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	defer r.Close()

	e1, err := r.Get(testPolicy("twin-1", 1))
	if err != nil {
		t.Fatalf("get rev 1: %v", err)
	}
	r.Wait()

	next := NewPolicyBuilder().
		ID("twin-1").
		Revision(2).
		Entry(NewEntryBuilder("owner").Subject("google:alice").Revoke("/", PermissionRead).Grant("/features", PermissionRead).Build()).
		Build()
	e2, err := r.Get(next)
	if err != nil {
		t.Fatalf("get rev 2: %v", err)
	}
	if e1 == e2 {
		t.Fatal("revision bump must produce a fresh enforcer")
	}
	ctx := NewAuthorizationContext("google:alice")
	if e2.HasPermission(ctx, MustParseResourcePath("/"), PermissionRead) {
		t.Error("rev 2 semantics not in effect")
	}
	if !e2.HasPermission(ctx, MustParseResourcePath("/features"), PermissionRead) {
		t.Error("rev 2 grant missing")
	}
}

func TestRegistryInvalidate(t *testing.T) {
	r, err := NewEnforcerRegistry(EngineConfig{})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	defer r.Close()

	p := testPolicy("twin-1", 1)
	e1, err := r.Get(p)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	r.Wait()
	r.Invalidate("twin-1", 1)
	r.Wait()
	e2, err := r.Get(p)
	if err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if e1 == e2 {
		t.Fatal("invalidate must drop the cached enforcer")
	}
}

func TestRegistryAnonymousPolicyNeverCached(t *testing.T) {
	r, err := NewEnforcerRegistry(EngineConfig{})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	defer r.Close()

	p := NewPolicyBuilder().
		Entry(NewEntryBuilder("owner").Subject("google:alice").Grant("/", PermissionRead).Build()).
		Build()
	e1, err := r.Get(p)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	e2, err := r.Get(p)
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if e1 == e2 {
		t.Fatal("policies without an id have no cache identity")
	}
}

func TestRegistryInvalidPolicy(t *testing.T) {
	r, err := NewEnforcerRegistry(EngineConfig{})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	defer r.Close()

	bad := &Policy{ID: "bad", Revision: 1, Entries: []PolicyEntry{{Label: "nobody"}}}
	if _, err := r.Get(bad); err == nil {
		t.Fatal("invalid policy must fail at compile")
	}
}
