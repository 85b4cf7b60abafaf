package stores

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	"github.com/oarkflow/enforce"
)

func newTestDB(t *testing.T) *squealx.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	db := squealx.NewDb(sqlDB, "sqlite", "testdb")
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSQLPolicyStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := NewSQLPolicyStore(newTestDB(t))

	p := enforce.NewPolicyBuilder().
		ID("twin-1").
		Entry(enforce.NewEntryBuilder("owner").
			Subject("google:owner").
			Grant("/", enforce.PermissionRead, enforce.PermissionWrite).
			Revoke("/attributes", enforce.PermissionWrite).
			Build()).
		Build()
	if err := store.SavePolicy(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	if p.Revision != 1 {
		t.Fatalf("first revision: got %d", p.Revision)
	}

	got, err := store.GetPolicy(ctx, "twin-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	e, err := enforce.Compile(got)
	if err != nil {
		t.Fatalf("compile loaded policy: %v", err)
	}
	owner := enforce.NewAuthorizationContext("google:owner")
	if !e.HasPermission(owner, enforce.MustParseResourcePath("/features"), enforce.PermissionWrite) {
		t.Error("grant lost through SQL roundtrip")
	}
	if e.HasPermission(owner, enforce.MustParseResourcePath("/attributes"), enforce.PermissionWrite) {
		t.Error("revoke lost through SQL roundtrip")
	}
}

func TestSQLPolicyStoreRevisionBumpAndHistory(t *testing.T) {
	ctx := context.Background()
	store := NewSQLPolicyStore(newTestDB(t))

	p := enforce.NewPolicyBuilder().
		ID("twin-1").
		Entry(enforce.NewEntryBuilder("owner").Subject("google:owner").Grant("/", enforce.PermissionRead).Build()).
		Build()
	if err := store.SavePolicy(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	p.Entries[0].Resources[0].Grant = enforce.NewPermissionSet(enforce.PermissionRead, enforce.PermissionWrite)
	if err := store.SavePolicy(ctx, p); err != nil {
		t.Fatalf("resave: %v", err)
	}
	if p.Revision != 2 {
		t.Fatalf("revision after resave: got %d", p.Revision)
	}

	hist, err := store.GetPolicyHistory(ctx, "twin-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 || hist[0].Revision != 1 {
		t.Fatalf("history: got %d records, first revision %d", len(hist), hist[0].Revision)
	}

	info, err := store.GetPolicyInfo(ctx, "twin-1")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.ID != "twin-1" || info.Revision != 2 {
		t.Fatalf("info: %+v", info)
	}
	if info.CreatedAt.IsZero() || info.UpdatedAt.IsZero() {
		t.Fatalf("info timestamps not parsed: %+v", info)
	}
}

func TestSQLPolicyStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewSQLPolicyStore(newTestDB(t))

	for _, id := range []string{"twin-b", "twin-a"} {
		p := enforce.NewPolicyBuilder().
			ID(id).
			Entry(enforce.NewEntryBuilder("owner").Subject("google:owner").Grant("/", enforce.PermissionRead).Build()).
			Build()
		if err := store.SavePolicy(ctx, p); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	list, err := store.ListPolicies(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "twin-a" || list[1].ID != "twin-b" {
		t.Fatalf("list: %+v", list)
	}

	if err := store.DeletePolicy(ctx, "twin-a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetPolicy(ctx, "twin-a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetPolicyHistory(ctx, "twin-a"); err == nil {
		t.Fatal("history should be gone after delete")
	}
}
