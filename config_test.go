package enforce

import (
	"path/filepath"
	"testing"
)

const twinPolicyYAML = `
version: 1
engine:
  read_permission: READ
  ristretto_max_cost: 500000
policies:
  - id: twin-1
    revision: 3
    entries:
      - label: owner
        subjects:
          - id: google:owner
        resources:
          - path: /
            grant: [READ, WRITE]
      - label: client
        subjects:
          - id: google:client
        resources:
          - path: /features/gyroscope
            grant: [READ, WRITE]
          - path: /features/gyroscope/properties/secret
            revoke: [READ]
`

func TestConfigLoadYAMLAndCompile(t *testing.T) {
	cfg, err := NewConfigLoader().LoadYAML([]byte(twinPolicyYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Engine.ReadPermission != PermissionRead || cfg.Engine.RistrettoMaxCost != 500000 {
		t.Fatalf("engine config: %+v", cfg.Engine)
	}

	policy := cfg.FindPolicy("twin-1")
	if policy == nil {
		t.Fatal("policy twin-1 missing")
	}
	if policy.Revision != 3 {
		t.Fatalf("revision: got %d", policy.Revision)
	}
	e := compileT(t, policy)

	client := NewAuthorizationContext("google:client")
	if !e.HasPermission(client, MustParseResourcePath("/features/gyroscope/properties/x"), PermissionRead) {
		t.Error("client should read inside its feature")
	}
	if e.HasPermission(client, MustParseResourcePath("/features/gyroscope/properties/secret"), PermissionRead) {
		t.Error("revoked property must stay hidden")
	}
	if e.HasPermission(client, MustParseResourcePath("/attributes"), PermissionRead) {
		t.Error("client must not see attributes")
	}
}

func TestConfigRoundtripFormats(t *testing.T) {
	loader := NewConfigLoader()
	cfg, err := loader.LoadYAML([]byte(twinPolicyYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}

	jsonData, err := cfg.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	fromJSON, err := loader.LoadJSON(jsonData)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}

	yamlData, err := fromJSON.ToYAML()
	if err != nil {
		t.Fatalf("to yaml: %v", err)
	}
	fromYAML, err := loader.LoadYAML(yamlData)
	if err != nil {
		t.Fatalf("reload yaml: %v", err)
	}

	assertSameAnswers(t, cfg.FindPolicy("twin-1"), fromYAML.FindPolicy("twin-1"))
}

func TestConfigValidateDuplicatePolicyID(t *testing.T) {
	cfg := &Config{Policies: []*Policy{
		NewPolicyBuilder().ID("p").Entry(NewEntryBuilder("a").Subject("x:y").Grant("/", PermissionRead).Build()).Build(),
		NewPolicyBuilder().ID("p").Entry(NewEntryBuilder("b").Subject("x:z").Grant("/", PermissionRead).Build()).Build(),
	}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected duplicate policy id error")
	}
}

func TestConfigStats(t *testing.T) {
	cfg, err := NewConfigLoader().LoadYAML([]byte(twinPolicyYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	st := cfg.Stats()
	want := ConfigStats{Policies: 1, Entries: 2, Subjects: 2, Paths: 3}
	if st != want {
		t.Fatalf("stats: got %+v want %+v", st, want)
	}
}

func TestConfigFileDispatch(t *testing.T) {
	dir := t.TempDir()
	loader := NewConfigLoader()
	cfg, err := loader.LoadYAML([]byte(twinPolicyYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}

	for _, name := range []string{"bundle.yaml", "bundle.json", "bundle.policy"} {
		path := filepath.Join(dir, name)
		if err := cfg.SaveFile(path); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
		loaded, err := loader.LoadFile(path)
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		assertSameAnswers(t, cfg.FindPolicy("twin-1"), loaded.FindPolicy("twin-1"))
	}

	if _, err := loader.LoadFile(filepath.Join(dir, "bundle.toml")); err == nil {
		t.Fatal("expected unsupported-format error")
	}
}

// assertSameAnswers compiles both policies and checks a spread of queries
// for identical outcomes.
func assertSameAnswers(t *testing.T, a, b *Policy) {
	t.Helper()
	if a == nil || b == nil {
		t.Fatal("missing policy")
	}
	ea := compileT(t, a)
	eb := compileT(t, b)
	ctxs := []AuthorizationContext{
		NewAuthorizationContext("google:owner"),
		NewAuthorizationContext("google:client"),
		NewAuthorizationContext("google:owner", "google:client"),
	}
	paths := []string{"/", "/features", "/features/gyroscope", "/features/gyroscope/properties/secret", "/attributes"}
	for _, ctx := range ctxs {
		for _, raw := range paths {
			path := MustParseResourcePath(raw)
			for _, perm := range []Permission{PermissionRead, PermissionWrite} {
				if ea.HasPermission(ctx, path, perm) != eb.HasPermission(ctx, path, perm) {
					t.Errorf("answers diverge at %s %s for %v", raw, perm, ctx.SubjectIDs())
				}
			}
		}
	}
}
