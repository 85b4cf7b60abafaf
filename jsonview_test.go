package enforce

import (
	"encoding/json"
	"reflect"
	"testing"
)

func mustJSON(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("bad fixture json: %v", err)
	}
	return v
}

const twinEntityJSON = `{
	"thingId": "org.acme:twin-1",
	"attributes": {
		"manufacturer": "ACME",
		"location": {"latitude": 44.6, "longitude": 12.8}
	},
	"features": {
		"gyroscope": {
			"properties": {
				"status": {"x": 0.1, "y": 0.2, "z": 0.3},
				"unit": "deg/s"
			}
		},
		"accelerometer": {
			"properties": {"status": "ok"}
		}
	}
}`

func TestJSONViewOwnerSeesEverything(t *testing.T) {
	e := compileT(t, NewPolicyBuilder().
		Entry(NewEntryBuilder("owner").Subject("google:owner").Grant("/", PermissionRead, PermissionWrite).Build()).
		Build())
	entity := mustJSON(t, twinEntityJSON)
	view := e.BuildJSONView(entity, NewAuthorizationContext("google:owner"), MustParseResourcePath("/"))
	if !reflect.DeepEqual(view, entity) {
		t.Fatalf("owner view should be the full document, got %v", view)
	}
}

func TestJSONViewFeatureScopedClient(t *testing.T) {
	// owner holds everything; client holds only /features/gyroscope
	e := compileT(t, NewPolicyBuilder().
		Entry(NewEntryBuilder("owner").Subject("google:owner").Grant("/", PermissionRead, PermissionWrite).Build()).
		Entry(NewEntryBuilder("client").Subject("google:client").Grant("/features/gyroscope", PermissionRead, PermissionWrite).Build()).
		Build())
	entity := mustJSON(t, twinEntityJSON)
	view := e.BuildJSONView(entity, NewAuthorizationContext("google:client"), MustParseResourcePath("/"))
	want := mustJSON(t, `{
		"features": {
			"gyroscope": {
				"properties": {
					"status": {"x": 0.1, "y": 0.2, "z": 0.3},
					"unit": "deg/s"
				}
			}
		}
	}`)
	if !reflect.DeepEqual(view, want) {
		t.Fatalf("client view:\ngot  %v\nwant %v", view, want)
	}
}

func TestJSONViewScaffoldingAroundDeepLeaf(t *testing.T) {
	// one readable leaf three levels deep: both ancestor containers are
	// retained empty of other siblings
	e := compileT(t, NewPolicyBuilder().
		Entry(NewEntryBuilder("leaf").Subject("google:alice").Grant("/features/gyroscope/properties", PermissionRead).Build()).
		Build())
	entity := mustJSON(t, twinEntityJSON)
	view := e.BuildJSONView(entity, NewAuthorizationContext("google:alice"), MustParseResourcePath("/"))
	want := mustJSON(t, `{
		"features": {
			"gyroscope": {
				"properties": {
					"status": {"x": 0.1, "y": 0.2, "z": 0.3},
					"unit": "deg/s"
				}
			}
		}
	}`)
	if !reflect.DeepEqual(view, want) {
		t.Fatalf("scaffolding view:\ngot  %v\nwant %v", view, want)
	}
}

func TestJSONViewRevokedBranchDisappears(t *testing.T) {
	e := compileT(t, NewPolicyBuilder().
		Entry(NewEntryBuilder("owner").
			Subject("google:alice").
			Grant("/", PermissionRead).
			Revoke("/attributes", PermissionRead).
			Grant("/attributes/location", PermissionRead).
			Build()).
		Build())
	entity := mustJSON(t, twinEntityJSON)
	view := e.BuildJSONView(entity, NewAuthorizationContext("google:alice"), MustParseResourcePath("/"))
	want := mustJSON(t, `{
		"thingId": "org.acme:twin-1",
		"attributes": {
			"location": {"latitude": 44.6, "longitude": 12.8}
		},
		"features": {
			"gyroscope": {
				"properties": {
					"status": {"x": 0.1, "y": 0.2, "z": 0.3},
					"unit": "deg/s"
				}
			},
			"accelerometer": {
				"properties": {"status": "ok"}
			}
		}
	}`)
	if !reflect.DeepEqual(view, want) {
		t.Fatalf("revoked branch view:\ngot  %v\nwant %v", view, want)
	}
}

func TestJSONViewArraysAreAtomic(t *testing.T) {
	entity := mustJSON(t, `{
		"readings": [1, 2, 3],
		"tags": ["a", "b"]
	}`)

	granted := compileT(t, NewPolicyBuilder().
		Entry(NewEntryBuilder("r").Subject("google:alice").Grant("/readings", PermissionRead).Build()).
		Build())
	view := granted.BuildJSONView(entity, NewAuthorizationContext("google:alice"), MustParseResourcePath("/"))
	want := mustJSON(t, `{"readings": [1, 2, 3]}`)
	if !reflect.DeepEqual(view, want) {
		t.Fatalf("array view:\ngot  %v\nwant %v", view, want)
	}

	// a grant inside an array's index space has no effect: arrays are
	// terminal nodes, never expanded element by element
	indexGrant := compileT(t, NewPolicyBuilder().
		Entry(NewEntryBuilder("i").Subject("google:alice").Grant("/readings/0", PermissionRead).Build()).
		Build())
	view = indexGrant.BuildJSONView(entity, NewAuthorizationContext("google:alice"), MustParseResourcePath("/"))
	if view != nil {
		t.Fatalf("index-level grant should yield no view, got %v", view)
	}
}

func TestJSONViewNothingVisible(t *testing.T) {
	e := compileT(t, NewPolicyBuilder().
		Entry(NewEntryBuilder("elsewhere").Subject("google:alice").Grant("/somewhere/else", PermissionRead).Build()).
		Build())
	entity := mustJSON(t, twinEntityJSON)
	if view := e.BuildJSONView(entity, NewAuthorizationContext("google:alice"), MustParseResourcePath("/")); view != nil {
		t.Fatalf("expected nil view, got %v", view)
	}
	if view := e.BuildJSONView(entity, AuthorizationContext{}, MustParseResourcePath("/")); view != nil {
		t.Fatalf("empty context: expected nil view, got %v", view)
	}
}

func TestJSONViewReadableEmptyObjectSurvives(t *testing.T) {
	e := compileT(t, NewPolicyBuilder().
		Entry(NewEntryBuilder("owner").Subject("google:alice").Grant("/attributes", PermissionRead).Build()).
		Build())
	entity := mustJSON(t, `{"attributes": {}, "features": {}}`)
	view := e.BuildJSONView(entity, NewAuthorizationContext("google:alice"), MustParseResourcePath("/"))
	want := mustJSON(t, `{"attributes": {}}`)
	if !reflect.DeepEqual(view, want) {
		t.Fatalf("empty object view:\ngot  %v\nwant %v", view, want)
	}
}

func TestJSONViewRootedBelowEntity(t *testing.T) {
	// filtering a sub-document: the root resource path anchors the mapping
	e := compileT(t, NewPolicyBuilder().
		Entry(NewEntryBuilder("client").Subject("google:client").Grant("/features/gyroscope", PermissionRead).Build()).
		Build())
	features := mustJSON(t, `{
		"gyroscope": {"properties": {"unit": "deg/s"}},
		"accelerometer": {"properties": {"status": "ok"}}
	}`)
	view := e.BuildJSONView(features, NewAuthorizationContext("google:client"), MustParseResourcePath("/features"))
	want := mustJSON(t, `{"gyroscope": {"properties": {"unit": "deg/s"}}}`)
	if !reflect.DeepEqual(view, want) {
		t.Fatalf("rooted view:\ngot  %v\nwant %v", view, want)
	}
}

func TestJSONViewPrimitiveEntity(t *testing.T) {
	e := compileT(t, NewPolicyBuilder().
		Entry(NewEntryBuilder("owner").Subject("google:alice").Grant("/", PermissionRead).Build()).
		Build())
	ctx := NewAuthorizationContext("google:alice")
	if got := e.BuildJSONView("hello", ctx, MustParseResourcePath("/")); got != "hello" {
		t.Fatalf("primitive entity: got %v", got)
	}
	if got := e.BuildJSONView("hello", NewAuthorizationContext("google:bob"), MustParseResourcePath("/")); got != nil {
		t.Fatalf("denied primitive entity: got %v", got)
	}
}
