package enforce

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PathError reports a malformed resource path string. It is returned by
// ParseResourcePath and never by query-time operations.
type PathError struct {
	Raw    string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("invalid resource path %q: %s", e.Raw, e.Reason)
}

// ResourcePath is a position in a resource's hierarchical address space,
// e.g. "/features/gyroscope/properties/x". A path optionally carries a
// resource type ("thing", "policy", "message") written as a "type:" prefix:
// "thing:/features/x". Paths are pure values; all methods are read-only.
type ResourcePath struct {
	typ      string
	segments []string
}

// RootResourcePath returns the root path "/" for the given resource type.
// An empty type is valid and means "untyped".
func RootResourcePath(resourceType string) ResourcePath {
	return ResourcePath{typ: resourceType}
}

// ParseResourcePath parses and normalizes a resource path string. Leading and
// trailing slashes are stripped, "" and "/" both denote the root. Empty
// interior segments ("/a//b") are rejected. Hierarchy is purely positional:
// no wildcard syntax exists.
func ParseResourcePath(s string) (ResourcePath, error) {
	raw := s
	typ := ""
	if idx := strings.IndexByte(s, ':'); idx >= 0 && !strings.Contains(s[:idx], "/") {
		if idx == 0 {
			return ResourcePath{}, &PathError{Raw: raw, Reason: "empty resource type before ':'"}
		}
		typ = s[:idx]
		s = s[idx+1:]
	}
	s = strings.Trim(s, "/")
	if s == "" {
		return ResourcePath{typ: typ}, nil
	}
	segments := strings.Split(s, "/")
	for _, seg := range segments {
		if seg == "" {
			return ResourcePath{}, &PathError{Raw: raw, Reason: "empty path segment"}
		}
	}
	return ResourcePath{typ: typ, segments: segments}, nil
}

// MustParseResourcePath is ParseResourcePath that panics on error, for
// fixtures and hard-coded paths.
func MustParseResourcePath(s string) ResourcePath {
	p, err := ParseResourcePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Type returns the resource type, "" for untyped paths.
func (p ResourcePath) Type() string { return p.typ }

// Depth returns the number of segments; the root has depth 0.
func (p ResourcePath) Depth() int { return len(p.segments) }

// IsRoot reports whether p is the root path of its resource type.
func (p ResourcePath) IsRoot() bool { return len(p.segments) == 0 }

// Segments returns a copy of the segment sequence.
func (p ResourcePath) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// Child returns the path one level below p ending in segment. The segment is
// taken verbatim; JSON object keys map to segments unmodified.
func (p ResourcePath) Child(segment string) ResourcePath {
	segs := make([]string, len(p.segments)+1)
	copy(segs, p.segments)
	segs[len(p.segments)] = segment
	return ResourcePath{typ: p.typ, segments: segs}
}

// Parent returns the path one level above p; the root is its own parent.
func (p ResourcePath) Parent() ResourcePath {
	if len(p.segments) == 0 {
		return p
	}
	return ResourcePath{typ: p.typ, segments: p.segments[:len(p.segments)-1]}
}

// Ancestor returns the ancestor of p at the given depth. Depth must be in
// [0, p.Depth()].
func (p ResourcePath) Ancestor(depth int) ResourcePath {
	return ResourcePath{typ: p.typ, segments: p.segments[:depth]}
}

// IsAncestorOf reports whether p's segments are a prefix of other's segments
// (a path is an ancestor of itself). Paths of different resource types are
// never related.
func (p ResourcePath) IsAncestorOf(other ResourcePath) bool {
	if p.typ != other.typ || len(p.segments) > len(other.segments) {
		return false
	}
	for i, seg := range p.segments {
		if other.segments[i] != seg {
			return false
		}
	}
	return true
}

// CommonPrefixDepth returns the length of the longest common segment prefix
// of p and other, 0 when the resource types differ.
func (p ResourcePath) CommonPrefixDepth(other ResourcePath) int {
	if p.typ != other.typ {
		return 0
	}
	n := len(p.segments)
	if len(other.segments) < n {
		n = len(other.segments)
	}
	for i := 0; i < n; i++ {
		if p.segments[i] != other.segments[i] {
			return i
		}
	}
	return n
}

// Equal reports segment-sequence and type equality.
func (p ResourcePath) Equal(other ResourcePath) bool {
	return p.typ == other.typ && len(p.segments) == len(other.segments) && p.IsAncestorOf(other)
}

// String returns the canonical form: "/a/b" or "type:/a/b".
func (p ResourcePath) String() string {
	path := "/" + strings.Join(p.segments, "/")
	if p.typ == "" {
		return path
	}
	return p.typ + ":" + path
}

// Key returns the canonical form used as an index key. It is stable across
// processes and unique per (type, segments).
func (p ResourcePath) Key() string { return p.String() }

// MarshalJSON encodes the path as its canonical string.
func (p ResourcePath) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes the canonical string form.
func (p *ResourcePath) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseResourcePath(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalYAML encodes the path as its canonical string.
func (p ResourcePath) MarshalYAML() (any, error) {
	return p.String(), nil
}

// UnmarshalYAML decodes the canonical string form.
func (p *ResourcePath) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseResourcePath(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
