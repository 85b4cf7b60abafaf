package enforce

import (
	"encoding/json"
	"sort"
)

// Permission is an interned string token ("READ", "WRITE"). Comparison is
// exact: no case folding, no pattern matching.
type Permission string

const (
	PermissionRead    Permission = "READ"
	PermissionWrite   Permission = "WRITE"
	PermissionExecute Permission = "EXECUTE"
	PermissionAdmin   Permission = "ADMINISTRATE"
)

// PermissionSet is an unordered set of unique permissions. The zero value is
// usable as an empty set for read operations; use NewPermissionSet to build
// one. All algebra methods return new sets and never mutate receivers.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given tokens, dropping duplicates.
func NewPermissionSet(perms ...Permission) PermissionSet {
	s := make(PermissionSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Contains reports membership of a single permission.
func (s PermissionSet) Contains(p Permission) bool {
	_, ok := s[p]
	return ok
}

// ContainsAll reports whether every permission in other is in s.
func (s PermissionSet) ContainsAll(other PermissionSet) bool {
	for p := range other {
		if !s.Contains(p) {
			return false
		}
	}
	return true
}

// ContainsAny reports whether at least one permission in other is in s.
func (s PermissionSet) ContainsAny(other PermissionSet) bool {
	for p := range other {
		if s.Contains(p) {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the set has no members.
func (s PermissionSet) IsEmpty() bool { return len(s) == 0 }

// Len returns the member count.
func (s PermissionSet) Len() int { return len(s) }

// Clone returns an independent copy.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Union returns s ∪ other.
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	out := s.Clone()
	for p := range other {
		out[p] = struct{}{}
	}
	return out
}

// Intersect returns s ∩ other.
func (s PermissionSet) Intersect(other PermissionSet) PermissionSet {
	out := make(PermissionSet)
	for p := range s {
		if other.Contains(p) {
			out[p] = struct{}{}
		}
	}
	return out
}

// Subtract returns s \ other.
func (s PermissionSet) Subtract(other PermissionSet) PermissionSet {
	out := make(PermissionSet)
	for p := range s {
		if !other.Contains(p) {
			out[p] = struct{}{}
		}
	}
	return out
}

// Equal reports set equality.
func (s PermissionSet) Equal(other PermissionSet) bool {
	return len(s) == len(other) && s.ContainsAll(other)
}

// Slice returns the members sorted lexicographically.
func (s PermissionSet) Slice() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON encodes the set as a sorted string array.
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON decodes a string array into the set.
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var perms []Permission
	if err := json.Unmarshal(data, &perms); err != nil {
		return err
	}
	*s = NewPermissionSet(perms...)
	return nil
}

// MarshalYAML encodes the set as a sorted string list.
func (s PermissionSet) MarshalYAML() (any, error) {
	return s.Slice(), nil
}

// UnmarshalYAML decodes a string list into the set.
func (s *PermissionSet) UnmarshalYAML(unmarshal func(any) error) error {
	var perms []Permission
	if err := unmarshal(&perms); err != nil {
		return err
	}
	*s = NewPermissionSet(perms...)
	return nil
}
