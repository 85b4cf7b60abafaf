package enforce

import (
	"fmt"
)

// PolicyError reports a structurally invalid policy. It is raised when a
// policy is validated or compiled, never during query evaluation.
type PolicyError struct {
	Entry  string
	Reason string
}

func (e *PolicyError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("invalid policy: %s", e.Reason)
	}
	return fmt.Sprintf("invalid policy entry %q: %s", e.Entry, e.Reason)
}

// ResourceGrant binds one resource path to the permissions explicitly granted
// and explicitly revoked at that exact path. Grant and Revoke are independent
// sets; they are reconciled at evaluation time, never here.
type ResourceGrant struct {
	Path   ResourcePath  `json:"path" yaml:"path"`
	Grant  PermissionSet `json:"grant,omitempty" yaml:"grant,omitempty"`
	Revoke PermissionSet `json:"revoke,omitempty" yaml:"revoke,omitempty"`
}

// PolicyEntry associates a set of subjects with grants/revokes on a set of
// resource paths. The label groups entries for editing and display; it has
// no effect on enforcement. Within one entry a resource path must not repeat.
type PolicyEntry struct {
	Label     string          `json:"label" yaml:"label"`
	Subjects  []Subject       `json:"subjects" yaml:"subjects"`
	Resources []ResourceGrant `json:"resources" yaml:"resources"`
}

// Policy is an immutable set of policy entries. ID and Revision identify a
// policy document for the store and registry layers; enforcement reads only
// Entries. Multiple entries may address the same path for different subjects;
// effective permission is always computed per subject.
type Policy struct {
	ID       string        `json:"id,omitempty" yaml:"id,omitempty"`
	Revision int64         `json:"revision,omitempty" yaml:"revision,omitempty"`
	Entries  []PolicyEntry `json:"entries" yaml:"entries"`
}

// Validate checks structural invariants: every entry needs at least one
// subject, and no entry may list the same resource path twice. A valid
// policy compiles; an invalid one fails fast here.
func (p *Policy) Validate() error {
	for _, entry := range p.Entries {
		if len(entry.Subjects) == 0 {
			return &PolicyError{Entry: entry.Label, Reason: "entry has no subjects"}
		}
		seen := make(map[string]struct{}, len(entry.Resources))
		for _, res := range entry.Resources {
			key := res.Path.Key()
			if _, dup := seen[key]; dup {
				return &PolicyError{Entry: entry.Label, Reason: fmt.Sprintf("duplicate resource path %s", res.Path)}
			}
			seen[key] = struct{}{}
		}
	}
	return nil
}

// Clone returns a deep copy. Stores hand out clones so that callers can
// never mutate a cached document.
func (p *Policy) Clone() *Policy {
	out := &Policy{ID: p.ID, Revision: p.Revision, Entries: make([]PolicyEntry, 0, len(p.Entries))}
	for _, entry := range p.Entries {
		e := PolicyEntry{Label: entry.Label}
		e.Subjects = make([]Subject, len(entry.Subjects))
		copy(e.Subjects, entry.Subjects)
		e.Resources = make([]ResourceGrant, 0, len(entry.Resources))
		for _, res := range entry.Resources {
			e.Resources = append(e.Resources, ResourceGrant{
				Path:   res.Path,
				Grant:  res.Grant.Clone(),
				Revoke: res.Revoke.Clone(),
			})
		}
		out.Entries = append(out.Entries, e)
	}
	return out
}

// SubjectIDs returns the distinct subject ids referenced anywhere in the
// policy, sorted.
func (p *Policy) SubjectIDs() []SubjectID {
	set := NewSubjectIDSet()
	for _, entry := range p.Entries {
		for _, s := range entry.Subjects {
			set.Add(s.ID)
		}
	}
	return set.Slice()
}
