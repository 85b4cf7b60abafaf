package enforce

import (
	"sort"
	"time"

	"github.com/oarkflow/enforce/logger"
)

// Enforcer answers permission questions against one compiled policy. An
// Enforcer is immutable after Compile and safe for unsynchronized concurrent
// use; no query mutates shared state, blocks, or returns an error — absence
// of permission is data ("false" / empty set), not failure. A new policy
// revision requires a new Compile; callers swap the reference atomically.
type Enforcer interface {
	// HasPermission reports whether any subject in the context holds the
	// permission at exactly the given path, after resolving all grants and
	// revokes on the root-to-path ancestor chain.
	HasPermission(authCtx AuthorizationContext, path ResourcePath, perm Permission) bool

	// HasPermissionOnResourceOrAnySubresource reports whether any subject in
	// the context holds the permission at the given path or at any reachable
	// point below it. A single visible descendant qualifies; the permission
	// need not hold at every point of the subtree.
	HasPermissionOnResourceOrAnySubresource(authCtx AuthorizationContext, path ResourcePath, perm Permission) bool

	// SubjectsWithPartialPermission returns every subject that would satisfy
	// HasPermissionOnResourceOrAnySubresource at the path for at least one
	// permission in perms, independent of any particular requester.
	SubjectsWithPartialPermission(path ResourcePath, perms PermissionSet) SubjectIDSet

	// BuildJSONView prunes an entity's JSON document down to the parts
	// visible to the context under the read permission, rooted at root.
	BuildJSONView(entity any, authCtx AuthorizationContext, root ResourcePath) any
}

// CompileOption customizes Compile.
type CompileOption func(*treeEnforcer)

// WithLogger installs a logger used for compile-time diagnostics. Queries
// never log; they run on request hot paths.
func WithLogger(l logger.Logger) CompileOption {
	return func(e *treeEnforcer) { e.logger = l }
}

// WithReadPermission overrides the permission token the JSON view filter
// checks for visibility. Default is PermissionRead.
func WithReadPermission(p Permission) CompileOption {
	return func(e *treeEnforcer) { e.readPerm = p }
}

// contribution is the merged grant/revoke state of one subject at one exact
// path. Multiple entries naming the same subject and path union their grants
// and union their revokes independently; nothing cancels at build time.
type contribution struct {
	path   ResourcePath
	grant  PermissionSet
	revoke PermissionSet
}

// subjectIndex holds one subject's contributions, addressable by path key
// and iterable in ascending depth order. expiresAt is the latest expiry
// among the entry subjects that fed the index; once it passes, every
// contribution has lapsed. neverExpires is set when any feeding subject has
// no expiry.
type subjectIndex struct {
	byPath       map[string]*contribution
	sorted       []*contribution
	expiresAt    time.Time
	neverExpires bool
}

// lapsed reports whether all of the subject's policy memberships have
// expired. Queries that take no authorization context use this instead of
// per-context expiry.
func (si *subjectIndex) lapsed(now time.Time) bool {
	return !si.neverExpires && !si.expiresAt.After(now)
}

// treeEnforcer resolves permissions by walking the indexed ancestor chain of
// a query path, shallowest first. It is the default (and only shipped)
// resolution strategy behind the Enforcer interface.
type treeEnforcer struct {
	subjects map[SubjectID]*subjectIndex
	readPerm Permission
	logger   logger.Logger
}

// Compile validates the policy and builds the evaluable per-subject index.
// The policy value is never mutated; compiling the same policy twice yields
// enforcers with identical answers.
func Compile(p *Policy, opts ...CompileOption) (Enforcer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	e := &treeEnforcer{
		subjects: make(map[SubjectID]*subjectIndex),
		readPerm: PermissionRead,
		logger:   logger.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	paths := 0
	for _, entry := range p.Entries {
		for _, subject := range entry.Subjects {
			if subject.IsExpired() {
				continue
			}
			si := e.subjects[subject.ID]
			if si == nil {
				si = &subjectIndex{byPath: make(map[string]*contribution)}
				e.subjects[subject.ID] = si
			}
			if subject.ExpiresAt.IsZero() {
				si.neverExpires = true
			} else if subject.ExpiresAt.After(si.expiresAt) {
				si.expiresAt = subject.ExpiresAt
			}
			for _, res := range entry.Resources {
				key := res.Path.Key()
				c := si.byPath[key]
				if c == nil {
					c = &contribution{path: res.Path, grant: NewPermissionSet(), revoke: NewPermissionSet()}
					si.byPath[key] = c
					paths++
				}
				for perm := range res.Grant {
					c.grant[perm] = struct{}{}
				}
				for perm := range res.Revoke {
					c.revoke[perm] = struct{}{}
				}
			}
		}
	}

	for _, si := range e.subjects {
		si.sorted = make([]*contribution, 0, len(si.byPath))
		for _, c := range si.byPath {
			si.sorted = append(si.sorted, c)
		}
		sort.Slice(si.sorted, func(i, j int) bool {
			a, b := si.sorted[i], si.sorted[j]
			if a.path.Depth() != b.path.Depth() {
				return a.path.Depth() < b.path.Depth()
			}
			return a.path.Key() < b.path.Key()
		})
	}

	e.logger.Debug("policy compiled",
		"policy_id", p.ID,
		"revision", p.Revision,
		"subjects", len(e.subjects),
		"indexed_paths", paths,
	)
	return e, nil
}

// resolveAt computes the subject's effective permission state at path by
// visiting every contributing ancestor in increasing depth order. At each
// step grants are added before revokes are subtracted, so when one path
// both grants and revokes a permission the revoke wins at that path. Depth
// order is the only tie-break: deeper contributions are applied last and
// win.
func (si *subjectIndex) resolveAt(path ResourcePath) PermissionSet {
	state := make(PermissionSet)
	for _, key := range walkKeys(path) {
		si.apply(state, key)
	}
	return state
}

func (si *subjectIndex) apply(state PermissionSet, key string) {
	c, ok := si.byPath[key]
	if !ok {
		return
	}
	for perm := range c.grant {
		state[perm] = struct{}{}
	}
	for perm := range c.revoke {
		delete(state, perm)
	}
}

// holdsInSubtree reports whether the subject holds perm at path or at any
// indexed descendant that carries an explicit grant. Each candidate is
// re-derived by the full root walk, so ancestor contributions above path are
// carried downward correctly.
func (si *subjectIndex) holdsInSubtree(path ResourcePath, perm Permission) bool {
	if si.resolveAt(path).Contains(perm) {
		return true
	}
	for _, c := range si.sorted {
		if c.path.Depth() <= path.Depth() || c.grant.IsEmpty() {
			continue
		}
		if !path.IsAncestorOf(c.path) {
			continue
		}
		if si.resolveAt(c.path).Contains(perm) {
			return true
		}
	}
	return false
}

func (e *treeEnforcer) HasPermission(authCtx AuthorizationContext, path ResourcePath, perm Permission) bool {
	for _, subject := range authCtx {
		if subject.IsExpired() {
			continue
		}
		si := e.subjects[subject.ID]
		if si == nil {
			continue
		}
		if si.resolveAt(path).Contains(perm) {
			return true
		}
	}
	return false
}

func (e *treeEnforcer) HasPermissionOnResourceOrAnySubresource(authCtx AuthorizationContext, path ResourcePath, perm Permission) bool {
	for _, subject := range authCtx {
		if subject.IsExpired() {
			continue
		}
		si := e.subjects[subject.ID]
		if si == nil {
			continue
		}
		if si.holdsInSubtree(path, perm) {
			return true
		}
	}
	return false
}

func (e *treeEnforcer) SubjectsWithPartialPermission(path ResourcePath, perms PermissionSet) SubjectIDSet {
	out := NewSubjectIDSet()
	now := time.Now()
	for id, si := range e.subjects {
		if si.lapsed(now) {
			continue
		}
		for perm := range perms {
			if si.holdsInSubtree(path, perm) {
				out.Add(id)
				break
			}
		}
	}
	return out
}
