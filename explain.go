package enforce

import (
	"fmt"
	"sort"
)

// ExplainStep records one contributing policy entry on the walk from the
// root to the target path.
type ExplainStep struct {
	Path    ResourcePath  `json:"path"`
	Subject SubjectID     `json:"subject"`
	Revoked PermissionSet `json:"revoked,omitempty"`
	Granted PermissionSet `json:"granted,omitempty"`
	// State holds the merged permissions for the subject after this
	// step was applied.
	State   PermissionSet `json:"state"`
}

// Explanation describes why a permission check came out the way it did.
type Explanation struct {
	Path       ResourcePath  `json:"path"`
	Permission Permission    `json:"permission"`
	Allowed    bool          `json:"allowed"`
	Steps      []ExplainStep `json:"steps"`
	Trace      []string      `json:"trace"`
}

// Explainer is implemented by enforcers that can report the contributing
// grants and revokes behind a decision.
type Explainer interface {
	Explain(authCtx AuthorizationContext, path ResourcePath, perm Permission) *Explanation
}

// Explain walks the target path for every live subject in authCtx and
// records each contributing entry in order of application.
func (e *treeEnforcer) Explain(authCtx AuthorizationContext, path ResourcePath, perm Permission) *Explanation {
	ex := &Explanation{Path: path, Permission: perm}

	subjects := make([]Subject, 0, len(authCtx))
	for _, s := range authCtx {
		if s.IsExpired() {
			ex.Trace = append(ex.Trace, fmt.Sprintf("subject=%s skip expired", s.ID))
			continue
		}
		subjects = append(subjects, s)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].ID < subjects[j].ID })

	for _, s := range subjects {
		si, ok := e.subjects[s.ID]
		if !ok {
			ex.Trace = append(ex.Trace, fmt.Sprintf("subject=%s no_entries", s.ID))
			continue
		}
		state := make(PermissionSet)
		for _, key := range walkKeys(path) {
			c, ok := si.byPath[key]
			if !ok {
				continue
			}
			for perm := range c.grant {
				state[perm] = struct{}{}
			}
			for perm := range c.revoke {
				delete(state, perm)
			}
			ex.Steps = append(ex.Steps, ExplainStep{
				Path:    c.path,
				Subject: s.ID,
				Revoked: c.revoke.Clone(),
				Granted: c.grant.Clone(),
				State:   state.Clone(),
			})
			ex.Trace = append(ex.Trace, fmt.Sprintf("subject=%s path=%s revoke=%v grant=%v state=%v",
				s.ID, c.path, c.revoke.Slice(), c.grant.Slice(), state.Slice()))
		}
		if state.Contains(perm) {
			ex.Allowed = true
			ex.Trace = append(ex.Trace, fmt.Sprintf("subject=%s ALLOW", s.ID))
		}
	}
	if !ex.Allowed {
		ex.Trace = append(ex.Trace, "DENY default")
	}
	return ex
}

// walkKeys returns the index keys for the root and every ancestor of path,
// shallowest first, ending at path itself.
func walkKeys(path ResourcePath) []string {
	prefix := ""
	if path.typ != "" {
		prefix = path.typ + ":"
	}
	keys := make([]string, 0, path.Depth()+1)
	keys = append(keys, prefix+"/")
	key := prefix
	for _, seg := range path.segments {
		key = key + "/" + seg
		keys = append(keys, key)
	}
	return keys
}
