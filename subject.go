package enforce

import (
	"sort"
	"strings"
	"time"
)

// SubjectID identifies an authorization subject as "issuer:name",
// e.g. "google:alice". The full string is the identity; the issuer split is
// informational only.
type SubjectID string

// NewSubjectID joins issuer and name into a SubjectID.
func NewSubjectID(issuer, name string) SubjectID {
	return SubjectID(issuer + ":" + name)
}

// Issuer returns the part before the first ':', or "" when absent.
func (id SubjectID) Issuer() string {
	if idx := strings.IndexByte(string(id), ':'); idx >= 0 {
		return string(id)[:idx]
	}
	return ""
}

// Name returns the part after the first ':', or the whole id when there is
// no issuer prefix.
func (id SubjectID) Name() string {
	if idx := strings.IndexByte(string(id), ':'); idx >= 0 {
		return string(id)[idx+1:]
	}
	return string(id)
}

// Subject is an identity that can be granted or denied permissions. A zero
// ExpiresAt means the subject never expires.
type Subject struct {
	ID        SubjectID `json:"id" yaml:"id"`
	ExpiresAt time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// NewSubject returns a non-expiring subject.
func NewSubject(id SubjectID) Subject { return Subject{ID: id} }

// IsExpired reports whether the subject's expiry has passed.
func (s Subject) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// AuthorizationContext is the ordered, non-empty set of subjects behind one
// request. Queries evaluate it as the union of what each subject may do;
// an empty context holds no permission anywhere.
type AuthorizationContext []Subject

// NewAuthorizationContext builds a context from subject ids, all
// non-expiring.
func NewAuthorizationContext(ids ...SubjectID) AuthorizationContext {
	ctx := make(AuthorizationContext, 0, len(ids))
	for _, id := range ids {
		ctx = append(ctx, Subject{ID: id})
	}
	return ctx
}

// IsEmpty reports whether the context carries no subjects.
func (c AuthorizationContext) IsEmpty() bool { return len(c) == 0 }

// SubjectIDs returns the ids in context order.
func (c AuthorizationContext) SubjectIDs() []SubjectID {
	out := make([]SubjectID, 0, len(c))
	for _, s := range c {
		out = append(out, s.ID)
	}
	return out
}

// SubjectIDSet is a set of subject ids, the result type of
// SubjectsWithPartialPermission.
type SubjectIDSet map[SubjectID]struct{}

// NewSubjectIDSet builds a set from the given ids.
func NewSubjectIDSet(ids ...SubjectID) SubjectIDSet {
	s := make(SubjectIDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports membership.
func (s SubjectIDSet) Contains(id SubjectID) bool {
	_, ok := s[id]
	return ok
}

// Add inserts an id.
func (s SubjectIDSet) Add(id SubjectID) { s[id] = struct{}{} }

// Equal reports set equality.
func (s SubjectIDSet) Equal(other SubjectIDSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// Slice returns the ids sorted lexicographically.
func (s SubjectIDSet) Slice() []SubjectID {
	out := make([]SubjectID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
