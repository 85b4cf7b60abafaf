package enforce

import "time"

// Builders provide a fluent API for assembling Policies and PolicyEntries

// PolicyBuilder builds a Policy
type PolicyBuilder struct {
	p *Policy
}

func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{p: &Policy{Entries: []PolicyEntry{}}}
}

func (b *PolicyBuilder) ID(id string) *PolicyBuilder       { b.p.ID = id; return b }
func (b *PolicyBuilder) Revision(rev int64) *PolicyBuilder { b.p.Revision = rev; return b }
func (b *PolicyBuilder) Entry(e PolicyEntry) *PolicyBuilder {
	b.p.Entries = append(b.p.Entries, e)
	return b
}
func (b *PolicyBuilder) Entries(es ...PolicyEntry) *PolicyBuilder {
	b.p.Entries = append(b.p.Entries, es...)
	return b
}
func (b *PolicyBuilder) Build() *Policy { return b.p }

// EntryBuilder builds a PolicyEntry
type EntryBuilder struct {
	e PolicyEntry
}

func NewEntryBuilder(label string) *EntryBuilder {
	return &EntryBuilder{e: PolicyEntry{Label: label, Subjects: []Subject{}, Resources: []ResourceGrant{}}}
}

func (b *EntryBuilder) Subject(id SubjectID) *EntryBuilder {
	b.e.Subjects = append(b.e.Subjects, Subject{ID: id})
	return b
}

func (b *EntryBuilder) ExpiringSubject(id SubjectID, expiresAt time.Time) *EntryBuilder {
	b.e.Subjects = append(b.e.Subjects, Subject{ID: id, ExpiresAt: expiresAt})
	return b
}

func (b *EntryBuilder) Grant(path string, perms ...Permission) *EntryBuilder {
	return b.resource(path, NewPermissionSet(perms...), nil)
}

func (b *EntryBuilder) Revoke(path string, perms ...Permission) *EntryBuilder {
	return b.resource(path, nil, NewPermissionSet(perms...))
}

// GrantRevoke records both directions at one path in a single resource row.
func (b *EntryBuilder) GrantRevoke(path string, grant, revoke PermissionSet) *EntryBuilder {
	return b.resource(path, grant, revoke)
}

func (b *EntryBuilder) Build() PolicyEntry { return b.e }

// resource merges into an existing row for the same path so that chained
// Grant/Revoke calls on one path do not trip the duplicate-path invariant.
func (b *EntryBuilder) resource(path string, grant, revoke PermissionSet) *EntryBuilder {
	p := MustParseResourcePath(path)
	for i := range b.e.Resources {
		if b.e.Resources[i].Path.Equal(p) {
			if grant != nil {
				b.e.Resources[i].Grant = b.e.Resources[i].Grant.Union(grant)
			}
			if revoke != nil {
				b.e.Resources[i].Revoke = b.e.Resources[i].Revoke.Union(revoke)
			}
			return b
		}
	}
	if grant == nil {
		grant = NewPermissionSet()
	}
	if revoke == nil {
		revoke = NewPermissionSet()
	}
	b.e.Resources = append(b.e.Resources, ResourceGrant{Path: p, Grant: grant, Revoke: revoke})
	return b
}
