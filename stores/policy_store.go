package stores

import (
	"context"
	"errors"

	"github.com/oarkflow/enforce"
)

// ErrNotFound is returned when a policy id has no stored document.
var ErrNotFound = errors.New("policy not found")

// PolicyStore persists policy documents for the policy-management side of
// the platform. The enforcement core never depends on a store: a service
// loads a policy, compiles it, and queries the resulting enforcer.
//
// SavePolicy validates the document, bumps its revision, and archives the
// previous revision; the revision bump is what rolls compiled-enforcer
// caches over to a fresh compile.
type PolicyStore interface {
	SavePolicy(ctx context.Context, p *enforce.Policy) error
	GetPolicy(ctx context.Context, id string) (*enforce.Policy, error)
	DeletePolicy(ctx context.Context, id string) error
	ListPolicies(ctx context.Context) ([]*enforce.Policy, error)
	GetPolicyHistory(ctx context.Context, id string) ([]*enforce.Policy, error)
}
