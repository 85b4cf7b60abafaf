package stores

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/oarkflow/enforce"
)

// MemoryPolicyStore implements policy persistence in-memory for testing and
// single-process setups. Documents are cloned on the way in and out so a
// caller can never mutate stored state.
type MemoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[string]*enforce.Policy
	history  map[string][]*enforce.Policy
}

func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{
		policies: make(map[string]*enforce.Policy),
		history:  make(map[string][]*enforce.Policy),
	}
}

func (s *MemoryPolicyStore) SavePolicy(ctx context.Context, p *enforce.Policy) error {
	if p.ID == "" {
		return fmt.Errorf("save policy: missing id")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.policies[p.ID]; ok {
		s.history[p.ID] = append(s.history[p.ID], old)
		p.Revision = old.Revision + 1
	} else {
		p.Revision = 1
	}
	s.policies[p.ID] = p.Clone()
	return nil
}

func (s *MemoryPolicyStore) GetPolicy(ctx context.Context, id string) (*enforce.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p.Clone(), nil
}

func (s *MemoryPolicyStore) DeletePolicy(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.policies, id)
	delete(s.history, id)
	return nil
}

func (s *MemoryPolicyStore) ListPolicies(ctx context.Context) ([]*enforce.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*enforce.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryPolicyStore) GetPolicyHistory(ctx context.Context, id string) ([]*enforce.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.history[id]
	if !ok {
		return nil, fmt.Errorf("no history for policy %s", id)
	}
	out := make([]*enforce.Policy, 0, len(h))
	for _, p := range h {
		out = append(out, p.Clone())
	}
	return out, nil
}
