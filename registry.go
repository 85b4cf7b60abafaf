package enforce

import (
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/oarkflow/enforce/logger"
)

// EnforcerRegistry caches compiled enforcers keyed by policy id and
// revision. Request paths call Get instead of Compile so repeated requests
// against the same policy revision reuse one index; a revision bump changes
// the key and naturally misses into a fresh compile. Cache cost is the
// number of indexed (subject, path) pairs, so large policies evict first.
type EnforcerRegistry struct {
	cache       *ristretto.Cache
	compileOpts []CompileOption
	logger      logger.Logger
}

// RegistryOption customizes NewEnforcerRegistry.
type RegistryOption func(*EnforcerRegistry)

// WithRegistryLogger installs a logger for cache diagnostics.
func WithRegistryLogger(l logger.Logger) RegistryOption {
	return func(r *EnforcerRegistry) { r.logger = l }
}

// WithCompileOptions forwards options to every Compile the registry runs.
func WithCompileOptions(opts ...CompileOption) RegistryOption {
	return func(r *EnforcerRegistry) { r.compileOpts = opts }
}

// NewEnforcerRegistry builds a registry with the given engine tuning. Zero
// tuning fields fall back to defaults sized for a few thousand live
// policies.
func NewEnforcerRegistry(cfg EngineConfig, opts ...RegistryOption) (*EnforcerRegistry, error) {
	numCounters := cfg.RistrettoNumCounter
	if numCounters <= 0 {
		numCounters = 100_000
	}
	maxCost := cfg.RistrettoMaxCost
	if maxCost <= 0 {
		maxCost = 1_000_000
	}
	bufferItems := cfg.RistrettoBuffer
	if bufferItems <= 0 {
		bufferItems = 64
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: bufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("enforcer cache: %w", err)
	}
	r := &EnforcerRegistry{cache: cache, logger: logger.NewNullLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Get returns the enforcer for the policy's current revision, compiling on
// first sight of an (id, revision) pair. Policies without an ID are compiled
// every time; they have no stable cache identity.
func (r *EnforcerRegistry) Get(p *Policy) (Enforcer, error) {
	if p.ID == "" {
		return Compile(p, r.compileOpts...)
	}
	key := registryKey(p.ID, p.Revision)
	if cached, ok := r.cache.Get(key); ok {
		return cached.(Enforcer), nil
	}
	enf, err := Compile(p, r.compileOpts...)
	if err != nil {
		return nil, err
	}
	r.cache.Set(key, enf, enforcerCost(enf))
	r.logger.Debug("enforcer compiled and cached", "policy_id", p.ID, "revision", p.Revision)
	return enf, nil
}

// Invalidate drops a cached revision, e.g. on a store-level invalidation
// event for a deleted policy.
func (r *EnforcerRegistry) Invalidate(policyID string, revision int64) {
	r.cache.Del(registryKey(policyID, revision))
}

// Wait blocks until pending cache writes are applied. Only needed by tests
// and benchmarks that assert on cache state.
func (r *EnforcerRegistry) Wait() { r.cache.Wait() }

// Close releases the underlying cache.
func (r *EnforcerRegistry) Close() { r.cache.Close() }

func registryKey(id string, revision int64) string {
	return fmt.Sprintf("%s@%d", id, revision)
}

func enforcerCost(e Enforcer) int64 {
	te, ok := e.(*treeEnforcer)
	if !ok {
		return 1
	}
	cost := int64(1)
	for _, si := range te.subjects {
		cost += int64(len(si.byPath))
	}
	return cost
}
