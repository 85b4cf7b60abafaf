package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/oarkflow/enforce"
)

const (
	redisPolicyKeyFmt      = "enforce:policy:%s"
	redisPolicyIndexKey    = "enforce:policies"
	redisInvalidationTopic = "enforce:policy-updates"
	redisHistoryKeyFmt     = "enforce:policy-history:%s"
)

// PolicyUpdate is the invalidation event fanned out whenever a policy
// document changes. Subscribers drop the named revision's compiled enforcer
// and recompile on the next request.
type PolicyUpdate struct {
	PolicyID string `json:"policy_id"`
	Revision int64  `json:"revision"`
	Deleted  bool   `json:"deleted,omitempty"`
}

// RedisPolicyStore keeps policy documents as JSON blobs in redis and
// publishes a PolicyUpdate on every save or delete so that other instances
// invalidate their enforcer caches.
type RedisPolicyStore struct {
	client *redis.Client
}

func NewRedisPolicyStore(client *redis.Client) *RedisPolicyStore {
	return &RedisPolicyStore{client: client}
}

func (r *RedisPolicyStore) key(id string) string {
	return fmt.Sprintf(redisPolicyKeyFmt, id)
}

func (r *RedisPolicyStore) historyKey(id string) string {
	return fmt.Sprintf(redisHistoryKeyFmt, id)
}

func (r *RedisPolicyStore) SavePolicy(ctx context.Context, p *enforce.Policy) error {
	if p.ID == "" {
		return fmt.Errorf("save policy: missing id")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	old, err := r.GetPolicy(ctx, p.ID)
	switch {
	case err == nil:
		oldDoc, err := json.Marshal(old)
		if err != nil {
			return err
		}
		if err := r.client.RPush(ctx, r.historyKey(p.ID), oldDoc).Err(); err != nil {
			return err
		}
		p.Revision = old.Revision + 1
	case isNotFound(err):
		p.Revision = 1
	default:
		return err
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(p.ID), doc, 0)
	pipe.SAdd(ctx, redisPolicyIndexKey, p.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return r.publish(ctx, PolicyUpdate{PolicyID: p.ID, Revision: p.Revision})
}

func (r *RedisPolicyStore) GetPolicy(ctx context.Context, id string) (*enforce.Policy, error) {
	doc, err := r.client.Get(ctx, r.key(id)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return decodePolicy(doc)
}

func (r *RedisPolicyStore) DeletePolicy(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key(id))
	pipe.Del(ctx, r.historyKey(id))
	pipe.SRem(ctx, redisPolicyIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return r.publish(ctx, PolicyUpdate{PolicyID: id, Deleted: true})
}

func (r *RedisPolicyStore) ListPolicies(ctx context.Context) ([]*enforce.Policy, error) {
	ids, err := r.client.SMembers(ctx, redisPolicyIndexKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*enforce.Policy, 0, len(ids))
	for _, id := range ids {
		p, err := r.GetPolicy(ctx, id)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *RedisPolicyStore) GetPolicyHistory(ctx context.Context, id string) ([]*enforce.Policy, error) {
	docs, err := r.client.LRange(ctx, r.historyKey(id), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no history for policy %s", id)
	}
	out := make([]*enforce.Policy, 0, len(docs))
	for _, doc := range docs {
		p, err := decodePolicy(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *RedisPolicyStore) publish(ctx context.Context, update PolicyUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, redisInvalidationTopic, payload).Err()
}

// SubscribeUpdates delivers PolicyUpdate events until ctx is canceled.
// Undecodable messages are skipped; the subscription closes with the
// returned channel when ctx ends.
func (r *RedisPolicyStore) SubscribeUpdates(ctx context.Context) (<-chan PolicyUpdate, error) {
	sub := r.client.Subscribe(ctx, redisInvalidationTopic)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	out := make(chan PolicyUpdate)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var update PolicyUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
					continue
				}
				select {
				case out <- update:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
