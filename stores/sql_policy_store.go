package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oarkflow/enforce"
	"github.com/oarkflow/squealx"
)

// SQLPolicyStore persists policy documents in SQL (squealx). The full
// document is one JSON column; current revisions live in "policies" and
// every superseded revision is archived append-only in "policy_history".
type SQLPolicyStore struct {
	db *squealx.DB
}

func NewSQLPolicyStore(db *squealx.DB) *SQLPolicyStore {
	return &SQLPolicyStore{db: db}
}

func (s *SQLPolicyStore) SavePolicy(ctx context.Context, p *enforce.Policy) error {
	if p.ID == "" {
		return fmt.Errorf("save policy: missing id")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	now := time.Now()

	old, err := s.GetPolicy(ctx, p.ID)
	switch {
	case err == nil:
		if err := s.archive(ctx, old, now); err != nil {
			return err
		}
		p.Revision = old.Revision + 1
		doc, err := json.Marshal(p)
		if err != nil {
			return err
		}
		q := `UPDATE policies SET revision=:revision, document=:document, updated_at=:updated_at WHERE id=:id`
		_, err = s.db.NamedExecContext(ctx, q, map[string]any{
			"id":         p.ID,
			"revision":   p.Revision,
			"document":   string(doc),
			"updated_at": now,
		})
		return err
	case isNotFound(err):
		p.Revision = 1
		doc, err := json.Marshal(p)
		if err != nil {
			return err
		}
		q := `INSERT INTO policies(id, revision, document, created_at, updated_at) VALUES(:id, :revision, :document, :created_at, :updated_at)`
		_, err = s.db.NamedExecContext(ctx, q, map[string]any{
			"id":         p.ID,
			"revision":   p.Revision,
			"document":   string(doc),
			"created_at": now,
			"updated_at": now,
		})
		return err
	default:
		return err
	}
}

func (s *SQLPolicyStore) GetPolicy(ctx context.Context, id string) (*enforce.Policy, error) {
	q := `SELECT document FROM policies WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var doc string
	if err := r.Scan(&doc); err != nil {
		return nil, err
	}
	return decodePolicy(doc)
}

func (s *SQLPolicyStore) DeletePolicy(ctx context.Context, id string) error {
	q := `DELETE FROM policies WHERE id = :id`
	if _, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id}); err != nil {
		return err
	}
	q = `DELETE FROM policy_history WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

func (s *SQLPolicyStore) ListPolicies(ctx context.Context) ([]*enforce.Policy, error) {
	q := `SELECT document FROM policies ORDER BY id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*enforce.Policy, 0)
	for r.Next() {
		var doc string
		if err := r.Scan(&doc); err != nil {
			return nil, err
		}
		p, err := decodePolicy(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *SQLPolicyStore) GetPolicyHistory(ctx context.Context, id string) ([]*enforce.Policy, error) {
	q := `SELECT document FROM policy_history WHERE id = :id ORDER BY revision`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*enforce.Policy, 0)
	for r.Next() {
		var doc string
		if err := r.Scan(&doc); err != nil {
			return nil, err
		}
		p, err := decodePolicy(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no history for policy %s", id)
	}
	return out, nil
}

// PolicyInfo is store metadata about a policy document, separate from the
// document itself.
type PolicyInfo struct {
	ID        string
	Revision  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetPolicyInfo returns the store metadata for one policy.
func (s *SQLPolicyStore) GetPolicyInfo(ctx context.Context, id string) (PolicyInfo, error) {
	q := `SELECT id, revision, created_at, updated_at FROM policies WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return PolicyInfo{}, err
	}
	defer r.Close()
	if !r.Next() {
		return PolicyInfo{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var (
		info       PolicyInfo
		createdRaw any
		updatedRaw any
	)
	if err := r.Scan(&info.ID, &info.Revision, &createdRaw, &updatedRaw); err != nil {
		return PolicyInfo{}, err
	}
	info.CreatedAt = scanTime(createdRaw)
	info.UpdatedAt = scanTime(updatedRaw)
	return info, nil
}

// archive inserts the superseded revision into policy_history.
func (s *SQLPolicyStore) archive(ctx context.Context, p *enforce.Policy, now time.Time) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return err
	}
	q := `INSERT INTO policy_history(id, revision, document, archived_at) VALUES(:id, :revision, :document, :archived_at)`
	_, err = s.db.NamedExecContext(ctx, q, map[string]any{
		"id":          p.ID,
		"revision":    p.Revision,
		"document":    string(doc),
		"archived_at": now,
	})
	return err
}

func decodePolicy(doc string) (*enforce.Policy, error) {
	p := &enforce.Policy{}
	if err := json.Unmarshal([]byte(doc), p); err != nil {
		return nil, fmt.Errorf("decode policy document: %w", err)
	}
	return p, nil
}
