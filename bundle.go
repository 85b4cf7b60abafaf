package enforce

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Policy bundles travel from the policy-management service to enforcement
// points. Signing lets an enforcement point reject tampered documents before
// compiling them.

// Checksum returns a deterministic hash of the policy's enforcement-relevant
// content. ID and Revision are included so a replayed older revision does
// not checksum-match a newer one.
func (p *Policy) Checksum() string {
	data, _ := json.Marshal(p)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// SignedPolicyBundle carries policy documents plus one base64 ed25519
// signature per policy id.
type SignedPolicyBundle struct {
	Policies   []*Policy         `json:"policies"`
	Signatures map[string]string `json:"signatures"`
	Meta       map[string]any    `json:"meta,omitempty"`
}

// SignPolicy returns a base64 ed25519 signature over the policy id and
// checksum.
func SignPolicy(priv ed25519.PrivateKey, p *Policy) (string, error) {
	data, err := signingPayload(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, data)), nil
}

// VerifyPolicySignature checks a signature produced by SignPolicy.
func VerifyPolicySignature(pub ed25519.PublicKey, p *Policy, sigB64 string) (bool, error) {
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false, err
	}
	data, err := signingPayload(p)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, data, sig), nil
}

// SignBundle signs every policy and returns the bundle.
func SignBundle(priv ed25519.PrivateKey, policies []*Policy) (*SignedPolicyBundle, error) {
	b := &SignedPolicyBundle{Policies: policies, Signatures: make(map[string]string, len(policies))}
	for _, p := range policies {
		if p.ID == "" {
			return nil, fmt.Errorf("cannot sign policy without id")
		}
		sig, err := SignPolicy(priv, p)
		if err != nil {
			return nil, err
		}
		b.Signatures[p.ID] = sig
	}
	return b, nil
}

// VerifyBundle verifies every policy in the bundle against pub. The first
// missing or bad signature fails the whole bundle.
func VerifyBundle(pub ed25519.PublicKey, b *SignedPolicyBundle) error {
	for _, p := range b.Policies {
		sig, ok := b.Signatures[p.ID]
		if !ok {
			return fmt.Errorf("missing signature for policy %s", p.ID)
		}
		ok, err := VerifyPolicySignature(pub, p, sig)
		if err != nil {
			return fmt.Errorf("verify policy %s: %w", p.ID, err)
		}
		if !ok {
			return fmt.Errorf("bad signature for policy %s", p.ID)
		}
	}
	return nil
}

func signingPayload(p *Policy) ([]byte, error) {
	return json.Marshal(struct {
		ID       string `json:"id"`
		Checksum string `json:"checksum"`
	}{
		ID:       p.ID,
		Checksum: p.Checksum(),
	})
}
