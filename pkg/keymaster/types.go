// Package keymaster implements the KeyMaster credential lifecycle engine:
// the Redis-backed data model, store adapter, validation state machine, and
// management mutations described by the service's storage schema.
package keymaster

import "time"

// ProjectDocument is the JSON document stored at project:{project_id}.
type ProjectDocument struct {
	ProjectID string  `json:"project_id"`
	Label     string  `json:"label"`
	Owner     string  `json:"owner"`
	CreatedAt float64 `json:"created_at"`
}

// APIKeyDocument is the JSON document stored at apikey:{project_id}:{key_id}.
// SecretHash must never be copied into a response type.
type APIKeyDocument struct {
	KeyID      string   `json:"key_id"`
	ProjectID  string   `json:"project_id"`
	Owner      string   `json:"owner"`
	Metadata   string   `json:"metadata"`
	SecretHash string   `json:"secret_hash"`
	Disabled   bool     `json:"disabled"`
	CreatedAt  float64  `json:"created_at"`
	ExpiresAt  *float64 `json:"expires_at,omitempty"`
}

// Expired reports whether the key has passed its expiry time.
func (d APIKeyDocument) Expired(now time.Time) bool {
	if d.ExpiresAt == nil {
		return false
	}
	return float64(now.Unix()) > *d.ExpiresAt
}

// Valid reports whether the key may currently be used: not disabled and not expired.
func (d APIKeyDocument) Valid(now time.Time) bool {
	return !d.Disabled && !d.Expired(now)
}

// KeyMetadata is the projection of an APIKeyDocument returned by list_keys —
// it never carries SecretHash.
type KeyMetadata struct {
	KeyID     string   `json:"key_id"`
	Owner     string   `json:"owner"`
	Metadata  string   `json:"metadata"`
	CreatedAt float64  `json:"created_at"`
	Disabled  bool     `json:"disabled"`
	ExpiresAt *float64 `json:"expires_at,omitempty"`
}

// ToMetadata strips SecretHash. list-keys responses are built from it;
// validate-key copies only project, key, owner, and metadata fields into its
// own response type.
func (d APIKeyDocument) ToMetadata() KeyMetadata {
	return KeyMetadata{
		KeyID:     d.KeyID,
		Owner:     d.Owner,
		Metadata:  d.Metadata,
		CreatedAt: d.CreatedAt,
		Disabled:  d.Disabled,
		ExpiresAt: d.ExpiresAt,
	}
}

// AuditResult is the closed set of validate outcomes recorded to the audit stream.
type AuditResult string

const (
	AuditOK          AuditResult = "ok"
	AuditDenied      AuditResult = "denied"
	AuditRateLimited AuditResult = "rate_limited"
)

// AuditEvent is a single record appended to the audit:keylookup stream.
type AuditEvent struct {
	Timestamp float64     `json:"ts"`
	ProjectID string      `json:"project_id"`
	KeyID     string      `json:"key_id"`
	Result    AuditResult `json:"result"`
	Client    string      `json:"client"`
}

// DefaultAuditClient is the producer tag attached to audit events emitted by
// this service.
const DefaultAuditClient = "keymanager"
