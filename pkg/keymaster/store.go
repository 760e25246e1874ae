package keymaster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Reader is the read-mostly surface the validation engine depends on. It is
// satisfied by a Store constructed with a validator-credentialed connection.
type Reader interface {
	GetAPIKey(ctx context.Context, projectID, keyID string) (*APIKeyDocument, error)
	CheckRateLimit(ctx context.Context, projectID, keyID string, limitPerMinute int) (bool, error)
	LogAuditEvent(ctx context.Context, event AuditEvent) error
	UpdateKeyUsage(ctx context.Context, projectID, keyID string) error
}

// Manager is the full read/write surface the management operations depend
// on. It is satisfied by a Store constructed with a manager-credentialed
// connection.
type Manager interface {
	Reader
	GetProject(ctx context.Context, projectID string) (*ProjectDocument, error)
	StoreProject(ctx context.Context, doc ProjectDocument) error
	StoreAPIKey(ctx context.Context, doc APIKeyDocument) error
	RevokeAPIKey(ctx context.Context, projectID, keyID string) error
	ListProjectKeys(ctx context.Context, projectID string, offset, limit int) ([]APIKeyDocument, error)
}

// Store is a Redis-backed implementation of Reader and Manager. The same
// concrete type backs both a validator handle and a manager handle; which
// interface a caller is given is a compile-time discipline, not a runtime
// enforcement — actual access control is the backing store's ACL
// configuration (see DESIGN.md).
type Store struct {
	rdb *redis.Client
}

// NewStore wraps an already-connected Redis client.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Key-naming helpers. Exact strings are a cross-implementation contract.

func projectKey(projectID string) string {
	return fmt.Sprintf("project:%s", projectID)
}

func apiKeyKey(projectID, keyID string) string {
	return fmt.Sprintf("apikey:%s:%s", projectID, keyID)
}

func projectKeysKey(projectID string) string {
	return fmt.Sprintf("apiprojectkeys:%s", projectID)
}

func keyMetaKey(projectID, keyID string) string {
	return fmt.Sprintf("apimeta:%s:%s", projectID, keyID)
}

func rateLimitKey(projectID, keyID string, minute int64) string {
	return fmt.Sprintf("ratelimit:key:%s:%s:%d", projectID, keyID, minute)
}

const auditStreamKey = "audit:keylookup"

// GetProject reads the project document, returning (nil, nil) if absent or malformed.
func (s *Store) GetProject(ctx context.Context, projectID string) (*ProjectDocument, error) {
	raw, err := s.rdb.Get(ctx, projectKey(projectID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keymaster: get project %s: %w", projectID, err)
	}

	var doc ProjectDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil
	}
	return &doc, nil
}

// StoreProject unconditionally overwrites the project document. The caller
// is responsible for any existence check.
func (s *Store) StoreProject(ctx context.Context, doc ProjectDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("keymaster: marshal project %s: %w", doc.ProjectID, err)
	}
	if err := s.rdb.Set(ctx, projectKey(doc.ProjectID), raw, 0).Err(); err != nil {
		return fmt.Errorf("keymaster: store project %s: %w", doc.ProjectID, err)
	}
	return nil
}

// GetAPIKey reads an API key document, returning (nil, nil) if absent or malformed.
func (s *Store) GetAPIKey(ctx context.Context, projectID, keyID string) (*APIKeyDocument, error) {
	raw, err := s.rdb.Get(ctx, apiKeyKey(projectID, keyID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keymaster: get api key %s:%s: %w", projectID, keyID, err)
	}

	var doc APIKeyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil
	}
	return &doc, nil
}

// StoreAPIKey writes the document, the project's key-id set membership, and
// the usage sidecar as a single MULTI/EXEC transaction so that no partial
// state is observable — see DESIGN.md for why this strengthens the source's
// plain pipeline into a transactional primitive.
func (s *Store) StoreAPIKey(ctx context.Context, doc APIKeyDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("keymaster: marshal api key %s:%s: %w", doc.ProjectID, doc.KeyID, err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, apiKeyKey(doc.ProjectID, doc.KeyID), raw, 0)
		pipe.SAdd(ctx, projectKeysKey(doc.ProjectID), doc.KeyID)
		pipe.HSet(ctx, keyMetaKey(doc.ProjectID, doc.KeyID), map[string]any{
			"usage_count": 0,
			"last_used":   "",
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("keymaster: store api key %s:%s: %w", doc.ProjectID, doc.KeyID, err)
	}
	return nil
}

// RevokeAPIKey flips disabled to true on an existing document. It reports
// ErrKeyNotFound if the document does not exist.
func (s *Store) RevokeAPIKey(ctx context.Context, projectID, keyID string) error {
	doc, err := s.GetAPIKey(ctx, projectID, keyID)
	if err != nil {
		return err
	}
	if doc == nil {
		return newError(ErrKeyNotFound, "api key not found", nil)
	}

	doc.Disabled = true
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("keymaster: marshal api key %s:%s: %w", projectID, keyID, err)
	}
	if err := s.rdb.Set(ctx, apiKeyKey(projectID, keyID), raw, 0).Err(); err != nil {
		return fmt.Errorf("keymaster: revoke api key %s:%s: %w", projectID, keyID, err)
	}
	return nil
}

// ListProjectKeys returns the slice of documents for key ids offset..offset+limit
// in the project's set-iteration order (unspecified; see DESIGN.md).
func (s *Store) ListProjectKeys(ctx context.Context, projectID string, offset, limit int) ([]APIKeyDocument, error) {
	keyIDs, err := s.rdb.SMembers(ctx, projectKeysKey(projectID)).Result()
	if err != nil {
		return nil, fmt.Errorf("keymaster: list keys for project %s: %w", projectID, err)
	}

	if offset >= len(keyIDs) {
		return nil, nil
	}
	end := offset + limit
	if end > len(keyIDs) {
		end = len(keyIDs)
	}
	page := keyIDs[offset:end]

	docs := make([]APIKeyDocument, 0, len(page))
	for _, kid := range page {
		doc, err := s.GetAPIKey(ctx, projectID, kid)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			docs = append(docs, *doc)
		}
	}
	return docs, nil
}

// LogAuditEvent appends an event to the audit stream. Failures are the
// caller's to swallow-and-log per the spec's best-effort policy.
func (s *Store) LogAuditEvent(ctx context.Context, event AuditEvent) error {
	fields := map[string]any{
		"ts":         strconv.FormatFloat(event.Timestamp, 'f', -1, 64),
		"project_id": event.ProjectID,
		"key_id":     event.KeyID,
		"result":     string(event.Result),
		"client":     event.Client,
	}
	if err := s.rdb.XAdd(ctx, &redis.XAddArgs{Stream: auditStreamKey, Values: fields}).Err(); err != nil {
		return fmt.Errorf("keymaster: log audit event: %w", err)
	}
	return nil
}

// CheckRateLimit increments the current minute's bucket and reports whether
// the resulting count is within limitPerMinute. It fails open (allow=true)
// on any store error, but still returns the wrapped error so callers can
// log the unexpected plumbing trouble.
func (s *Store) CheckRateLimit(ctx context.Context, projectID, keyID string, limitPerMinute int) (bool, error) {
	minute := time.Now().Unix() / 60
	key := rateLimitKey(projectID, keyID, minute)

	cmds, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, 120*time.Second)
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("keymaster: check rate limit %s:%s: %w", projectID, keyID, err)
	}

	count, err := cmds[0].(*redis.IntCmd).Result()
	if err != nil {
		return true, fmt.Errorf("keymaster: check rate limit %s:%s: %w", projectID, keyID, err)
	}
	return count <= int64(limitPerMinute), nil
}

// UpdateKeyUsage increments the usage counter and stamps last_used. Best
// effort: callers log failures rather than surfacing them.
func (s *Store) UpdateKeyUsage(ctx context.Context, projectID, keyID string) error {
	key := keyMetaKey(projectID, keyID)
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, "usage_count", 1)
		pipe.HSet(ctx, key, "last_used", now)
		return nil
	})
	if err != nil {
		return fmt.Errorf("keymaster: update usage %s:%s: %w", projectID, keyID, err)
	}
	return nil
}
