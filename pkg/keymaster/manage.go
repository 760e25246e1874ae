package keymaster

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/wisbric/keymaster/internal/telemetry"
	"github.com/wisbric/keymaster/pkg/credential"
	"github.com/wisbric/keymaster/pkg/secret"
)

// DefaultListLimit and MaxListLimit bound list_keys pagination.
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
	MinListLimit     = 1
)

// SecretLength is the length of a minted key's secret segment.
const SecretLength = 32

// Service implements the management operations: project create/get, key
// mint, key revoke, key list.
type Service struct {
	store  Manager
	logger *slog.Logger
}

// NewService builds a management Service over a Manager-scoped store handle.
func NewService(store Manager, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// CreateProject creates a new project, failing ErrProjectExists if one
// already exists with this id.
func (s *Service) CreateProject(ctx context.Context, projectID, label, owner string) (*ProjectDocument, *Error) {
	existing, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, newError(ErrInternalError, "internal server error", err)
	}
	if existing != nil {
		return nil, newError(ErrProjectExists, "project already exists", nil)
	}

	doc := ProjectDocument{
		ProjectID: projectID,
		Label:     label,
		Owner:     owner,
		CreatedAt: float64(time.Now().Unix()),
	}
	if err := s.store.StoreProject(ctx, doc); err != nil {
		return nil, newError(ErrStorageError, "failed to create project", err)
	}
	return &doc, nil
}

// GetProject returns the project document or ErrProjectNotFound.
func (s *Service) GetProject(ctx context.Context, projectID string) (*ProjectDocument, *Error) {
	doc, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, newError(ErrInternalError, "internal server error", err)
	}
	if doc == nil {
		return nil, newError(ErrProjectNotFound, "project not found", nil)
	}
	return doc, nil
}

// MintKey generates a fresh key id and secret, hashes the secret, stores the
// document, and returns the formatted bearer credential. The returned
// string is the only moment the plaintext secret exists outside the
// caller's memory.
func (s *Service) MintKey(ctx context.Context, projectID, owner, metadata string, expiresAt *float64) (string, *Error) {
	keyID, err := secret.GenerateKeyID()
	if err != nil {
		return "", newError(ErrInternalError, "internal server error", err)
	}
	plainSecret, err := secret.GenerateSecret(SecretLength)
	if err != nil {
		return "", newError(ErrInternalError, "internal server error", err)
	}
	hash, err := secret.Hash(plainSecret)
	if err != nil {
		return "", newError(ErrInternalError, "internal server error", err)
	}

	doc := APIKeyDocument{
		KeyID:      keyID,
		ProjectID:  projectID,
		Owner:      owner,
		Metadata:   metadata,
		SecretHash: hash,
		Disabled:   false,
		CreatedAt:  float64(time.Now().Unix()),
		ExpiresAt:  expiresAt,
	}

	if err := s.store.StoreAPIKey(ctx, doc); err != nil {
		return "", newError(ErrStorageError, "failed to store API key", err)
	}
	telemetry.KeysMintedTotal.WithLabelValues(projectID).Inc()

	return credential.Format(credential.Parsed{
		ProjectID: projectID,
		KeyID:     keyID,
		Secret:    plainSecret,
	}), nil
}

// RevokeKey flips disabled to true on an existing key. Revoking an
// already-revoked key succeeds (idempotent).
func (s *Service) RevokeKey(ctx context.Context, projectID, keyID string) *Error {
	if err := s.store.RevokeAPIKey(ctx, projectID, keyID); err != nil {
		var kmErr *Error
		if errors.As(err, &kmErr) {
			return kmErr
		}
		return newError(ErrInternalError, "internal server error", err)
	}
	telemetry.KeysRevokedTotal.WithLabelValues(projectID).Inc()
	return nil
}

// ListKeys returns a page of key metadata and the pagination cursor for the
// next page (nil when exhausted). Callers are expected to have already
// validated limit ∈ [MinListLimit, MaxListLimit].
func (s *Service) ListKeys(ctx context.Context, projectID string, offset, limit int) ([]KeyMetadata, *string, *Error) {
	docs, err := s.store.ListProjectKeys(ctx, projectID, offset, limit)
	if err != nil {
		return nil, nil, newError(ErrInternalError, "internal server error", err)
	}

	items := make([]KeyMetadata, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.ToMetadata())
	}

	var next *string
	if len(items) == limit {
		n := strconv.Itoa(offset + limit)
		next = &n
	}

	return items, next, nil
}
