package keymaster

import (
	"context"
	"log/slog"
	"time"

	"github.com/wisbric/keymaster/internal/telemetry"
	"github.com/wisbric/keymaster/pkg/credential"
	"github.com/wisbric/keymaster/pkg/secret"
)

// DefaultRateLimitPerMinute is the per-key request budget used when the
// caller does not override it.
const DefaultRateLimitPerMinute = 100

// Engine runs the validate state machine: parse → lookup → liveness →
// secret verification → rate limit → audit → usage update.
type Engine struct {
	store              Reader
	logger             *slog.Logger
	rateLimitPerMinute int
}

// NewEngine builds a validation Engine over a Reader-scoped store handle.
func NewEngine(store Reader, logger *slog.Logger, rateLimitPerMinute int) *Engine {
	if rateLimitPerMinute <= 0 {
		rateLimitPerMinute = DefaultRateLimitPerMinute
	}
	return &Engine{store: store, logger: logger, rateLimitPerMinute: rateLimitPerMinute}
}

// Validate authenticates a presented credential string. On success it
// returns the backing document; every rejection reason collapses to
// ErrInvalidKey at this boundary — the true reason is retained only in the
// audit stream.
func (e *Engine) Validate(ctx context.Context, rawKey string) (*APIKeyDocument, *Error) {
	start := time.Now()
	defer func() { telemetry.ValidateDuration.Observe(time.Since(start).Seconds()) }()

	parsed, err := credential.Parse(rawKey)
	if err != nil {
		// Malformed credentials produce no audit entry and no result metric —
		// there is no project/key to attribute them to.
		return nil, newError(ErrInvalidKey, "invalid or expired API key", nil)
	}

	doc, err := e.store.GetAPIKey(ctx, parsed.ProjectID, parsed.KeyID)
	if err != nil {
		return nil, newError(ErrInternalError, "internal server error", err)
	}
	if doc == nil {
		e.reject(ctx, parsed.ProjectID, parsed.KeyID, AuditDenied)
		return nil, newError(ErrInvalidKey, "invalid or expired API key", nil)
	}

	if !doc.Valid(time.Now()) {
		e.reject(ctx, parsed.ProjectID, parsed.KeyID, AuditDenied)
		return nil, newError(ErrInvalidKey, "invalid or expired API key", nil)
	}

	if !secret.Verify(parsed.Secret, doc.SecretHash) {
		e.reject(ctx, parsed.ProjectID, parsed.KeyID, AuditDenied)
		return nil, newError(ErrInvalidKey, "invalid or expired API key", nil)
	}

	allowed, err := e.store.CheckRateLimit(ctx, parsed.ProjectID, parsed.KeyID, e.rateLimitPerMinute)
	if err != nil {
		// CheckRateLimit fails open internally; an error here is unexpected
		// plumbing trouble, not a rate-limit decision.
		e.logger.Error("rate limit check failed", "project_id", parsed.ProjectID, "key_id", parsed.KeyID, "error", err)
	}
	if !allowed {
		telemetry.RateLimitDeniedTotal.WithLabelValues(parsed.ProjectID).Inc()
		e.reject(ctx, parsed.ProjectID, parsed.KeyID, AuditRateLimited)
		return nil, newError(ErrInvalidKey, "invalid or expired API key", nil)
	}

	e.audit(ctx, parsed.ProjectID, parsed.KeyID, AuditOK)
	telemetry.ValidateResultsTotal.WithLabelValues(string(AuditOK)).Inc()
	if err := e.store.UpdateKeyUsage(ctx, parsed.ProjectID, parsed.KeyID); err != nil {
		e.logger.Error("updating key usage", "project_id", parsed.ProjectID, "key_id", parsed.KeyID, "error", err)
	}

	return doc, nil
}

// reject records a non-ok audit event and its matching result metric.
func (e *Engine) reject(ctx context.Context, projectID, keyID string, result AuditResult) {
	e.audit(ctx, projectID, keyID, result)
	telemetry.ValidateResultsTotal.WithLabelValues(string(result)).Inc()
}

// audit appends an audit event, logging (never surfacing) a failure to do so.
func (e *Engine) audit(ctx context.Context, projectID, keyID string, result AuditResult) {
	event := AuditEvent{
		Timestamp: float64(time.Now().Unix()),
		ProjectID: projectID,
		KeyID:     keyID,
		Result:    result,
		Client:    DefaultAuditClient,
	}
	if err := e.store.LogAuditEvent(ctx, event); err != nil {
		e.logger.Error("logging audit event", "project_id", projectID, "key_id", keyID, "result", result, "error", err)
	}
}
