package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const sessionKeyPrefix = "observe:session:"

func sessionKey(id uuid.UUID) string { return sessionKeyPrefix + id.String() }

// SessionStore keeps the persisted part of dashboard sessions.
// Implementations: Redis (production) or in-memory (local dev / single instance).
type SessionStore interface {
	// Save stores data under id, replacing any previous value.
	Save(ctx context.Context, id uuid.UUID, data []byte, ttl time.Duration) error
	// Load returns nil, nil when the session is unknown or expired.
	Load(ctx context.Context, id uuid.UUID) ([]byte, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Replace overwrites an existing session's data without extending its
	// lifetime. It reports false, and stores nothing, when the session is
	// unknown or expired.
	Replace(ctx context.Context, id uuid.UUID, data []byte) (bool, error)
	// Touch extends the session's lifetime and reports whether it exists.
	Touch(ctx context.Context, id uuid.UUID, ttl time.Duration) (bool, error)
}
