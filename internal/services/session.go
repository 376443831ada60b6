package services

import (
	"context"
	"errors"
	"time"

	"github.com/eventhub/apiserver/types"
	"github.com/google/uuid"
)

// SessionRepository defines persistence operations for login sessions.
type SessionRepository interface {
	Create(ctx context.Context, session types.Session) (types.Session, error)
	GetByID(ctx context.Context, id string) (types.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionService owns the server-side session lifecycle. A token handed to
// a client is only honored while the session it references is still open,
// so closing a session revokes the token everywhere.
type SessionService struct {
	repo SessionRepository
	ttl  time.Duration
}

func NewSessionService(repo SessionRepository, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionService{repo: repo, ttl: ttl}
}

// TTL returns the configured session lifetime.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Open creates a new session for the user.
func (s *SessionService) Open(ctx context.Context, userID int) (types.Session, error) {
	session := types.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	return s.repo.Create(ctx, session)
}

// Validate returns the open session with the given ID and confirms it
// belongs to the given user. Missing, expired, or foreign sessions fail.
func (s *SessionService) Validate(ctx context.Context, id string, userID int) (types.Session, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.Session{}, err
	}
	if session.UserID != userID {
		return types.Session{}, errors.New("session user mismatch")
	}
	return session, nil
}

// Close deletes the session. Closing an already-closed session is a no-op.
func (s *SessionService) Close(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// PurgeExpired removes expired sessions and returns how many were removed.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}
