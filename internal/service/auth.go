package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
)

// AuthConfig represents configuration for session handling
type AuthConfig struct {
	SessionTTL  time.Duration `json:"session_ttl"`
	MaxSessions int           `json:"max_sessions"`
}

// AuthService authenticates users by id and email and issues opaque
// session tokens held in memory.
type AuthService struct {
	users    domain.UserStore
	sessions *expirable.LRU[string, domain.Session]
	logger   *logrus.Logger
}

// NewAuthService creates an auth service
func NewAuthService(users domain.UserStore, config AuthConfig, logger *logrus.Logger) *AuthService {
	if config.SessionTTL <= 0 {
		config.SessionTTL = 12 * time.Hour
	}
	if config.MaxSessions <= 0 {
		config.MaxSessions = 10000
	}
	return &AuthService{
		users:    users,
		sessions: expirable.NewLRU[string, domain.Session](config.MaxSessions, nil, config.SessionTTL),
		logger:   logger,
	}
}

// Login checks the id and email pair and returns a session with its token.
func (a *AuthService) Login(ctx context.Context, userID, email string) (string, domain.Session, error) {
	userID = strings.TrimSpace(userID)
	email = strings.TrimSpace(email)
	if userID == "" || email == "" {
		return "", domain.Session{}, fmt.Errorf("user id and email are required: %w", domain.ErrUnauthenticated)
	}

	user, err := a.users.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.Session{}, fmt.Errorf("unknown user: %w", domain.ErrUnauthenticated)
	}
	if err != nil {
		return "", domain.Session{}, err
	}
	if !strings.EqualFold(user.Email, email) {
		a.logger.WithField("user_id", userID).Warn("Login rejected")
		return "", domain.Session{}, fmt.Errorf("email mismatch: %w", domain.ErrUnauthenticated)
	}

	sess := domain.Session{UserID: user.UserID, Role: user.Role}
	token := uuid.NewString()
	a.sessions.Add(token, sess)

	a.logger.WithFields(logrus.Fields{"user_id": user.UserID, "role": user.Role}).Info("User logged in")
	return token, sess, nil
}

// Session returns the session of a token.
func (a *AuthService) Session(token string) (domain.Session, error) {
	sess, ok := a.sessions.Get(token)
	if !ok {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	return sess, nil
}

// Logout drops a token.
func (a *AuthService) Logout(token string) {
	a.sessions.Remove(token)
}
