// Package auth implements email/password accounts backed by opaque session
// tokens stored in the database.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/handsomefox/reelshelf/internal/logger"
	"github.com/handsomefox/reelshelf/internal/store"
)

const (
	SessionTTL        = 90 * 24 * time.Hour
	MinPasswordLength = 6
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoSession          = errors.New("no active session")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

type Service struct {
	store *store.Store
	cost  int
	now   func() time.Time
}

type Option func(*Service)

// WithCost sets the bcrypt cost used for new passwords.
func WithCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(st *store.Store, opts ...Option) *Service {
	s := &Service{store: st, cost: bcrypt.DefaultCost, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session is an issued sign-in.
type Session struct {
	Token     string
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// SignUp creates an account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if len(password) < MinPasswordLength {
		return Session{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	u := store.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    store.FormatTime(s.now()),
	}
	if err := s.store.CreateUser(ctx, &u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Session{}, ErrEmailTaken
		}
		return Session{}, err
	}
	slog.Info("user signed up", slog.String("user_id", u.ID))
	return s.issue(ctx, u)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if store.IsNoRows(err) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(ctx, u)
}

// SignOut deletes the session for token. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, token)
}

// Resolve returns the live session for token.
func (s *Service) Resolve(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoSession
	}
	sess, err := s.store.GetSession(ctx, token, s.now())
	if err != nil {
		if store.IsNoRows(err) {
			return Session{}, ErrNoSession
		}
		return Session{}, err
	}
	u, err := s.store.GetUser(ctx, sess.UserID)
	if err != nil {
		if store.IsNoRows(err) {
			return Session{}, ErrNoSession
		}
		return Session{}, err
	}
	expires, err := store.ParseTime(sess.ExpiresAt)
	if err != nil {
		return Session{}, ErrNoSession
	}
	return Session{Token: sess.Token, UserID: u.ID, Email: u.Email, ExpiresAt: expires}, nil
}

// PurgeExpired removes expired sessions and logs how many went.
func (s *Service) PurgeExpired(ctx context.Context) error {
	n, err := s.store.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		slog.Error("purge sessions failed", logger.Error(err))
		return err
	}
	if n > 0 {
		slog.Info("purged expired sessions", slog.Int64("count", n))
	}
	return nil
}

func (s *Service) issue(ctx context.Context, u store.User) (Session, error) {
	now := s.now()
	sess := store.Session{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		CreatedAt: store.FormatTime(now),
		ExpiresAt: store.FormatTime(now.Add(SessionTTL)),
	}
	if err := s.store.CreateSession(ctx, &sess); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return Session{
		Token:     sess.Token,
		UserID:    u.ID,
		Email:     u.Email,
		ExpiresAt: now.Add(SessionTTL).UTC().Truncate(time.Microsecond),
	}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
