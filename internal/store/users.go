package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string `bun:"id,pk"`
	Email        string `bun:"email,notnull"`
	PasswordHash string `bun:"password_hash,notnull"`
	CreatedAt    string `bun:"created_at,notnull"`
}

type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ss"`

	Token     string `bun:"token,pk"`
	UserID    string `bun:"user_id,notnull"`
	CreatedAt string `bun:"created_at,notnull"`
	ExpiresAt string `bun:"expires_at,notnull"`
}

// CreateUser inserts u. It returns ErrConflict when the email is taken.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	taken, err := s.db.NewSelect().
		Model((*User)(nil)).
		Where("email = ?", u.Email).
		Exists(ctx)
	if err != nil {
		return err
	}
	if taken {
		return ErrConflict
	}

	usr := *u
	if usr.CreatedAt == "" {
		usr.CreatedAt = now()
	}
	if _, err := s.db.NewInsert().Model(&usr).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.NewSelect().
		Model(&u).
		Where("email = ?", email).
		Limit(1).
		Scan(ctx)
	return u, err
}

func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	err := s.db.NewSelect().
		Model(&u).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	return u, err
}

func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	ss := *sess
	if ss.CreatedAt == "" {
		ss.CreatedAt = now()
	}
	_, err := s.db.NewInsert().Model(&ss).Exec(ctx)
	return err
}

// GetSession returns the session for token if it has not expired at t.
func (s *Store) GetSession(ctx context.Context, token string, t time.Time) (Session, error) {
	var sess Session
	err := s.db.NewSelect().
		Model(&sess).
		Where("token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return Session{}, err
	}
	expires, err := ParseTime(sess.ExpiresAt)
	if err != nil || !t.Before(expires) {
		return Session{}, sql.ErrNoRows
	}
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.NewDelete().
		Table("sessions").
		Where("token = ?", token).
		Exec(ctx)
	return err
}

// DeleteExpiredSessions removes sessions that expired before t.
func (s *Store) DeleteExpiredSessions(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		Table("sessions").
		Where("expires_at <= ?", FormatTime(t)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
