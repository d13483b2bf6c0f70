// Package store provides SQLite persistence for users, sessions and the
// per-user collection documents.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrConflict = errors.New("already exists")

type Store struct {
	sqldb *sql.DB
	db    *bun.DB
}

// Document is one saved item in a user's collection. Body holds the item as JSON.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	UserID     string `bun:"user_id,pk"`
	Collection string `bun:"collection,pk"`
	ItemID     string `bun:"item_id,pk"`
	Body       string `bun:"body,notnull"`
	SavedAt    string `bun:"saved_at,notnull"`
	UpdatedAt  string `bun:"updated_at,notnull"`
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("DB_PATH is required")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}

	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)"
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer at a time.
	sqldb.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := sqldb.PingContext(ctx); err != nil {
		if cerr := sqldb.Close(); cerr != nil {
			return nil, fmt.Errorf("ping db: %w; close failed: %w", err, cerr)
		}
		return nil, err
	}

	if err := migrate(sqldb); err != nil {
		if cerr := sqldb.Close(); cerr != nil {
			return nil, fmt.Errorf("migrate: %w; close failed: %w", err, cerr)
		}
		return nil, fmt.Errorf("migrate: %w", err)
	}

	bdb := bun.NewDB(sqldb, sqlitedialect.New())
	return &Store{sqldb: sqldb, db: bdb}, nil
}

func (s *Store) Close() error { return s.sqldb.Close() }

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	before, err := goose.GetDBVersion(db)
	if err != nil {
		before = 0
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return err
	}
	after, err := goose.GetDBVersion(db)
	if err != nil {
		return err
	}
	if after != before {
		slog.Info("database migrated", slog.Int64("from", before), slog.Int64("to", after))
	}
	return nil
}

// TimeLayout is a fixed-width UTC layout, so stored timestamps sort as text.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

func FormatTime(t time.Time) string { return t.UTC().Format(TimeLayout) }

func ParseTime(raw string) (time.Time, error) { return time.Parse(TimeLayout, raw) }

func now() string { return FormatTime(time.Now()) }

func (s *Store) GetDocument(ctx context.Context, userID, collection, itemID string) (Document, error) {
	var doc Document
	err := s.db.NewSelect().
		Model(&doc).
		Where("user_id = ?", userID).
		Where("collection = ?", collection).
		Where("item_id = ?", itemID).
		Limit(1).
		Scan(ctx)
	return doc, err
}

func (s *Store) HasDocument(ctx context.Context, userID, collection, itemID string) (bool, error) {
	return s.db.NewSelect().
		Model((*Document)(nil)).
		Where("user_id = ?", userID).
		Where("collection = ?", collection).
		Where("item_id = ?", itemID).
		Exists(ctx)
}

// PutDocument writes doc, replacing any document under the same key.
func (s *Store) PutDocument(ctx context.Context, doc *Document) error {
	d := *doc
	d.UpdatedAt = now()

	_, err := s.db.NewInsert().
		Model(&d).
		On("CONFLICT (user_id, collection, item_id) DO UPDATE").
		Set("body = EXCLUDED.body").
		Set("saved_at = EXCLUDED.saved_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// DeleteDocument removes a document. Deleting a missing document is not an error.
func (s *Store) DeleteDocument(ctx context.Context, userID, collection, itemID string) error {
	_, err := s.db.NewDelete().
		Table("documents").
		Where("user_id = ?", userID).
		Where("collection = ?", collection).
		Where("item_id = ?", itemID).
		Exec(ctx)
	return err
}

func (s *Store) ListDocuments(ctx context.Context, userID, collection string) (out []Document, err error) {
	out = []Document{}
	err = s.db.NewSelect().
		Model(&out).
		Where("user_id = ?", userID).
		Where("collection = ?", collection).
		Scan(ctx)
	return out, err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
