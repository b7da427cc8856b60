// Package store persists posts keyed by generated IDs in SQLite.
//
// The primary key comes from the generator before the INSERT, so rows are
// ordered by creation time without a separate index and "newest first" is
// simply ORDER BY id DESC. The PRIMARY KEY constraint is the backstop for the
// fallback ID shape, which is not collision-free.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/qianshe/snowflake"
)

var (
	ErrNotFound    = errors.New("store: post not found")
	ErrDuplicateID = errors.New("store: duplicate id")
	ErrInvalidPost = errors.New("store: title and body are required")
)

// MaxListLimit caps List and ListBefore.
const MaxListLimit = 100

// IDSource mints primary keys. *snowflake.Generator satisfies it.
type IDSource interface {
	NextIDWithContext(ctx context.Context) (snowflake.ID, error)
}

// Post is a stored row.
type Post struct {
	ID        snowflake.ID `json:"id"`
	Title     string       `json:"title"`
	Body      string       `json:"body"`
	CreatedAt time.Time    `json:"created_at"`
}

// Store is a SQLite-backed post repository.
type Store struct {
	db  *sql.DB
	ids IDSource
}

// Open opens (or creates) the database at path and runs migrations.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string, ids IDSource) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Each new connection to :memory: would see its own empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, ids: ids}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the schema if missing.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS posts (
			id         INTEGER PRIMARY KEY,
			title      TEXT    NOT NULL,
			body       TEXT    NOT NULL,
			created_at INTEGER NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Create mints an ID and inserts the post under it.
func (s *Store) Create(ctx context.Context, title, body string) (*Post, error) {
	if title == "" || body == "" {
		return nil, ErrInvalidPost
	}

	id, err := s.ids.NextIDWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: mint id: %w", err)
	}
	return s.insert(ctx, &Post{ID: id, Title: title, Body: body, CreatedAt: time.Now().UTC()})
}

// CreateWithID inserts the post under a caller-supplied ID, e.g. a
// fallback-shaped one from NextSafeID.
func (s *Store) CreateWithID(ctx context.Context, id snowflake.ID, title, body string) (*Post, error) {
	if title == "" || body == "" {
		return nil, ErrInvalidPost
	}
	return s.insert(ctx, &Post{ID: id, Title: title, Body: body, CreatedAt: time.Now().UTC()})
}

func (s *Store) insert(ctx context.Context, p *Post) (*Post, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (id, title, body, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Title, p.Body, p.CreatedAt.UnixMilli())
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, p.ID)
		}
		return nil, fmt.Errorf("store: insert %d: %w", p.ID, err)
	}
	p.CreatedAt = time.UnixMilli(p.CreatedAt.UnixMilli()).UTC()
	return p, nil
}

// Get returns the post with the given ID.
func (s *Store) Get(ctx context.Context, id snowflake.ID) (*Post, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, body, created_at FROM posts WHERE id = ?`, id)

	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %d: %w", id, err)
	}
	return p, nil
}

// List returns up to limit posts, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Post, error) {
	return s.ListBefore(ctx, 0, limit)
}

// ListBefore returns up to limit posts with IDs below before, newest first.
// A zero cursor starts from the newest post. Pass the last ID of one page as
// the cursor for the next.
func (s *Store) ListBefore(ctx context.Context, before snowflake.ID, limit int) ([]*Post, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	var (
		rows *sql.Rows
		err  error
	)
	if before > 0 {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, title, body, created_at FROM posts WHERE id < ? ORDER BY id DESC LIMIT ?`, before, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, title, body, created_at FROM posts ORDER BY id DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	posts := make([]*Post, 0, limit)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return posts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(sc scanner) (*Post, error) {
	var (
		p         Post
		createdMs int64
	)
	if err := sc.Scan(&p.ID, &p.Title, &p.Body, &createdMs); err != nil {
		return nil, err
	}
	p.CreatedAt = time.UnixMilli(createdMs).UTC()
	return &p, nil
}
