// Package sqlite implements identity.Store over an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/MrEthical07/goSocialAuth/identity"
	"github.com/MrEthical07/goSocialAuth/storage/sqlite/migrations"
)

// Store implements identity.Store over SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ identity.Store = (*Store)(nil)

// Open opens the database at path and applies the bundled migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; concurrent writers would fail with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Migrate applies pending migrations. Open already calls it.
func (s *Store) Migrate(ctx context.Context) error {
	return applyMigrations(ctx, s.db, migrations.FS)
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) FindByUsername(ctx context.Context, username string) (identity.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, created_at FROM users WHERE username_key = ?`,
		identity.NormalizeUsername(username),
	), "find user by username")
}

func (s *Store) FindByLogin(ctx context.Context, login identity.Login) (identity.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
SELECT u.id, u.username, u.created_at
FROM user_logins l
JOIN users u ON u.id = l.user_id
WHERE l.provider = ? AND l.provider_key = ?`,
		login.Provider, login.ProviderKey,
	), "find user by login")
}

func (s *Store) scanUser(row *sql.Row, op string) (identity.User, error) {
	var (
		u       identity.User
		created int64
	)
	err := row.Scan(&u.ID, &u.Username, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.User{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.User{}, fmt.Errorf("%s: %w", op, err)
	}
	u.CreatedAt = time.UnixMilli(created).UTC()
	return u, nil
}

func (s *Store) Create(ctx context.Context, username string) (identity.User, error) {
	u := identity.User{
		ID:        uuid.NewString(),
		Username:  strings.TrimSpace(username),
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, username_key, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, identity.NormalizeUsername(username), u.CreatedAt.UnixMilli(),
	)
	if isConstraintError(err) {
		return identity.User{}, identity.ErrAlreadyExists
	}
	if err != nil {
		return identity.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *Store) Claims(ctx context.Context, userID string) ([]identity.Claim, error) {
	if err := s.requireUser(ctx, s.db, userID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT claim_type, claim_value FROM user_claims WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var claims []identity.Claim
	for rows.Next() {
		var c identity.Claim
		if err := rows.Scan(&c.Type, &c.Value); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return claims, nil
}

func (s *Store) ReplaceClaims(ctx context.Context, userID string, claims []identity.Claim) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace claims: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.requireUser(ctx, tx, userID); err != nil {
		return err
	}
	for _, c := range claims {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO user_claims (user_id, claim_type, claim_value) VALUES (?, ?, ?)
ON CONFLICT (user_id, claim_type) DO UPDATE SET claim_value = excluded.claim_value`,
			userID, c.Type, c.Value,
		); err != nil {
			return fmt.Errorf("upsert claim %s: %w", c.Type, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace claims: %w", err)
	}
	return nil
}

func (s *Store) AddLogin(ctx context.Context, userID string, login identity.Login) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add login: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.requireUser(ctx, tx, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO user_logins (provider, provider_key, user_id, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT (provider, provider_key) DO NOTHING`,
		login.Provider, login.ProviderKey, userID, s.now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("insert login: %w", err)
	}

	var owner string
	if err := tx.QueryRowContext(ctx,
		`SELECT user_id FROM user_logins WHERE provider = ? AND provider_key = ?`,
		login.Provider, login.ProviderKey,
	).Scan(&owner); err != nil {
		return fmt.Errorf("read login owner: %w", err)
	}
	if owner != userID {
		return identity.ErrLoginTaken
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add login: %w", err)
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) requireUser(ctx context.Context, q queryRower, userID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	return nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
