// Package postgres implements identity.Store over PostgreSQL with pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/goSocialAuth/identity"
	"github.com/MrEthical07/goSocialAuth/storage/postgres/migrations"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"

	// Serializes concurrent migrators.
	migrationLockID = 0x5c1a1
)

// Store implements identity.Store over a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ identity.Store = (*Store)(nil)

// NewPool connects to dsn and verifies the connection.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// New wraps an existing pool. Call Migrate before first use on a fresh database.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate applies the embedded migrations that have not run yet.
func (s *Store) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, migrationLockID); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLockID)
	}()

	if _, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var applied bool
		if err := conn.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, file,
		).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied {
			continue
		}
		content, err := fs.ReadFile(migrations.FS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		err = pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, upSection(string(content))); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, file)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}

func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	if i := strings.Index(content, down); i >= 0 {
		content = content[:i]
	}
	return strings.Replace(content, up, "", 1)
}

func (s *Store) FindByUsername(ctx context.Context, username string) (identity.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT id::text, username, created_at FROM users WHERE username_key = $1`,
		identity.NormalizeUsername(username),
	), "find user by username")
}

func (s *Store) FindByLogin(ctx context.Context, login identity.Login) (identity.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
		SELECT u.id::text, u.username, u.created_at
		FROM user_logins l
		JOIN users u ON u.id = l.user_id
		WHERE l.provider = $1 AND l.provider_key = $2`,
		login.Provider, login.ProviderKey,
	), "find user by login")
}

func scanUser(row pgx.Row, op string) (identity.User, error) {
	var u identity.User
	err := row.Scan(&u.ID, &u.Username, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return identity.User{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.User{}, fmt.Errorf("%s: %w", op, err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (s *Store) Create(ctx context.Context, username string) (identity.User, error) {
	u := identity.User{
		ID:        uuid.NewString(),
		Username:  strings.TrimSpace(username),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, username_key, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Username, identity.NormalizeUsername(username), u.CreatedAt,
	)
	if pgCode(err) == uniqueViolation {
		return identity.User{}, identity.ErrAlreadyExists
	}
	if err != nil {
		return identity.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *Store) Claims(ctx context.Context, userID string) ([]identity.Claim, error) {
	if err := requireUser(ctx, s.pool, userID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT claim_type, claim_value FROM user_claims WHERE user_id = $1 ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	claims, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (identity.Claim, error) {
		var c identity.Claim
		err := row.Scan(&c.Type, &c.Value)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return claims, nil
}

func (s *Store) ReplaceClaims(ctx context.Context, userID string, claims []identity.Claim) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, c := range claims {
			batch.Queue(`
				INSERT INTO user_claims (user_id, claim_type, claim_value) VALUES ($1, $2, $3)
				ON CONFLICT (user_id, claim_type) DO UPDATE SET claim_value = EXCLUDED.claim_value`,
				userID, c.Type, c.Value)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert claims: %w", err)
		}
		return nil
	})
}

func (s *Store) AddLogin(ctx context.Context, userID string, login identity.Login) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		var owner string
		err := tx.QueryRow(ctx, `
			WITH ins AS (
				INSERT INTO user_logins (provider, provider_key, user_id) VALUES ($1, $2, $3)
				ON CONFLICT (provider, provider_key) DO NOTHING
				RETURNING user_id
			)
			SELECT user_id::text FROM ins
			UNION ALL
			SELECT user_id::text FROM user_logins WHERE provider = $1 AND provider_key = $2
			LIMIT 1`,
			login.Provider, login.ProviderKey, userID,
		).Scan(&owner)
		if pgCode(err) == foreignKeyViolation {
			return identity.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("insert login: %w", err)
		}
		if owner != userID {
			return identity.ErrLoginTaken
		}
		return nil
	})
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func requireUser(ctx context.Context, q rowQuerier, userID string) error {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id::text = $1)`, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return identity.ErrNotFound
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
