package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the session table. Migrate runs it.
const Schema = `
CREATE TABLE IF NOT EXISTS aifactory_console_sessions (
	token      TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS aifactory_console_sessions_expires_idx
	ON aifactory_console_sessions (expires_at);
`

// querier is the subset of pgxpool.Pool the store uses.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps sessions in PostgreSQL so they survive restarts and
// can be shared by several console replicas.
type PostgresStore struct {
	db querier
}

// NewPostgresStore creates a store on pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool}
}

// Migrate creates the session table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate sessions: %w", err)
	}
	return nil
}

// record is the JSONB payload, keyed the way the browser used to store it.
type record struct {
	UserInfo   json.RawMessage `json:"bitware-user-info"`
	KAMContext json.RawMessage `json:"bitware-kam-context"`
}

// Get returns the live session for token.
func (s *PostgresStore) Get(ctx context.Context, token string) (Info, error) {
	if token == "" {
		return Info{}, ErrInvalidToken
	}

	query := `
		SELECT data, created_at, expires_at
		FROM aifactory_console_sessions
		WHERE token = $1 AND expires_at > NOW()
	`

	var data []byte
	info := Info{Token: token}
	err := s.db.QueryRow(ctx, query, token).Scan(&data, &info.CreatedAt, &info.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Info{}, ErrNotFound
	}
	if err != nil {
		return Info{}, fmt.Errorf("failed to get session: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Info{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if len(rec.UserInfo) > 0 {
		if err := json.Unmarshal(rec.UserInfo, &info.User); err != nil {
			return Info{}, fmt.Errorf("failed to unmarshal %s: %w", KeyUserInfo, err)
		}
	}
	if len(rec.KAMContext) > 0 {
		if err := json.Unmarshal(rec.KAMContext, &info.KAMContext); err != nil {
			return Info{}, fmt.Errorf("failed to unmarshal %s: %w", KeyKAMContext, err)
		}
	}
	return info, nil
}

// Put upserts info.
func (s *PostgresStore) Put(ctx context.Context, info Info) error {
	if info.Token == "" {
		return ErrInvalidToken
	}

	user, err := json.Marshal(info.User)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	kam, err := json.Marshal(info.KAMContext)
	if err != nil {
		return fmt.Errorf("failed to marshal kam context: %w", err)
	}
	data, err := json.Marshal(record{UserInfo: user, KAMContext: kam})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	created := info.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	expires := info.ExpiresAt
	if expires.IsZero() {
		expires = created.Add(DefaultTTL)
	}

	query := `
		INSERT INTO aifactory_console_sessions (token, data, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE
		SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at
	`
	if _, err := s.db.Exec(ctx, query, info.Token, data, created, expires); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes token.
func (s *PostgresStore) Delete(ctx context.Context, token string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM aifactory_console_sessions WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Sweep deletes expired sessions.
func (s *PostgresStore) Sweep(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM aifactory_console_sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
