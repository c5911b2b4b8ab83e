package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/layer-3/nametag/core"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

const identityColumns = "id, username, wallet_address"

// PostgresStore implements ports.IdentityStore and ports.ChallengeStore on PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens a connection pool and checks that the database answers
func ConnectPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return pool, nil
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the tables used by the store if they do not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// CreateIdentity inserts a new identity; an existing address yields core.ErrConflict
func (s *PostgresStore) CreateIdentity(ctx context.Context, address string) (*core.Identity, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO identities (wallet_address) VALUES ($1)
		ON CONFLICT (wallet_address) DO NOTHING
		RETURNING `+identityColumns, address)

	identity, err := scanIdentity(row)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrConflict
	}
	if err != nil {
		return nil, translatePgError("failed to create identity", err)
	}
	return identity, nil
}

// IdentityByID looks up an identity by id
func (s *PostgresStore) IdentityByID(ctx context.Context, id int64) (*core.Identity, error) {
	return s.queryIdentity(ctx, "id = $1", id)
}

// IdentityByAddress looks up an identity by wallet address
func (s *PostgresStore) IdentityByAddress(ctx context.Context, address string) (*core.Identity, error) {
	return s.queryIdentity(ctx, "wallet_address = $1", address)
}

// IdentityByUsername looks up an identity by username
func (s *PostgresStore) IdentityByUsername(ctx context.Context, username string) (*core.Identity, error) {
	return s.queryIdentity(ctx, "username = $1", username)
}

func (s *PostgresStore) queryIdentity(ctx context.Context, where string, arg any) (*core.Identity, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+identityColumns+" FROM identities WHERE "+where, arg)
	identity, err := scanIdentity(row)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, translatePgError("failed to load identity", err)
	}
	return identity, err
}

// SetUsername renames the identity of address. The uniqueness check runs in the
// same statement as the write; the unique index only backs it up under races.
func (s *PostgresStore) SetUsername(ctx context.Context, address, username string) (*core.Identity, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE identities SET username = $2
		WHERE wallet_address = $1
		  AND NOT EXISTS (
			SELECT 1 FROM identities WHERE username = $2 AND wallet_address <> $1
		  )
		RETURNING `+identityColumns, address, username)

	identity, err := scanIdentity(row)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, translatePgError("failed to set username", err)
	}

	// Nothing updated: either the address is unknown or the name is held by someone else.
	if _, err := s.IdentityByAddress(ctx, address); err != nil {
		return nil, err
	}
	return nil, core.ErrConflict
}

// SaveChallenge upserts the challenge row of the address
func (s *PostgresStore) SaveChallenge(ctx context.Context, challenge *core.Challenge) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO challenges (wallet_address, nonce, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (wallet_address) DO UPDATE
		SET nonce = EXCLUDED.nonce, issued_at = EXCLUDED.issued_at, expires_at = EXCLUDED.expires_at`,
		challenge.Address, challenge.Nonce, challenge.IssuedAt, challenge.ExpiresAt)
	if err != nil {
		return translatePgError("failed to save challenge", err)
	}
	return nil
}

// GetChallenge loads the challenge row of the address
func (s *PostgresStore) GetChallenge(ctx context.Context, address string) (*core.Challenge, error) {
	challenge := core.Challenge{Address: address}
	err := s.pool.QueryRow(ctx,
		"SELECT nonce, issued_at, expires_at FROM challenges WHERE wallet_address = $1", address,
	).Scan(&challenge.Nonce, &challenge.IssuedAt, &challenge.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, translatePgError("failed to load challenge", err)
	}
	return &challenge, nil
}

// DeleteChallenge removes the challenge row of the address
func (s *PostgresStore) DeleteChallenge(ctx context.Context, address string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM challenges WHERE wallet_address = $1", address); err != nil {
		return translatePgError("failed to delete challenge", err)
	}
	return nil
}

// ConsumeChallenge deletes the row only while it still carries nonce
func (s *PostgresStore) ConsumeChallenge(ctx context.Context, address, nonce string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM challenges WHERE wallet_address = $1 AND nonce = $2", address, nonce)
	if err != nil {
		return false, translatePgError("failed to consume challenge", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RestoreChallenge re-inserts a consumed challenge unless a newer one exists
func (s *PostgresStore) RestoreChallenge(ctx context.Context, challenge *core.Challenge) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO challenges (wallet_address, nonce, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (wallet_address) DO NOTHING`,
		challenge.Address, challenge.Nonce, challenge.IssuedAt, challenge.ExpiresAt)
	if err != nil {
		return false, translatePgError("failed to restore challenge", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanIdentity(row pgx.Row) (*core.Identity, error) {
	var identity core.Identity
	if err := row.Scan(&identity.ID, &identity.Username, &identity.WalletAddress); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &identity, nil
}

func translatePgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return core.ErrConflict
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		pgconn.Timeout(err) ||
		pgconn.SafeToRetry(err) {
		return unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
