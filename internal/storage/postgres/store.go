package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fashionlens/fashion-lens-be/internal/models"
	"github.com/fashionlens/fashion-lens-be/internal/storage"
)

// Ensure Store satisfies the storage.UserStore interface at compile time.
var _ storage.UserStore = (*Store)(nil)

const uniqueViolation = "23505"

const userColumns = `id::text, firstname, lastname, email, organization, role, coins, socket_id, password_hash, created_at`

// Store provides Postgres-backed persistence for business users.
type Store struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new Store and runs migrations.
func NewUserStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS business_users (
			id UUID PRIMARY KEY,
			firstname TEXT NOT NULL,
			lastname TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL,
			organization TEXT NOT NULL,
			role TEXT NOT NULL,
			coins BIGINT NOT NULL DEFAULT 100,
			socket_id TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS business_users_email_unique_idx ON business_users (email);`,
		`DO $$ BEGIN
			ALTER TABLE business_users ADD CONSTRAINT business_users_coins_non_negative CHECK (coins >= 0);
		EXCEPTION WHEN duplicate_object THEN NULL; END $$;`,
		`DO $$ BEGIN
			ALTER TABLE business_users ADD CONSTRAINT business_users_role_check CHECK (role IN ('Designer', 'Editor', 'Manager', 'Others'));
		EXCEPTION WHEN duplicate_object THEN NULL; END $$;`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	query := `
		INSERT INTO business_users (id, firstname, lastname, email, organization, role, coins, socket_id, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + userColumns + `;`
	row := s.pool.QueryRow(ctx, query,
		user.ID,
		user.FullName.FirstName,
		user.FullName.LastName,
		strings.ToLower(user.Email),
		user.Organization,
		string(user.Role),
		user.Coins,
		user.SocketID,
		user.PasswordHash,
	)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, err
	}
	return created, nil
}

// FindByEmail fetches a user by email address.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM business_users WHERE email = $1;`
	row := s.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// FindByID fetches a user by primary key.
func (s *Store) FindByID(ctx context.Context, id string) (models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.User{}, storage.ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM business_users WHERE id = $1;`
	row := s.pool.QueryRow(ctx, query, id)
	return scanUser(row)
}

// DebitCoins subtracts amount from the balance in a single conditional update.
func (s *Store) DebitCoins(ctx context.Context, id string, amount int64) (models.User, error) {
	if amount <= 0 {
		return models.User{}, storage.ErrInvalidAmount
	}
	if _, err := uuid.Parse(id); err != nil {
		return models.User{}, storage.ErrNotFound
	}
	query := `
		UPDATE business_users SET coins = coins - $2
		WHERE id = $1 AND coins >= $2
		RETURNING ` + userColumns + `;`
	updated, err := scanUser(s.pool.QueryRow(ctx, query, id, amount))
	if errors.Is(err, storage.ErrNotFound) {
		// Either the user is gone or the balance is too low.
		if _, findErr := s.FindByID(ctx, id); findErr != nil {
			return models.User{}, findErr
		}
		return models.User{}, storage.ErrInsufficientCoins
	}
	return updated, err
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	var role string
	if err := row.Scan(
		&user.ID,
		&user.FullName.FirstName,
		&user.FullName.LastName,
		&user.Email,
		&user.Organization,
		&role,
		&user.Coins,
		&user.SocketID,
		&user.PasswordHash,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	user.Role = models.Role(role)
	return user, nil
}
