package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PostgresRepository persists accounts in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ Repository = (*PostgresRepository)(nil)

// GetCredential loads a credential by username.
func (r *PostgresRepository) GetCredential(ctx context.Context, username string) (*Credential, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, email, is_disabled, created_at, updated_at
		FROM auth_credentials WHERE username = $1
	`, username)
	var c Credential
	if err := row.Scan(&c.ID, &c.Username, &c.PasswordHash, &c.Role, &c.Email, &c.IsDisabled, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &c, nil
}

// CreateCredential inserts a new credential.
func (r *PostgresRepository) CreateCredential(ctx context.Context, c Credential) (Credential, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO auth_credentials (id, username, password_hash, role, email, is_disabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, c.ID, c.Username, c.PasswordHash, c.Role, c.Email, c.IsDisabled)
	if err := row.Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Credential{}, ErrConflict
		}
		return Credential{}, fmt.Errorf("create credential: %w", err)
	}
	return c, nil
}

// IssueOTP writes a new OTP log entry, superseding outstanding ones when asked.
func (r *PostgresRepository) IssueOTP(ctx context.Context, e OTPEntry, supersede bool) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin issue otp: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if supersede {
		if _, err := tx.ExecContext(ctx, `
			UPDATE otp_logs SET consumed_at = $2
			WHERE username = $1 AND consumed_at IS NULL
		`, e.Username, e.CreatedAt); err != nil {
			return fmt.Errorf("supersede otps: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO otp_logs (id, username, otp, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.Username, e.Code, e.ExpiresAt, e.CreatedAt); err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit issue otp: %w", err)
	}
	return nil
}

// FindUsableOTP returns the newest unconsumed, unexpired match.
func (r *PostgresRepository) FindUsableOTP(ctx context.Context, username, code string, now time.Time) (*OTPEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, otp, expires_at, consumed_at, created_at
		FROM otp_logs
		WHERE username = $1 AND otp = $2 AND consumed_at IS NULL AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`, username, code, now)
	var e OTPEntry
	if err := row.Scan(&e.ID, &e.Username, &e.Code, &e.ExpiresAt, &e.ConsumedAt, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find otp: %w", err)
	}
	return &e, nil
}

// ConsumeOTP sets consumed_at only if it is still null.
func (r *PostgresRepository) ConsumeOTP(ctx context.Context, id string, at time.Time) (bool, error) {
	return consume(ctx, r.db, id, at)
}

// ResetPassword consumes the OTP and overwrites the hash atomically.
func (r *PostgresRepository) ResetPassword(ctx context.Context, otpID, username, passwordHash string, at time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ok, err := consume(ctx, tx, otpID, at)
	if err != nil || !ok {
		return false, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE auth_credentials SET password_hash = $2, updated_at = $3
		WHERE username = $1
	`, username, passwordHash, at)
	if err != nil {
		return false, fmt.Errorf("update password: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, err
	} else if n == 0 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit reset: %w", err)
	}
	return true, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func consume(ctx context.Context, db execer, id string, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE otp_logs SET consumed_at = $2
		WHERE id = $1 AND consumed_at IS NULL
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
