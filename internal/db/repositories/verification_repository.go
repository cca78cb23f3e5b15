// verification_repository.go implements VerificationRepository for single-use
// email verification and password reset tokens.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/helporbit/helporbit/internal/db/models"
)

// VerificationRepository handles database operations for verification tokens
type VerificationRepository struct {
	db *sqlx.DB
}

// NewVerificationRepository creates a new verification repository
func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Create stores a token hash
func (r *VerificationRepository) Create(ctx context.Context, v *models.Verification) error {
	query := `
		INSERT INTO verifications (id, user_id, purpose, token_hash, expires_at, consumed_at, created_at)
		VALUES (:id, :user_id, :purpose, :token_hash, :expires_at, :consumed_at, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, v); err != nil {
		return fmt.Errorf("failed to create verification: %w", err)
	}
	return nil
}

// GetByTokenHash looks a token up by its hash and purpose
func (r *VerificationRepository) GetByTokenHash(ctx context.Context, purpose models.VerificationPurpose, tokenHash string) (*models.Verification, error) {
	var v models.Verification
	err := r.db.GetContext(ctx, &v, `
		SELECT id, user_id, purpose, token_hash, expires_at, consumed_at, created_at
		FROM verifications
		WHERE purpose = $1 AND token_hash = $2
	`, purpose, tokenHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification: %w", err)
	}
	return &v, nil
}

// Consume marks a token used. A token that was already consumed returns
// ErrTokenConsumed.
func (r *VerificationRepository) Consume(ctx context.Context, id string, now time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE verifications SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`, id, now)
	if err != nil {
		return fmt.Errorf("failed to consume verification: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to consume verification: %w", err)
	}
	if rows == 0 {
		return ErrTokenConsumed
	}
	return nil
}

// DeleteStale removes tokens that expired before cutoff or were already
// consumed. It returns how many rows were removed.
func (r *VerificationRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM verifications WHERE expires_at < $1 OR consumed_at IS NOT NULL`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale verifications: %w", err)
	}
	return result.RowsAffected()
}
