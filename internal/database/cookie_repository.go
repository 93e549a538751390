package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/socialgrab/internal/domain"
)

// ErrNoCredentialAvailable is returned when no usable credential exists for
// a platform/tier. Callers should check with errors.Is().
var ErrNoCredentialAvailable = errors.New("no usable credential available")

// cookieSelectColumns lists columns for SELECT queries on cookie_pool.
const cookieSelectColumns = `id, platform, tier, cookie_ciphertext, status, enabled,
	use_count, success_count, error_count, login_redirects,
	last_used_at, last_error, cooldown_until, created_at, updated_at`

// CookieRepository handles database operations for the credential pool.
type CookieRepository struct {
	db *sqlx.DB
}

// NewCookieRepository creates a new cookie repository.
func NewCookieRepository(db *sqlx.DB) *CookieRepository {
	return &CookieRepository{db: db}
}

// SelectNext returns the least-recently-used usable credential for a
// platform/tier: enabled, not expired or disabled, and past any cooldown.
// Ordering by last_used_at ascending (nulls first) spreads load; concurrent
// selections of the same row are tolerated rather than serialized.
func (r *CookieRepository) SelectNext(ctx context.Context, platform, tier string) (*domain.Credential, error) {
	query := `
		SELECT ` + cookieSelectColumns + `
		FROM cookie_pool
		WHERE platform = $1
		  AND tier = $2
		  AND enabled = TRUE
		  AND status NOT IN ('expired', 'disabled')
		  AND (status != 'cooldown' OR cooldown_until < NOW())
		ORDER BY last_used_at ASC NULLS FIRST
		LIMIT 1
	`

	var cred domain.Credential
	if err := r.db.GetContext(ctx, &cred, query, platform, tier); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoCredentialAvailable
		}
		return nil, fmt.Errorf("failed to select credential: %w", err)
	}
	return &cred, nil
}

// CreateParams contains the parameters for adding a credential to the pool.
type CreateParams struct {
	Platform         string
	Tier             string
	CookieCiphertext string
}

// Create inserts a new healthy credential and returns its ID.
func (r *CookieRepository) Create(ctx context.Context, params CreateParams) (string, error) {
	id := uuid.New().String()
	query := `
		INSERT INTO cookie_pool (id, platform, tier, cookie_ciphertext, status, enabled)
		VALUES ($1, $2, $3, $4, 'healthy', TRUE)
	`

	if _, err := r.db.ExecContext(ctx, query, id, params.Platform, params.Tier, params.CookieCiphertext); err != nil {
		return "", fmt.Errorf("failed to insert credential: %w", err)
	}
	return id, nil
}

// Get returns one credential by ID.
func (r *CookieRepository) Get(ctx context.Context, id string) (*domain.Credential, error) {
	query := `SELECT ` + cookieSelectColumns + ` FROM cookie_pool WHERE id = $1`

	var cred domain.Credential
	if err := r.db.GetContext(ctx, &cred, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("credential not found: %s", id)
		}
		return nil, fmt.Errorf("failed to select credential: %w", err)
	}
	return &cred, nil
}

// List returns credentials, optionally filtered by platform.
func (r *CookieRepository) List(ctx context.Context, platform string) ([]domain.Credential, error) {
	query := `SELECT ` + cookieSelectColumns + ` FROM cookie_pool`
	args := []any{}
	if platform != "" {
		query += ` WHERE platform = $1`
		args = append(args, platform)
	}
	query += ` ORDER BY platform, created_at`

	var creds []domain.Credential
	if err := r.db.SelectContext(ctx, &creds, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return creds, nil
}

// MarkUsed atomically increments use_count and stamps last_used_at.
func (r *CookieRepository) MarkUsed(ctx context.Context, id string) error {
	query := `
		UPDATE cookie_pool
		SET use_count = use_count + 1, last_used_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id)
	return execRequireRows(result, err, fmt.Errorf("credential not found: %s", id))
}

// RecordSuccess resets consecutive error tracking: error and login-redirect
// counters to zero, last_error cleared, cooldown lifted back to healthy.
func (r *CookieRepository) RecordSuccess(ctx context.Context, id string) error {
	query := `
		UPDATE cookie_pool
		SET success_count = success_count + 1,
			error_count = 0,
			login_redirects = 0,
			last_error = NULL,
			status = CASE WHEN status = 'cooldown' THEN 'healthy' ELSE status END,
			cooldown_until = NULL,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id)
	return execRequireRows(result, err, fmt.Errorf("credential not found: %s", id))
}

// RecordError increments the consecutive error counter and returns the new
// count so the pool can apply threshold transitions.
func (r *CookieRepository) RecordError(ctx context.Context, id, message string) (int, error) {
	query := `
		UPDATE cookie_pool
		SET error_count = error_count + 1, last_error = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING error_count
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, id, message); err != nil {
		return 0, fmt.Errorf("failed to record credential error: %w", err)
	}
	return count, nil
}

// RecordLoginRedirect increments the login-redirect counter, tracked apart
// from generic errors, and returns the new count.
func (r *CookieRepository) RecordLoginRedirect(ctx context.Context, id, message string) (int, error) {
	query := `
		UPDATE cookie_pool
		SET login_redirects = login_redirects + 1, last_error = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING login_redirects
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, id, message); err != nil {
		return 0, fmt.Errorf("failed to record login redirect: %w", err)
	}
	return count, nil
}

// SetStatus applies a status transition; cooldownUntil is only meaningful
// for the cooldown status and may be nil otherwise.
func (r *CookieRepository) SetStatus(ctx context.Context, id, status string, cooldownUntil *time.Time) error {
	query := `
		UPDATE cookie_pool
		SET status = $2, cooldown_until = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, cooldownUntil)
	return execRequireRows(result, err, fmt.Errorf("credential not found: %s", id))
}

// SetEnabled flips the manual operator override. Disabled credentials leave
// rotation regardless of health; rows are never hard-deleted while in use.
func (r *CookieRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	query := `UPDATE cookie_pool SET enabled = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, enabled)
	return execRequireRows(result, err, fmt.Errorf("credential not found: %s", id))
}

// ReplaceCookie swaps the ciphertext of an existing credential and restores
// it to healthy rotation (operator replacing an expired cookie).
func (r *CookieRepository) ReplaceCookie(ctx context.Context, id, ciphertext string) error {
	query := `
		UPDATE cookie_pool
		SET cookie_ciphertext = $2, status = 'healthy', error_count = 0,
			login_redirects = 0, last_error = NULL, cooldown_until = NULL, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, ciphertext)
	return execRequireRows(result, err, fmt.Errorf("credential not found: %s", id))
}

// SweepCooldowns returns to healthy every cooldown credential whose window
// has passed. Run periodically; the selection query tolerates stale rows, so
// this only keeps pool statistics honest.
func (r *CookieRepository) SweepCooldowns(ctx context.Context) (int64, error) {
	query := `
		UPDATE cookie_pool
		SET status = 'healthy', cooldown_until = NULL, updated_at = NOW()
		WHERE status = 'cooldown' AND cooldown_until < NOW()
	`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep cooldowns: %w", err)
	}
	return result.RowsAffected()
}
