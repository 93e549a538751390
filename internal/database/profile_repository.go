package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/socialgrab/internal/domain"
)

// profileSelectColumns lists columns for SELECT queries on browser_profiles.
const profileSelectColumns = `id, platform, user_agent, sec_ch_ua, accept_language,
	priority, enabled, use_count, success_count, error_count,
	last_used_at, created_at, updated_at`

// ProfileRepository handles database operations for browser profiles.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// ListEnabled returns all enabled profiles, ordered for rotation: priority
// descending, then last_used_at ascending with nulls first.
func (r *ProfileRepository) ListEnabled(ctx context.Context) ([]domain.BrowserProfile, error) {
	query := `
		SELECT ` + profileSelectColumns + `
		FROM browser_profiles
		WHERE enabled = TRUE
		ORDER BY priority DESC, last_used_at ASC NULLS FIRST
	`

	var profiles []domain.BrowserProfile
	if err := r.db.SelectContext(ctx, &profiles, query); err != nil {
		return nil, fmt.Errorf("failed to list browser profiles: %w", err)
	}
	return profiles, nil
}

// List returns all profiles regardless of enabled state.
func (r *ProfileRepository) List(ctx context.Context) ([]domain.BrowserProfile, error) {
	query := `SELECT ` + profileSelectColumns + ` FROM browser_profiles ORDER BY platform, priority DESC`

	var profiles []domain.BrowserProfile
	if err := r.db.SelectContext(ctx, &profiles, query); err != nil {
		return nil, fmt.Errorf("failed to list browser profiles: %w", err)
	}
	return profiles, nil
}

// ProfileParams contains the parameters for creating a browser profile.
type ProfileParams struct {
	Platform       string
	UserAgent      string
	SecChUa        *string
	AcceptLanguage string
	Priority       int
}

// Create inserts a new enabled profile and returns its ID.
func (r *ProfileRepository) Create(ctx context.Context, params ProfileParams) (string, error) {
	id := uuid.New().String()
	query := `
		INSERT INTO browser_profiles (id, platform, user_agent, sec_ch_ua, accept_language, priority, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
	`

	_, err := r.db.ExecContext(ctx, query,
		id, params.Platform, params.UserAgent, params.SecChUa, params.AcceptLanguage, params.Priority)
	if err != nil {
		return "", fmt.Errorf("failed to insert browser profile: %w", err)
	}
	return id, nil
}

// MarkUsed atomically increments use_count and stamps last_used_at.
func (r *ProfileRepository) MarkUsed(ctx context.Context, id string) error {
	query := `
		UPDATE browser_profiles
		SET use_count = use_count + 1, last_used_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id)
	return execRequireRows(result, err, fmt.Errorf("browser profile not found: %s", id))
}

// RecordOutcome increments the success or error counter for a profile.
func (r *ProfileRepository) RecordOutcome(ctx context.Context, id string, success bool) error {
	column := "error_count"
	if success {
		column = "success_count"
	}
	query := fmt.Sprintf(
		`UPDATE browser_profiles SET %s = %s + 1, updated_at = NOW() WHERE id = $1`,
		column, column,
	)

	result, err := r.db.ExecContext(ctx, query, id)
	return execRequireRows(result, err, fmt.Errorf("browser profile not found: %s", id))
}

// SetEnabled flips a profile in or out of rotation.
func (r *ProfileRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	query := `UPDATE browser_profiles SET enabled = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, enabled)
	return execRequireRows(result, err, fmt.Errorf("browser profile not found: %s", id))
}
