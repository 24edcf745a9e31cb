package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"trainingtracker/internal/database"
)

// PassedRetakeSetting is the settings key that overrides ALLOW_PASSED_RETAKE at runtime
const PassedRetakeSetting = "allow_passed_retake"

type SettingsRepository struct {
	db *database.DB
}

func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSetting retrieves a setting value by key. ok is false when the key has never been set.
func (r *SettingsRepository) GetSetting(ctx context.Context, key string) (value string, ok bool, err error) {
	query := `SELECT setting_value FROM settings WHERE setting_key = ?`
	err = r.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting updates or inserts a setting
func (r *SettingsRepository) SetSetting(ctx context.Context, key, value string) error {
	query := r.db.Dialect.UpsertSettings()
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// AllowPassedRetake returns the stored retake policy, or fallback when none is stored
// or the stored value is not a boolean
func (r *SettingsRepository) AllowPassedRetake(ctx context.Context, fallback bool) (bool, error) {
	value, ok, err := r.GetSetting(ctx, PassedRetakeSetting)
	if err != nil || !ok {
		return fallback, err
	}

	allowed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback, nil
	}
	return allowed, nil
}

// SetAllowPassedRetake stores the retake policy
func (r *SettingsRepository) SetAllowPassedRetake(ctx context.Context, allowed bool) error {
	return r.SetSetting(ctx, PassedRetakeSetting, strconv.FormatBool(allowed))
}
