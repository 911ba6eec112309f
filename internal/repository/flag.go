// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
)

// GetFlag retrieves a flag by name.
func (r *Repository) GetFlag(ctx context.Context, name string) (*models.Flag, error) {
	var f models.Flag
	if err := r.db.GetContext(ctx, &f, `SELECT * FROM flags WHERE name = ?`, name); err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFlags returns all flags ordered by name.
func (r *Repository) ListFlags(ctx context.Context) ([]models.Flag, error) {
	var flags []models.Flag
	if err := r.db.SelectContext(ctx, &flags, `SELECT * FROM flags ORDER BY name`); err != nil {
		return nil, err
	}
	return flags, nil
}

// UpsertFlag creates or replaces the switches of a flag.
func (r *Repository) UpsertFlag(ctx context.Context, f *models.Flag) (*models.Flag, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO flags (name, everyone, superusers, staff, authenticated, note)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		   everyone = excluded.everyone,
		   superusers = excluded.superusers,
		   staff = excluded.staff,
		   authenticated = excluded.authenticated,
		   note = excluded.note,
		   updated_at = CURRENT_TIMESTAMP`,
		f.Name, f.Everyone, f.Superusers, f.Staff, f.Authenticated, f.Note)
	if err != nil {
		return nil, err
	}
	return r.GetFlag(ctx, f.Name)
}

// DeleteFlag removes a flag.
func (r *Repository) DeleteFlag(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM flags WHERE name = ?`, name)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// GetSetting retrieves a stored setting.
func (r *Repository) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	var s models.Setting
	if err := r.db.GetContext(ctx, &s, `SELECT * FROM settings WHERE key = ?`, key); err != nil {
		return nil, err
	}
	return &s, nil
}

// SetSetting stores a setting value.
func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	return err
}

// DeleteSetting removes a stored setting so the default applies again.
func (r *Repository) DeleteSetting(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	return err
}

// ListSettings returns all stored settings.
func (r *Repository) ListSettings(ctx context.Context) ([]models.Setting, error) {
	var settings []models.Setting
	if err := r.db.SelectContext(ctx, &settings, `SELECT * FROM settings ORDER BY key`); err != nil {
		return nil, err
	}
	return settings, nil
}

