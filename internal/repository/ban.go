// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
)

// CreateBan records a ban of userID issued by byID.
func (r *Repository) CreateBan(ctx context.Context, userID, byID int64, reason string) (*models.UserBan, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO user_bans (user_id, by_id, reason) VALUES (?, ?, ?)`, userID, byID, reason)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	var ban models.UserBan
	if err := r.db.GetContext(ctx, &ban, `SELECT * FROM user_bans WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &ban, nil
}

// GetActiveBan returns the most recent active ban of a user.
func (r *Repository) GetActiveBan(ctx context.Context, userID int64) (*models.UserBan, error) {
	var ban models.UserBan
	err := r.db.GetContext(ctx, &ban,
		`SELECT * FROM user_bans WHERE user_id = ? AND is_active = 1 ORDER BY id DESC LIMIT 1`, userID)
	if err != nil {
		return nil, err
	}
	return &ban, nil
}

// ListBans returns all bans of a user, newest first.
func (r *Repository) ListBans(ctx context.Context, userID int64) ([]models.UserBan, error) {
	var bans []models.UserBan
	err := r.db.SelectContext(ctx, &bans,
		`SELECT * FROM user_bans WHERE user_id = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return bans, nil
}
