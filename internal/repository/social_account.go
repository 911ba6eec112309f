// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
)

// CreateSocialAccount links an external identity to a user.
func (r *Repository) CreateSocialAccount(ctx context.Context, userID int64, provider, uid, extraData string) (*models.SocialAccount, error) {
	if extraData == "" {
		extraData = "{}"
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO social_accounts (user_id, provider, uid, extra_data) VALUES (?, ?, ?, ?)`,
		userID, provider, uid, extraData)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetSocialAccountByID(ctx, id)
}

// GetSocialAccountByID retrieves a linked identity by ID.
func (r *Repository) GetSocialAccountByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	var acc models.SocialAccount
	if err := r.db.GetContext(ctx, &acc, `SELECT * FROM social_accounts WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetSocialAccount retrieves a linked identity by provider and uid.
func (r *Repository) GetSocialAccount(ctx context.Context, provider, uid string) (*models.SocialAccount, error) {
	var acc models.SocialAccount
	err := r.db.GetContext(ctx, &acc,
		`SELECT * FROM social_accounts WHERE provider = ? AND uid = ? COLLATE NOCASE`, provider, uid)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// ListSocialAccounts returns the identities linked to a user.
func (r *Repository) ListSocialAccounts(ctx context.Context, userID int64) ([]models.SocialAccount, error) {
	var accs []models.SocialAccount
	err := r.db.SelectContext(ctx, &accs,
		`SELECT * FROM social_accounts WHERE user_id = ? ORDER BY provider, id`, userID)
	if err != nil {
		return nil, err
	}
	return accs, nil
}

// TouchSocialAccount records a sign-in through a linked identity.
func (r *Repository) TouchSocialAccount(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE social_accounts SET last_login = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// DeleteSocialAccount unlinks an identity, ensuring it belongs to the given user.
func (r *Repository) DeleteSocialAccount(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM social_accounts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}
