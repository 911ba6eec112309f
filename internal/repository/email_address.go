// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
)

// CreateEmailAddress adds an email address to a user.
func (r *Repository) CreateEmailAddress(ctx context.Context, userID int64, email string, verified, primary bool) (*models.EmailAddress, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO email_addresses (user_id, email, verified, is_primary) VALUES (?, ?, ?, ?)`,
		userID, email, verified, primary)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetEmailAddress(ctx, id)
}

// GetEmailAddress retrieves an email address by ID.
func (r *Repository) GetEmailAddress(ctx context.Context, id int64) (*models.EmailAddress, error) {
	var addr models.EmailAddress
	if err := r.db.GetContext(ctx, &addr, `SELECT * FROM email_addresses WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &addr, nil
}

// GetEmailAddressByEmail retrieves an email address, ignoring case.
func (r *Repository) GetEmailAddressByEmail(ctx context.Context, email string) (*models.EmailAddress, error) {
	var addr models.EmailAddress
	err := r.db.GetContext(ctx, &addr,
		`SELECT * FROM email_addresses WHERE email = ? COLLATE NOCASE`, email)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// ListEmailAddresses returns a user's addresses, primary first.
func (r *Repository) ListEmailAddresses(ctx context.Context, userID int64) ([]models.EmailAddress, error) {
	var addrs []models.EmailAddress
	err := r.db.SelectContext(ctx, &addrs,
		`SELECT * FROM email_addresses WHERE user_id = ? ORDER BY is_primary DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	return addrs, nil
}

// MarkEmailAddressVerified marks an address as verified.
func (r *Repository) MarkEmailAddressVerified(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE email_addresses SET verified = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// SetPrimaryEmailAddress makes the given address the only primary address of its user.
// Callers run this inside InTx together with UpdateUserEmail.
func (r *Repository) SetPrimaryEmailAddress(ctx context.Context, userID, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE email_addresses SET is_primary = 0 WHERE user_id = ?`, userID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE email_addresses SET is_primary = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// DeleteEmailAddress removes an address, ensuring it belongs to the given user.
func (r *Repository) DeleteEmailAddress(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM email_addresses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// CreateEmailConfirmation stores a hashed confirmation token.
func (r *Repository) CreateEmailConfirmation(ctx context.Context, emailAddressID int64, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO email_confirmations (email_address_id, token_hash, expires_at) VALUES (?, ?, ?)`,
		emailAddressID, tokenHash, expiresAt.UTC())
	return err
}

// GetEmailConfirmation retrieves a confirmation by token hash.
func (r *Repository) GetEmailConfirmation(ctx context.Context, tokenHash string) (*models.EmailConfirmation, error) {
	var c models.EmailConfirmation
	err := r.db.GetContext(ctx, &c, `SELECT * FROM email_confirmations WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteEmailConfirmations deletes all confirmations for an address.
func (r *Repository) DeleteEmailConfirmations(ctx context.Context, emailAddressID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM email_confirmations WHERE email_address_id = ?`, emailAddressID)
	return err
}

// DeleteExpiredEmailConfirmations deletes confirmations past their expiry.
func (r *Repository) DeleteExpiredEmailConfirmations(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM email_confirmations WHERE expires_at < ?`, time.Now().UTC())
	return err
}
