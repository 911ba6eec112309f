// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
)

// CreateUser creates a new user with an unusable password.
func (r *Repository) CreateUser(ctx context.Context, username, email string) (*models.User, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email) VALUES (?, ?)`, username, email)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username, ignoring case.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT * FROM users WHERE username = ? COLLATE NOCASE`, username)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByVerifiedEmail retrieves the user owning a verified email address.
func (r *Repository) GetUserByVerifiedEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT u.* FROM users u
		 JOIN email_addresses e ON e.user_id = u.id
		 WHERE e.email = ? COLLATE NOCASE AND e.verified = 1`, email)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UsernameExists checks if a username is taken, ignoring case.
func (r *Repository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM users WHERE username = ? COLLATE NOCASE`, username)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateUserEmail updates the denormalized primary email of a user.
func (r *Repository) UpdateUserEmail(ctx context.Context, id int64, email string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, email, id)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// UpdateUserPassword sets the password hash of a user.
func (r *Repository) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, passwordHash, id)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// SetUserActive activates or deactivates a user.
func (r *Repository) SetUserActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, active, id)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// SetUserRoles sets the staff and superuser bits of a user.
func (r *Repository) SetUserRoles(ctx context.Context, id int64, staff, superuser bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_staff = ?, is_superuser = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		staff, superuser, id)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}
