// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// EmailAddress is one of the addresses attached to a user.
type EmailAddress struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Email     string    `db:"email" json:"email"`
	Verified  bool      `db:"verified" json:"verified"`
	Primary   bool      `db:"is_primary" json:"primary"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EmailConfirmation stores a hashed confirmation token for an address.
type EmailConfirmation struct { //nolint:govet // fieldalignment: readability over optimization
	ID             int64     `db:"id" json:"id"`
	EmailAddressID int64     `db:"email_address_id" json:"email_address_id"`
	TokenHash      string    `db:"token_hash" json:"-"` // SHA256 hash
	ExpiresAt      time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
