// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// SocialAccount links an external identity to a user.
type SocialAccount struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64      `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	Provider  string     `db:"provider" json:"provider"`
	UID       string     `db:"uid" json:"uid"`
	ExtraData string     `db:"extra_data" json:"-"` // raw JSON from the provider
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	LastLogin *time.Time `db:"last_login" json:"last_login,omitempty"`
}
