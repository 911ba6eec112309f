// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// UserBan records a moderator banning a user.
type UserBan struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ByID      int64     `db:"by_id" json:"by_id"`
	Reason    string    `db:"reason" json:"reason"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
