// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// User is a local MDN account.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"` // primary address, denormalized
	PasswordHash string    `db:"password_hash" json:"-"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	IsStaff      bool      `db:"is_staff" json:"is_staff"`
	IsSuperuser  bool      `db:"is_superuser" json:"is_superuser"`
	DateJoined   time.Time `db:"date_joined" json:"date_joined"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// HasUsablePassword reports whether the user can sign in with a password.
func (u *User) HasUsablePassword() bool {
	return u.PasswordHash != ""
}

// CanModerate reports whether the user may ban other users.
func (u *User) CanModerate() bool {
	return u.IsActive && (u.IsStaff || u.IsSuperuser)
}
