// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/mdn-accounts/internal/database"
	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
	"codeberg.org/oliverandrich/mdn-accounts/internal/repository"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestUser creates a user with a verified primary email address.
func NewTestUser(t *testing.T, repo *repository.Repository, username, email string) *models.User {
	t.Helper()
	ctx := context.Background()
	user, err := repo.CreateUser(ctx, username, email)
	require.NoError(t, err)
	_, err = repo.CreateEmailAddress(ctx, user.ID, email, true, true)
	require.NoError(t, err)
	return user
}

// NewPersonaUser creates a user signed up through Persona.
func NewPersonaUser(t *testing.T, repo *repository.Repository, username, email string) *models.User {
	t.Helper()
	user := NewTestUser(t, repo, username, email)
	_, err := repo.CreateSocialAccount(context.Background(), user.ID, "persona", email, "")
	require.NoError(t, err)
	return user
}

// SetTestPassword gives a user a usable password.
func SetTestPassword(t *testing.T, repo *repository.Repository, user *models.User, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateUserPassword(context.Background(), user.ID, string(hash)))
	user.PasswordHash = string(hash)
}

// MakeStaff sets the staff bit of a user.
func MakeStaff(t *testing.T, repo *repository.Repository, user *models.User) {
	t.Helper()
	require.NoError(t, repo.SetUserRoles(context.Background(), user.ID, true, user.IsSuperuser))
	user.IsStaff = true
}
