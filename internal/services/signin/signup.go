// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package signin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
	"codeberg.org/oliverandrich/mdn-accounts/internal/repository"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/gate"
	validation "github.com/go-ozzo/ozzo-validation"
	fggate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-featuregate/gate/guard"
)

// MaxUsernameLength matches the database column users historically had.
const MaxUsernameLength = 30

var (
	ErrRegistrationDisabled = errors.New("registration is disabled")
	ErrEmailInUse           = errors.New("email address is already in use")
)

var usernameRe = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

// SignupForm is the user input of the signup page. Validation messages are
// translation ids.
type SignupForm struct {
	Username string `json:"username"`
	Terms    bool   `json:"terms"`
}

// Validate checks the form without touching the database.
func (f SignupForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Username,
			validation.Required.Error("signup_username_required"),
			validation.RuneLength(1, MaxUsernameLength).Error("signup_username_too_long"),
			validation.Match(usernameRe).Error("signup_username_invalid"),
		),
		validation.Field(&f.Terms,
			validation.Required.Error("signup_terms_required"),
		),
	)
}

// Identity is the verified identity a new account is created for.
type Identity struct {
	Provider string
	UID      string
	Email    string
}

// Signup creates accounts for verified identities.
type Signup struct {
	repo *repository.Repository
	gate fggate.FeatureGate
}

// NewSignup answers the registration question from the signup feature of fg.
func NewSignup(repo *repository.Repository, fg fggate.FeatureGate) *Signup {
	return &Signup{repo: repo, gate: fg}
}

// requireOpen returns ErrRegistrationDisabled while the kill switch is on.
func (s *Signup) requireOpen(ctx context.Context) error {
	return guard.Require(ctx, s.gate, gate.FeatureSignup, guard.WithDisabledError(ErrRegistrationDisabled))
}

// Disabled reports whether new accounts are currently blocked.
func (s *Signup) Disabled(ctx context.Context) (bool, error) {
	err := s.requireOpen(ctx)
	if errors.Is(err, ErrRegistrationDisabled) {
		return true, nil
	}
	return false, err
}

// Complete validates the form and creates the user, a verified primary email
// address and the social account in one transaction. Field problems are
// returned as validation.Errors.
func (s *Signup) Complete(ctx context.Context, identity Identity, form SignupForm) (*models.User, error) {
	if err := s.requireOpen(ctx); err != nil {
		if errors.Is(err, ErrRegistrationDisabled) {
			return nil, err
		}
		return nil, fmt.Errorf("checking registration gate: %w", err)
	}

	form.Username = strings.TrimSpace(form.Username)
	if err := form.Validate(); err != nil {
		return nil, err
	}

	taken, err := s.repo.UsernameExists(ctx, form.Username)
	if err != nil {
		return nil, fmt.Errorf("checking username: %w", err)
	}
	if taken {
		return nil, validation.Errors{"username": errors.New("signup_username_taken")}
	}

	var user *models.User
	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		if err := releaseEmail(ctx, tx, identity.Email); err != nil {
			return err
		}

		var err error
		user, err = tx.CreateUser(ctx, form.Username, identity.Email)
		if err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
		if _, err := tx.CreateEmailAddress(ctx, user.ID, identity.Email, true, true); err != nil {
			return fmt.Errorf("creating email address: %w", err)
		}
		if _, err := tx.CreateSocialAccount(ctx, user.ID, identity.Provider, identity.UID, ""); err != nil {
			return fmt.Errorf("creating social account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("signup_success", "user_id", user.ID, "username", user.Username, "provider", identity.Provider)
	return user, nil
}

// releaseEmail drops an unverified claim on email held by another account,
// since the new user has just proven ownership.
func releaseEmail(ctx context.Context, tx *repository.Repository, email string) error {
	addr, err := tx.GetEmailAddressByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking email address: %w", err)
	}
	if addr.Verified || addr.Primary {
		return ErrEmailInUse
	}
	slog.Info("unverified_email_released", "user_id", addr.UserID)
	return tx.DeleteEmailAddress(ctx, addr.UserID, addr.ID)
}
