// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email manages a user's email addresses and their confirmation.
package email

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/mdn-accounts/internal/i18n"
	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
	"codeberg.org/oliverandrich/mdn-accounts/internal/repository"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var (
	ErrInvalidEmail    = errors.New("email_invalid")
	ErrEmailInUse      = errors.New("email_in_use")
	ErrNotFound        = errors.New("email_not_found")
	ErrPrimaryEmail    = errors.New("email_remove_primary")
	ErrUnverified      = errors.New("email_primary_unverified")
	ErrTokenInvalid    = errors.New("email_confirm_invalid")
	ErrTokenExpired    = errors.New("email_confirm_expired")
	ErrAlreadyVerified = errors.New("email_already_verified")
	ErrSendFailed      = errors.New("email_send_failed")
)

// Service manages email addresses. Error texts are translation ids.
type Service struct {
	repo    *repository.Repository
	sender  Sender
	baseURL string
}

func NewService(repo *repository.Repository, sender Sender, baseURL string) *Service {
	return &Service{
		repo:    repo,
		sender:  sender,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// List returns the user's addresses, primary first.
func (s *Service) List(ctx context.Context, userID int64) ([]models.EmailAddress, error) {
	return s.repo.ListEmailAddresses(ctx, userID)
}

// Add attaches a new unverified address and sends a confirmation. The address
// and its token are stored together and removed again when the mail cannot be
// sent.
func (s *Service) Add(ctx context.Context, user *models.User, address string) (*models.EmailAddress, error) {
	address = strings.TrimSpace(address)
	if err := validation.Validate(address, validation.Required, is.Email); err != nil {
		return nil, ErrInvalidEmail
	}

	_, err := s.repo.GetEmailAddressByEmail(ctx, address)
	if err == nil {
		return nil, ErrEmailInUse
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checking email address: %w", err)
	}

	var addr *models.EmailAddress
	var token string
	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		existing, err := tx.ListEmailAddresses(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("listing email addresses: %w", err)
		}
		addr, err = tx.CreateEmailAddress(ctx, user.ID, address, false, len(existing) == 0)
		if err != nil {
			return fmt.Errorf("creating email address: %w", err)
		}
		token, err = issueToken(ctx, tx, addr.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.deliver(ctx, user, addr, token); err != nil {
		rollback := s.repo.InTx(ctx, func(tx *repository.Repository) error {
			if err := tx.DeleteEmailConfirmations(ctx, addr.ID); err != nil {
				return err
			}
			return tx.DeleteEmailAddress(ctx, user.ID, addr.ID)
		})
		if rollback != nil {
			slog.Error("email_add_rollback_failed", "user_id", user.ID, "email_id", addr.ID, "error", rollback)
		}
		return nil, err
	}
	slog.Info("email_added", "user_id", user.ID, "email_id", addr.ID)
	return addr, nil
}

// SendConfirmation issues a fresh token for an unverified address and mails it.
func (s *Service) SendConfirmation(ctx context.Context, user *models.User, addrID int64) error {
	addr, err := s.owned(ctx, user, addrID)
	if err != nil {
		return err
	}
	if addr.Verified {
		return ErrAlreadyVerified
	}

	var token string
	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		var err error
		token, err = issueToken(ctx, tx, addr.ID)
		return err
	})
	if err != nil {
		return err
	}
	return s.deliver(ctx, user, addr, token)
}

// issueToken replaces any pending confirmation of the address.
func issueToken(ctx context.Context, tx *repository.Repository, addrID int64) (string, error) {
	token, hash, expiresAt, err := GenerateToken()
	if err != nil {
		return "", err
	}
	if err := tx.DeleteEmailConfirmations(ctx, addrID); err != nil {
		return "", fmt.Errorf("storing confirmation: %w", err)
	}
	if err := tx.CreateEmailConfirmation(ctx, addrID, hash, expiresAt); err != nil {
		return "", fmt.Errorf("storing confirmation: %w", err)
	}
	return token, nil
}

// deliver mails the confirmation link in the locale of ctx.
func (s *Service) deliver(ctx context.Context, user *models.User, addr *models.EmailAddress, token string) error {
	locale := i18n.GetLocale(ctx)
	confirmURL := fmt.Sprintf("%s/%s/users/account/confirm-email/%s", s.baseURL, locale, token)
	subject := i18n.T(ctx, "email_confirm_subject")
	body := i18n.TData(ctx, "email_confirm_body", map[string]any{
		"Username":   user.Username,
		"ConfirmURL": confirmURL,
	})

	if err := s.sender.Send(ctx, addr.Email, subject, body); err != nil {
		slog.Error("email_confirmation_failed", "user_id", user.ID, "email_id", addr.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	slog.Info("email_confirmation_sent", "user_id", user.ID, "email_id", addr.ID)
	return nil
}

// Confirm verifies the address a token was issued for.
func (s *Service) Confirm(ctx context.Context, token string) (*models.EmailAddress, error) {
	c, err := s.repo.GetEmailConfirmation(ctx, HashToken(token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("loading confirmation: %w", err)
	}
	if time.Now().After(c.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		if err := tx.MarkEmailAddressVerified(ctx, c.EmailAddressID); err != nil {
			return err
		}
		return tx.DeleteEmailConfirmations(ctx, c.EmailAddressID)
	})
	if err != nil {
		return nil, fmt.Errorf("confirming email address: %w", err)
	}

	addr, err := s.repo.GetEmailAddress(ctx, c.EmailAddressID)
	if err != nil {
		return nil, err
	}
	slog.Info("email_confirmed", "user_id", addr.UserID, "email_id", addr.ID)
	return addr, nil
}

// MakePrimary makes a verified address the user's primary one.
func (s *Service) MakePrimary(ctx context.Context, user *models.User, addrID int64) error {
	addr, err := s.owned(ctx, user, addrID)
	if err != nil {
		return err
	}
	if !addr.Verified {
		return ErrUnverified
	}

	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		if err := tx.SetPrimaryEmailAddress(ctx, user.ID, addr.ID); err != nil {
			return err
		}
		return tx.UpdateUserEmail(ctx, user.ID, addr.Email)
	})
	if err != nil {
		return fmt.Errorf("setting primary email: %w", err)
	}
	user.Email = addr.Email

	slog.Info("email_primary_changed", "user_id", user.ID, "email_id", addr.ID)
	return nil
}

// Remove deletes a non-primary address.
func (s *Service) Remove(ctx context.Context, user *models.User, addrID int64) error {
	addr, err := s.owned(ctx, user, addrID)
	if err != nil {
		return err
	}
	if addr.Primary {
		return ErrPrimaryEmail
	}

	if err := s.repo.DeleteEmailAddress(ctx, user.ID, addr.ID); err != nil {
		return fmt.Errorf("removing email address: %w", err)
	}
	slog.Info("email_removed", "user_id", user.ID, "email_id", addr.ID)
	return nil
}

func (s *Service) owned(ctx context.Context, user *models.User, addrID int64) (*models.EmailAddress, error) {
	addr, err := s.repo.GetEmailAddress(ctx, addrID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading email address: %w", err)
	}
	if addr.UserID != user.ID {
		return nil, ErrNotFound
	}
	return addr, nil
}
