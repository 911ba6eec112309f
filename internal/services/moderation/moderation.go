// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package moderation implements user bans and the list of common ban reasons.
package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
	"codeberg.org/oliverandrich/mdn-accounts/internal/repository"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/settings"
)

var (
	ErrNotModerator   = errors.New("user may not ban other users")
	ErrSelfBan        = errors.New("users cannot ban themselves")
	ErrReasonRequired = errors.New("a reason is required")
)

// FallbackReasons is used when the configured list is unusable.
var FallbackReasons = []string{"Spam"}

// ResolveReasons decodes a JSON array of reasons. Malformed or empty input
// yields FallbackReasons.
func ResolveReasons(raw string) []string {
	var reasons []string
	if err := json.Unmarshal([]byte(raw), &reasons); err != nil {
		slog.Warn("ban_reasons_invalid", "error", err)
		return append([]string(nil), FallbackReasons...)
	}
	if len(reasons) == 0 {
		slog.Warn("ban_reasons_empty")
		return append([]string(nil), FallbackReasons...)
	}
	return reasons
}

type Service struct {
	repo     *repository.Repository
	settings *settings.Store
}

func NewService(repo *repository.Repository, store *settings.Store) *Service {
	return &Service{repo: repo, settings: store}
}

// Reasons returns the configured common reasons to ban users.
func (s *Service) Reasons(ctx context.Context) ([]string, error) {
	raw, err := s.settings.Get(ctx, settings.CommonReasonsToBanUsers)
	if err != nil {
		return nil, err
	}
	return ResolveReasons(raw), nil
}

// Ban records a ban and deactivates the target.
func (s *Service) Ban(ctx context.Context, moderator, target *models.User, reason string) (*models.UserBan, error) {
	if !moderator.CanModerate() {
		return nil, ErrNotModerator
	}
	if moderator.ID == target.ID {
		return nil, ErrSelfBan
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	var ban *models.UserBan
	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		var err error
		ban, err = tx.CreateBan(ctx, target.ID, moderator.ID, reason)
		if err != nil {
			return err
		}
		return tx.SetUserActive(ctx, target.ID, false)
	})
	if err != nil {
		return nil, fmt.Errorf("banning user %d: %w", target.ID, err)
	}
	target.IsActive = false

	slog.Info("user_banned", "user_id", target.ID, "by_id", moderator.ID, "reason", reason)
	return ban, nil
}
