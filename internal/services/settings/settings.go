// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package settings is a database-backed key/value store for runtime
// configuration with code defaults.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"codeberg.org/oliverandrich/mdn-accounts/internal/repository"
	"github.com/samber/lo"
)

// CommonReasonsToBanUsers is a JSON array of ban reasons offered to moderators.
const CommonReasonsToBanUsers = "COMMON_REASONS_TO_BAN_USERS"

// ErrUnknownKey is returned when writing a key that has no default.
var ErrUnknownKey = errors.New("unknown setting")

// Defaults are used while no value is stored.
var Defaults = map[string]string{
	CommonReasonsToBanUsers: `["Spam", "Profile Spam", "Sandboxing", "Incorrect Translation", "Penetration Testing"]`,
}

// Store reads settings on every call, so changes apply immediately.
type Store struct {
	repo *repository.Repository
}

func NewStore(repo *repository.Repository) *Store {
	return &Store{repo: repo}
}

// Get returns the stored value or the default.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	setting, err := s.repo.GetSetting(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return Defaults[key], nil
	}
	if err != nil {
		return "", fmt.Errorf("loading setting %s: %w", key, err)
	}
	return setting.Value, nil
}

// Set stores a value for a known key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, ok := Defaults[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return s.repo.SetSetting(ctx, key, value)
}

// Reset removes a stored value so the default applies again.
func (s *Store) Reset(ctx context.Context, key string) error {
	return s.repo.DeleteSetting(ctx, key)
}

// Keys returns the known keys in order.
func Keys() []string {
	keys := lo.Keys(Defaults)
	sort.Strings(keys)
	return keys
}
