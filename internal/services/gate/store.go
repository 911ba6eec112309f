// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package gate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
	"codeberg.org/oliverandrich/mdn-accounts/internal/repository"
	fggate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-featuregate/store"
)

// Cohort role ids stored as role-scoped overrides.
const (
	RoleSuperuser     = "superuser"
	RoleStaff         = "staff"
	RoleAuthenticated = "authenticated"
)

// ErrUnsupportedScope is returned for scopes the flags table has no column for.
var ErrUnsupportedScope = errors.New("unsupported flag scope")

// flagStore maps the flags table onto feature overrides. The everyone column
// is the system override; each cohort column is an enabled role override.
type flagStore struct {
	repo *repository.Repository
}

var _ store.ReadWriter = (*flagStore)(nil)

// GetAll returns the overrides of key that apply to chain.
func (s *flagStore) GetAll(ctx context.Context, key string, chain fggate.ScopeChain) ([]store.OverrideMatch, error) {
	flag, err := s.repo.GetFlag(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading flag %s: %w", key, err)
	}

	var matches []store.OverrideMatch
	for _, ref := range chain {
		override := overrideFor(flag, ref)
		if override.HasValue() {
			matches = append(matches, store.OverrideMatch{Scope: ref, Override: override})
		}
	}
	return matches, nil
}

func overrideFor(flag *models.Flag, ref fggate.ScopeRef) store.Override {
	switch ref.Kind {
	case fggate.ScopeSystem:
		if !flag.Everyone.Valid {
			return store.MissingOverride()
		}
		if flag.Everyone.Bool {
			return store.EnabledOverride()
		}
		return store.DisabledOverride()
	case fggate.ScopeRole:
		on := false
		switch ref.ID {
		case RoleSuperuser:
			on = flag.Superusers
		case RoleStaff:
			on = flag.Staff
		case RoleAuthenticated:
			on = flag.Authenticated
		}
		if on {
			return store.EnabledOverride()
		}
	}
	return store.MissingOverride()
}

// Set stores an override, creating the flag row when needed.
func (s *flagStore) Set(ctx context.Context, key string, scope fggate.ScopeRef, enabled bool, actor fggate.ActorRef) error {
	return s.update(ctx, key, scope, actor, func(f *models.Flag) error {
		return assign(f, scope, sql.NullBool{Bool: enabled, Valid: true})
	})
}

// Unset clears an override. A cleared cohort is off.
func (s *flagStore) Unset(ctx context.Context, key string, scope fggate.ScopeRef, actor fggate.ActorRef) error {
	return s.update(ctx, key, scope, actor, func(f *models.Flag) error {
		return assign(f, scope, sql.NullBool{})
	})
}

func assign(f *models.Flag, scope fggate.ScopeRef, v sql.NullBool) error {
	switch scope.Kind {
	case fggate.ScopeSystem:
		f.Everyone = v
		return nil
	case fggate.ScopeRole:
		on := v.Valid && v.Bool
		switch scope.ID {
		case RoleSuperuser:
			f.Superusers = on
		case RoleStaff:
			f.Staff = on
		case RoleAuthenticated:
			f.Authenticated = on
		default:
			return fmt.Errorf("%w: role %q", ErrUnsupportedScope, scope.ID)
		}
		return nil
	default:
		return fmt.Errorf("%w: kind %d", ErrUnsupportedScope, scope.Kind)
	}
}

// update applies fn to the stored flag inside a transaction.
func (s *flagStore) update(ctx context.Context, key string, scope fggate.ScopeRef, actor fggate.ActorRef, fn func(*models.Flag) error) error {
	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		flag, err := tx.GetFlag(ctx, key)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			flag = &models.Flag{Name: key}
		case err != nil:
			return err
		}
		if err := fn(flag); err != nil {
			return err
		}
		_, err = tx.UpsertFlag(ctx, flag)
		return err
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "flag updated", "flag", key, "target", target(scope), "actor", actor.ID)
	return nil
}

// target names the column a scope writes to.
func target(scope fggate.ScopeRef) string {
	if scope.Kind == fggate.ScopeSystem {
		return "everyone"
	}
	return scope.ID
}
