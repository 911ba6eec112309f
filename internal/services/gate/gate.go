// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package gate evaluates database-backed feature flags, including the
// registration kill switch.
package gate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"codeberg.org/oliverandrich/mdn-accounts/internal/appcontext"
	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
	"codeberg.org/oliverandrich/mdn-accounts/internal/repository"
	fggate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-featuregate/resolver"
)

// RegistrationDisabledFlag blocks the creation of new accounts when active.
const RegistrationDisabledFlag = "registration_disabled"

// FeatureSignup is on while new accounts may be created. It reads the
// registration_disabled kill switch inverted.
const FeatureSignup = fggate.FeatureUsersSignup

var (
	// ErrInvalidEveryone is returned for an unknown tri-state value.
	ErrInvalidEveryone = errors.New("everyone must be true, false or unset")
	ErrNameRequired    = errors.New("flag name is required")
)

// Flags resolves flags through a feature gate backed by the flags table.
// Nothing is cached, so changes apply to the next request.
type Flags struct {
	repo *repository.Repository
	gate *resolver.Gate
}

var _ fggate.MutableFeatureGate = (*Flags)(nil)

func NewFlags(repo *repository.Repository) *Flags {
	return &Flags{
		repo: repo,
		gate: resolver.New(
			resolver.WithOverrideStore(&flagStore{repo: repo}),
			resolver.WithClaimsProvider(userClaims{}),
			resolver.WithScopeOrder(fggate.ScopeSystem, fggate.ScopeRole),
			resolver.WithStrictStore(true),
		),
	}
}

// Enabled resolves key for the user in ctx. FeatureSignup is answered from
// the registration kill switch.
func (f *Flags) Enabled(ctx context.Context, key string, opts ...fggate.ResolveOption) (bool, error) {
	if fggate.NormalizeKey(key) == FeatureSignup {
		disabled, err := f.gate.Enabled(ctx, RegistrationDisabledFlag, opts...)
		if err != nil {
			return false, err
		}
		return !disabled, nil
	}
	return f.gate.Enabled(ctx, key, opts...)
}

// IsActive reports whether the named flag is on for user (nil for anonymous).
// Unknown flags are off.
func (f *Flags) IsActive(ctx context.Context, name string, user *models.User) (bool, error) {
	return f.gate.Enabled(ctx, name, fggate.WithScopeChain(chainFor(user)))
}

// RegistrationDisabled reports whether the kill switch is on. Signup is
// always anonymous, so only the everyone switch can block it.
func (f *Flags) RegistrationDisabled(ctx context.Context) (bool, error) {
	return f.IsActive(ctx, RegistrationDisabledFlag, nil)
}

// Set stores an override for one scope of the flag.
func (f *Flags) Set(ctx context.Context, name string, scope fggate.ScopeRef, enabled bool, actor fggate.ActorRef) error {
	if strings.TrimSpace(name) == "" {
		return ErrNameRequired
	}
	return f.gate.Set(ctx, strings.TrimSpace(name), scope, enabled, actor)
}

// Unset clears the override for one scope of the flag.
func (f *Flags) Unset(ctx context.Context, name string, scope fggate.ScopeRef, actor fggate.ActorRef) error {
	if strings.TrimSpace(name) == "" {
		return ErrNameRequired
	}
	return f.gate.Unset(ctx, strings.TrimSpace(name), scope, actor)
}

// SetEveryone applies the tri-state everyone switch.
func (f *Flags) SetEveryone(ctx context.Context, name string, v sql.NullBool, actor fggate.ActorRef) error {
	if !v.Valid {
		return f.Unset(ctx, name, Everyone(), actor)
	}
	return f.Set(ctx, name, Everyone(), v.Bool, actor)
}

// Annotate stores the description of a flag, creating it when needed.
func (f *Flags) Annotate(ctx context.Context, name, note string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	return f.repo.InTx(ctx, func(tx *repository.Repository) error {
		flag, err := tx.GetFlag(ctx, name)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			flag = &models.Flag{Name: name}
		case err != nil:
			return err
		}
		flag.Note = note
		_, err = tx.UpsertFlag(ctx, flag)
		return err
	})
}

// Get returns the stored flag.
func (f *Flags) Get(ctx context.Context, name string) (*models.Flag, error) {
	return f.repo.GetFlag(ctx, name)
}

// List returns all flags.
func (f *Flags) List(ctx context.Context) ([]models.Flag, error) {
	return f.repo.ListFlags(ctx)
}

// Everyone is the scope of the everyone switch.
func Everyone() fggate.ScopeRef {
	return fggate.ScopeRef{Kind: fggate.ScopeSystem}
}

// Cohort is the scope of a cohort switch.
func Cohort(role string) fggate.ScopeRef {
	return fggate.ScopeRef{Kind: fggate.ScopeRole, ID: role}
}

// rolesOf lists the cohorts user belongs to.
func rolesOf(user *models.User) []string {
	if user == nil {
		return nil
	}
	roles := []string{RoleAuthenticated}
	if user.IsStaff {
		roles = append(roles, RoleStaff)
	}
	if user.IsSuperuser {
		roles = append(roles, RoleSuperuser)
	}
	return roles
}

func chainFor(user *models.User) fggate.ScopeChain {
	chain := fggate.ScopeChain{Everyone()}
	for _, role := range rolesOf(user) {
		chain = append(chain, Cohort(role))
	}
	return chain
}

// userClaims builds claims from the user stored in the request context.
type userClaims struct{}

func (userClaims) ClaimsFromContext(ctx context.Context) (fggate.ActorClaims, error) {
	user := appcontext.UserFrom(ctx)
	if user == nil {
		return fggate.ActorClaims{}, nil
	}
	return fggate.ActorClaims{
		SubjectID: fmt.Sprint(user.ID),
		Roles:     rolesOf(user),
	}, nil
}

// ParseEveryone parses the tri-state everyone switch.
func ParseEveryone(s string) (sql.NullBool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "on", "yes", "1":
		return sql.NullBool{Bool: true, Valid: true}, nil
	case "false", "off", "no", "0":
		return sql.NullBool{Bool: false, Valid: true}, nil
	case "unset", "", "null":
		return sql.NullBool{}, nil
	default:
		return sql.NullBool{}, fmt.Errorf("%w: %q", ErrInvalidEveryone, s)
	}
}

// FormatEveryone renders the tri-state everyone switch.
func FormatEveryone(v sql.NullBool) string {
	if !v.Valid {
		return "unset"
	}
	if v.Bool {
		return "true"
	}
	return "false"
}

// Static answers every key with the same value.
type Static bool

// Enabled implements the feature gate interface.
func (s Static) Enabled(context.Context, string, ...fggate.ResolveOption) (bool, error) {
	return bool(s), nil
}
