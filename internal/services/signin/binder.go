// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package signin turns verified identities into sessions or pending signups.
package signin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
	"codeberg.org/oliverandrich/mdn-accounts/internal/repository"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/persona"
)

// State of a sign-in attempt.
type State int

const (
	Anonymous State = iota
	Verifying
	SignedIn
	SignupPending
	Failed
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Verifying:
		return "verifying"
	case SignedIn:
		return "signed_in"
	case SignupPending:
		return "signup_pending"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrIllegalTransition is returned when the state machine is driven out of order.
var ErrIllegalTransition = errors.New("illegal sign-in state transition")

var transitions = map[State][]State{
	Anonymous: {Verifying},
	Verifying: {SignedIn, SignupPending, Failed},
}

type machine struct {
	state State
}

func (m *machine) to(next State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.state, next)
}

// Outcome is the terminal state of a sign-in attempt.
type Outcome struct {
	State  State
	User   *models.User // set for SignedIn
	Email  string       // verified email for SignedIn and SignupPending
	Reason string       // failure reason, for logs only
	Linked bool         // a persona account was linked by verified email
}

// Binder decides what a verification result means for the request.
type Binder struct {
	repo     *repository.Repository
	autoLink bool
}

// NewBinder creates a binder. With autoLink, a verified email that belongs
// to an existing user links a persona account to that user.
func NewBinder(repo *repository.Repository, autoLink bool) *Binder {
	return &Binder{repo: repo, autoLink: autoLink}
}

// Bind runs the state machine for a verification result. Storage problems
// are returned as errors, never as Failed.
func (b *Binder) Bind(ctx context.Context, result persona.Result) (*Outcome, error) {
	m := &machine{state: Anonymous}
	if err := m.to(Verifying); err != nil {
		return nil, err
	}

	if !result.OK() {
		return b.finish(m, &Outcome{State: Failed, Reason: result.Reason})
	}

	email := result.Email
	user, linked, err := b.lookup(ctx, email)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return b.finish(m, &Outcome{State: SignupPending, Email: email})
	}
	if !user.IsActive {
		return b.finish(m, &Outcome{State: Failed, Email: email, Reason: "inactive user"})
	}

	return b.finish(m, &Outcome{State: SignedIn, User: user, Email: email, Linked: linked})
}

func (b *Binder) finish(m *machine, out *Outcome) (*Outcome, error) {
	if err := m.to(out.State); err != nil {
		return nil, err
	}
	slog.Debug("persona_bind", "state", out.State.String(), "linked", out.Linked)
	return out, nil
}

// lookup finds the user for a verified email, linking by verified address when allowed.
func (b *Binder) lookup(ctx context.Context, email string) (*models.User, bool, error) {
	acc, err := b.repo.GetSocialAccount(ctx, persona.Provider, email)
	if err == nil {
		user, err := b.repo.GetUserByID(ctx, acc.UserID)
		if err != nil {
			return nil, false, fmt.Errorf("loading user %d: %w", acc.UserID, err)
		}
		if user.IsActive {
			if err := b.repo.TouchSocialAccount(ctx, acc.ID); err != nil {
				return nil, false, fmt.Errorf("recording sign-in: %w", err)
			}
		}
		return user, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("looking up persona account: %w", err)
	}

	if !b.autoLink {
		return nil, false, nil
	}

	user, err := b.repo.GetUserByVerifiedEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("looking up verified email: %w", err)
	}
	if !user.IsActive {
		return user, false, nil
	}

	if _, err := b.repo.CreateSocialAccount(ctx, user.ID, persona.Provider, email, ""); err != nil {
		return nil, false, fmt.Errorf("linking persona account: %w", err)
	}
	slog.Info("persona_auto_linked", "user_id", user.ID)
	return user, true, nil
}
