// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package connections manages the external identities linked to an account.
package connections

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/mdn-accounts/internal/config"
	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
	"codeberg.org/oliverandrich/mdn-accounts/internal/repository"
	"github.com/samber/lo"
)

var (
	ErrLastSignInMethod = errors.New("last sign-in method")
	ErrUnknownProvider  = errors.New("unknown provider")
	ErrNotConnectable   = errors.New("provider is connected through its own sign-in flow")
	ErrAlreadyConnected = errors.New("this account is already connected to a different user")
	ErrAccountNotFound  = errors.New("connected account not found")
)

// Connection is a linked account with its provider's display name.
type Connection struct {
	models.SocialAccount
	ProviderName string
}

type Service struct {
	repo     *repository.Repository
	registry *Registry
	policy   string
}

// NewService creates the service. policy is config.DisconnectPolicyGlobal
// or config.DisconnectPolicyProviders.
func NewService(repo *repository.Repository, registry *Registry, policy string) *Service {
	if policy != config.DisconnectPolicyProviders {
		policy = config.DisconnectPolicyGlobal
	}
	return &Service{repo: repo, registry: registry, policy: policy}
}

// Registry returns the provider registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// List returns the accounts linked to a user.
func (s *Service) List(ctx context.Context, userID int64) ([]Connection, error) {
	accounts, err := s.repo.ListSocialAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	return lo.Map(accounts, func(a models.SocialAccount, _ int) Connection {
		return Connection{SocialAccount: a, ProviderName: s.registry.Name(a.Provider)}
	}), nil
}

// Disconnect unlinks an account unless it is the user's last sign-in method.
func (s *Service) Disconnect(ctx context.Context, user *models.User, accountID int64) error {
	accounts, err := s.repo.ListSocialAccounts(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("listing connections: %w", err)
	}

	target, ok := lo.Find(accounts, func(a models.SocialAccount) bool { return a.ID == accountID })
	if !ok {
		return ErrAccountNotFound
	}

	remaining := len(accounts) - 1
	if s.policy == config.DisconnectPolicyGlobal && user.HasUsablePassword() {
		remaining++
	}
	if remaining < 1 {
		slog.Info("disconnect_refused", "user_id", user.ID, "provider", target.Provider, "policy", s.policy)
		return ErrLastSignInMethod
	}

	if err := s.repo.DeleteSocialAccount(ctx, user.ID, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("disconnecting account: %w", err)
	}

	slog.Info("account_disconnected", "user_id", user.ID, "provider", target.Provider)
	return nil
}

// InitiateConnect returns the authorization URL for an OAuth provider.
func (s *Service) InitiateConnect(_ context.Context, user *models.User, providerID, state string) (string, error) {
	p, err := s.oauthProvider(providerID)
	if err != nil {
		return "", err
	}
	slog.Debug("connect_initiated", "user_id", user.ID, "provider", providerID)
	return p.AuthCodeURL(state), nil
}

// CompleteConnect exchanges an authorization code and links the identity.
func (s *Service) CompleteConnect(ctx context.Context, user *models.User, providerID, code string) (*models.SocialAccount, error) {
	p, err := s.oauthProvider(providerID)
	if err != nil {
		return nil, err
	}
	identity, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.Connect(ctx, user, identity)
}

// Connect links an identity to a user. Linking an identity the user already
// owns is a no-op.
func (s *Service) Connect(ctx context.Context, user *models.User, identity *Identity) (*models.SocialAccount, error) {
	if _, err := s.registry.Get(identity.Provider); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetSocialAccount(ctx, identity.Provider, identity.UID)
	switch {
	case err == nil && existing.UserID == user.ID:
		return existing, nil
	case err == nil:
		slog.Warn("connect_refused", "user_id", user.ID, "provider", identity.Provider, "owner_id", existing.UserID)
		return nil, ErrAlreadyConnected
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("looking up identity: %w", err)
	}

	extra := "{}"
	if len(identity.Extra) > 0 {
		raw, err := json.Marshal(identity.Extra)
		if err != nil {
			return nil, fmt.Errorf("encoding extra data: %w", err)
		}
		extra = string(raw)
	}

	account, err := s.repo.CreateSocialAccount(ctx, user.ID, identity.Provider, identity.UID, extra)
	if err != nil {
		return nil, fmt.Errorf("linking identity: %w", err)
	}

	slog.Info("account_connected", "user_id", user.ID, "provider", identity.Provider)
	return account, nil
}

func (s *Service) oauthProvider(id string) (OAuthProvider, error) {
	p, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	op, ok := p.(OAuthProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConnectable, id)
	}
	return op, nil
}
