// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package connections_test

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/mdn-accounts/internal/config"
	"codeberg.org/oliverandrich/mdn-accounts/internal/repository"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/connections"
	"codeberg.org/oliverandrich/mdn-accounts/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOAuth struct{ id string }

func (f fakeOAuth) ID() string                  { return f.id }
func (f fakeOAuth) Name() string                { return "Fake" }
func (f fakeOAuth) AuthCodeURL(s string) string { return "https://fake.example/authorize?state=" + s }
func (f fakeOAuth) Exchange(_ context.Context, code string) (*connections.Identity, error) {
	return &connections.Identity{Provider: f.id, UID: "uid-" + code, Extra: map[string]any{"login": code}}, nil
}

func newService(t *testing.T, policy string) (*connections.Service, *repository.Repository) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	registry := connections.NewRegistry(connections.PersonaProvider{}, fakeOAuth{id: "fake"})
	return connections.NewService(repo, registry, policy), repo
}

func TestRegistry(t *testing.T) {
	registry := connections.NewRegistry(connections.PersonaProvider{}, fakeOAuth{id: "fake"})

	all := registry.All()
	require.Len(t, all, 2)
	assert.Equal(t, "persona", all[0].ID())
	assert.Equal(t, "Persona", registry.Name("persona"))
	assert.Equal(t, "other", registry.Name("other"))

	_, err := registry.Get("other")
	assert.ErrorIs(t, err, connections.ErrUnknownProvider)
}

func TestList(t *testing.T) {
	svc, repo := newService(t, config.DisconnectPolicyGlobal)
	user := testutil.NewPersonaUser(t, repo, "testuser", "testuser@example.com")

	conns, err := svc.List(context.Background(), user.ID)

	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "Persona", conns[0].ProviderName)
	assert.Equal(t, "testuser@example.com", conns[0].UID)
}

func TestDisconnect_GlobalPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("last account without password is refused", func(t *testing.T) {
		svc, repo := newService(t, config.DisconnectPolicyGlobal)
		user := testutil.NewPersonaUser(t, repo, "testuser", "testuser@example.com")
		conns, err := svc.List(ctx, user.ID)
		require.NoError(t, err)

		err = svc.Disconnect(ctx, user, conns[0].ID)

		assert.ErrorIs(t, err, connections.ErrLastSignInMethod)
		assert.EqualError(t, err, "last sign-in method")
		after, err := svc.List(ctx, user.ID)
		require.NoError(t, err)
		assert.Len(t, after, 1)
	})

	t.Run("password counts as a method", func(t *testing.T) {
		svc, repo := newService(t, config.DisconnectPolicyGlobal)
		user := testutil.NewPersonaUser(t, repo, "testuser", "testuser@example.com")
		testutil.SetTestPassword(t, repo, user, "correct horse battery")
		conns, err := svc.List(ctx, user.ID)
		require.NoError(t, err)

		require.NoError(t, svc.Disconnect(ctx, user, conns[0].ID))

		after, err := svc.List(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, after)
	})
}

func TestDisconnect_ProvidersPolicy(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t, config.DisconnectPolicyProviders)
	user := testutil.NewPersonaUser(t, repo, "testuser", "testuser@example.com")
	testutil.SetTestPassword(t, repo, user, "correct horse battery")
	gh, err := repo.CreateSocialAccount(ctx, user.ID, "fake", "1", "")
	require.NoError(t, err)

	require.NoError(t, svc.Disconnect(ctx, user, gh.ID))

	conns, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.ErrorIs(t, svc.Disconnect(ctx, user, conns[0].ID), connections.ErrLastSignInMethod)
}

func TestDisconnect_NotOwned(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t, config.DisconnectPolicyGlobal)
	alice := testutil.NewPersonaUser(t, repo, "alice", "alice@example.com")
	bob := testutil.NewPersonaUser(t, repo, "bob", "bob@example.com")
	conns, err := svc.List(ctx, alice.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Disconnect(ctx, bob, conns[0].ID), connections.ErrAccountNotFound)
}

func TestNewService_UnknownPolicyIsGlobal(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t, "sometimes")
	user := testutil.NewPersonaUser(t, repo, "testuser", "testuser@example.com")
	testutil.SetTestPassword(t, repo, user, "correct horse battery")
	conns, err := svc.List(ctx, user.ID)
	require.NoError(t, err)

	assert.NoError(t, svc.Disconnect(ctx, user, conns[0].ID))
}

func TestInitiateConnect(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t, config.DisconnectPolicyGlobal)
	user := testutil.NewPersonaUser(t, repo, "testuser", "testuser@example.com")

	url, err := svc.InitiateConnect(ctx, user, "fake", "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://fake.example/authorize?state=abc", url)

	_, err = svc.InitiateConnect(ctx, user, "persona", "abc")
	assert.ErrorIs(t, err, connections.ErrNotConnectable)

	_, err = svc.InitiateConnect(ctx, user, "myspace", "abc")
	assert.ErrorIs(t, err, connections.ErrUnknownProvider)
}

func TestCompleteConnect(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t, config.DisconnectPolicyGlobal)
	user := testutil.NewPersonaUser(t, repo, "testuser", "testuser@example.com")

	acc, err := svc.CompleteConnect(ctx, user, "fake", "code1")

	require.NoError(t, err)
	assert.Equal(t, "fake", acc.Provider)
	assert.Equal(t, "uid-code1", acc.UID)
	assert.JSONEq(t, `{"login":"code1"}`, acc.ExtraData)
}

func TestConnect(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t, config.DisconnectPolicyGlobal)
	alice := testutil.NewPersonaUser(t, repo, "alice", "alice@example.com")
	bob := testutil.NewPersonaUser(t, repo, "bob", "bob@example.com")
	identity := &connections.Identity{Provider: "fake", UID: "42"}

	first, err := svc.Connect(ctx, alice, identity)
	require.NoError(t, err)

	again, err := svc.Connect(ctx, alice, identity)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	_, err = svc.Connect(ctx, bob, identity)
	assert.ErrorIs(t, err, connections.ErrAlreadyConnected)

	_, err = svc.Connect(ctx, bob, &connections.Identity{Provider: "myspace", UID: "1"})
	assert.ErrorIs(t, err, connections.ErrUnknownProvider)
}
