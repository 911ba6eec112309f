// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email_test

import (
	"context"
	"errors"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/mdn-accounts/internal/i18n"
	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
	"codeberg.org/oliverandrich/mdn-accounts/internal/repository"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/email"
	"codeberg.org/oliverandrich/mdn-accounts/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := i18n.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type sentMail struct {
	to, subject, body string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (r *recordingSender) Send(_ context.Context, to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sentMail{to, subject, body})
	return nil
}

var tokenRe = regexp.MustCompile(`/confirm-email/([0-9a-f]{64})`)

func (r *recordingSender) lastToken(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.sent)
	m := tokenRe.FindStringSubmatch(r.sent[len(r.sent)-1].body)
	require.Len(t, m, 2, "confirmation link in %q", r.sent[len(r.sent)-1].body)
	return m[1]
}

func newService(t *testing.T) (*email.Service, *repository.Repository, *recordingSender, *models.User) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	sender := &recordingSender{}
	user := testutil.NewTestUser(t, repo, "testuser", "testuser@example.com")
	return email.NewService(repo, sender, "https://developer.mozilla.org/"), repo, sender, user
}

func TestAdd_SendsConfirmation(t *testing.T) {
	svc, _, sender, user := newService(t)
	ctx := i18n.WithLocale(context.Background(), "de")

	addr, err := svc.Add(ctx, user, " second@example.com ")

	require.NoError(t, err)
	assert.Equal(t, "second@example.com", addr.Email)
	assert.False(t, addr.Verified)
	assert.False(t, addr.Primary)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "second@example.com", sender.sent[0].to)
	assert.Contains(t, sender.sent[0].body, "https://developer.mozilla.org/de/users/account/confirm-email/")
}

func TestAdd_SendFailureKeepsNothing(t *testing.T) {
	svc, repo, sender, user := newService(t)
	ctx := context.Background()
	sender.err = errors.New("smtp down")

	_, err := svc.Add(ctx, user, "second@example.com")

	require.ErrorIs(t, err, email.ErrSendFailed)
	assert.ErrorContains(t, err, "smtp down")
	addrs, err := repo.ListEmailAddresses(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, addrs, 1)

	sender.err = nil
	addr, err := svc.Add(ctx, user, "second@example.com")

	require.NoError(t, err)
	assert.Equal(t, "second@example.com", addr.Email)
	require.Len(t, sender.sent, 1)
	_, err = svc.Confirm(ctx, sender.lastToken(t))
	require.NoError(t, err)
}

func TestSendConfirmation_SendFailure(t *testing.T) {
	svc, repo, sender, user := newService(t)
	ctx := context.Background()
	addr, err := svc.Add(ctx, user, "second@example.com")
	require.NoError(t, err)
	sender.err = errors.New("smtp down")

	err = svc.SendConfirmation(ctx, user, addr.ID)

	require.ErrorIs(t, err, email.ErrSendFailed)
	_, err = repo.GetEmailAddress(ctx, addr.ID)
	assert.NoError(t, err, "resending never removes the address")
}

func TestAdd_Rejected(t *testing.T) {
	svc, _, _, user := newService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, user, "not-an-email")
	assert.ErrorIs(t, err, email.ErrInvalidEmail)

	_, err = svc.Add(ctx, user, "TESTUSER@example.com")
	assert.ErrorIs(t, err, email.ErrEmailInUse)
}

func TestConfirm(t *testing.T) {
	svc, repo, sender, user := newService(t)
	ctx := context.Background()
	addr, err := svc.Add(ctx, user, "second@example.com")
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, sender.lastToken(t))

	require.NoError(t, err)
	assert.Equal(t, addr.ID, confirmed.ID)
	assert.True(t, confirmed.Verified)

	_, err = svc.Confirm(ctx, sender.lastToken(t))
	assert.ErrorIs(t, err, email.ErrTokenInvalid, "tokens are single use")

	_, err = repo.GetEmailConfirmation(ctx, email.HashToken(sender.lastToken(t)))
	assert.Error(t, err)
}

func TestConfirm_Expired(t *testing.T) {
	svc, repo, _, user := newService(t)
	ctx := context.Background()
	addr, err := repo.CreateEmailAddress(ctx, user.ID, "old@example.com", false, false)
	require.NoError(t, err)
	require.NoError(t, repo.CreateEmailConfirmation(ctx, addr.ID, email.HashToken("stale"), time.Now().Add(-time.Minute)))

	_, err = svc.Confirm(ctx, "stale")

	assert.ErrorIs(t, err, email.ErrTokenExpired)
}

func TestSendConfirmation_ReplacesToken(t *testing.T) {
	svc, _, sender, user := newService(t)
	ctx := context.Background()
	addr, err := svc.Add(ctx, user, "second@example.com")
	require.NoError(t, err)
	first := sender.lastToken(t)

	require.NoError(t, svc.SendConfirmation(ctx, user, addr.ID))

	assert.NotEqual(t, first, sender.lastToken(t))
	_, err = svc.Confirm(ctx, first)
	assert.ErrorIs(t, err, email.ErrTokenInvalid)
}

func TestSendConfirmation_AlreadyVerified(t *testing.T) {
	svc, _, _, user := newService(t)
	ctx := context.Background()
	addrs, err := svc.List(ctx, user.ID)
	require.NoError(t, err)

	err = svc.SendConfirmation(ctx, user, addrs[0].ID)

	assert.ErrorIs(t, err, email.ErrAlreadyVerified)
}

func TestMakePrimary(t *testing.T) {
	svc, repo, sender, user := newService(t)
	ctx := context.Background()
	addr, err := svc.Add(ctx, user, "second@example.com")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.MakePrimary(ctx, user, addr.ID), email.ErrUnverified)

	_, err = svc.Confirm(ctx, sender.lastToken(t))
	require.NoError(t, err)
	require.NoError(t, svc.MakePrimary(ctx, user, addr.ID))

	reloaded, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "second@example.com", reloaded.Email)

	addrs, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, addr.ID, addrs[0].ID)
	assert.True(t, addrs[0].Primary)
	assert.False(t, addrs[1].Primary)
}

func TestRemove(t *testing.T) {
	svc, _, _, user := newService(t)
	ctx := context.Background()
	addr, err := svc.Add(ctx, user, "second@example.com")
	require.NoError(t, err)
	addrs, err := svc.List(ctx, user.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Remove(ctx, user, addrs[0].ID), email.ErrPrimaryEmail)
	require.NoError(t, svc.Remove(ctx, user, addr.ID))

	addrs, err = svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, addrs, 1)
}

func TestOwnership(t *testing.T) {
	svc, repo, _, user := newService(t)
	ctx := context.Background()
	other := testutil.NewTestUser(t, repo, "other", "other@example.com")
	addrs, err := svc.List(ctx, other.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Remove(ctx, user, addrs[0].ID), email.ErrNotFound)
	assert.ErrorIs(t, svc.MakePrimary(ctx, user, addrs[0].ID), email.ErrNotFound)
	assert.ErrorIs(t, svc.SendConfirmation(ctx, user, 9999), email.ErrNotFound)
}
