// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"codeberg.org/oliverandrich/mdn-accounts/internal/services/settings"
	"codeberg.org/oliverandrich/mdn-accounts/internal/testutil"
	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func banReasons(doc *goquery.Document) []string {
	return doc.Find("button.ban-common-reason").Map(func(_ int, s *goquery.Selection) string {
		return s.Text()
	})
}

func TestBanPage_CommonReasons(t *testing.T) {
	tests := []struct {
		name    string
		setting *string
		want    []string
	}{
		{
			name: "default",
			want: []string{"Spam", "Profile Spam", "Sandboxing", "Incorrect Translation", "Penetration Testing"},
		},
		{
			name:    "valid",
			setting: ptr(`["Spam", "Vandalism", "Self-promotion"]`),
			want:    []string{"Spam", "Vandalism", "Self-promotion"},
		},
		{
			name:    "malformed",
			setting: ptr(`["Spam", "Vandalism"`),
			want:    []string{"Spam"},
		},
		{
			name:    "empty",
			setting: ptr(""),
			want:    []string{"Spam"},
		},
		{
			name:    "empty list",
			setting: ptr("[]"),
			want:    []string{"Spam"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t)
			moderator := testutil.NewPersonaUser(t, a.repo, "moderator", "moderator@example.com")
			testutil.MakeStaff(t, a.repo, moderator)
			target := testutil.NewTestUser(t, a.repo, "spammer", "spammer@example.com")
			if tt.setting != nil {
				require.NoError(t, settings.NewStore(a.repo).Set(context.Background(), settings.CommonReasonsToBanUsers, *tt.setting))
			}
			c := a.signIn(moderator)

			res := c.Get(fmt.Sprintf("/en-US/users/ban/%d", target.ID))
			require.Equal(t, http.StatusOK, res.Status)

			doc := res.Doc(t)
			assert.Equal(t, "Ban User spammer", doc.Find("h1").Text())
			assert.Equal(t, tt.want, banReasons(doc))
		})
	}
}

func ptr(s string) *string { return &s }

func TestBanPage_Access(t *testing.T) {
	a := newTestApp(t)
	user := testutil.NewPersonaUser(t, a.repo, "regular", "regular@example.com")
	target := testutil.NewTestUser(t, a.repo, "spammer", "spammer@example.com")
	path := fmt.Sprintf("/en-US/users/ban/%d", target.ID)

	anonymous := a.client().Get(path)
	assert.Equal(t, "/en-US/users/account/login", anonymous.URL.Path)
	assert.Contains(t, anonymous.Body, "Please sign in")

	forbidden := a.signIn(user).Get(path)
	assert.Equal(t, http.StatusForbidden, forbidden.Status)
	assert.Contains(t, forbidden.Body, "You do not have permission to view this page.")
}

func TestBanPage_UnknownUser(t *testing.T) {
	a := newTestApp(t)
	moderator := testutil.NewPersonaUser(t, a.repo, "moderator", "moderator@example.com")
	testutil.MakeStaff(t, a.repo, moderator)
	c := a.signIn(moderator)

	assert.Equal(t, http.StatusNotFound, c.Get("/en-US/users/ban/99999").Status)
	assert.Equal(t, http.StatusNotFound, c.Get("/en-US/users/ban/abc").Status)
}

func TestBan(t *testing.T) {
	a := newTestApp(t)
	moderator := testutil.NewPersonaUser(t, a.repo, "moderator", "moderator@example.com")
	testutil.MakeStaff(t, a.repo, moderator)
	target := testutil.NewPersonaUser(t, a.repo, "spammer", "spammer@example.com")
	c := a.signIn(moderator)
	path := fmt.Sprintf("/en-US/users/ban/%d", target.ID)

	profile := c.Get("/en-US/profiles/spammer")
	assert.Equal(t, path, profile.Doc(t).Find("a.ban-link").AttrOr("href", ""))

	empty := c.PostForm(path, url.Values{"reason": {"   "}})
	require.Equal(t, http.StatusOK, empty.Status)
	assert.Contains(t, empty.Body, "Please give a reason for the ban.")

	res := c.PostForm(path, url.Values{"reason": {"Spam"}})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "/en-US/profiles/spammer", res.URL.Path)

	doc := res.Doc(t)
	assert.Equal(t, 1, doc.Find(".user-banned").Length())
	assert.Equal(t, 0, doc.Find("a.ban-link").Length())

	ban, err := a.repo.GetActiveBan(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, "Spam", ban.Reason)
	assert.Equal(t, moderator.ID, ban.ByID)

	// The banned user can no longer sign in.
	a.verifiedEmail("spammer@example.com")
	login := a.personaLogin(a.client(), "/en-US/")
	assert.Contains(t, login.Body, "Account Sign In Failure")
}

func TestBan_Self(t *testing.T) {
	a := newTestApp(t)
	moderator := testutil.NewPersonaUser(t, a.repo, "moderator", "moderator@example.com")
	testutil.MakeStaff(t, a.repo, moderator)
	c := a.signIn(moderator)

	res := c.PostForm(fmt.Sprintf("/en-US/users/ban/%d", moderator.ID), url.Values{"reason": {"Spam"}})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, res.Body, "You cannot ban yourself.")

	_, err := a.repo.GetActiveBan(context.Background(), moderator.ID)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}
