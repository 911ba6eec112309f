// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/mdn-accounts/internal/appcontext"
	"codeberg.org/oliverandrich/mdn-accounts/internal/i18n"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/connections"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/email"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/session"
	"codeberg.org/oliverandrich/mdn-accounts/internal/templates"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

// emailErrors are the email service errors shown to the user.
var emailErrors = []error{
	email.ErrInvalidEmail,
	email.ErrEmailInUse,
	email.ErrNotFound,
	email.ErrPrimaryEmail,
	email.ErrUnverified,
	email.ErrAlreadyVerified,
	email.ErrSendFailed,
}

var emailDone = map[string]string{
	"add":     "email_done_add",
	"primary": "email_done_primary",
	"send":    "email_done_send",
	"remove":  "email_done_remove",
}

var connectionsDone = map[string]string{
	"connect":    "connections_done_connect",
	"disconnect": "connections_done_disconnect",
}

var connectionsErrors = map[string]string{
	"already_connected": "connections_already_connected",
	"connect_failed":    "connections_connect_failed",
}

// AccountHandlers contains the handlers of the signed-in account pages.
type AccountHandlers struct {
	emails      *email.Service
	connections *connections.Service
	sessions    *session.Manager
}

// NewAccount creates a new AccountHandlers instance.
func NewAccount(emails *email.Service, conns *connections.Service, sess *session.Manager) *AccountHandlers {
	return &AccountHandlers{
		emails:      emails,
		connections: conns,
		sessions:    sess,
	}
}

// EmailPage lists the user's email addresses.
func (h *AccountHandlers) EmailPage(c echo.Context) error {
	ctx := c.Request().Context()
	page := templates.EmailPage{}
	if id, ok := emailDone[c.QueryParam("done")]; ok {
		page.Message = i18n.T(ctx, id)
	}
	return h.renderEmail(c, page)
}

// Email runs one of the email actions: add, primary, send or remove.
func (h *AccountHandlers) Email(c echo.Context) error {
	ctx := c.Request().Context()
	user := appcontext.CurrentUser(c)
	action := c.FormValue("action")

	var err error
	switch action {
	case "add":
		_, err = h.emails.Add(ctx, user, c.FormValue("email"))
	case "primary", "send", "remove":
		id, ok := formID(c, "email_id")
		if !ok {
			err = email.ErrNotFound
			break
		}
		switch action {
		case "primary":
			err = h.emails.MakePrimary(ctx, user, id)
		case "send":
			err = h.emails.SendConfirmation(ctx, user, id)
		default:
			err = h.emails.Remove(ctx, user, id)
		}
	default:
		return echo.ErrBadRequest
	}

	if err != nil {
		shown, ok := lo.Find(emailErrors, func(target error) bool { return errors.Is(err, target) })
		if !ok {
			return err
		}
		return h.renderEmail(c, templates.EmailPage{
			Input: c.FormValue("email"),
			Error: translateErr(c, shown),
		})
	}

	return c.Redirect(http.StatusFound, localePath(c, "/users/account/email?done="+action))
}

func (h *AccountHandlers) renderEmail(c echo.Context, page templates.EmailPage) error {
	user := appcontext.CurrentUser(c)
	addrs, err := h.emails.List(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	page.Addresses = addrs
	return Render(c, http.StatusOK, templates.Email(page))
}

// ConfirmEmail verifies an address from the link sent by mail.
func (h *AccountHandlers) ConfirmEmail(c echo.Context) error {
	ctx := c.Request().Context()

	addr, err := h.emails.Confirm(ctx, c.Param("token"))
	if errors.Is(err, email.ErrTokenInvalid) || errors.Is(err, email.ErrTokenExpired) {
		return Render(c, http.StatusNotFound, templates.Message(
			i18n.T(ctx, "email_confirm_failed_title"),
			translateErr(c, err),
		))
	}
	if err != nil {
		return err
	}

	return Render(c, http.StatusOK, templates.Message(
		i18n.T(ctx, "email_confirmed_title"),
		i18n.TData(ctx, "email_confirmed_text", map[string]any{"Email": addr.Email}),
	))
}

// ConnectionsPage lists the linked accounts.
func (h *AccountHandlers) ConnectionsPage(c echo.Context) error {
	ctx := c.Request().Context()
	page := templates.ConnectionsPage{}
	if id, ok := connectionsDone[c.QueryParam("done")]; ok {
		page.Message = i18n.T(ctx, id)
	}
	if id, ok := connectionsErrors[c.QueryParam("error")]; ok {
		page.Error = i18n.T(ctx, id)
	}
	return h.renderConnections(c, page)
}

// Disconnect removes a linked account.
func (h *AccountHandlers) Disconnect(c echo.Context) error {
	ctx := c.Request().Context()
	user := appcontext.CurrentUser(c)

	id, ok := formID(c, "account")
	if !ok {
		return h.renderConnections(c, templates.ConnectionsPage{Error: i18n.T(ctx, "connections_not_found")})
	}

	err := h.connections.Disconnect(ctx, user, id)
	switch {
	case errors.Is(err, connections.ErrLastSignInMethod):
		return h.renderConnections(c, templates.ConnectionsPage{Error: i18n.T(ctx, "connections_last_method")})
	case errors.Is(err, connections.ErrAccountNotFound):
		return h.renderConnections(c, templates.ConnectionsPage{Error: i18n.T(ctx, "connections_not_found")})
	case err != nil:
		return err
	}

	return c.Redirect(http.StatusFound, localePath(c, "/users/account/connections?done=disconnect"))
}

func (h *AccountHandlers) renderConnections(c echo.Context, page templates.ConnectionsPage) error {
	ctx := c.Request().Context()
	user := appcontext.CurrentUser(c)

	conns, err := h.connections.List(ctx, user.ID)
	if err != nil {
		return err
	}
	page.Connections = conns
	page.Count = i18n.TPlural(ctx, "connections_count", len(conns))
	page.Providers = lo.Map(h.connections.Registry().All(), func(p connections.Provider, _ int) templates.ProviderLink {
		_, oauth := p.(connections.OAuthProvider)
		return templates.ProviderLink{ID: p.ID(), Name: p.Name(), OAuth: oauth}
	})
	return Render(c, http.StatusOK, templates.Connections(page))
}

// Connect starts an OAuth round trip to link a provider.
func (h *AccountHandlers) Connect(c echo.Context) error {
	user := appcontext.CurrentUser(c)
	providerID := c.Param("provider")
	state := uuid.NewString()

	authURL, err := h.connections.InitiateConnect(c.Request().Context(), user, providerID, state)
	if errors.Is(err, connections.ErrUnknownProvider) || errors.Is(err, connections.ErrNotConnectable) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}

	cookie, err := h.sessions.CreateState(state, providerID)
	if err != nil {
		return err
	}
	c.SetCookie(cookie)

	return c.Redirect(http.StatusFound, authURL)
}

// ConnectCallback completes an OAuth round trip.
func (h *AccountHandlers) ConnectCallback(c echo.Context) error {
	ctx := c.Request().Context()
	user := appcontext.CurrentUser(c)
	providerID := c.Param("provider")

	state := h.sessions.ParseState(c.Request())
	c.SetCookie(h.sessions.ClearState())
	if state == nil || state.Provider != providerID || state.Value != c.QueryParam("state") {
		slog.Warn("connect_state_mismatch", "user_id", user.ID, "provider", providerID)
		return echo.ErrBadRequest
	}

	code := c.QueryParam("code")
	if code == "" {
		slog.Info("connect_denied", "user_id", user.ID, "provider", providerID, "error", c.QueryParam("error"))
		return c.Redirect(http.StatusFound, localePath(c, "/users/account/connections?error=connect_failed"))
	}

	_, err := h.connections.CompleteConnect(ctx, user, providerID, code)
	switch {
	case errors.Is(err, connections.ErrAlreadyConnected):
		return c.Redirect(http.StatusFound, localePath(c, "/users/account/connections?error=already_connected"))
	case errors.Is(err, connections.ErrUnknownProvider), errors.Is(err, connections.ErrNotConnectable):
		return echo.ErrNotFound
	case err != nil:
		slog.Error("connect_failed", "user_id", user.ID, "provider", providerID, "error", err)
		return c.Redirect(http.StatusFound, localePath(c, "/users/account/connections?error=connect_failed"))
	}

	return c.Redirect(http.StatusFound, localePath(c, "/users/account/connections?done=connect"))
}
