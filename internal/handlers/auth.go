// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/mdn-accounts/internal/appcontext"
	"codeberg.org/oliverandrich/mdn-accounts/internal/i18n"
	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/auth"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/connections"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/persona"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/session"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/signin"
	"codeberg.org/oliverandrich/mdn-accounts/internal/templates"
	"github.com/a-h/templ"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"
)

// AuthHandlers contains handlers for signing in, signing up and signing out.
type AuthHandlers struct {
	verifier    persona.Verifier
	audience    string
	binder      *signin.Binder
	signup      *signin.Signup
	passwords   *auth.Service
	connections *connections.Service
	sessions    *session.Manager
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(
	verifier persona.Verifier,
	audience string,
	binder *signin.Binder,
	signup *signin.Signup,
	passwords *auth.Service,
	conns *connections.Service,
	sess *session.Manager,
) *AuthHandlers {
	return &AuthHandlers{
		verifier:    verifier,
		audience:    audience,
		binder:      binder,
		signup:      signup,
		passwords:   passwords,
		connections: conns,
		sessions:    sess,
	}
}

// CSRFToken returns a CSRF token for the Persona login form.
func (h *AuthHandlers) CSRFToken(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.String(http.StatusOK, appcontext.CSRFTokenFrom(c.Request().Context()))
}

// PersonaLogin verifies an assertion and signs the user in, starts a signup
// or connects the identity to the signed-in user.
func (h *AuthHandlers) PersonaLogin(c echo.Context) error {
	ctx := c.Request().Context()
	next := safeNext(c, c.FormValue("next"))
	result := h.verifier.Verify(ctx, c.FormValue("assertion"), h.audience)

	if user := appcontext.CurrentUser(c); user != nil && c.FormValue("process") == "connect" {
		return h.personaConnect(c, user, result)
	}

	out, err := h.binder.Bind(ctx, result)
	if err != nil {
		return err
	}

	switch out.State {
	case signin.SignedIn:
		cookie, err := h.sessions.Create(out.User.ID, out.User.Username, persona.Provider)
		if err != nil {
			return err
		}
		c.SetCookie(cookie)
		slog.Info("persona_login_success", "user_id", out.User.ID, "linked", out.Linked)
		return c.Redirect(http.StatusFound, next)

	case signin.SignupPending:
		cookie, err := h.sessions.CreatePending(session.Pending{
			Provider: persona.Provider,
			UID:      out.Email,
			Email:    out.Email,
			Next:     next,
		})
		if err != nil {
			return err
		}
		c.SetCookie(cookie)
		slog.Info("persona_signup_pending")
		return c.Redirect(http.StatusFound, localePath(c, "/users/account/signup"))

	default:
		slog.Info("persona_login_failed", "reason", out.Reason)
		return Render(c, http.StatusOK, templates.AuthError())
	}
}

func (h *AuthHandlers) personaConnect(c echo.Context, user *models.User, result persona.Result) error {
	if !result.OK() {
		slog.Info("persona_connect_failed", "user_id", user.ID, "reason", result.Reason)
		return Render(c, http.StatusOK, templates.AuthError())
	}

	_, err := h.connections.Connect(c.Request().Context(), user, &connections.Identity{
		Provider: persona.Provider,
		UID:      result.Email,
		Email:    result.Email,
	})
	if errors.Is(err, connections.ErrAlreadyConnected) {
		return c.Redirect(http.StatusFound, localePath(c, "/users/account/connections?error=already_connected"))
	}
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, localePath(c, "/users/account/connections?done=connect"))
}

// SignupPage renders the username form for a pending signup.
func (h *AuthHandlers) SignupPage(c echo.Context) error {
	pending := h.sessions.ParsePending(c.Request())
	if pending == nil {
		return c.Redirect(http.StatusFound, localePath(c, "/users/account/login"))
	}

	disabled, err := h.signup.Disabled(c.Request().Context())
	if err != nil {
		return err
	}
	if disabled {
		return Render(c, http.StatusOK, templates.SignupDisabled())
	}

	return Render(c, http.StatusOK, h.signupForm(pending, "", nil))
}

// Signup creates the account for a pending signup.
func (h *AuthHandlers) Signup(c echo.Context) error {
	ctx := c.Request().Context()
	pending := h.sessions.ParsePending(c.Request())
	if pending == nil {
		return c.Redirect(http.StatusFound, localePath(c, "/users/account/login"))
	}

	form := signin.SignupForm{
		Username: c.FormValue("username"),
		Terms:    c.FormValue("terms") != "",
	}
	user, err := h.signup.Complete(ctx, signin.Identity{
		Provider: pending.Provider,
		UID:      pending.UID,
		Email:    pending.Email,
	}, form)

	var fieldErrs validation.Errors
	switch {
	case errors.Is(err, signin.ErrRegistrationDisabled):
		return Render(c, http.StatusOK, templates.SignupDisabled())
	case errors.Is(err, signin.ErrEmailInUse):
		msgs := map[string]string{"form": i18n.T(ctx, "signup_email_in_use")}
		return Render(c, http.StatusOK, h.signupForm(pending, form.Username, msgs))
	case errors.As(err, &fieldErrs):
		msgs := make(map[string]string, len(fieldErrs))
		for field, fieldErr := range fieldErrs {
			msgs[field] = i18n.T(ctx, fieldErr.Error())
		}
		return Render(c, http.StatusOK, h.signupForm(pending, form.Username, msgs))
	case err != nil:
		return err
	}

	cookie, err := h.sessions.Create(user.ID, user.Username, pending.Provider)
	if err != nil {
		return err
	}
	c.SetCookie(cookie)
	c.SetCookie(h.sessions.ClearPending())

	return c.Redirect(http.StatusFound, safeNext(c, pending.Next))
}

func (h *AuthHandlers) signupForm(pending *session.Pending, username string, errs map[string]string) templ.Component {
	return templates.Signup(templates.SignupPage{
		Provider: h.connections.Registry().Name(pending.Provider),
		Email:    pending.Email,
		Username: username,
		Errors:   errs,
	})
}

// LoginPage renders the "Please sign in" page.
func (h *AuthHandlers) LoginPage(c echo.Context) error {
	if appcontext.CurrentUser(c) != nil {
		return c.Redirect(http.StatusFound, safeNext(c, c.QueryParam("next")))
	}
	return Render(c, http.StatusOK, templates.Login(templates.LoginPage{
		Next: safeNext(c, c.QueryParam("next")),
	}))
}

// Login signs a user in with username and password.
func (h *AuthHandlers) Login(c echo.Context) error {
	ctx := c.Request().Context()
	username := c.FormValue("username")
	next := safeNext(c, c.FormValue("next"))

	user, err := h.passwords.Login(ctx, username, c.FormValue("password"))
	if err != nil {
		var messageID string
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			messageID = "login_invalid"
		case errors.Is(err, auth.ErrInactiveUser):
			messageID = "login_inactive"
		default:
			return err
		}
		return Render(c, http.StatusOK, templates.Login(templates.LoginPage{
			Next:     next,
			Username: username,
			Error:    i18n.T(ctx, messageID),
		}))
	}

	cookie, err := h.sessions.Create(user.ID, user.Username, "")
	if err != nil {
		return err
	}
	c.SetCookie(cookie)

	return c.Redirect(http.StatusFound, next)
}

// SignoutPage asks for confirmation before signing out.
func (h *AuthHandlers) SignoutPage(c echo.Context) error {
	if appcontext.CurrentUser(c) == nil {
		return c.Redirect(http.StatusFound, safeNext(c, c.QueryParam("next")))
	}
	return Render(c, http.StatusOK, templates.Signout(safeNext(c, c.QueryParam("next"))))
}

// Signout clears the session.
func (h *AuthHandlers) Signout(c echo.Context) error {
	if user := appcontext.CurrentUser(c); user != nil {
		slog.Info("signout", "user_id", user.ID)
	}
	c.SetCookie(h.sessions.Clear())
	return c.Redirect(http.StatusFound, safeNext(c, c.FormValue("next")))
}
