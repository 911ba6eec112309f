// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"codeberg.org/oliverandrich/mdn-accounts/internal/appcontext"
	"codeberg.org/oliverandrich/mdn-accounts/internal/i18n"
	"codeberg.org/oliverandrich/mdn-accounts/internal/repository"
	"codeberg.org/oliverandrich/mdn-accounts/internal/templates"
	"github.com/labstack/echo/v4"
)

// Handlers contains the public page handlers.
type Handlers struct {
	repo *repository.Repository
}

// New creates a new Handlers instance.
func New(repo *repository.Repository) *Handlers {
	return &Handlers{repo: repo}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// RedirectToLocale sends / to the best matching locale.
func (h *Handlers) RedirectToLocale(c echo.Context) error {
	locale := i18n.MatchLocale(c.Request().Header.Get("Accept-Language"))
	return c.Redirect(http.StatusFound, "/"+locale+"/")
}

// Home renders the home page.
func (h *Handlers) Home(c echo.Context) error {
	return Render(c, http.StatusOK, templates.Home())
}

// Profile renders a user's public profile.
func (h *Handlers) Profile(c echo.Context) error {
	ctx := c.Request().Context()

	profile, err := h.repo.GetUserByUsername(ctx, c.Param("username"))
	if errors.Is(err, sql.ErrNoRows) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}

	banned := false
	if _, banErr := h.repo.GetActiveBan(ctx, profile.ID); banErr == nil {
		banned = true
	} else if !errors.Is(banErr, sql.ErrNoRows) {
		return banErr
	}

	viewer := appcontext.CurrentUser(c)
	return Render(c, http.StatusOK, templates.Profile(templates.ProfilePage{
		Profile: profile,
		Joined:  profile.DateJoined.Format("2006-01-02"),
		Banned:  banned,
		CanBan:  viewer != nil && viewer.CanModerate() && viewer.ID != profile.ID && !banned,
	}))
}
