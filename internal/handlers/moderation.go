// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"codeberg.org/oliverandrich/mdn-accounts/internal/appcontext"
	"codeberg.org/oliverandrich/mdn-accounts/internal/i18n"
	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
	"codeberg.org/oliverandrich/mdn-accounts/internal/repository"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/moderation"
	"codeberg.org/oliverandrich/mdn-accounts/internal/templates"
	"github.com/labstack/echo/v4"
)

// ModerationHandlers serves the ban form.
type ModerationHandlers struct {
	repo       *repository.Repository
	moderation *moderation.Service
}

// NewModeration creates a new ModerationHandlers instance.
func NewModeration(repo *repository.Repository, svc *moderation.Service) *ModerationHandlers {
	return &ModerationHandlers{repo: repo, moderation: svc}
}

// BanPage renders the ban form with the common reasons.
func (h *ModerationHandlers) BanPage(c echo.Context) error {
	target, err := h.target(c)
	if err != nil {
		return err
	}
	return h.renderBan(c, templates.BanPage{Target: target})
}

// Ban bans the target user and shows their profile.
func (h *ModerationHandlers) Ban(c echo.Context) error {
	ctx := c.Request().Context()
	target, err := h.target(c)
	if err != nil {
		return err
	}

	reason := c.FormValue("reason")
	_, err = h.moderation.Ban(ctx, appcontext.CurrentUser(c), target, reason)
	switch {
	case errors.Is(err, moderation.ErrReasonRequired):
		return h.renderBan(c, templates.BanPage{Target: target, Reason: reason, Error: i18n.T(ctx, "ban_reason_required")})
	case errors.Is(err, moderation.ErrSelfBan):
		return h.renderBan(c, templates.BanPage{Target: target, Reason: reason, Error: i18n.T(ctx, "ban_self")})
	case errors.Is(err, moderation.ErrNotModerator):
		return echo.ErrForbidden
	case err != nil:
		return err
	}

	return c.Redirect(http.StatusFound, localePath(c, "/profiles/"+url.PathEscape(target.Username)))
}

// target checks the viewer may moderate and loads the user from the path.
func (h *ModerationHandlers) target(c echo.Context) (*models.User, error) {
	viewer := appcontext.CurrentUser(c)
	if viewer == nil || !viewer.CanModerate() {
		return nil, echo.ErrForbidden
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return nil, echo.ErrNotFound
	}
	user, err := h.repo.GetUserByID(c.Request().Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, echo.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (h *ModerationHandlers) renderBan(c echo.Context, page templates.BanPage) error {
	reasons, err := h.moderation.Reasons(c.Request().Context())
	if err != nil {
		return err
	}
	page.Reasons = reasons
	return Render(c, http.StatusOK, templates.Ban(page))
}
