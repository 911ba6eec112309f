// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/mdn-accounts/internal/i18n"
	"codeberg.org/oliverandrich/mdn-accounts/internal/templates"
	"github.com/labstack/echo/v4"
)

var errorMessages = map[int]string{
	http.StatusBadRequest: "error_bad_request",
	http.StatusForbidden:  "error_forbidden",
	http.StatusNotFound:   "error_not_found",
}

// ErrorHandler renders errors as HTML pages in the request's locale.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
	}

	if code >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"error", err,
			"method", c.Request().Method,
			"uri", c.Request().RequestURI,
		)
	}

	req := c.Request()
	locale := c.Param("locale")
	if !i18n.IsSupported(locale) {
		locale = i18n.MatchLocale(req.Header.Get("Accept-Language"))
	}
	ctx := i18n.WithLocale(req.Context(), locale)
	c.SetRequest(req.WithContext(ctx))

	messageID, ok := errorMessages[code]
	if !ok {
		messageID = "error_internal"
	}
	title := http.StatusText(code)
	if title == "" {
		title = i18n.T(ctx, "error_title")
	}

	if req.Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = Render(c, code, templates.Error(code, title, i18n.T(ctx, messageID)))
	}
	if err != nil {
		slog.Error("rendering error page failed", "error", err)
	}
}
