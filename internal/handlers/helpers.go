// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/url"
	"strconv"
	"strings"

	"codeberg.org/oliverandrich/mdn-accounts/internal/i18n"
	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// Render renders a templ component with the given status code.
func Render(c echo.Context, statusCode int, component templ.Component) error {
	buf := templ.GetBuffer()
	defer templ.ReleaseBuffer(buf)

	if err := component.Render(c.Request().Context(), buf); err != nil {
		return err
	}

	return c.HTML(statusCode, buf.String())
}

// localePath prefixes path with the locale of the request.
func localePath(c echo.Context, path string) string {
	return "/" + i18n.GetLocale(c.Request().Context()) + path
}

// safeNext returns next if it is a local path, otherwise the locale home.
func safeNext(c echo.Context, next string) string {
	home := localePath(c, "/")
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return home
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return home
	}
	return next
}

// formID parses a positive integer form value.
func formID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.FormValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// translateErr returns the translation of a service error whose text is a
// message id.
func translateErr(c echo.Context, err error) string {
	return i18n.T(c.Request().Context(), err.Error())
}
