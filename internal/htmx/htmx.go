// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package htmx provides helpers for htmx requests.
package htmx

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	HeaderRequest  = "HX-Request"
	HeaderBoosted  = "HX-Boosted"
	HeaderRedirect = "HX-Redirect"
)

// IsRequest reports whether r was sent by htmx. Boosted links and forms
// count as regular navigation.
func IsRequest(r *http.Request) bool {
	return r.Header.Get(HeaderRequest) == "true" && r.Header.Get(HeaderBoosted) != "true"
}

// Redirect sends the client to url. htmx requests get an HX-Redirect header
// so the whole page navigates instead of swapping the response in.
func Redirect(c echo.Context, url string) error {
	if IsRequest(c.Request()) {
		c.Response().Header().Set(HeaderRedirect, url)
		return c.NoContent(http.StatusOK)
	}
	return c.Redirect(http.StatusFound, url)
}
