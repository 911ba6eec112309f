// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package appcontext provides the custom Echo context and the request
// scoped values shared by middleware, handlers and templates.
package appcontext

import (
	"context"

	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
	"github.com/labstack/echo/v4"
)

// Context keys for storing values in context.Context.
type (
	// CSRFToken is the context key for the CSRF token.
	CSRFToken struct{}
	// User is the context key for the signed-in user.
	User struct{}
	// Provider is the context key for the display name of the sign-in provider.
	Provider struct{}
	// Site is the context key for the SiteInfo.
	Site struct{}
	// Path is the context key for the request path.
	Path struct{}
)

// SiteInfo is shown in page chrome and sent to the Persona dialog.
type SiteInfo struct {
	Name string
	Logo string
}

// Context is a custom Echo context carrying the signed-in user.
type Context struct {
	echo.Context
	User     *models.User // nil if not signed in
	Provider string       // display name, empty for password sign-in
}

// CurrentUser returns the signed-in user of an Echo context, or nil.
func CurrentUser(c echo.Context) *models.User {
	if cc, ok := c.(*Context); ok {
		return cc.User
	}
	return UserFrom(c.Request().Context())
}

// WithUser stores the signed-in user and the provider they used.
func WithUser(ctx context.Context, user *models.User, provider string) context.Context {
	ctx = context.WithValue(ctx, User{}, user)
	return context.WithValue(ctx, Provider{}, provider)
}

// UserFrom returns the signed-in user from ctx, or nil.
func UserFrom(ctx context.Context) *models.User {
	if user, ok := ctx.Value(User{}).(*models.User); ok {
		return user
	}
	return nil
}

// ProviderFrom returns the display name of the sign-in provider.
func ProviderFrom(ctx context.Context) string {
	provider, _ := ctx.Value(Provider{}).(string)
	return provider
}

// CSRFTokenFrom returns the CSRF token from ctx.
func CSRFTokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(CSRFToken{}).(string)
	return token
}

// SiteFrom returns the site info from ctx.
func SiteFrom(ctx context.Context) SiteInfo {
	site, _ := ctx.Value(Site{}).(SiteInfo)
	return site
}

// PathFrom returns the request path from ctx.
func PathFrom(ctx context.Context) string {
	path, _ := ctx.Value(Path{}).(string)
	return path
}
