// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"html"

	"codeberg.org/oliverandrich/mdn-accounts/internal/appcontext"
	"codeberg.org/oliverandrich/mdn-accounts/internal/i18n"
	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
	"github.com/flosch/pongo2/v6"
)

// CSRFToken returns the CSRF token from the context.
func CSRFToken(ctx context.Context) string {
	return appcontext.CSRFTokenFrom(ctx)
}

// T translates a message by ID. Translations are trusted markup.
func T(ctx context.Context, messageID string) *pongo2.Value {
	return pongo2.AsSafeValue(i18n.T(ctx, messageID))
}

// Tf translates a message with a single template value. The value is escaped.
func Tf(ctx context.Context, messageID, key string, value any) *pongo2.Value {
	return pongo2.AsSafeValue(i18n.TData(ctx, messageID, map[string]any{
		key: html.EscapeString(fmt.Sprint(value)),
	}))
}

// Locale returns the current locale.
func Locale(ctx context.Context) string {
	return i18n.GetLocale(ctx)
}

// GetUser returns the signed-in user from context, or nil if not signed in.
func GetUser(ctx context.Context) *models.User {
	return appcontext.UserFrom(ctx)
}

// SignedInTitle describes how the current user signed in.
func SignedInTitle(ctx context.Context) string {
	provider := appcontext.ProviderFrom(ctx)
	if provider == "" {
		return i18n.T(ctx, "auth_signed_in")
	}
	return i18n.TData(ctx, "auth_signed_in_with", map[string]any{"Provider": provider})
}

// PersonaRequest is the data-request attribute of the Persona stub form.
func PersonaRequest(ctx context.Context) string {
	site := appcontext.SiteFrom(ctx)
	name, _ := json.Marshal(site.Name)
	logo, _ := json.Marshal(site.Logo)
	return fmt.Sprintf(`{"siteName": %s, "siteLogo": %s}`, name, logo)
}
