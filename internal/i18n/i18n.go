// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package i18n

import (
	"context"
	"embed"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed translations/*.toml
var translationFS embed.FS

// DefaultLocale is used when nothing better matches.
const DefaultLocale = "en-US"

// Locales are the URL locale prefixes the site is served in.
var Locales = []string{DefaultLocale, "de"}

var (
	bundle  *i18n.Bundle
	matcher = language.NewMatcher([]language.Tag{
		language.AmericanEnglish,
		language.German,
	})
)

type localeContextKey struct{}
type localizerContextKey struct{}

// Init initializes the i18n bundle with embedded translations.
func Init() error {
	b := i18n.NewBundle(language.AmericanEnglish)
	b.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, locale := range Locales {
		if _, err := b.LoadMessageFileFS(translationFS, "translations/active."+locale+".toml"); err != nil {
			return err
		}
	}

	bundle = b
	return nil
}

// IsSupported reports whether locale is one of Locales.
func IsSupported(locale string) bool {
	return slices.Contains(Locales, locale)
}

// WithLocale adds the locale and its localizer to the context.
func WithLocale(ctx context.Context, locale string) context.Context {
	ctx = context.WithValue(ctx, localeContextKey{}, locale)
	localizer := i18n.NewLocalizer(bundle, locale, DefaultLocale)
	return context.WithValue(ctx, localizerContextKey{}, localizer)
}

// GetLocale returns the current locale from context.
func GetLocale(ctx context.Context) string {
	if locale, ok := ctx.Value(localeContextKey{}).(string); ok {
		return locale
	}
	return DefaultLocale
}

// T translates a message by ID.
func T(ctx context.Context, messageID string) string {
	localizer := getLocalizer(ctx)
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID: messageID,
	})
	if err != nil {
		return messageID
	}
	return msg
}

// TData translates a message with template data.
func TData(ctx context.Context, messageID string, data map[string]any) string {
	localizer := getLocalizer(ctx)
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}

// TPlural translates a message with plural support.
func TPlural(ctx context.Context, messageID string, count int) string {
	localizer := getLocalizer(ctx)
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
	if err != nil {
		return messageID
	}
	return msg
}

// MatchLocale returns the entry of Locales that best matches an
// Accept-Language header.
func MatchLocale(acceptLanguage string) string {
	_, idx := language.MatchStrings(matcher, acceptLanguage)
	if idx < 0 || idx >= len(Locales) {
		return DefaultLocale
	}
	return Locales[idx]
}

func getLocalizer(ctx context.Context) *i18n.Localizer {
	if localizer, ok := ctx.Value(localizerContextKey{}).(*i18n.Localizer); ok {
		return localizer
	}
	return i18n.NewLocalizer(bundle, DefaultLocale)
}
