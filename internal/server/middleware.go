// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"codeberg.org/oliverandrich/mdn-accounts/internal/appcontext"
	"codeberg.org/oliverandrich/mdn-accounts/internal/config"
	"codeberg.org/oliverandrich/mdn-accounts/internal/htmx"
	"codeberg.org/oliverandrich/mdn-accounts/internal/i18n"
	"codeberg.org/oliverandrich/mdn-accounts/internal/repository"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/connections"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func setupMiddleware(e *echo.Echo, cfg *config.Config, app *app) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger())
	e.Use(middleware.Secure())
	e.Use(middleware.Gzip())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.Server.MaxBodySize)))
	e.Use(csrfMiddleware(cfg))
	e.Use(csrfToContext())
	e.Use(siteToContext(appcontext.SiteInfo{Name: cfg.Server.SiteName, Logo: cfg.Server.SiteLogo}))
	e.Use(loadUser(app.repo, app.sessions, app.registry))
}

// csrfMiddleware configures CSRF protection.
func csrfMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	secure := strings.HasPrefix(cfg.Server.BaseURL, "https://")

	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "form:csrf_token,header:X-CSRF-Token",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieSecure:   secure,
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
	})
}

// csrfToContext copies the CSRF token to the request context.
func csrfToContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token, ok := c.Get("csrf").(string); ok {
				ctx := context.WithValue(c.Request().Context(), appcontext.CSRFToken{}, token)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

// siteToContext stores the site info and the request path for templates.
func siteToContext(site appcontext.SiteInfo) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := context.WithValue(c.Request().Context(), appcontext.Site{}, site)
			ctx = context.WithValue(ctx, appcontext.Path{}, c.Request().URL.Path)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// loadUser resolves the session cookie into the signed-in user. Sessions of
// deleted or deactivated users are cleared.
func loadUser(repo *repository.Repository, sessions *session.Manager, registry *connections.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &appcontext.Context{Context: c}

			if data := sessions.Parse(c.Request()); data != nil {
				user, err := repo.GetUserByID(c.Request().Context(), data.UserID)
				switch {
				case errors.Is(err, sql.ErrNoRows):
					c.SetCookie(sessions.Clear())
				case err != nil:
					return err
				case !user.IsActive:
					slog.Info("session_user_inactive", "user_id", user.ID)
					c.SetCookie(sessions.Clear())
				default:
					cc.User = user
					if data.Provider != "" {
						cc.Provider = registry.Name(data.Provider)
					}
					ctx := appcontext.WithUser(c.Request().Context(), user, cc.Provider)
					c.SetRequest(c.Request().WithContext(ctx))
				}
			}

			return next(cc)
		}
	}
}

// localeMiddleware takes the locale from the first path segment.
func localeMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			locale := c.Param("locale")
			if !i18n.IsSupported(locale) {
				return echo.ErrNotFound
			}
			ctx := i18n.WithLocale(c.Request().Context(), locale)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// requireAuth sends anonymous users to the login page.
func requireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if appcontext.CurrentUser(c) == nil {
				login := "/" + i18n.GetLocale(c.Request().Context()) + "/users/account/login?next=" +
					url.QueryEscape(c.Request().URL.RequestURI())
				return htmx.Redirect(c, login)
			}
			return next(c)
		}
	}
}

// requestLogger returns middleware that logs requests using slog.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				slog.LogAttrs(c.Request().Context(), slog.LevelError, "request", attrs...)
			} else {
				slog.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			}

			return nil
		},
	})
}
