// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/oliverandrich/mdn-accounts/internal/appcontext"
	"codeberg.org/oliverandrich/mdn-accounts/internal/config"
	"codeberg.org/oliverandrich/mdn-accounts/internal/i18n"
	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
	"codeberg.org/oliverandrich/mdn-accounts/internal/repository"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/connections"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/session"
	"codeberg.org/oliverandrich/mdn-accounts/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHashKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestSessions(t *testing.T) *session.Manager {
	t.Helper()
	sessMgr, err := session.NewManager(&config.SessionConfig{
		CookieName: "_session",
		MaxAge:     3600,
		HashKey:    testHashKey,
	}, false)
	require.NoError(t, err)
	return sessMgr
}

// newUserEcho serves GET / through loadUser and records what it resolved.
func newUserEcho(t *testing.T, repo *repository.Repository, sessMgr *session.Manager) (*echo.Echo, *models.User, *string) {
	t.Helper()
	e := echo.New()
	e.Use(loadUser(repo, sessMgr, connections.NewRegistry(connections.PersonaProvider{})))

	var contextUser models.User
	var provider string
	e.GET("/", func(c echo.Context) error {
		cc, ok := c.(*appcontext.Context)
		require.True(t, ok)
		if cc.User != nil {
			contextUser = *cc.User
		}
		provider = appcontext.ProviderFrom(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	return e, &contextUser, &provider
}

func TestLocaleMiddleware(t *testing.T) {
	require.NoError(t, i18n.Init())

	e := echo.New()
	var locale string
	g := e.Group("/:locale", localeMiddleware())
	g.GET("/", func(c echo.Context) error {
		locale = i18n.GetLocale(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	t.Run("supported locale", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/de/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "de", locale)
	})

	t.Run("unsupported locale", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/xx/", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestLoadUser_NoSession(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	e, user, _ := newUserEcho(t, repo, newTestSessions(t))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, user.ID)
}

func TestLoadUser_WithSession(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	u := testutil.NewPersonaUser(t, repo, "testuser", "test@example.com")
	sessMgr := newTestSessions(t)
	e, user, provider := newUserEcho(t, repo, sessMgr)

	cookie, err := sessMgr.Create(u.ID, u.Username, "persona")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, u.ID, user.ID)
	assert.Equal(t, "Persona", *provider)
}

func TestLoadUser_InvalidSession(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	e, user, _ := newUserEcho(t, repo, newTestSessions(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "_session", Value: "invalid-cookie-data"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, user.ID)
}

func TestLoadUser_UserNotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	sessMgr := newTestSessions(t)
	e, user, _ := newUserEcho(t, repo, sessMgr)

	cookie, err := sessMgr.Create(99999, "nonexistent", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, user.ID)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "_session=;")
}

func TestLoadUser_InactiveUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	u := testutil.NewTestUser(t, repo, "banned", "banned@example.com")
	require.NoError(t, repo.SetUserActive(context.Background(), u.ID, false))

	sessMgr := newTestSessions(t)
	e, user, _ := newUserEcho(t, repo, sessMgr)

	cookie, err := sessMgr.Create(u.ID, u.Username, "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Zero(t, user.ID)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestRequireAuth_NotAuthenticated(t *testing.T) {
	require.NoError(t, i18n.Init())

	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&appcontext.Context{Context: c})
		}
	})
	g := e.Group("/:locale", localeMiddleware())
	g.GET("/protected", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, requireAuth())

	t.Run("plain request", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/de/protected?x=1", nil))

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/de/users/account/login?next=%2Fde%2Fprotected%3Fx%3D1", rec.Header().Get("Location"))
	})

	t.Run("htmx request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/en-US/protected", nil)
		req.Header.Set("HX-Request", "true")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "/en-US/users/account/login?next=%2Fen-US%2Fprotected", rec.Header().Get("HX-Redirect"))
	})
}

func TestRequireAuth_Authenticated(t *testing.T) {
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&appcontext.Context{
				Context: c,
				User:    &models.User{ID: 1, Username: "test"},
			})
		}
	})
	e.GET("/protected", func(c echo.Context) error {
		return c.String(http.StatusOK, "protected content")
	}, requireAuth())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "protected content", rec.Body.String())
}

func TestCsrfMiddleware(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			BaseURL: "http://localhost:8080",
		},
	}

	e := echo.New()
	e.Use(csrfMiddleware(cfg))
	e.POST("/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCsrfToContext_WithToken(t *testing.T) {
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("csrf", "test-token")
			return next(c)
		}
	})
	e.Use(csrfToContext())

	var csrfToken string
	e.GET("/", func(c echo.Context) error {
		csrfToken = appcontext.CSRFTokenFrom(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test-token", csrfToken)
}

func TestSiteToContext(t *testing.T) {
	e := echo.New()
	e.Use(siteToContext(appcontext.SiteInfo{Name: "MDN", Logo: "/logo.png"}))

	var site appcontext.SiteInfo
	var path string
	e.GET("/en-US/", func(c echo.Context) error {
		site = appcontext.SiteFrom(c.Request().Context())
		path = appcontext.PathFrom(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/en-US/", nil))

	assert.Equal(t, "MDN", site.Name)
	assert.Equal(t, "/logo.png", site.Logo)
	assert.Equal(t, "/en-US/", path)
}
