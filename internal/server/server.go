// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/mdn-accounts/internal/config"
	"codeberg.org/oliverandrich/mdn-accounts/internal/database"
	"codeberg.org/oliverandrich/mdn-accounts/internal/handlers"
	"codeberg.org/oliverandrich/mdn-accounts/internal/i18n"
	"codeberg.org/oliverandrich/mdn-accounts/internal/repository"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/auth"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/connections"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/email"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/gate"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/moderation"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/persona"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/session"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/settings"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/signin"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// Options replaces external collaborators, mainly in tests. Nil fields are
// built from the configuration.
type Options struct {
	Verifier persona.Verifier
	Sender   email.Sender
	// GitHub overrides the GitHub endpoints.
	GitHub *connections.GitHubConfig
}

// app holds the services shared by middleware and routes.
type app struct {
	repo        *repository.Repository
	sessions    *session.Manager
	registry    *connections.Registry
	verifier    persona.Verifier
	flags       *gate.Flags
	settings    *settings.Store
	emails      *email.Service
	connections *connections.Service
	moderation  *moderation.Service
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	SetupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database, migrations run on open
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := database.Close(db); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	e, err := New(cfg, db, Options{})
	if err != nil {
		return err
	}

	return startWithGracefulShutdown(ctx, e, cfg)
}

// New builds the Echo instance with all services, middleware and routes.
func New(cfg *config.Config, db *sqlx.DB, opts Options) (*echo.Echo, error) {
	a, err := newApp(cfg, db, opts)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	setupMiddleware(e, cfg, a)
	setupRoutes(e, cfg, a)

	return e, nil
}

func newApp(cfg *config.Config, db *sqlx.DB, opts Options) (*app, error) {
	repo := repository.New(db)

	sessions, err := session.NewManager(&cfg.Session, strings.HasPrefix(cfg.Server.BaseURL, "https://"))
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	providers := []connections.Provider{connections.PersonaProvider{}}
	if cfg.Connections.GitHubClientID != "" {
		ghCfg := connections.GitHubConfig{}
		if opts.GitHub != nil {
			ghCfg = *opts.GitHub
		}
		ghCfg.ClientID = cfg.Connections.GitHubClientID
		ghCfg.ClientSecret = cfg.Connections.GitHubClientSecret
		ghCfg.RedirectURL = strings.TrimSuffix(cfg.Server.BaseURL, "/") +
			"/" + i18n.DefaultLocale + "/users/account/connect/github/callback"
		gh, err := connections.NewGitHubProvider(ghCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to configure github: %w", err)
		}
		providers = append(providers, gh)
	}
	registry := connections.NewRegistry(providers...)

	verifier := opts.Verifier
	if verifier == nil {
		verifier = persona.NewHTTPVerifier(cfg.Persona.VerifierURL, cfg.Persona.Timeout)
	}

	sender := opts.Sender
	if sender == nil {
		sender, err = email.NewSender(&cfg.SMTP)
		if err != nil {
			return nil, fmt.Errorf("failed to configure email: %w", err)
		}
	}

	store := settings.NewStore(repo)

	return &app{
		repo:        repo,
		sessions:    sessions,
		registry:    registry,
		verifier:    verifier,
		flags:       gate.NewFlags(repo),
		settings:    store,
		emails:      email.NewService(repo, sender, cfg.Server.BaseURL),
		connections: connections.NewService(repo, registry, cfg.Connections.DisconnectPolicy),
		moderation:  moderation.NewService(repo, store),
	}, nil
}

func setupRoutes(e *echo.Echo, cfg *config.Config, a *app) {
	h := handlers.New(a.repo)
	authH := handlers.NewAuth(
		a.verifier,
		cfg.Persona.Audience,
		signin.NewBinder(a.repo, cfg.Persona.AutoLink),
		signin.NewSignup(a.repo, a.flags),
		auth.NewService(a.repo),
		a.connections,
		a.sessions,
	)
	accountH := handlers.NewAccount(a.emails, a.connections, a.sessions)
	modH := handlers.NewModeration(a.repo, a.moderation)

	e.GET("/health", h.Health)
	e.GET("/", h.RedirectToLocale)

	l := e.Group("/:locale", localeMiddleware())
	l.GET("", h.Home)
	l.GET("/", h.Home)
	l.GET("/profiles/:username", h.Profile)
	l.GET("/users/account/confirm-email/:token", accountH.ConfirmEmail)

	// Persona
	l.GET("/users/persona/csrf_token", authH.CSRFToken)
	l.POST("/users/persona/login", authH.PersonaLogin)

	// Signup and password sign-in
	l.GET("/users/account/signup", authH.SignupPage)
	l.POST("/users/account/signup", authH.Signup)
	l.GET("/users/account/login", authH.LoginPage)
	l.POST("/users/account/login", authH.Login)
	l.GET("/users/signout", authH.SignoutPage)
	l.POST("/users/signout", authH.Signout)

	// Signed-in account pages
	signedIn := requireAuth()
	l.GET("/users/account/email", accountH.EmailPage, signedIn)
	l.POST("/users/account/email", accountH.Email, signedIn)
	l.GET("/users/account/connections", accountH.ConnectionsPage, signedIn)
	l.POST("/users/account/connections", accountH.Disconnect, signedIn)
	l.GET("/users/account/connect/:provider", accountH.Connect, signedIn)
	l.GET("/users/account/connect/:provider/callback", accountH.ConnectCallback, signedIn)
	l.GET("/users/ban/:id", modH.BanPage, signedIn)
	l.POST("/users/ban/:id", modH.Ban, signedIn)
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	tlsResult, err := SetupTLS(cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	errChan := make(chan error, 2)

	// HTTP server for ACME challenges and redirects
	var httpServer *http.Server

	switch tlsResult.Mode {
	case TLSModeOff:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("server running", "url", cfg.Server.BaseURL)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeACME:
		go func() {
			slog.Info("server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(ctx, e, ":443", tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		httpServer = &http.Server{
			Addr:              ":80",
			Handler:           tlsResult.HTTPHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("http redirect active", "addr", ":80")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeManual:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(ctx, e, addr, tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown main server", "error", err)
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown http redirect server", "error", err)
		}
	}

	slog.Info("server stopped")
	return nil
}

// startTLSServer starts the Echo server with a custom TLS configuration.
func startTLSServer(ctx context.Context, e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	return e.TLSServer.Serve(e.TLSListener)
}
