// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var (
	configFile = "config.toml"
	tomlSrc    = altsrc.NewStringPtrSourcer(&configFile)
)

// Disconnect policies decide which sign-in methods count when a linked account is removed.
const (
	DisconnectPolicyGlobal    = "global"
	DisconnectPolicyProviders = "providers"
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server      ServerConfig
	Log         LogConfig
	Database    DatabaseConfig
	TLS         TLSConfig
	Session     SessionConfig
	Persona     PersonaConfig
	Connections ConnectionsConfig
	SMTP        SMTPConfig
}

type TLSConfig struct {
	Mode     string // auto, acme, manual, off
	CertDir  string // ACME certificate cache
	Email    string // ACME email for Let's Encrypt
	CertFile string // Path to certificate file (manual mode)
	KeyFile  string // Path to private key file (manual mode)
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
	SiteName    string
	SiteLogo    string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

type PersonaConfig struct { //nolint:govet // fieldalignment not critical
	VerifierURL string
	Audience    string // defaults to Server.BaseURL
	Timeout     time.Duration
	// AutoLink links a Persona identity to an existing user owning the verified email.
	AutoLink bool
}

type ConnectionsConfig struct {
	DisconnectPolicy   string // global, providers
	GitHubClientID     string
	GitHubClientSecret string
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// Enabled reports whether outgoing mail is configured.
func (c *SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
			SiteName:    cmd.String("site-name"),
			SiteLogo:    cmd.String("site-logo"),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		TLS: TLSConfig{
			Mode:     cmd.String("tls-mode"),
			CertDir:  cmd.String("tls-cert-dir"),
			Email:    cmd.String("tls-email"),
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
		Persona: PersonaConfig{
			VerifierURL: cmd.String("persona-verifier-url"),
			Audience:    cmd.String("persona-audience"),
			Timeout:     cmd.Duration("persona-timeout"),
			AutoLink:    cmd.Bool("persona-auto-link"),
		},
		Connections: ConnectionsConfig{
			DisconnectPolicy:   cmd.String("disconnect-policy"),
			GitHubClientID:     cmd.String("github-client-id"),
			GitHubClientSecret: cmd.String("github-client-secret"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	applyPersonaDefaults(cfg)

	return cfg
}

// applyPersonaDefaults derives the verifier audience from the resolved BaseURL.
func applyPersonaDefaults(cfg *Config) {
	if cfg.Persona.Audience == "" {
		cfg.Persona.Audience = cfg.Server.BaseURL
	}
	if cfg.Persona.Timeout <= 0 {
		cfg.Persona.Timeout = 10 * time.Second
	}
	switch cfg.Connections.DisconnectPolicy {
	case DisconnectPolicyGlobal, DisconnectPolicyProviders:
	default:
		cfg.Connections.DisconnectPolicy = DisconnectPolicyGlobal
	}
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port
	mode := strings.ToLower(cfg.TLS.Mode)

	scheme := "http"
	if shouldUseTLS(mode, host) {
		scheme = "https"
	}

	// ACME mode always uses port 443
	if mode == "acme" {
		return fmt.Sprintf("https://%s", host)
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

func shouldUseTLS(mode, host string) bool {
	switch mode {
	case "off":
		return false
	case "acme", "manual":
		return true
	default: // "auto" or empty
		return !IsLocalhost(host)
	}
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	return strings.HasSuffix(host, ".localhost")
}

// sources chains an environment variable with a key from the TOML config file.
func sources(envKey, tomlKey string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(envKey), toml.TOML(tomlKey, tomlSrc))
}

// ConfigFileFlag selects the TOML file the other flags fall back to.
func ConfigFileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Value:       "config.toml",
		Usage:       "Path to configuration file",
		Destination: &configFile,
		Sources:     cli.EnvVars("CONFIG"),
	}
}

// DatabaseFlag is shared by the server and the management commands.
func DatabaseFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "database-dsn",
		Value:   "./data/app.db",
		Usage:   "Database DSN",
		Sources: sources("DATABASE_DSN", "database.dsn"),
	}
}

func Flags() []cli.Flag {
	return []cli.Flag{
		ConfigFileFlag(),
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: sources("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: sources("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: sources("BASE_URL", "server.base_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: sources("MAX_BODY_SIZE", "server.max_body_size"),
		},
		&cli.StringFlag{
			Name:    "site-name",
			Value:   "MDN Web Docs",
			Usage:   "Site name shown in the Persona dialog",
			Sources: sources("SITE_NAME", "server.site_name"),
		},
		&cli.StringFlag{
			Name:    "site-logo",
			Value:   "/static/img/opengraph-logo.png",
			Usage:   "Site logo shown in the Persona dialog",
			Sources: sources("SITE_LOGO", "server.site_logo"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: sources("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: sources("LOG_FORMAT", "log.format"),
		},
		DatabaseFlag(),
		&cli.StringFlag{
			Name:    "tls-mode",
			Value:   "auto",
			Usage:   "TLS mode (auto, acme, manual, off)",
			Sources: sources("TLS_MODE", "tls.mode"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-dir",
			Value:   "./data/certs",
			Usage:   "Directory for ACME certificates",
			Sources: sources("TLS_CERT_DIR", "tls.cert_dir"),
		},
		&cli.StringFlag{
			Name:    "tls-email",
			Usage:   "Email for ACME/Let's Encrypt registration",
			Sources: sources("TLS_EMAIL", "tls.email"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file (manual mode)",
			Sources: sources("TLS_CERT_FILE", "tls.cert_file"),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file (manual mode)",
			Sources: sources("TLS_KEY_FILE", "tls.key_file"),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "_session",
			Usage:   "Session cookie name",
			Sources: sources("SESSION_COOKIE_NAME", "session.cookie_name"),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   1209600, // 14 days in seconds
			Usage:   "Session max age in seconds",
			Sources: sources("SESSION_MAX_AGE", "session.max_age"),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Session hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: sources("SESSION_HASH_KEY", "session.hash_key"),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Session block key for encryption (32-byte hex, optional)",
			Sources: sources("SESSION_BLOCK_KEY", "session.block_key"),
		},
		// Persona flags
		&cli.StringFlag{
			Name:    "persona-verifier-url",
			Value:   "https://verifier.login.persona.org/verify",
			Usage:   "Remote Persona verifier endpoint",
			Sources: sources("PERSONA_VERIFIER_URL", "persona.verifier_url"),
		},
		&cli.StringFlag{
			Name:    "persona-audience",
			Usage:   "Audience sent to the verifier (defaults to base_url)",
			Sources: sources("PERSONA_AUDIENCE", "persona.audience"),
		},
		&cli.DurationFlag{
			Name:    "persona-timeout",
			Value:   10 * time.Second,
			Usage:   "Timeout for a single verifier request",
			Sources: sources("PERSONA_TIMEOUT", "persona.timeout"),
		},
		&cli.BoolFlag{
			Name:    "persona-auto-link",
			Value:   true,
			Usage:   "Link Persona identities to users owning the verified email",
			Sources: sources("PERSONA_AUTO_LINK", "persona.auto_link"),
		},
		// Connection flags
		&cli.StringFlag{
			Name:    "disconnect-policy",
			Value:   DisconnectPolicyGlobal,
			Usage:   "Sign-in methods counted on disconnect (global, providers)",
			Sources: sources("DISCONNECT_POLICY", "connections.disconnect_policy"),
		},
		&cli.StringFlag{
			Name:    "github-client-id",
			Usage:   "GitHub OAuth client ID (enables GitHub connections)",
			Sources: sources("GITHUB_CLIENT_ID", "connections.github_client_id"),
		},
		&cli.StringFlag{
			Name:    "github-client-secret",
			Usage:   "GitHub OAuth client secret",
			Sources: sources("GITHUB_CLIENT_SECRET", "connections.github_client_secret"),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP host (confirmation mails are logged if empty)",
			Sources: sources("SMTP_HOST", "smtp.host"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP port",
			Sources: sources("SMTP_PORT", "smtp.port"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: sources("SMTP_USERNAME", "smtp.username"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: sources("SMTP_PASSWORD", "smtp.password"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address for outgoing mail",
			Sources: sources("SMTP_FROM", "smtp.from"),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "MDN Web Docs",
			Usage:   "Sender display name",
			Sources: sources("SMTP_FROM_NAME", "smtp.from_name"),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: sources("SMTP_TLS", "smtp.tls"),
		},
	}
}
