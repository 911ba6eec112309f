// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v3"
)

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host     string
		expected bool
	}{
		{"", true},
		{"localhost", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"app.localhost", true},
		{"example.com", false},
		{"192.168.1.1", false},
		{"localhost.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsLocalhost(tt.host))
		})
	}
}

func TestShouldUseTLS(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		host     string
		expected bool
	}{
		{"off mode", "off", "example.com", false},
		{"acme mode", "acme", "localhost", true},
		{"manual mode", "manual", "localhost", true},
		{"auto mode with localhost", "auto", "localhost", false},
		{"auto mode with remote host", "auto", "example.com", true},
		{"empty mode with remote host", "", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, shouldUseTLS(tt.mode, tt.host))
		})
	}
}

func TestBuildBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *Config
		expected string
	}{
		{
			name: "localhost HTTP default port",
			cfg: &Config{
				Server: ServerConfig{Host: "localhost", Port: 80},
				TLS:    TLSConfig{Mode: "off"},
			},
			expected: "http://localhost",
		},
		{
			name: "localhost HTTP custom port",
			cfg: &Config{
				Server: ServerConfig{Host: "localhost", Port: 8000},
				TLS:    TLSConfig{Mode: "off"},
			},
			expected: "http://localhost:8000",
		},
		{
			name: "remote host with auto TLS",
			cfg: &Config{
				Server: ServerConfig{Host: "developer.mozilla.org", Port: 443},
				TLS:    TLSConfig{Mode: "auto"},
			},
			expected: "https://developer.mozilla.org",
		},
		{
			name: "ACME mode forces port 443",
			cfg: &Config{
				Server: ServerConfig{Host: "developer.mozilla.org", Port: 8080},
				TLS:    TLSConfig{Mode: "acme"},
			},
			expected: "https://developer.mozilla.org",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildBaseURL(tt.cfg))
		})
	}
}

func TestApplyPersonaDefaults(t *testing.T) {
	t.Run("derives audience and timeout", func(t *testing.T) {
		cfg := &Config{
			Server: ServerConfig{BaseURL: "http://localhost:8000"},
		}

		applyPersonaDefaults(cfg)

		assert.Equal(t, "http://localhost:8000", cfg.Persona.Audience)
		assert.Equal(t, 10*time.Second, cfg.Persona.Timeout)
		assert.Equal(t, DisconnectPolicyGlobal, cfg.Connections.DisconnectPolicy)
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		cfg := &Config{
			Server:      ServerConfig{BaseURL: "http://localhost:8000"},
			Persona:     PersonaConfig{Audience: "https://developer-local.allizom.org", Timeout: time.Second},
			Connections: ConnectionsConfig{DisconnectPolicy: DisconnectPolicyProviders},
		}

		applyPersonaDefaults(cfg)

		assert.Equal(t, "https://developer-local.allizom.org", cfg.Persona.Audience)
		assert.Equal(t, time.Second, cfg.Persona.Timeout)
		assert.Equal(t, DisconnectPolicyProviders, cfg.Connections.DisconnectPolicy)
	})

	t.Run("unknown policy falls back to global", func(t *testing.T) {
		cfg := &Config{Connections: ConnectionsConfig{DisconnectPolicy: "sometimes"}}

		applyPersonaDefaults(cfg)

		assert.Equal(t, DisconnectPolicyGlobal, cfg.Connections.DisconnectPolicy)
	})
}

func TestSMTPConfig_Enabled(t *testing.T) {
	assert.False(t, (&SMTPConfig{}).Enabled())
	assert.False(t, (&SMTPConfig{Host: "smtp.example.com"}).Enabled())
	assert.True(t, (&SMTPConfig{Host: "smtp.example.com", From: "mdn@example.com"}).Enabled())
}

func TestFlags(t *testing.T) {
	flags := Flags()

	flagNames := make(map[string]bool)
	for _, f := range flags {
		for _, name := range f.Names() {
			flagNames[name] = true
		}
	}

	for _, name := range []string{
		"config", "c", "host", "port", "base-url", "log-level", "database-dsn", "tls-mode",
		"session-cookie-name", "persona-verifier-url", "disconnect-policy", "smtp-host",
	} {
		assert.True(t, flagNames[name], "should have %s flag", name)
	}
}

func TestNewFromCLI(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.Equal(t, "localhost", cfg.Server.Host)
			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "info", cfg.Log.Level)
			assert.Equal(t, "_session", cfg.Session.CookieName)
			assert.Equal(t, 1209600, cfg.Session.MaxAge)
			assert.Equal(t, "https://verifier.login.persona.org/verify", cfg.Persona.VerifierURL)
			assert.Equal(t, cfg.Server.BaseURL, cfg.Persona.Audience)
			assert.True(t, cfg.Persona.AutoLink)
			assert.Equal(t, DisconnectPolicyGlobal, cfg.Connections.DisconnectPolicy)
			assert.False(t, cfg.SMTP.Enabled())

			return nil
		},
	}

	err := app.Run(context.Background(), []string{"test"})
	assert.NoError(t, err)
}

func TestNewFromCLI_WithCustomValues(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.Equal(t, "0.0.0.0", cfg.Server.Host)
			assert.Equal(t, 9000, cfg.Server.Port)
			assert.Equal(t, "https://example.com", cfg.Server.BaseURL)
			assert.Equal(t, "https://example.com", cfg.Persona.Audience)
			assert.Equal(t, 3*time.Second, cfg.Persona.Timeout)
			assert.Equal(t, DisconnectPolicyProviders, cfg.Connections.DisconnectPolicy)
			assert.Equal(t, "./data/test.db", cfg.Database.DSN)

			return nil
		},
	}

	args := []string{
		"test",
		"--host", "0.0.0.0",
		"--port", "9000",
		"--base-url", "https://example.com",
		"--persona-timeout", "3s",
		"--disconnect-policy", "providers",
		"--database-dsn", "./data/test.db",
	}
	err := app.Run(context.Background(), args)
	assert.NoError(t, err)
}
