// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session manages signed cookies for signed-in users, pending
// signups and OAuth connect state.
package session

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/mdn-accounts/internal/config"
	"github.com/gorilla/securecookie"
)

const (
	pendingSuffix = "_signup"
	stateSuffix   = "_connect"

	// pendingMaxAge bounds how long a verified identity waits for signup.
	pendingMaxAge = 60 * 60
	stateMaxAge   = 10 * 60
)

// Data is the content of a session cookie.
type Data struct {
	UserID    int64     `json:"uid"`
	Username  string    `json:"u"`
	Provider  string    `json:"p,omitempty"` // empty for password sign-in
	ExpiresAt time.Time `json:"exp"`
}

// Pending is a verified identity waiting for the user to pick a username.
type Pending struct {
	Provider  string    `json:"p"`
	UID       string    `json:"uid"`
	Email     string    `json:"e"`
	Next      string    `json:"n,omitempty"`
	ExpiresAt time.Time `json:"exp"`
}

// State is the anti-forgery state of an OAuth connect round trip.
type State struct {
	Value     string    `json:"s"`
	Provider  string    `json:"p"`
	ExpiresAt time.Time `json:"exp"`
}

// Manager encodes and decodes the cookies.
type Manager struct {
	sc         *securecookie.SecureCookie
	cookieName string
	maxAge     int
	secure     bool
}

// NewManager creates a cookie manager. An empty hash key generates a random
// one, which invalidates all sessions on restart.
func NewManager(cfg *config.SessionConfig, secure bool) (*Manager, error) {
	var hashKey []byte
	if cfg.HashKey == "" {
		slog.Warn("session_hash_key_missing", "hint", "sessions will not survive a restart")
		hashKey = securecookie.GenerateRandomKey(32)
		if hashKey == nil {
			return nil, errors.New("failed to generate session hash key")
		}
	} else {
		key, err := decodeKey(cfg.HashKey)
		if err != nil {
			return nil, fmt.Errorf("invalid session hash key: %w", err)
		}
		hashKey = key
	}

	var blockKey []byte
	if cfg.BlockKey != "" {
		key, err := decodeKey(cfg.BlockKey)
		if err != nil {
			return nil, fmt.Errorf("invalid session block key: %w", err)
		}
		blockKey = key
	}

	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(cfg.MaxAge)
	sc.SetSerializer(securecookie.JSONEncoder{})

	return &Manager{
		sc:         sc,
		cookieName: cfg.CookieName,
		maxAge:     cfg.MaxAge,
		secure:     secure,
	}, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// Create returns a session cookie for the user.
func (m *Manager) Create(userID int64, username, provider string) (*http.Cookie, error) {
	data := Data{
		UserID:    userID,
		Username:  username,
		Provider:  provider,
		ExpiresAt: time.Now().Add(time.Duration(m.maxAge) * time.Second),
	}
	return m.encode(m.cookieName, data, m.maxAge)
}

// Parse returns the session of the request, or nil if there is no valid one.
func (m *Manager) Parse(r *http.Request) *Data {
	var data Data
	if !m.decode(r, m.cookieName, &data) {
		return nil
	}
	if data.UserID == 0 || time.Now().After(data.ExpiresAt) {
		return nil
	}
	return &data
}

// Clear returns a cookie that removes the session.
func (m *Manager) Clear() *http.Cookie {
	return m.clear(m.cookieName)
}

// CreatePending returns a cookie holding a pending signup.
func (m *Manager) CreatePending(p Pending) (*http.Cookie, error) {
	p.ExpiresAt = time.Now().Add(pendingMaxAge * time.Second)
	return m.encode(m.cookieName+pendingSuffix, p, pendingMaxAge)
}

// ParsePending returns the pending signup of the request, or nil.
func (m *Manager) ParsePending(r *http.Request) *Pending {
	var p Pending
	if !m.decode(r, m.cookieName+pendingSuffix, &p) {
		return nil
	}
	if p.Email == "" || time.Now().After(p.ExpiresAt) {
		return nil
	}
	return &p
}

// ClearPending returns a cookie that removes the pending signup.
func (m *Manager) ClearPending() *http.Cookie {
	return m.clear(m.cookieName + pendingSuffix)
}

// CreateState returns a cookie holding OAuth state for provider.
func (m *Manager) CreateState(value, provider string) (*http.Cookie, error) {
	s := State{
		Value:     value,
		Provider:  provider,
		ExpiresAt: time.Now().Add(stateMaxAge * time.Second),
	}
	return m.encode(m.cookieName+stateSuffix, s, stateMaxAge)
}

// ParseState returns the OAuth state of the request, or nil.
func (m *Manager) ParseState(r *http.Request) *State {
	var s State
	if !m.decode(r, m.cookieName+stateSuffix, &s) {
		return nil
	}
	if s.Value == "" || time.Now().After(s.ExpiresAt) {
		return nil
	}
	return &s
}

// ClearState returns a cookie that removes the OAuth state.
func (m *Manager) ClearState() *http.Cookie {
	return m.clear(m.cookieName + stateSuffix)
}

func (m *Manager) encode(name string, value any, maxAge int) (*http.Cookie, error) {
	encoded, err := m.sc.Encode(name, value)
	if err != nil {
		return nil, fmt.Errorf("encoding cookie %s: %w", name, err)
	}
	return &http.Cookie{
		Name:     name,
		Value:    encoded,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// decode reports whether a valid cookie was found. Tampered or expired
// cookies are treated like missing ones.
func (m *Manager) decode(r *http.Request, name string, dst any) bool {
	cookie, err := r.Cookie(name)
	if err != nil {
		return false
	}
	if err := m.sc.Decode(name, cookie.Value, dst); err != nil {
		slog.Debug("cookie_decode_failed", "cookie", name, "error", err)
		return false
	}
	return true
}

func (m *Manager) clear(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
