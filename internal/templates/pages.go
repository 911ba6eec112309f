// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import (
	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/connections"
	"github.com/a-h/templ"
	"github.com/flosch/pongo2/v6"
)

// Home renders the landing page.
func Home() templ.Component {
	return page("home.html", nil)
}

// LoginPage is the password sign-in form.
type LoginPage struct {
	Next     string
	Username string
	Error    string
}

// Login renders the "Please sign in" page.
func Login(p LoginPage) templ.Component {
	return page("login.html", pongo2.Context{
		"next":     p.Next,
		"username": p.Username,
		"error":    p.Error,
	})
}

// Signout renders the sign-out confirmation.
func Signout(next string) templ.Component {
	return page("signout.html", pongo2.Context{"next": next})
}

// SignupPage is the username form shown after a verified sign-in.
type SignupPage struct {
	Provider string
	Email    string
	Username string
	Errors   map[string]string // field -> translated message
}

// Signup renders the signup form.
func Signup(p SignupPage) templ.Component {
	if p.Errors == nil {
		p.Errors = map[string]string{}
	}
	return page("signup.html", pongo2.Context{
		"provider": p.Provider,
		"email":    p.Email,
		"username": p.Username,
		"errors":   p.Errors,
	})
}

// SignupDisabled renders the page shown while registration is disabled.
func SignupDisabled() templ.Component {
	return page("signup_disabled.html", nil)
}

// AuthError renders the sign-in failure page.
func AuthError() templ.Component {
	return page("auth_error.html", nil)
}

// EmailPage lists the user's email addresses.
type EmailPage struct {
	Addresses []models.EmailAddress
	Input     string
	Message   string
	Error     string
}

// Email renders the email management page.
func Email(p EmailPage) templ.Component {
	data := pongo2.Context{
		"addresses": p.Addresses,
		"input":     p.Input,
		"message":   p.Message,
		"error":     p.Error,
	}
	if len(p.Addresses) == 1 {
		data["single"] = p.Addresses[0]
	}
	return page("email.html", data)
}

// ProviderLink is a provider offered on the connections page.
type ProviderLink struct {
	ID    string
	Name  string
	OAuth bool // connected through a server-side redirect
}

// ConnectionsPage lists linked accounts and providers to connect.
type ConnectionsPage struct {
	Connections []connections.Connection
	Providers   []ProviderLink
	Count       string
	Message     string
	Error       string
}

// Connections renders the account connections page.
func Connections(p ConnectionsPage) templ.Component {
	return page("connections.html", pongo2.Context{
		"connections": p.Connections,
		"providers":   p.Providers,
		"count":       p.Count,
		"message":     p.Message,
		"error":       p.Error,
	})
}

// BanPage is the moderator form for banning a user.
type BanPage struct {
	Target  *models.User
	Reasons []string
	Reason  string
	Error   string
}

// Ban renders the ban form.
func Ban(p BanPage) templ.Component {
	return page("ban.html", pongo2.Context{
		"target":  p.Target,
		"reasons": p.Reasons,
		"reason":  p.Reason,
		"error":   p.Error,
	})
}

// ProfilePage is a user's public profile.
type ProfilePage struct {
	Profile *models.User
	Joined  string
	Banned  bool
	CanBan  bool
}

// Profile renders a user's profile.
func Profile(p ProfilePage) templ.Component {
	return page("profile.html", pongo2.Context{
		"profile": p.Profile,
		"joined":  p.Joined,
		"banned":  p.Banned,
		"can_ban": p.CanBan,
	})
}

// Message renders a page with a title and a single paragraph.
func Message(title, text string) templ.Component {
	return page("message.html", pongo2.Context{
		"title": title,
		"text":  text,
	})
}

// Error renders an error page.
func Error(code int, title, message string) templ.Component {
	return page("error.html", pongo2.Context{
		"code":    code,
		"title":   title,
		"message": message,
	})
}
