// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package templates renders the HTML pages. Pages are Django-syntax
// templates embedded in the binary and exposed as templ components.
package templates

import (
	"context"
	"embed"
	"io"
	"path"
	"strings"

	"codeberg.org/oliverandrich/mdn-accounts/internal/appcontext"
	"github.com/a-h/templ"
	"github.com/flosch/pongo2/v6"
)

//go:embed pages/*.html
var pagesFS embed.FS

const pagesDir = "pages"

// embedLoader resolves template names inside pagesFS.
type embedLoader struct{}

func (embedLoader) Abs(_, name string) string {
	if strings.HasPrefix(name, pagesDir+"/") {
		return name
	}
	return path.Join(pagesDir, name)
}

func (embedLoader) Get(name string) (io.Reader, error) {
	return pagesFS.Open(name)
}

var set = pongo2.NewSet("pages", embedLoader{})

// page renders the named template with the common context plus data.
func page(name string, data pongo2.Context) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		tpl, err := set.FromCache(name)
		if err != nil {
			return err
		}
		return tpl.ExecuteWriter(baseContext(ctx).Update(data), w)
	})
}

// baseContext holds what every page needs for its chrome.
func baseContext(ctx context.Context) pongo2.Context {
	pc := pongo2.Context{
		"locale":          Locale(ctx),
		"csrf_token":      CSRFToken(ctx),
		"path":            appcontext.PathFrom(ctx),
		"site":            appcontext.SiteFrom(ctx),
		"persona_request": PersonaRequest(ctx),
		"T": func(id string) *pongo2.Value {
			return T(ctx, id)
		},
		"Tf": func(id, key string, value any) *pongo2.Value {
			return Tf(ctx, id, key, value)
		},
	}
	if user := GetUser(ctx); user != nil {
		pc["user"] = user
		pc["signed_in_title"] = SignedInTitle(ctx)
	}
	return pc
}
