// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package testutil

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

// Response is a fully read HTTP response.
type Response struct {
	Status    int
	Body      string
	URL       *url.URL // final URL after redirects
	Redirects int      // number of redirect hops followed
	Header    http.Header
}

// Doc parses the body as HTML.
func (r *Response) Doc(t *testing.T) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(r.Body))
	require.NoError(t, err)
	return doc
}

// Client is a browser-like HTTP client with a cookie jar that follows redirects.
type Client struct {
	t       *testing.T
	baseURL string
	http    *http.Client
	hops    int

	// CSRFPath is fetched to obtain a token before form posts.
	CSRFPath string
}

// NewClient creates a client for the server at baseURL.
func NewClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	c := &Client{
		t:        t,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		CSRFPath: "/en-US/users/persona/csrf_token",
	}
	c.http = &http.Client{
		Jar: jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			c.hops = len(via)
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	return c
}

// NoRedirects disables redirect following.
func (c *Client) NoRedirects() *Client {
	c.http.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

// Get issues a GET request.
func (c *Client) Get(path string) *Response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	require.NoError(c.t, err)
	return c.do(req)
}

// PostForm issues a form POST, adding a CSRF token unless one is present.
func (c *Client) PostForm(path string, form url.Values) *Response {
	c.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if form.Get("csrf_token") == "" {
		form.Set("csrf_token", c.CSRFToken())
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// CSRFToken fetches a fresh CSRF token.
func (c *Client) CSRFToken() string {
	c.t.Helper()
	res := c.Get(c.CSRFPath)
	require.Equal(c.t, http.StatusOK, res.Status, "csrf token endpoint")
	return strings.TrimSpace(res.Body)
}

func (c *Client) do(req *http.Request) *Response {
	c.t.Helper()
	c.hops = 0
	res, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer func() {
		_ = res.Body.Close()
	}()

	body, err := io.ReadAll(res.Body)
	require.NoError(c.t, err)

	return &Response{
		Status:    res.StatusCode,
		Body:      string(body),
		URL:       res.Request.URL,
		Redirects: c.hops,
		Header:    res.Header,
	}
}
