// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package persona verifies Persona assertions against a remote verifier.
package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Provider is the social account provider id of Persona.
const Provider = "persona"

// Status values returned by the verifier.
const (
	StatusOkay    = "okay"
	StatusFailure = "failure"
)

// maxResponseSize bounds the verifier response we are willing to read.
const maxResponseSize = 64 << 10

// Result is the outcome of a verification.
// Okay results always carry an email, failures always carry a reason.
type Result struct {
	Status   string `json:"status"`
	Email    string `json:"email,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Audience string `json:"audience,omitempty"`
	Issuer   string `json:"issuer,omitempty"`
	Expires  int64  `json:"expires,omitempty"`
}

// OK reports whether the assertion was verified.
func (r Result) OK() bool {
	return r.Status == StatusOkay
}

// Failure returns a failed result with the given reason.
func Failure(reason, audience string) Result {
	return Result{Status: StatusFailure, Reason: reason, Audience: audience}
}

// normalize enforces the status invariants on a decoded result.
func (r Result) normalize(audience string) Result {
	if r.Audience == "" {
		r.Audience = audience
	}
	switch r.Status {
	case StatusOkay:
		r.Email = strings.TrimSpace(r.Email)
		if r.Email == "" {
			return Failure("missing email", r.Audience)
		}
		r.Reason = ""
	default:
		if r.Status != StatusFailure {
			slog.Warn("persona_unexpected_status", "status", r.Status)
		}
		r.Status = StatusFailure
		r.Email = ""
		if r.Reason == "" {
			r.Reason = "unknown"
		}
	}
	return r
}

// Verifier checks an assertion for an audience. It never returns an error;
// every problem is reported as a failure result.
type Verifier interface {
	Verify(ctx context.Context, assertion, audience string) Result
}

// HTTPVerifier posts assertions to a remote verifier endpoint.
type HTTPVerifier struct {
	url    string
	client *http.Client
}

// NewHTTPVerifier creates a verifier for the given endpoint.
func NewHTTPVerifier(verifierURL string, timeout time.Duration) *HTTPVerifier {
	return &HTTPVerifier{
		url:    verifierURL,
		client: &http.Client{Timeout: timeout},
	}
}

// Verify sends a single verification request. There are no retries.
func (v *HTTPVerifier) Verify(ctx context.Context, assertion, audience string) Result {
	if strings.TrimSpace(assertion) == "" {
		return Failure("missing assertion", audience)
	}

	form := url.Values{
		"assertion": {assertion},
		"audience":  {audience},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, strings.NewReader(form.Encode()))
	if err != nil {
		return Failure(fmt.Sprintf("building request: %v", err), audience)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return Failure(fmt.Sprintf("verifier unreachable: %v", err), audience)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return Failure(fmt.Sprintf("verifier returned HTTP %d", resp.StatusCode), audience)
	}

	var result Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&result); err != nil {
		return Failure(fmt.Sprintf("decoding verifier response: %v", err), audience)
	}

	return result.normalize(audience)
}

// Static always returns the same result. It is meant for tests and local development.
type Static Result

// Verify implements Verifier.
func (s Static) Verify(_ context.Context, _, audience string) Result {
	return Result(s).normalize(audience)
}

// Func adapts a function to the Verifier interface.
type Func func(ctx context.Context, assertion, audience string) Result

// Verify implements Verifier.
func (f Func) Verify(ctx context.Context, assertion, audience string) Result {
	return f(ctx, assertion, audience).normalize(audience)
}
