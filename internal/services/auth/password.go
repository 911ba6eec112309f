// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"errors"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var (
	errNumericPassword = errors.New("Password cannot be entirely numeric.")
	errSimilarPassword = errors.New("Password is too similar to your username or email address.")
)

// ValidatePassword checks a new password against the account's username and email.
func ValidatePassword(password string, userAttributes ...string) error {
	return validation.Validate(password,
		validation.Required.Error("Password is required."),
		validation.RuneLength(MinPasswordLength, 0).Error("Password must be at least 8 characters long."),
		validation.By(func(any) error {
			if isEntirelyNumeric(password) {
				return errNumericPassword
			}
			return nil
		}),
		validation.By(func(any) error {
			if isSimilarToUserAttributes(password, userAttributes) {
				return errSimilarPassword
			}
			return nil
		}),
	)
}

func isEntirelyNumeric(password string) bool {
	for _, r := range password {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return password != ""
}

func isSimilarToUserAttributes(password string, attributes []string) bool {
	pw := strings.ToLower(password)
	for _, attr := range attributes {
		if attr == "" {
			continue
		}
		// compare against the local part of email addresses as well
		candidates := []string{strings.ToLower(attr)}
		if local, _, ok := strings.Cut(candidates[0], "@"); ok && local != "" {
			candidates = append(candidates, local)
		}
		for _, c := range candidates {
			if strings.Contains(pw, c) || strings.Contains(c, pw) || similarity(pw, c) > 0.7 {
				return true
			}
		}
	}
	return false
}

// similarity is the longest common subsequence relative to the longer string.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}

	return float64(prev[len(b)]) / float64(max(len(a), len(b)))
}
