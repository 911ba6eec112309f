// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"database/sql"
	"time"
)

// Flag is a runtime feature switch.
// Everyone overrides all cohort switches when set.
type Flag struct { //nolint:govet // fieldalignment: readability over optimization
	Name          string       `db:"name" json:"name"`
	Everyone      sql.NullBool `db:"everyone" json:"everyone"`
	Superusers    bool         `db:"superusers" json:"superusers"`
	Staff         bool         `db:"staff" json:"staff"`
	Authenticated bool         `db:"authenticated" json:"authenticated"`
	Note          string       `db:"note" json:"note"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// Setting is a dynamic configuration value.
type Setting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
