// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package repository provides the SQL access layer.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vinovest/sqlx"
)

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Repository provides database operations.
type Repository struct {
	db   queryer
	conn *sqlx.DB
}

// New creates a new Repository.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db, conn: db}
}

// InTx runs fn with a repository bound to a single transaction.
// The transaction is committed when fn returns nil and rolled back otherwise.
func (r *Repository) InTx(ctx context.Context, fn func(tx *Repository) error) error {
	if r.conn == nil {
		// already inside a transaction
		return fn(r)
	}

	tx, err := r.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&Repository{db: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func rowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
