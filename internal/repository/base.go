// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"zephyr/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

type txKey struct{}

// txScope is what InTx binds to the context: the open transaction and the work
// deferred until it commits.
type txScope struct {
	tx          *gorm.DB
	afterCommit []func(context.Context)
}

// Transactor runs a function inside a database transaction. Repositories called with the
// context handed to fn join that transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor returns a Transactor backed by db.
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txScope); ok {
		return fn(ctx)
	}
	scope := &txScope{}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scope.tx = tx
		return fn(context.WithValue(ctx, txKey{}, scope))
	})
	if err != nil {
		return err
	}
	for _, f := range scope.afterCommit {
		f(ctx)
	}
	return nil
}

// conn returns the transaction bound to ctx, or db scoped to ctx.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if scope, ok := ctx.Value(txKey{}).(*txScope); ok {
		return scope.tx
	}
	return db.WithContext(ctx)
}

// afterCommit runs f once the transaction bound to ctx commits, and drops it on
// rollback. Outside a transaction f runs immediately. Cache invalidation goes
// through here so a concurrent reader cannot re-cache a row that is not yet committed.
func afterCommit(ctx context.Context, f func(context.Context)) {
	if scope, ok := ctx.Value(txKey{}).(*txScope); ok {
		scope.afterCommit = append(scope.afterCommit, f)
		return
	}
	f(ctx)
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	// SQLite reports "UNIQUE constraint failed".
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}

// notFoundOr maps gorm.ErrRecordNotFound to a NOT_FOUND AppError and anything else to INTERNAL_ERROR.
func notFoundOr(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

// likePattern builds a case-insensitive LIKE pattern, escaping wildcards in term.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
