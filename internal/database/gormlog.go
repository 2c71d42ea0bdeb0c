package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SlogGormLogger sends gorm output to slog so SQL lines carry the request,
// user and trace ids stamped by the middleware context handler.
type SlogGormLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

// NewGormLogger logs failures and queries slower than 200ms. Missing rows are not failures.
func NewGormLogger(l *slog.Logger) *SlogGormLogger {
	return &SlogGormLogger{log: l, level: logger.Warn, slow: 200 * time.Millisecond}
}

func (l *SlogGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *SlogGormLogger) Info(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, logger.Info, slog.LevelInfo, msg, args)
}

func (l *SlogGormLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, logger.Warn, slog.LevelWarn, msg, args)
}

func (l *SlogGormLogger) Error(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, logger.Error, slog.LevelError, msg, args)
}

func (l *SlogGormLogger) printf(ctx context.Context, threshold logger.LogLevel, lvl slog.Level, msg string, args []any) {
	if l.level >= threshold {
		l.log.Log(ctx, lvl, fmt.Sprintf(msg, args...))
	}
}

func (l *SlogGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var (
		lvl slog.Level
		msg string
	)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		lvl, msg = slog.LevelError, "GORM query error"
	case l.slow > 0 && elapsed > l.slow && l.level >= logger.Warn:
		lvl, msg = slog.LevelWarn, "GORM slow query"
	case l.level >= logger.Info:
		lvl, msg = slog.LevelInfo, "GORM query"
	default:
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.log.LogAttrs(ctx, lvl, msg, attrs...)
}
