// Package repo implements the durable tier of the context store, backed by
// GORM. This file provides repository functions for the ContextEntry model.
//
// All functions are context-aware and accept a *gorm.DB handle. The handle is
// a connection pool, so concurrent callers each run on their own connection
// and rely on SQLite's locking for per-row append consistency.
//
// Error semantics:
//   - When a user has no history, LastContext returns ErrNotFound.
//   - PurgeContext on a user without history is a successful no-op.
//   - Other DB errors (I/O, locking) are propagated unchanged and never retried.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-context-relay/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// AppendContext inserts a new immutable entry for userID and returns it with
// its assigned sequence number.
func AppendContext(ctx context.Context, db *gorm.DB, userID int64, text string) (*domain.ContextEntry, error) {
	e := &domain.ContextEntry{UserID: userID, Text: text}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// LastContext returns the highest-sequence entry for userID, or ErrNotFound.
func LastContext(ctx context.Context, db *gorm.DB, userID int64) (*domain.ContextEntry, error) {
	var e domain.ContextEntry
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(1).
		Take(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// PurgeContext deletes every entry owned by userID and reports how many rows
// were removed. It is idempotent.
func PurgeContext(ctx context.Context, db *gorm.DB, userID int64) (int64, error) {
	res := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.ContextEntry{})
	return res.RowsAffected, res.Error
}

// CountContext returns the number of entries stored for userID.
func CountContext(ctx context.Context, db *gorm.DB, userID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ContextEntry{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}
