package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// ErrDuplicate means a record for the same IdemKey already exists.
var ErrDuplicate = errors.New("duplicate idempotency key")

// IdemKey identifies one retry slot: a caller, the route it hit and the
// client-chosen key.
type IdemKey struct {
	UserID string
	Scope  string
	Key    string
}

func (k IdemKey) blank() bool {
	return strings.TrimSpace(k.Scope) == "" || strings.TrimSpace(k.Key) == ""
}

// GetIdempotency returns the record for k that is still live at now, or
// ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, k IdemKey, now time.Time) (*domain.Idempotency, error) {
	if k.blank() {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where(map[string]any{"user_id": k.UserID, "scope": k.Scope, "key": k.Key}).
		Where("expires_at > ?", now).
		Take(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveIdempotency stores the outcome of the first request made with k. The
// record expires ttl after now. A concurrent or repeated save for the same k
// yields ErrDuplicate.
func SaveIdempotency(ctx context.Context, db *gorm.DB, k IdemKey, recipeID uint, status int, now time.Time, ttl time.Duration) (*domain.Idempotency, error) {
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		UserID:    k.UserID,
		Scope:     k.Scope,
		Key:       k.Key,
		RecipeID:  recipeID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err := db.WithContext(ctx).Create(rec).Error
	switch {
	case err == nil:
		return rec, nil
	case IsIntegrityViolation(err):
		return nil, ErrDuplicate
	default:
		return nil, err
	}
}

// PurgeIdempotency deletes every record that expired at or before now and
// reports how many went.
func PurgeIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
