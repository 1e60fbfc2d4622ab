package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestIdempotency_UniquePerUserScopeKey(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.AutoMigrate(&Idempotency{}))
	assert.Equal(t, "idempotency", Idempotency{}.TableName())

	now := time.Now().UTC()
	base := Idempotency{
		UserID:    "u1",
		Scope:     "POST /api/v1/recipes",
		Key:       "k1",
		RecipeID:  7,
		Status:    201,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	insert := func(id string, mutate func(*Idempotency)) error {
		rec := base
		rec.ID = id
		if mutate != nil {
			mutate(&rec)
		}
		return db.Create(&rec).Error
	}

	require.NoError(t, insert("a", nil))
	assert.NoError(t, insert("b", func(r *Idempotency) { r.Scope = "PUT /api/v1/recipes/:id" }))
	assert.NoError(t, insert("c", func(r *Idempotency) { r.UserID = "u2" }))
	assert.Error(t, insert("d", nil), "same user, scope and key must collide")

	var n int64
	require.NoError(t, db.Model(&Idempotency{}).Count(&n).Error)
	assert.Equal(t, int64(3), n)
}
