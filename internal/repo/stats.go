package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// Snapshot summarizes the recipes table. Every create, update or delete
// changes Count or LastUpdated, so the pair validates a cached listing.
type Snapshot struct {
	Count       int64
	LastUpdated time.Time
}

// Empty reports whether the table had no rows.
func (s Snapshot) Empty() bool { return s.Count == 0 }

// ETag renders s as a weak entity tag.
func (s Snapshot) ETag() string {
	return fmt.Sprintf(`W/"recipes:%d:%d"`, s.Count, s.LastUpdated.UnixNano())
}

// RecipeSnapshot counts recipes and finds the latest updated_at.
func RecipeSnapshot(ctx context.Context, db *gorm.DB) (Snapshot, error) {
	var s Snapshot
	q := db.WithContext(ctx).Model(&domain.Recipe{})
	if err := q.Count(&s.Count).Error; err != nil || s.Count == 0 {
		return Snapshot{}, err
	}

	// ORDER BY + LIMIT keeps the column typed; MAX() comes back as TEXT on SQLite.
	var latest domain.Recipe
	err := db.WithContext(ctx).
		Select("updated_at").
		Order("updated_at DESC").
		Take(&latest).Error
	if err != nil {
		return Snapshot{}, err
	}
	s.LastUpdated = latest.UpdatedAt
	return s, nil
}
