// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Recipe and
// Ingredient models.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a recipe or ingredient is not found, functions return
//     gorm.ErrRecordNotFound (also exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated. Use IsIntegrityViolation to detect
//     unique/foreign-key/check failures regardless of driver.
//
// Functions:
//
//   - ListRecipes(ctx, db) -> []domain.Recipe, error
//     Returns every recipe with its ingredients, ordered by id.
//
//   - FindRecipes(ctx, db, scope) -> []domain.Recipe, error
//     Same as ListRecipes, restricted by a caller-built GORM scope.
//
//   - FindRecipeByID(ctx, db, id) -> *domain.Recipe, error
//
//   - SaveRecipe(ctx, db, r) -> error
//     Inserts or updates a recipe, creating unsaved ingredients and replacing
//     the recipe_ingredients join rows. Call it inside a transaction.
//
//   - DeleteRecipe(ctx, db, id) -> error
//
//   - FindIngredientByName(ctx, db, name) -> *domain.Ingredient, error
//
// Usage:
//
//	err := db.Transaction(func(tx *gorm.DB) error {
//	    r, err := repo.FindRecipeByID(ctx, tx, id)
//	    if err != nil {
//	        return err
//	    }
//	    r.Merge(incoming)
//	    return repo.SaveRecipe(ctx, tx, r)
//	})
package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ListRecipes returns all recipes with ingredients eagerly loaded, ordered by
// id ascending. It returns an empty slice when the store is empty.
func ListRecipes(ctx context.Context, db *gorm.DB) ([]domain.Recipe, error) {
	var out []domain.Recipe
	err := db.WithContext(ctx).
		Preload("Ingredients", orderByID).
		Order("id").
		Find(&out).Error
	return out, err
}

// FindRecipes returns the recipes matching scope, with ingredients eagerly
// loaded so callers can filter on them without further queries.
func FindRecipes(ctx context.Context, db *gorm.DB, scope func(*gorm.DB) *gorm.DB) ([]domain.Recipe, error) {
	var out []domain.Recipe
	q := db.WithContext(ctx).Preload("Ingredients", orderByID)
	if scope != nil {
		q = q.Scopes(scope)
	}
	err := q.Order("id").Find(&out).Error
	return out, err
}

// FindRecipeByID fetches a single recipe and its ingredients. If the record
// does not exist, it returns ErrNotFound.
func FindRecipeByID(ctx context.Context, db *gorm.DB, id uint) (*domain.Recipe, error) {
	var r domain.Recipe
	err := db.WithContext(ctx).
		Preload("Ingredients", orderByID).
		Where("id = ?", id).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SaveRecipe persists r and its ingredient set.
//
// Ingredients with a zero ID are inserted first with a plain INSERT, so a
// concurrent insert of the same name surfaces as a unique violation instead of
// being silently merged. The recipe row is then created (ID == 0) or fully
// updated, and the join rows are replaced to match r.Ingredients.
func SaveRecipe(ctx context.Context, db *gorm.DB, r *domain.Recipe) error {
	tx := db.WithContext(ctx)

	for i := range r.Ingredients {
		if r.Ingredients[i].ID != 0 {
			continue
		}
		if err := tx.Create(&r.Ingredients[i]).Error; err != nil {
			return err
		}
	}

	if r.ID == 0 {
		if err := tx.Omit(clause.Associations).Create(r).Error; err != nil {
			return err
		}
	} else {
		if err := tx.Omit(clause.Associations).Save(r).Error; err != nil {
			return err
		}
	}

	return tx.Model(r).Association("Ingredients").Replace(r.Ingredients)
}

// DeleteRecipe removes the recipe's join rows and then the recipe itself.
// Ingredients are shared and are never deleted. Returns ErrNotFound when no
// recipe has the given id.
func DeleteRecipe(ctx context.Context, db *gorm.DB, id uint) error {
	tx := db.WithContext(ctx)
	if err := tx.Model(&domain.Recipe{ID: id}).Association("Ingredients").Clear(); err != nil {
		return err
	}
	res := tx.Delete(&domain.Recipe{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindIngredientByName looks up an ingredient by its exact (case-sensitive)
// name. Returns ErrNotFound when none exists.
func FindIngredientByName(ctx context.Context, db *gorm.DB, name string) (*domain.Ingredient, error) {
	var ing domain.Ingredient
	err := db.WithContext(ctx).
		Where("name = ?", name).
		First(&ing).Error
	if err != nil {
		return nil, err
	}
	return &ing, nil
}

// IsIntegrityViolation reports whether err was caused by a unique, foreign
// key or check constraint.
func IsIntegrityViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrForeignKeyViolated) ||
		errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for constraint failures.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed") ||
		strings.Contains(low, "duplicate key") ||
		strings.Contains(low, "violates foreign key constraint") ||
		strings.Contains(low, "violates check constraint")
}

func orderByID(db *gorm.DB) *gorm.DB { return db.Order("id") }
