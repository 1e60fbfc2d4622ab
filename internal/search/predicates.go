// Package search turns recipe search criteria into storage queries and
// post-query filters. It holds no state and does no logging; callers decide
// how results are reported.
//
// A search runs in two phases:
//
//   - Structured predicates (vegetarian, number_of_servings, text in
//     instructions) are pushed down to the database as a single GORM scope.
//   - Ingredient inclusion/exclusion is applied in memory over the
//     candidates, which are loaded with their ingredients.
package search

import (
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// Column names used by the structured predicates.
const (
	FieldVegetarian       = "vegetarian"
	FieldNumberOfServings = "number_of_servings"
	FieldInstructions     = "instructions"
)

// Predicate is one structured condition over recipes, expressed as a GORM
// scope. Field names the column it constrains ("" for the always-true base).
type Predicate struct {
	Field string
	Apply func(*gorm.DB) *gorm.DB
}

// Scope returns p as a function usable with (*gorm.DB).Scopes.
func (p Predicate) Scope() func(*gorm.DB) *gorm.DB {
	if p.Apply == nil {
		return identity
	}
	return p.Apply
}

// Always is the neutral element of Combine: it matches every recipe.
func Always() Predicate { return Predicate{Apply: identity} }

// BuildPredicates returns the structured predicates for c in a fixed order:
// vegetarian, number of servings, text in instructions. Absent fields are
// skipped. A text criterion that is empty or only whitespace is skipped too.
// Ingredient criteria never produce predicates; see FilterByIngredients.
func BuildPredicates(c domain.RecipeSearchCriteria) []Predicate {
	preds := make([]Predicate, 0, 3)

	if c.Vegetarian != nil {
		v := *c.Vegetarian
		preds = append(preds, Predicate{
			Field: FieldVegetarian,
			Apply: func(db *gorm.DB) *gorm.DB { return db.Where(FieldVegetarian+" = ?", v) },
		})
	}
	if c.NumberOfServings != nil {
		n := *c.NumberOfServings
		preds = append(preds, Predicate{
			Field: FieldNumberOfServings,
			Apply: func(db *gorm.DB) *gorm.DB { return db.Where(FieldNumberOfServings+" = ?", n) },
		})
	}
	if c.TextInInstructions != nil && strings.TrimSpace(*c.TextInInstructions) != "" {
		text := *c.TextInInstructions
		preds = append(preds, Predicate{
			Field: FieldInstructions,
			Apply: func(db *gorm.DB) *gorm.DB { return db.Where(containsExpr(db), text) },
		})
	}
	return preds
}

// Combine folds preds with AND, starting from Always. An empty list yields a
// predicate that matches every recipe.
func Combine(preds []Predicate) Predicate {
	acc := Always()
	for _, p := range preds {
		prev, next := acc.Scope(), p.Scope()
		acc = Predicate{Apply: func(db *gorm.DB) *gorm.DB { return next(prev(db)) }}
	}
	return acc
}

// containsExpr returns a case-sensitive, literal substring test on the
// instructions column. LIKE is avoided because it treats % and _ as
// wildcards and folds ASCII case on SQLite.
func containsExpr(db *gorm.DB) string {
	if db != nil && db.Dialector != nil && db.Dialector.Name() == "postgres" {
		return "strpos(" + FieldInstructions + ", ?) > 0"
	}
	return "instr(" + FieldInstructions + ", ?) > 0"
}

func identity(db *gorm.DB) *gorm.DB { return db }
