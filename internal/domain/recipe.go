// Package domain defines the persistence models for recipes and ingredients,
// the search criteria accepted by the search endpoint, and the input shapes
// consumed by the service layer. These types are mapped with GORM and form
// the core data layer of the recipe service.
package domain

import (
	"time"
)

const (
	// MaxNameLen caps recipe and ingredient names, in characters.
	MaxNameLen = 200
	// MaxInstructionsLen caps recipe instructions.
	MaxInstructionsLen = 4000
)

// Ingredient is a named ingredient shared between recipes.
//
// Identity is the case-sensitive Name: "salt", "Salt" and "SALT" are three
// different ingredients. The numeric ID is a surrogate key assigned on first
// insert and never used for equality.
//
// Fields:
//   - ID: auto-increment primary key.
//   - Name: unique, case-sensitive ingredient name.
type Ingredient struct {
	ID   uint   `json:"id"   gorm:"primaryKey"`
	Name string `json:"name" gorm:"type:varchar(200);not null;uniqueIndex:ux_ingredient_name"`
}

// TableName returns the database table name for Ingredient.
func (Ingredient) TableName() string { return "ingredients" }

// Equal reports whether two ingredients have byte-identical names.
func (i Ingredient) Equal(other Ingredient) bool { return i.Name == other.Name }

// Recipe is a stored recipe and its ingredient set.
//
// Identity is the pair (Name, Vegetarian); two recipes with the same name and
// flag are the same recipe even when servings, ingredients or instructions
// differ. The database enforces this with a composite unique index.
//
// Fields:
//   - ID: auto-increment primary key, stable after creation.
//   - Name / Vegetarian: identity fields, never changed by an update.
//   - NumberOfServings: >= 1.
//   - Ingredients: non-empty set, many-to-many through recipe_ingredients.
//   - Instructions: free text, at most MaxInstructionsLen bytes.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Recipe struct {
	ID               uint         `json:"id"                 gorm:"primaryKey"`
	Name             string       `json:"name"               gorm:"type:varchar(200);not null;uniqueIndex:ux_recipe_name_vegetarian,priority:1"`
	Vegetarian       bool         `json:"vegetarian"         gorm:"not null;uniqueIndex:ux_recipe_name_vegetarian,priority:2"`
	NumberOfServings int          `json:"number_of_servings" gorm:"not null;check:number_of_servings >= 1"`
	Instructions     string       `json:"instructions"       gorm:"type:varchar(4000);not null"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"         gorm:"index"`

	// Ingredients are shared by reference; deleting a recipe removes only
	// its join rows.
	Ingredients []Ingredient `json:"ingredients" gorm:"many2many:recipe_ingredients;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Recipe.
func (Recipe) TableName() string { return "recipes" }

// Equal reports whether two recipes share the same identity (name and
// vegetarian flag). IDs and mutable fields are ignored.
func (r Recipe) Equal(other Recipe) bool {
	return r.Name == other.Name && r.Vegetarian == other.Vegetarian
}

// Merge overwrites the mutable fields of r (servings, ingredients and
// instructions) with the values from incoming. ID, Name and Vegetarian are
// kept from r, so an update can never change a stored recipe's identity.
func (r *Recipe) Merge(incoming Recipe) {
	r.NumberOfServings = incoming.NumberOfServings
	r.Ingredients = incoming.Ingredients
	r.Instructions = incoming.Instructions
}

// HasIngredient reports whether the recipe contains an ingredient with the
// same name as ing.
func (r Recipe) HasIngredient(ing Ingredient) bool {
	for _, own := range r.Ingredients {
		if own.Equal(ing) {
			return true
		}
	}
	return false
}
