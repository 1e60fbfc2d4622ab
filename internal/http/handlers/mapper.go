package handlers

import (
	"sort"
	"time"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

//
// DTOs
//

// IngredientRequest names an ingredient. Identity is the exact name.
type IngredientRequest struct {
	Name string `json:"name" binding:"required,max=200" example:"Salt"`
}

// RecipeRequest is the JSON payload for creating or updating a recipe.
type RecipeRequest struct {
	// Name, with Vegetarian, identifies the recipe. Ignored by updates of an
	// existing recipe.
	Name string `json:"name" binding:"required,max=200" example:"Pancakes"`
	// Vegetarian must be present; false is a valid value.
	Vegetarian *bool `json:"vegetarian" binding:"required" example:"true"`
	// NumberOfServings is at least 1.
	NumberOfServings int `json:"number_of_servings" binding:"required,min=1" example:"4"`
	// Ingredients is a non-empty set; duplicate names collapse.
	Ingredients []IngredientRequest `json:"ingredients" binding:"required,min=1,dive"`
	// Instructions is free text up to 4000 characters.
	Instructions string `json:"instructions" binding:"required,max=4000" example:"Mix everything and fry in a hot pan."`
}

// SearchRequest is the JSON payload for POST /recipes/search.
//
// Every field is optional, but at least one must be set. An omitted or null
// list is absent; an empty list is present. included_ingredients, when
// present, must not be empty and must not share a name with
// excluded_ingredients.
type SearchRequest struct {
	Vegetarian          *bool               `json:"vegetarian" example:"true"`
	NumberOfServings    *int                `json:"number_of_servings" example:"4"`
	IncludedIngredients []IngredientRequest `json:"included_ingredients" binding:"omitempty,dive"`
	ExcludedIngredients []IngredientRequest `json:"excluded_ingredients" binding:"omitempty,dive"`
	TextInInstructions  *string             `json:"text_in_instructions" example:"oven"`
}

// IngredientResponse is the wire shape of a stored ingredient.
type IngredientResponse struct {
	ID   uint   `json:"id" example:"3"`
	Name string `json:"name" example:"Salt"`
}

// RecipeResponse is the wire shape of a stored recipe.
type RecipeResponse struct {
	ID               uint                 `json:"id" example:"1"`
	Name             string               `json:"name" example:"Pancakes"`
	Vegetarian       bool                 `json:"vegetarian" example:"true"`
	NumberOfServings int                  `json:"number_of_servings" example:"4"`
	Ingredients      []IngredientResponse `json:"ingredients"`
	Instructions     string               `json:"instructions" example:"Mix everything and fry in a hot pan."`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

//
// Converters
//

func toRecipeInput(req RecipeRequest) domain.RecipeInput {
	in := domain.RecipeInput{
		Name:             req.Name,
		NumberOfServings: req.NumberOfServings,
		Instructions:     req.Instructions,
		Ingredients:      make([]domain.IngredientInput, 0, len(req.Ingredients)),
	}
	if req.Vegetarian != nil {
		in.Vegetarian = *req.Vegetarian
	}
	for _, ing := range req.Ingredients {
		in.Ingredients = append(in.Ingredients, domain.IngredientInput{Name: ing.Name})
	}
	return in
}

func toCriteria(req SearchRequest) domain.RecipeSearchCriteria {
	return domain.RecipeSearchCriteria{
		Vegetarian:          req.Vegetarian,
		NumberOfServings:    req.NumberOfServings,
		IncludedIngredients: toIngredients(req.IncludedIngredients),
		ExcludedIngredients: toIngredients(req.ExcludedIngredients),
		TextInInstructions:  req.TextInInstructions,
	}
}

// toIngredients keeps nil as nil so an absent list stays absent.
func toIngredients(in []IngredientRequest) []domain.Ingredient {
	if in == nil {
		return nil
	}
	out := make([]domain.Ingredient, 0, len(in))
	for _, ing := range in {
		out = append(out, domain.Ingredient{Name: ing.Name})
	}
	return out
}

// toRecipeResponse lists ingredients by name so equal sets serialize equally.
func toRecipeResponse(r *domain.Recipe) RecipeResponse {
	ings := make([]IngredientResponse, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		ings = append(ings, IngredientResponse{ID: ing.ID, Name: ing.Name})
	}
	sort.Slice(ings, func(i, j int) bool { return ings[i].Name < ings[j].Name })

	return RecipeResponse{
		ID:               r.ID,
		Name:             r.Name,
		Vegetarian:       r.Vegetarian,
		NumberOfServings: r.NumberOfServings,
		Ingredients:      ings,
		Instructions:     r.Instructions,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func toRecipeResponses(rs []domain.Recipe) []RecipeResponse {
	out := make([]RecipeResponse, 0, len(rs))
	for i := range rs {
		out = append(out, toRecipeResponse(&rs[i]))
	}
	return out
}
