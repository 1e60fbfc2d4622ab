package search

import "github.com/tbourn/go-recipe-backend/internal/domain"

// FilterByIngredients keeps the recipes whose ingredient sets satisfy the
// inclusion and exclusion lists, preserving input order.
//
// A nil list is absent and imposes nothing. When both are absent the input
// slice is returned as is. A present but empty included list rejects every
// recipe. Membership compares ingredient names exactly.
func FilterByIngredients(recipes []domain.Recipe, included, excluded []domain.Ingredient) []domain.Recipe {
	if included == nil && excluded == nil {
		return recipes
	}
	out := make([]domain.Recipe, 0, len(recipes))
	for _, r := range recipes {
		if Matches(r, included, excluded) {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether a single recipe passes the ingredient filter.
func Matches(r domain.Recipe, included, excluded []domain.Ingredient) bool {
	if included != nil {
		if len(included) == 0 {
			return false
		}
		for _, ing := range included {
			if !r.HasIngredient(ing) {
				return false
			}
		}
	}
	for _, ing := range excluded {
		if r.HasIngredient(ing) {
			return false
		}
	}
	return true
}
