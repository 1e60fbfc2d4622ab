package domain

import "errors"

// Criteria validation errors. They describe why IsValid returned false.
var (
	ErrNoCriteria           = errors.New("at least one search criterion must be provided")
	ErrEmptyIncluded        = errors.New("included_ingredients must not be empty when provided")
	ErrOverlappingInclusion = errors.New("included_ingredients and excluded_ingredients must not share an ingredient")
)

// RecipeSearchCriteria is a bundle of optional search conditions combined
// with AND. A nil pointer or nil slice means the criterion is absent; a
// non-nil empty slice means it was provided empty.
type RecipeSearchCriteria struct {
	Vegetarian          *bool
	NumberOfServings    *int
	IncludedIngredients []Ingredient
	ExcludedIngredients []Ingredient
	TextInInstructions  *string
}

// IsValid reports whether the criteria can be executed.
//
// Rules:
//   - at least one field must be present,
//   - IncludedIngredients, when present, must not be empty,
//   - IncludedIngredients and ExcludedIngredients must be disjoint (by name).
func (c RecipeSearchCriteria) IsValid() bool { return c.Validate() == nil }

// Validate is IsValid with the reason attached.
func (c RecipeSearchCriteria) Validate() error {
	if c.Vegetarian == nil &&
		c.NumberOfServings == nil &&
		c.IncludedIngredients == nil &&
		c.ExcludedIngredients == nil &&
		c.TextInInstructions == nil {
		return ErrNoCriteria
	}
	if c.IncludedIngredients != nil && len(c.IncludedIngredients) == 0 {
		return ErrEmptyIncluded
	}
	if c.IncludedIngredients != nil && c.ExcludedIngredients != nil {
		excluded := make(map[string]struct{}, len(c.ExcludedIngredients))
		for _, ing := range c.ExcludedIngredients {
			excluded[ing.Name] = struct{}{}
		}
		for _, ing := range c.IncludedIngredients {
			if _, ok := excluded[ing.Name]; ok {
				return ErrOverlappingInclusion
			}
		}
	}
	return nil
}
