package domain

// IngredientInput is the caller-supplied shape of an ingredient. Only the
// name is meaningful; any id sent by a client is ignored because ingredient
// identity is resolved by name.
type IngredientInput struct {
	Name string
}

// RecipeInput is the caller-supplied shape of a recipe for create and update.
type RecipeInput struct {
	Name             string
	Vegetarian       bool
	NumberOfServings int
	Ingredients      []IngredientInput
	Instructions     string
}

// NewIngredient converts an IngredientInput into an unpersisted Ingredient.
func NewIngredient(in IngredientInput) Ingredient {
	return Ingredient{Name: in.Name}
}

// NewRecipe converts a RecipeInput into an unpersisted Recipe. Duplicate
// ingredient names collapse to a single entry, keeping first-seen order.
func NewRecipe(in RecipeInput) Recipe {
	return Recipe{
		Name:             in.Name,
		Vegetarian:       in.Vegetarian,
		NumberOfServings: in.NumberOfServings,
		Ingredients:      NewIngredientSet(in.Ingredients),
		Instructions:     in.Instructions,
	}
}

// NewIngredientSet converts inputs to ingredients with set semantics.
// A nil input yields a nil slice so "absent" survives the conversion.
func NewIngredientSet(in []IngredientInput) []Ingredient {
	if in == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]Ingredient, 0, len(in))
	for _, i := range in {
		if _, dup := seen[i.Name]; dup {
			continue
		}
		seen[i.Name] = struct{}{}
		out = append(out, NewIngredient(i))
	}
	return out
}

// IngredientNames returns the names of ings in order.
func IngredientNames(ings []Ingredient) []string {
	out := make([]string, len(ings))
	for i, ing := range ings {
		out[i] = ing.Name
	}
	return out
}
