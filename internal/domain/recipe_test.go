package domain

import (
	"testing"
)

func TestTableNames(t *testing.T) {
	if (Recipe{}).TableName() != "recipes" {
		t.Fatalf("Recipe.TableName() = %q; want %q", (Recipe{}).TableName(), "recipes")
	}
	if (Ingredient{}).TableName() != "ingredients" {
		t.Fatalf("Ingredient.TableName() = %q; want %q", (Ingredient{}).TableName(), "ingredients")
	}
	if (Idempotency{}).TableName() != "idempotency" {
		t.Fatalf("Idempotency.TableName() = %q; want %q", (Idempotency{}).TableName(), "idempotency")
	}
}

func TestIngredientEqual_CaseSensitiveByName(t *testing.T) {
	salt := Ingredient{ID: 1, Name: "Salt"}
	if !salt.Equal(Ingredient{ID: 99, Name: "Salt"}) {
		t.Fatalf("same name with different ids must be equal")
	}
	for _, n := range []string{"salt", "SALT", "Salt "} {
		if salt.Equal(Ingredient{ID: 1, Name: n}) {
			t.Fatalf("%q must not equal %q", n, salt.Name)
		}
	}
}

func TestRecipeEqual_NameAndVegetarianOnly(t *testing.T) {
	a := Recipe{ID: 1, Name: "Pasta", Vegetarian: true, NumberOfServings: 2, Instructions: "boil"}
	b := Recipe{ID: 2, Name: "Pasta", Vegetarian: true, NumberOfServings: 5, Instructions: "bake",
		Ingredients: []Ingredient{{Name: "Flour"}}}
	if !a.Equal(b) {
		t.Fatalf("recipes with same name+vegetarian must be equal")
	}
	c := Recipe{ID: 1, Name: "Pasta", Vegetarian: false, NumberOfServings: 2, Instructions: "boil"}
	if a.Equal(c) {
		t.Fatalf("vegetarian flag is part of identity")
	}
	d := Recipe{ID: 1, Name: "pasta", Vegetarian: true}
	if a.Equal(d) {
		t.Fatalf("recipe names are case-sensitive")
	}
}

func TestMerge_CopiesMutableFieldsOnly(t *testing.T) {
	existing := Recipe{
		ID: 10, Name: "Soup", Vegetarian: true, NumberOfServings: 2,
		Ingredients:  []Ingredient{{ID: 1, Name: "Water"}},
		Instructions: "heat",
	}
	incoming := Recipe{
		ID: 77, Name: "Stew", Vegetarian: false, NumberOfServings: 6,
		Ingredients:  []Ingredient{{ID: 2, Name: "Beef"}, {Name: "Carrot"}},
		Instructions: "simmer",
	}

	existing.Merge(incoming)

	// Identity fields are intentionally preserved even though the caller
	// supplied different values. This is relied upon by update.
	if existing.ID != 10 || existing.Name != "Soup" || !existing.Vegetarian {
		t.Fatalf("identity changed by merge: %+v", existing)
	}
	if existing.NumberOfServings != 6 || existing.Instructions != "simmer" {
		t.Fatalf("mutable fields not merged: %+v", existing)
	}
	if len(existing.Ingredients) != 2 || existing.Ingredients[0].Name != "Beef" || existing.Ingredients[1].Name != "Carrot" {
		t.Fatalf("ingredients not merged: %+v", existing.Ingredients)
	}
}

func TestMerge_SelfIsNoOp(t *testing.T) {
	r := Recipe{
		ID: 3, Name: "Salad", Vegetarian: true, NumberOfServings: 1,
		Ingredients:  []Ingredient{{ID: 5, Name: "Lettuce"}},
		Instructions: "toss",
	}
	before := r
	r.Merge(r)
	if r.NumberOfServings != before.NumberOfServings || r.Instructions != before.Instructions {
		t.Fatalf("merge(r, r) changed scalars: %+v", r)
	}
	if len(r.Ingredients) != 1 || r.Ingredients[0] != before.Ingredients[0] {
		t.Fatalf("merge(r, r) changed ingredients: %+v", r.Ingredients)
	}
}

func TestHasIngredient(t *testing.T) {
	r := Recipe{Ingredients: []Ingredient{{ID: 1, Name: "Salt"}, {ID: 2, Name: "Pepper"}}}
	if !r.HasIngredient(Ingredient{Name: "Salt"}) {
		t.Fatalf("expected Salt")
	}
	if r.HasIngredient(Ingredient{Name: "salt"}) {
		t.Fatalf("lowercase salt is a different ingredient")
	}
}

func TestNewRecipe_FieldByFieldAndIngredientSet(t *testing.T) {
	in := RecipeInput{
		Name:             "Omelette",
		Vegetarian:       true,
		NumberOfServings: 1,
		Ingredients:      []IngredientInput{{Name: "Egg"}, {Name: "Salt"}, {Name: "Egg"}},
		Instructions:     "whisk and fry",
	}
	r := NewRecipe(in)
	if r.ID != 0 || r.Name != "Omelette" || !r.Vegetarian || r.NumberOfServings != 1 || r.Instructions != "whisk and fry" {
		t.Fatalf("unexpected recipe: %+v", r)
	}
	names := IngredientNames(r.Ingredients)
	if len(names) != 2 || names[0] != "Egg" || names[1] != "Salt" {
		t.Fatalf("expected deduplicated [Egg Salt], got %v", names)
	}
	if NewIngredientSet(nil) != nil {
		t.Fatalf("nil input must stay nil (absent)")
	}
	if got := NewIngredientSet([]IngredientInput{}); got == nil || len(got) != 0 {
		t.Fatalf("empty input must stay present-but-empty, got %#v", got)
	}
}

func TestMigrations_UniqueIdentity_AndJoinCascade(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Ingredient{}, &Recipe{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasTable("recipe_ingredients") {
		t.Fatalf("expected join table recipe_ingredients")
	}
	if !m.HasIndex(&Recipe{}, "ux_recipe_name_vegetarian") {
		t.Fatalf("expected unique index ux_recipe_name_vegetarian")
	}
	if !m.HasIndex(&Ingredient{}, "ux_ingredient_name") {
		t.Fatalf("expected unique index ux_ingredient_name")
	}

	salt := Ingredient{Name: "Salt"}
	if err := db.Create(&salt).Error; err != nil {
		t.Fatalf("insert salt: %v", err)
	}
	if err := db.Create(&Ingredient{Name: "salt"}).Error; err != nil {
		t.Fatalf("lowercase salt is a distinct ingredient: %v", err)
	}
	if err := db.Create(&Ingredient{Name: "Salt"}).Error; err == nil {
		t.Fatalf("expected unique violation for duplicate ingredient name")
	}

	r := Recipe{Name: "Fries", Vegetarian: true, NumberOfServings: 2, Instructions: "fry", Ingredients: []Ingredient{salt}}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("insert recipe: %v", err)
	}
	dup := Recipe{Name: "Fries", Vegetarian: true, NumberOfServings: 4, Instructions: "bake"}
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected unique violation for duplicate recipe identity")
	}
	meat := Recipe{Name: "Fries", Vegetarian: false, NumberOfServings: 4, Instructions: "fry in lard"}
	if err := db.Create(&meat).Error; err != nil {
		t.Fatalf("same name with other vegetarian flag is a new recipe: %v", err)
	}

	var links int64
	if err := db.Table("recipe_ingredients").Where("recipe_id = ?", r.ID).Count(&links).Error; err != nil {
		t.Fatalf("count links: %v", err)
	}
	if links != 1 {
		t.Fatalf("expected one join row, got %d", links)
	}
}
