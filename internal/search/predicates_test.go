package search

import (
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

func newSearchDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Ingredient{}, &domain.Recipe{}))

	seed := []domain.Recipe{
		{Name: "Veg A", Vegetarian: true, NumberOfServings: 2, Instructions: "do step A then rest"},
		{Name: "Veg B", Vegetarian: true, NumberOfServings: 4, Instructions: "do step B"},
		{Name: "Meat A", Vegetarian: false, NumberOfServings: 2, Instructions: "step A, 100% heat"},
		{Name: "Meat B", Vegetarian: false, NumberOfServings: 4, Instructions: "Step a_b"},
	}
	for i := range seed {
		require.NoError(t, db.Create(&seed[i]).Error)
	}
	return db
}

func run(t *testing.T, db *gorm.DB, c domain.RecipeSearchCriteria) []string {
	t.Helper()
	var out []domain.Recipe
	require.NoError(t, db.Scopes(Combine(BuildPredicates(c)).Scope()).Order("id").Find(&out).Error)
	return recipeNames(out)
}

func fields(preds []Predicate) []string {
	out := make([]string, 0, len(preds))
	for _, p := range preds {
		out = append(out, p.Field)
	}
	return out
}

func TestBuildPredicates_OrderAndPresence(t *testing.T) {
	assert.Empty(t, BuildPredicates(domain.RecipeSearchCriteria{}))

	all := BuildPredicates(domain.RecipeSearchCriteria{
		TextInInstructions:  strPtr("oven"),
		NumberOfServings:    intPtr(2),
		Vegetarian:          boolPtr(false),
		IncludedIngredients: ings("Salt"),
	})
	assert.Equal(t, []string{FieldVegetarian, FieldNumberOfServings, FieldInstructions}, fields(all))

	assert.Equal(t, []string{FieldNumberOfServings},
		fields(BuildPredicates(domain.RecipeSearchCriteria{NumberOfServings: intPtr(1)})))
}

func TestBuildPredicates_BlankTextIsSkipped(t *testing.T) {
	for _, s := range []string{"", " ", "\t\n"} {
		preds := BuildPredicates(domain.RecipeSearchCriteria{TextInInstructions: strPtr(s)})
		assert.Empty(t, preds, "text %q", s)
	}
}

func TestCombine_Empty_MatchesEverything(t *testing.T) {
	db := newSearchDB(t)
	assert.Equal(t, []string{"Veg A", "Veg B", "Meat A", "Meat B"}, run(t, db, domain.RecipeSearchCriteria{}))
	assert.Equal(t, []string{"Veg A"}, run(t, db.Scopes(Always().Scope()).Where("name = ?", "Veg A"), domain.RecipeSearchCriteria{}))
}

func TestCombine_AgainstSQLite(t *testing.T) {
	db := newSearchDB(t)

	cases := []struct {
		name string
		c    domain.RecipeSearchCriteria
		want []string
	}{
		{"vegetarian true", domain.RecipeSearchCriteria{Vegetarian: boolPtr(true)}, []string{"Veg A", "Veg B"}},
		{"vegetarian false", domain.RecipeSearchCriteria{Vegetarian: boolPtr(false)}, []string{"Meat A", "Meat B"}},
		{"servings", domain.RecipeSearchCriteria{NumberOfServings: intPtr(4)}, []string{"Veg B", "Meat B"}},
		{"text is case-sensitive", domain.RecipeSearchCriteria{TextInInstructions: strPtr("step A")}, []string{"Veg A", "Meat A"}},
		{"vegetarian and text", domain.RecipeSearchCriteria{
			Vegetarian:         boolPtr(true),
			TextInInstructions: strPtr("step A"),
		}, []string{"Veg A"}},
		{"percent is literal", domain.RecipeSearchCriteria{TextInInstructions: strPtr("100%")}, []string{"Meat A"}},
		{"underscore is literal", domain.RecipeSearchCriteria{TextInInstructions: strPtr("a_b")}, []string{"Meat B"}},
		{"wildcard-only text matches nothing literal", domain.RecipeSearchCriteria{TextInInstructions: strPtr("%")}, []string{"Meat A"}},
		{"no match", domain.RecipeSearchCriteria{NumberOfServings: intPtr(3)}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, run(t, db, tc.c))
		})
	}
}

func TestContainsExpr_Dialects(t *testing.T) {
	db := newSearchDB(t)
	assert.Contains(t, containsExpr(db), "instr(")
	assert.Contains(t, containsExpr(nil), "instr(")

	stmt := db.Session(&gorm.Session{DryRun: true}).
		Scopes(Combine(BuildPredicates(domain.RecipeSearchCriteria{TextInInstructions: strPtr("x")})).Scope()).
		Find(&[]domain.Recipe{}).Statement
	assert.Contains(t, stmt.SQL.String(), "instr(instructions")
	assert.NotContains(t, stmt.SQL.String(), "LIKE")
}
