package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:recipesvc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	// One connection: writers serialize instead of failing with SQLITE_BUSY,
	// and the in-memory database lives as long as the pool.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repo.AutoMigrate(db))
	return db
}

// storeRepo proxies the repo package functions.
type storeRepo struct{}

func (storeRepo) ListRecipes(ctx context.Context, db *gorm.DB) ([]domain.Recipe, error) {
	return repo.ListRecipes(ctx, db)
}

func (storeRepo) FindRecipeByID(ctx context.Context, db *gorm.DB, id uint) (*domain.Recipe, error) {
	return repo.FindRecipeByID(ctx, db, id)
}

func (storeRepo) FindIngredientByName(ctx context.Context, db *gorm.DB, name string) (*domain.Ingredient, error) {
	return repo.FindIngredientByName(ctx, db, name)
}

func (storeRepo) SaveRecipe(ctx context.Context, db *gorm.DB, r *domain.Recipe) error {
	return repo.SaveRecipe(ctx, db, r)
}

func (storeRepo) DeleteRecipe(ctx context.Context, db *gorm.DB, id uint) error {
	return repo.DeleteRecipe(ctx, db, id)
}

// failingRepo returns err from every method.
type failingRepo struct{ err error }

func (f failingRepo) ListRecipes(context.Context, *gorm.DB) ([]domain.Recipe, error) {
	return nil, f.err
}

func (f failingRepo) FindRecipeByID(context.Context, *gorm.DB, uint) (*domain.Recipe, error) {
	return nil, f.err
}

func (f failingRepo) FindIngredientByName(context.Context, *gorm.DB, string) (*domain.Ingredient, error) {
	return nil, f.err
}

func (f failingRepo) SaveRecipe(context.Context, *gorm.DB, *domain.Recipe) error { return f.err }

func (f failingRepo) DeleteRecipe(context.Context, *gorm.DB, uint) error { return f.err }

func newRecipeSvc(t *testing.T) *RecipeService {
	t.Helper()
	return NewRecipeService(newSvcDB(t), storeRepo{})
}

func input(name string, veg bool, servings int, instructions string, ingredients ...string) domain.RecipeInput {
	in := domain.RecipeInput{
		Name:             name,
		Vegetarian:       veg,
		NumberOfServings: servings,
		Instructions:     instructions,
	}
	for _, n := range ingredients {
		in.Ingredients = append(in.Ingredients, domain.IngredientInput{Name: n})
	}
	return in
}

func ingredientCount(t *testing.T, db *gorm.DB, name string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&domain.Ingredient{}).Where("name = ?", name).Count(&n).Error)
	return n
}

func ingredientID(r *domain.Recipe, name string) uint {
	for _, ing := range r.Ingredients {
		if ing.Name == name {
			return ing.ID
		}
	}
	return 0
}

// ---------- Create ----------

func TestRecipeService_Create_PersistsRecipeAndIngredients(t *testing.T) {
	s := newRecipeSvc(t)
	ctx := context.Background()

	r, err := s.Create(ctx, input("Pancakes", true, 4, "mix and fry", "Flour", "Milk", "Flour"))
	require.NoError(t, err)
	assert.NotZero(t, r.ID)
	assert.Equal(t, "Pancakes", r.Name)
	assert.True(t, r.Vegetarian)
	assert.Len(t, r.Ingredients, 2, "duplicate names collapse to one ingredient")
	for _, ing := range r.Ingredients {
		assert.NotZero(t, ing.ID, "ingredient %q should be persisted", ing.Name)
	}

	got, err := s.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, r.Equal(*got))
	assert.ElementsMatch(t, []string{"Flour", "Milk"}, domain.IngredientNames(got.Ingredients))
}

func TestRecipeService_ResolverReusesStoredIngredients(t *testing.T) {
	s := newRecipeSvc(t)
	ctx := context.Background()

	r1, err := s.Create(ctx, input("Chips", true, 2, "fry", "Salt", "Potato"))
	require.NoError(t, err)
	r2, err := s.Create(ctx, input("Popcorn", true, 2, "pop", "Salt", "Corn"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), ingredientCount(t, s.DB, "Salt"))
	assert.Equal(t, ingredientID(r1, "Salt"), ingredientID(r2, "Salt"))

	// Resolving the same name twice yields the same stored identity.
	a, err := s.resolveIngredients(ctx, s.DB, []domain.IngredientInput{{Name: "Salt"}})
	require.NoError(t, err)
	b, err := s.resolveIngredients(ctx, s.DB, []domain.IngredientInput{{Name: "Salt"}})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, ingredientID(r1, "Salt"), a[0].ID)

	// Unknown and differently cased names are new, unsaved ingredients.
	c, err := s.resolveIngredients(ctx, s.DB, []domain.IngredientInput{{Name: "salt"}})
	require.NoError(t, err)
	assert.Equal(t, []domain.Ingredient{{Name: "salt"}}, c)
}

func TestRecipeService_Create_DuplicateIdentity_IsCreationFailure(t *testing.T) {
	s := newRecipeSvc(t)
	ctx := context.Background()

	_, err := s.Create(ctx, input("Curry", false, 2, "cook", "Chicken"))
	require.NoError(t, err)

	_, err = s.Create(ctx, input("Curry", false, 6, "cook longer", "Chicken", "Rice"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCreationFailed)
	assert.Equal(t, KindCreationFailed, KindOf(err))
	assert.Equal(t, "requested changes violate recipe data", err.Error())
	assert.True(t, repo.IsIntegrityViolation(errors.Unwrap(err)))

	// Rolled back: the new ingredient from the failed attempt is not stored.
	assert.Equal(t, int64(0), ingredientCount(t, s.DB, "Rice"))

	// Same name with the other vegetarian flag is a different recipe.
	_, err = s.Create(ctx, input("Curry", true, 2, "cook", "Chickpeas"))
	assert.NoError(t, err)
}

func TestRecipeService_Create_InvalidInput(t *testing.T) {
	s := newRecipeSvc(t)
	ctx := context.Background()

	cases := map[string]domain.RecipeInput{
		"blank name":         input("  ", true, 1, "x", "A"),
		"long name":          input(strings.Repeat("n", domain.MaxNameLen+1), true, 1, "x", "A"),
		"zero servings":      input("R", true, 0, "x", "A"),
		"no ingredients":     input("R", true, 1, "x"),
		"blank instructions": input("R", true, 1, " \n", "A"),
		"long instructions":  input("R", true, 1, strings.Repeat("i", domain.MaxInstructionsLen+1), "A"),
		"blank ingredient":   input("R", true, 1, "x", " "),
		"long ingredient":    input("R", true, 1, "x", strings.Repeat("g", domain.MaxNameLen+1)),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.Create(ctx, in)
			assert.Equal(t, KindValidation, KindOf(err), "err=%v", err)
		})
	}

	var n int64
	require.NoError(t, s.DB.Model(&domain.Recipe{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestRecipeService_ConcurrentCreate_SharesNewIngredient(t *testing.T) {
	s := newRecipeSvc(t)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
		out  = make([]*domain.Recipe, 2)
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i], errs[i] = s.Create(ctx, input(fmt.Sprintf("Paella %d", i), false, 4, "cook", "Saffron", fmt.Sprintf("Extra %d", i)))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrCreationFailed)
	}
	require.GreaterOrEqual(t, succeeded, 1)
	assert.Equal(t, int64(1), ingredientCount(t, s.DB, "Saffron"), "never two Saffron rows")

	if succeeded == 2 {
		assert.Equal(t, ingredientID(out[0], "Saffron"), ingredientID(out[1], "Saffron"))
	}
}

// ---------- Read ----------

func TestRecipeService_GetAll(t *testing.T) {
	s := newRecipeSvc(t)
	ctx := context.Background()

	_, err := s.GetAll(ctx)
	assert.ErrorIs(t, err, ErrRecipeNotFound)

	_, err = s.Create(ctx, input("A", true, 1, "a", "X"))
	require.NoError(t, err)
	_, err = s.Create(ctx, input("B", false, 2, "b", "X", "Y"))
	require.NoError(t, err)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].Name)
	assert.Equal(t, "B", all[1].Name)
}

func TestRecipeService_GetByID_NotFound(t *testing.T) {
	s := newRecipeSvc(t)
	_, err := s.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrRecipeNotFound)
	assert.Contains(t, err.Error(), "[404]")
}

func TestRecipeService_StorageErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	s := NewRecipeService(newSvcDB(t), failingRepo{err: boom})
	ctx := context.Background()

	_, err := s.GetAll(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, KindUnknown, KindOf(err))

	_, err = s.GetByID(ctx, 1)
	assert.ErrorIs(t, err, boom)

	_, err = s.Create(ctx, input("R", true, 1, "x", "A"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, KindUnknown, KindOf(err))

	_, err = s.Update(ctx, 1, input("R", true, 1, "x", "A"))
	assert.ErrorIs(t, err, boom)

	_, err = s.Delete(ctx, 1)
	assert.ErrorIs(t, err, boom)
}

// ---------- Update ----------

// Update never changes the identity of an existing recipe: a caller that
// sends a different name or vegetarian flag still gets the stored ones back.
func TestRecipeService_Update_PreservesIdentity(t *testing.T) {
	s := newRecipeSvc(t)
	ctx := context.Background()

	orig, err := s.Create(ctx, input("Soup", true, 2, "boil", "Water", "Leek"))
	require.NoError(t, err)

	upd, err := s.Update(ctx, orig.ID, input("Stew", false, 6, "simmer", "Water", "Beef"))
	require.NoError(t, err)
	assert.Equal(t, orig.ID, upd.ID)
	assert.Equal(t, "Soup", upd.Name)
	assert.True(t, upd.Vegetarian)
	assert.Equal(t, 6, upd.NumberOfServings)
	assert.Equal(t, "simmer", upd.Instructions)

	got, err := s.GetByID(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, "Soup", got.Name)
	assert.ElementsMatch(t, []string{"Water", "Beef"}, domain.IngredientNames(got.Ingredients))
	assert.Equal(t, ingredientID(orig, "Water"), ingredientID(got, "Water"), "existing ingredient is reused")
	assert.Equal(t, int64(1), ingredientCount(t, s.DB, "Leek"), "unlinked ingredient remains stored")
}

// Updating a missing id stores the input as a brand-new recipe; the id is
// assigned by the store and is not the one requested.
func TestRecipeService_Update_MissingIDCreates(t *testing.T) {
	s := newRecipeSvc(t)
	ctx := context.Background()

	r, err := s.Update(ctx, 999, input("Tart", true, 8, "bake", "Apple"))
	require.NoError(t, err)
	assert.NotZero(t, r.ID)
	assert.NotEqual(t, uint(999), r.ID)
	assert.Equal(t, "Tart", r.Name)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRecipeService_Update_MissingIDCollidingIdentity_IsUpdateFailure(t *testing.T) {
	s := newRecipeSvc(t)
	ctx := context.Background()

	_, err := s.Create(ctx, input("Tart", true, 8, "bake", "Apple"))
	require.NoError(t, err)

	_, err = s.Update(ctx, 999, input("Tart", true, 2, "bake small", "Apple"))
	assert.ErrorIs(t, err, ErrUpdateFailed)
	assert.Equal(t, KindUpdateFailed, KindOf(err))
}

func TestRecipeService_Update_InvalidInput(t *testing.T) {
	s := newRecipeSvc(t)
	_, err := s.Update(context.Background(), 1, input("R", true, 0, "x", "A"))
	assert.Equal(t, KindValidation, KindOf(err))
}

// ---------- Delete ----------

func TestRecipeService_Delete_ReturnsSnapshot(t *testing.T) {
	s := newRecipeSvc(t)
	ctx := context.Background()

	r, err := s.Create(ctx, input("Salad", true, 1, "toss", "Lettuce"))
	require.NoError(t, err)

	snap, err := s.Delete(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, snap.ID)
	assert.Equal(t, "Salad", snap.Name)
	assert.Equal(t, []string{"Lettuce"}, domain.IngredientNames(snap.Ingredients))

	_, err = s.GetByID(ctx, r.ID)
	assert.ErrorIs(t, err, ErrRecipeNotFound)
	assert.Equal(t, int64(1), ingredientCount(t, s.DB, "Lettuce"))

	_, err = s.Delete(ctx, r.ID)
	assert.ErrorIs(t, err, ErrRecipeNotFound)
}
