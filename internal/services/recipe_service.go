// Package services – RecipeService
//
// This file implements RecipeService, which owns the lifecycle of recipes:
// create, list, fetch, update and delete. Every write runs inside a single
// database transaction that also resolves ingredient names to stored
// ingredients, so a recipe never links to a duplicate ingredient row.
//
// Integrity violations raised by the store (unique recipe identity, unique
// ingredient name, foreign keys) are reported as ErrCreationFailed or
// ErrUpdateFailed; everything else propagates unchanged.
//
// Observability: public methods are OpenTelemetry-instrumented and log
// lifecycle events through the request-scoped logger found in ctx.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/observability"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

// RecipeRepo defines the repository contract required by RecipeService.
type RecipeRepo interface {
	// ListRecipes returns every recipe with ingredients loaded.
	ListRecipes(ctx context.Context, db *gorm.DB) ([]domain.Recipe, error)

	// FindRecipeByID returns one recipe or gorm.ErrRecordNotFound.
	FindRecipeByID(ctx context.Context, db *gorm.DB, id uint) (*domain.Recipe, error)

	// FindIngredientByName returns the stored ingredient with exactly this name.
	FindIngredientByName(ctx context.Context, db *gorm.DB, name string) (*domain.Ingredient, error)

	// SaveRecipe inserts or updates a recipe together with its ingredient links.
	SaveRecipe(ctx context.Context, db *gorm.DB, r *domain.Recipe) error

	// DeleteRecipe removes a recipe and its ingredient links.
	DeleteRecipe(ctx context.Context, db *gorm.DB, id uint) error
}

// RecipeService provides recipe CRUD on top of a RecipeRepo.
type RecipeService struct {
	// DB is the GORM handle used for persistence and transactions.
	DB *gorm.DB
	// Repo is the recipe repository used by this service.
	Repo RecipeRepo
}

// NewRecipeService constructs a RecipeService.
func NewRecipeService(db *gorm.DB, r RecipeRepo) *RecipeService {
	return &RecipeService{DB: db, Repo: r}
}

var recipeTracer = observability.Tracer("services/RecipeService")

// Create stores a new recipe built from in. Ingredient names that already
// exist are linked to the stored rows; unknown names are created.
func (s *RecipeService) Create(ctx context.Context, in domain.RecipeInput) (*domain.Recipe, error) {
	ctx, span := recipeTracer.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("recipe.name", in.Name)))
	defer span.End()

	if err := validateInput(in); err != nil {
		return nil, err
	}

	var out *domain.Recipe
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := domain.NewRecipe(in)
		ings, err := s.resolveIngredients(ctx, tx, in.Ingredients)
		if err != nil {
			return err
		}
		r.Ingredients = ings
		if err := s.Repo.SaveRecipe(ctx, tx, &r); err != nil {
			return err
		}
		out = &r
		return nil
	})
	if err != nil {
		if repo.IsIntegrityViolation(err) {
			err = creationFailed(err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int64("recipe.id", int64(out.ID)))
	log.Ctx(ctx).Info().Uint("recipe_id", out.ID).Str("name", out.Name).Msg("recipe created")
	return out, nil
}

// GetAll returns every stored recipe. An empty store yields ErrRecipeNotFound.
func (s *RecipeService) GetAll(ctx context.Context) ([]domain.Recipe, error) {
	ctx, span := recipeTracer.Start(ctx, "GetAll")
	defer span.End()

	items, err := s.Repo.ListRecipes(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrRecipeNotFound
	}
	span.SetAttributes(attribute.Int("recipes.count", len(items)))
	log.Ctx(ctx).Debug().Int("count", len(items)).Msg("recipes fetched")
	return items, nil
}

// GetByID returns the recipe with the given id.
func (s *RecipeService) GetByID(ctx context.Context, id uint) (*domain.Recipe, error) {
	ctx, span := recipeTracer.Start(ctx, "GetByID",
		trace.WithAttributes(attribute.Int64("recipe.id", int64(id))))
	defer span.End()

	r, err := s.Repo.FindRecipeByID(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, recipeNotFound(id)
	}
	return r, err
}

// Update applies in to the recipe with the given id.
//
// When the recipe exists, only servings, ingredients and instructions are
// replaced; its name and vegetarian flag are kept even if in carries other
// values. When it does not exist, in is stored as a new recipe with a fresh
// id, which may differ from the requested one.
func (s *RecipeService) Update(ctx context.Context, id uint, in domain.RecipeInput) (*domain.Recipe, error) {
	ctx, span := recipeTracer.Start(ctx, "Update",
		trace.WithAttributes(attribute.Int64("recipe.id", int64(id))))
	defer span.End()

	if err := validateInput(in); err != nil {
		return nil, err
	}

	var (
		out     *domain.Recipe
		created bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := s.Repo.FindRecipeByID(ctx, tx, id)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			fresh := domain.NewRecipe(in)
			target, created = &fresh, true
		case err != nil:
			return err
		}

		incoming := domain.NewRecipe(in)
		ings, err := s.resolveIngredients(ctx, tx, in.Ingredients)
		if err != nil {
			return err
		}
		incoming.Ingredients = ings
		target.Merge(incoming)

		if err := s.Repo.SaveRecipe(ctx, tx, target); err != nil {
			return err
		}
		out = target
		return nil
	})
	if err != nil {
		if repo.IsIntegrityViolation(err) {
			err = updateFailed(err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Bool("recipe.created", created))
	log.Ctx(ctx).Info().
		Uint("recipe_id", out.ID).
		Uint("requested_id", id).
		Bool("created", created).
		Msg("recipe updated")
	return out, nil
}

// Delete removes the recipe with the given id and returns it as it was
// before deletion.
func (s *RecipeService) Delete(ctx context.Context, id uint) (*domain.Recipe, error) {
	ctx, span := recipeTracer.Start(ctx, "Delete",
		trace.WithAttributes(attribute.Int64("recipe.id", int64(id))))
	defer span.End()

	var snapshot *domain.Recipe
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.Repo.FindRecipeByID(ctx, tx, id)
		if err != nil {
			return err
		}
		snapshot = r
		return s.Repo.DeleteRecipe(ctx, tx, id)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, recipeNotFound(id)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	log.Ctx(ctx).Info().Uint("recipe_id", id).Str("name", snapshot.Name).Msg("recipe deleted")
	return snapshot, nil
}

// resolveIngredients maps each distinct input name to the stored ingredient
// with that name, or to a new unsaved ingredient when none exists. It must run
// on the caller's transaction so lookups and inserts see the same snapshot.
func (s *RecipeService) resolveIngredients(ctx context.Context, tx *gorm.DB, in []domain.IngredientInput) ([]domain.Ingredient, error) {
	set := domain.NewIngredientSet(in)
	out := make([]domain.Ingredient, 0, len(set))
	for _, ing := range set {
		stored, err := s.Repo.FindIngredientByName(ctx, tx, ing.Name)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			out = append(out, ing)
		case err != nil:
			return nil, err
		default:
			out = append(out, *stored)
		}
	}
	return out, nil
}

// validateInput mirrors the HTTP binding rules for callers that bypass it.
func validateInput(in domain.RecipeInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return invalidRecipe("name must not be blank")
	case utf8.RuneCountInString(in.Name) > domain.MaxNameLen:
		return invalidRecipe(fmt.Sprintf("name must be at most %d characters", domain.MaxNameLen))
	case in.NumberOfServings < 1:
		return invalidRecipe("number_of_servings must be at least 1")
	case len(in.Ingredients) == 0:
		return invalidRecipe("ingredients must not be empty")
	case strings.TrimSpace(in.Instructions) == "":
		return invalidRecipe("instructions must not be blank")
	case utf8.RuneCountInString(in.Instructions) > domain.MaxInstructionsLen:
		return invalidRecipe(fmt.Sprintf("instructions must be at most %d characters", domain.MaxInstructionsLen))
	}
	for _, ing := range in.Ingredients {
		if strings.TrimSpace(ing.Name) == "" {
			return invalidRecipe("ingredient name must not be blank")
		}
		if utf8.RuneCountInString(ing.Name) > domain.MaxNameLen {
			return invalidRecipe(fmt.Sprintf("ingredient name must be at most %d characters", domain.MaxNameLen))
		}
	}
	return nil
}
