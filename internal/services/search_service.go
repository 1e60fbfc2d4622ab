// Package services – SearchService
//
// This file implements the multi-criteria recipe search. A search is
// validated, its structured criteria are pushed down to the store as one
// scope, and the ingredient inclusion/exclusion lists are applied in memory
// over the candidates:
//
//	Validate → BuildPredicates → FindRecipes → FilterByIngredients → CheckEmpty
//
// Invalid criteria yield ErrInvalidCriteria; an empty result yields
// ErrRecipeNotFound; storage errors propagate unchanged.
package services

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/observability"
	"github.com/tbourn/go-recipe-backend/internal/repo"
	"github.com/tbourn/go-recipe-backend/internal/search"
)

// SearchService runs recipe searches against the database.
type SearchService struct {
	DB *gorm.DB
}

// Search returns the recipes matching every criterion in c, ordered by id.
func (s *SearchService) Search(ctx context.Context, c domain.RecipeSearchCriteria) ([]domain.Recipe, error) {
	tr := observability.Tracer("services/SearchService")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.Bool("criteria.vegetarian", c.Vegetarian != nil),
			attribute.Bool("criteria.servings", c.NumberOfServings != nil),
			attribute.Bool("criteria.text", c.TextInInstructions != nil),
			attribute.Int("criteria.included", len(c.IncludedIngredients)),
			attribute.Int("criteria.excluded", len(c.ExcludedIngredients)),
		),
	)
	defer span.End()

	if err := c.Validate(); err != nil {
		searchTotal.WithLabelValues(outcomeInvalid).Inc()
		return nil, invalidCriteria(err)
	}

	pred := search.Combine(search.BuildPredicates(c))
	candidates, err := repo.FindRecipes(ctx, s.DB, pred.Scope())
	if err != nil {
		searchTotal.WithLabelValues(outcomeError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	searchCandidates.Observe(float64(len(candidates)))

	matches := search.FilterByIngredients(candidates, c.IncludedIngredients, c.ExcludedIngredients)
	span.SetAttributes(
		attribute.Int("search.candidates", len(candidates)),
		attribute.Int("search.matches", len(matches)),
	)
	log.Ctx(ctx).Debug().
		Int("candidates", len(candidates)).
		Int("matches", len(matches)).
		Msg("recipe search")

	if len(matches) == 0 {
		searchTotal.WithLabelValues(outcomeNotFound).Inc()
		return nil, ErrRecipeNotFound
	}
	searchMatches.Observe(float64(len(matches)))
	searchTotal.WithLabelValues(outcomeOK).Inc()
	return matches, nil
}
