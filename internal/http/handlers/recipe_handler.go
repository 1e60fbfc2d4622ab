// Package handlers implements the recipe API endpoints on top of the
// services package. Every failure is answered with an ErrorResponse.
//
// Endpoints (relative to the API base path):
//   - POST   /recipes        (create, Location header, Idempotency-Key support)
//   - GET    /recipes        (list all, weak ETag support)
//   - GET    /recipes/{id}   (fetch one)
//   - PUT    /recipes/{id}   (update, or create when the id is unknown)
//   - DELETE /recipes/{id}   (delete, returns the deleted recipe)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
//
// Idempotency:
// If the client supplies an Idempotency-Key header on POST /recipes and a
// previous successful result exists for (user, route, key), the handler returns
// that recipe and sets `Idempotency-Replayed: true`.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/http/middleware"
	"github.com/tbourn/go-recipe-backend/internal/repo"
	"github.com/tbourn/go-recipe-backend/internal/services"
	"github.com/tbourn/go-recipe-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// RecipeService defines recipe lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type RecipeService interface {
	Create(ctx context.Context, in domain.RecipeInput) (*domain.Recipe, error)
	GetAll(ctx context.Context) ([]domain.Recipe, error)
	GetByID(ctx context.Context, id uint) (*domain.Recipe, error)
	Update(ctx context.Context, id uint, in domain.RecipeInput) (*domain.Recipe, error)
	Delete(ctx context.Context, id uint) (*domain.Recipe, error)
}

// SearchService runs multi-criteria recipe searches.
type SearchService interface {
	Search(ctx context.Context, c domain.RecipeSearchCriteria) ([]domain.Recipe, error)
}

//
// Handler wiring
//

// DefaultIdempotencyTTL is how long an Idempotency-Key stays replayable.
const DefaultIdempotencyTTL = 24 * time.Hour

// HeaderIdempotencyReplayed marks a response served from an earlier request.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

// Handlers groups HTTP endpoints for recipes and recipe search.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	recipeSvc RecipeService
	searchSvc SearchService

	// IdempotencyTTL bounds replays of POST /recipes.
	IdempotencyTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(recipeSvc RecipeService, searchSvc SearchService) *Handlers {
	return &Handlers{recipeSvc: recipeSvc, searchSvc: searchSvc, IdempotencyTTL: DefaultIdempotencyTTL}
}

// db returns the database behind the concrete recipe service, if any. It is
// used for best-effort features (ETag, idempotency) that bypass the service.
func (h *Handlers) db() *gorm.DB {
	if svc, ok := h.recipeSvc.(*services.RecipeService); ok {
		return svc.DB
	}
	return nil
}

// userID extracts the caller identity used to scope idempotency keys.
// See middleware.UserID.
func userID(c *gin.Context) string { return middleware.UserID(c) }

// recipeID parses the :id path parameter, writing a 400 on failure.
func recipeID(c *gin.Context) (uint, bool) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "recipe "+err.Error())
		return 0, false
	}
	return id, true
}

// location builds the canonical URL of a recipe from the collection route.
func location(c *gin.Context, id uint) string {
	base := c.FullPath()
	if base == "" {
		base = c.Request.URL.Path
	}
	return path.Join(base, utils.FormatID(id))
}

//
// Handlers
//

// CreateRecipe godoc
// @ID          createRecipe
// @Summary     Create a recipe
// @Description Stores a new recipe. Ingredients are matched to stored ingredients by exact name; unknown names are created.
// @Tags        Recipes
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Makes retries safe; replays return the first result"  example(3c1b2f0e-create-1)
// @Param       body             body    handlers.RecipeRequest  true  "Recipe payload"
//
// @Success     201  {object}  handlers.RecipeResponse
// @Header      201  {string}  Location              "URL of the created recipe"
// @Header      201  {string}  Idempotency-Replayed  "true when served from an earlier request"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     422  {object}  handlers.ErrorResponse  "Requested changes violate recipe data"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /recipes [post]
func (h *Handlers) CreateRecipe(c *gin.Context) {
	ctx := c.Request.Context()

	var req RecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err)
		return
	}

	idemKey, hasKey := middleware.GetIdempotencyKey(c)
	key := repo.IdemKey{UserID: userID(c), Scope: middleware.IdempotencyScope(c), Key: idemKey}
	db := h.db()

	// Idempotency (replay path). A recipe deleted since the first request is
	// created again below.
	if hasKey && db != nil {
		if rec, err := repo.GetIdempotency(ctx, db, key, time.Now().UTC()); err == nil {
			if prev, err := h.recipeSvc.GetByID(ctx, rec.RecipeID); err == nil {
				c.Header(HeaderIdempotencyReplayed, "true")
				c.Header("Location", location(c, prev.ID))
				ok(c, rec.Status, toRecipeResponse(prev))
				return
			}
		}
	}

	r, err := h.recipeSvc.Create(ctx, toRecipeInput(req))
	if err != nil {
		failService(c, err, ErrCodeBadRequest)
		return
	}

	// Idempotency (store path), best effort.
	if hasKey && db != nil {
		ttl := h.IdempotencyTTL
		if ttl <= 0 {
			ttl = DefaultIdempotencyTTL
		}
		if _, err := repo.SaveIdempotency(ctx, db, key, r.ID, http.StatusCreated, time.Now().UTC(), ttl); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
		}
	}

	c.Header("Location", location(c, r.ID))
	ok(c, http.StatusCreated, toRecipeResponse(r))
}

// ListRecipes godoc
// @ID          listRecipes
// @Summary     List all recipes
// @Description Returns every stored recipe. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Recipes
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"recipes:3:1735689600000000000\")
//
// @Success     200  {array}  handlers.RecipeResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     404  {object} handlers.ErrorResponse "No recipe found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /recipes [get]
func (h *Handlers) ListRecipes(c *gin.Context) {
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	if db := h.db(); db != nil {
		if snap, err := repo.RecipeSnapshot(ctx, db); err == nil && !snap.Empty() {
			etag := snap.ETag()
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && etagMatch(inm, etag) {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, err := h.recipeSvc.GetAll(ctx)
	if err != nil {
		failService(c, err, ErrCodeBadRequest)
		return
	}
	ok(c, http.StatusOK, toRecipeResponses(items))
}

// GetRecipe godoc
// @ID          getRecipe
// @Summary     Get a recipe
// @Tags        Recipes
// @Produce     json
//
// @Param       id  path  int  true  "Recipe ID"  minimum(1)
//
// @Success     200  {object} handlers.RecipeResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Recipe not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /recipes/{id} [get]
func (h *Handlers) GetRecipe(c *gin.Context) {
	id, valid := recipeID(c)
	if !valid {
		return
	}
	r, err := h.recipeSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		failService(c, err, ErrCodeBadRequest)
		return
	}
	ok(c, http.StatusOK, toRecipeResponse(r))
}

// UpdateRecipe godoc
// @ID          updateRecipe
// @Summary     Update a recipe
// @Description Replaces servings, ingredients and instructions of an existing recipe; its name and vegetarian flag never change. When no recipe has this id, the payload is stored as a new recipe with a server-assigned id.
// @Tags        Recipes
// @Accept      json
// @Produce     json
//
// @Param       id    path  int                     true  "Recipe ID"  minimum(1)
// @Param       body  body  handlers.RecipeRequest  true  "Recipe payload"
//
// @Success     200  {object} handlers.RecipeResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     422  {object} handlers.ErrorResponse "Requested changes violate recipe data"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /recipes/{id} [put]
func (h *Handlers) UpdateRecipe(c *gin.Context) {
	id, valid := recipeID(c)
	if !valid {
		return
	}
	var req RecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err)
		return
	}

	r, err := h.recipeSvc.Update(c.Request.Context(), id, toRecipeInput(req))
	if err != nil {
		failService(c, err, ErrCodeBadRequest)
		return
	}
	ok(c, http.StatusOK, toRecipeResponse(r))
}

// DeleteRecipe godoc
// @ID          deleteRecipe
// @Summary     Delete a recipe
// @Description Deletes the recipe and returns it as it was before deletion. Shared ingredients are kept.
// @Tags        Recipes
// @Produce     json
//
// @Param       id  path  int  true  "Recipe ID"  minimum(1)
//
// @Success     200  {object} handlers.RecipeResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Recipe not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /recipes/{id} [delete]
func (h *Handlers) DeleteRecipe(c *gin.Context) {
	id, valid := recipeID(c)
	if !valid {
		return
	}
	r, err := h.recipeSvc.Delete(c.Request.Context(), id)
	if err != nil {
		failService(c, err, ErrCodeBadRequest)
		return
	}
	ok(c, http.StatusOK, toRecipeResponse(r))
}

// etagMatch implements the weak comparison used by If-None-Match, including
// lists of tags and "*".
func etagMatch(header, etag string) bool {
	for _, cand := range strings.Split(header, ",") {
		cand = strings.TrimSpace(cand)
		if cand == "*" || cand == etag || "W/"+cand == etag {
			return true
		}
	}
	return false
}
