package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SearchRecipes godoc
// @ID          searchRecipes
// @Summary     Search recipes
// @Description Returns recipes matching every supplied criterion. At least one criterion is required. Ingredient filters match by exact name.
// @Tags        Search
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SearchRequest  true  "Search criteria"
//
// @Success     200  {array}  handlers.RecipeResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid search criteria"
// @Failure     404  {object} handlers.ErrorResponse "No recipe found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /recipes/search [post]
func (h *Handlers) SearchRecipes(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err)
		return
	}

	recipes, err := h.searchSvc.Search(c.Request.Context(), toCriteria(req))
	if err != nil {
		failService(c, err, ErrCodeInvalidCriteria)
		return
	}
	ok(c, http.StatusOK, toRecipeResponses(recipes))
}
