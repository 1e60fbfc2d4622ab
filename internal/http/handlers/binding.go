package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	// Report JSON field names in validation errors instead of Go names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// bindMessage turns a binding error into a client-safe message. Validation
// failures name the first offending field and rule; decoding errors are
// reported generically.
func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		// Namespace is "RecipeRequest.ingredients[0].name"; drop the type.
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			return fmt.Sprintf("invalid request body: %s failed %s=%s", field, fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("invalid request body: %s failed %s", field, fe.Tag())
	}
	return "invalid request body"
}

// failBind answers a failed ShouldBindJSON: 413 when the body exceeded the
// router's size cap, 400 otherwise.
func failBind(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
		return
	}
	fail(c, http.StatusBadRequest, ErrCodeBadRequest, bindMessage(err))
}
