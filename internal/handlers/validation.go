package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/accountd/pkg/errors"
	"github.com/charlesng35/accountd/pkg/response"
	"github.com/charlesng35/accountd/pkg/validator"
)

// bindAndValidate decodes the JSON body into dest and checks its validate tags. On failure
// it writes a VALIDATION_ERROR envelope and reports false; the handler just returns.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewValidation("Request body must be a JSON object").WithInternal(err))
		return false
	}
	if err := validator.Validate(dest); err != nil {
		response.Error(c, validationError(err))
		return false
	}
	return true
}

// ruleErrors replaces the generic VALIDATION_ERROR for rules whose failure has its own kind.
var ruleErrors = map[string]*appErrors.AppError{
	"bvn": appErrors.ErrInvalidBVN,
}

func validationError(err error) *appErrors.AppError {
	var fe validator.FieldErrors
	if errors.As(err, &fe) {
		for _, f := range fe {
			if ruleErr, ok := ruleErrors[f.Tag]; ok {
				return ruleErr
			}
		}
	}
	return appErrors.NewValidation(validationMessage(err))
}

func validationMessage(err error) string {
	var fe validator.FieldErrors
	if errors.As(err, &fe) && len(fe) > 0 {
		return strings.Join(fe.Messages(), ", ")
	}
	return "Invalid request"
}
