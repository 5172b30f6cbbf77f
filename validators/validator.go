package validators

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// CustomValidator adapts go-playground/validator to echo.Validator
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator builds the validator shared by echo and the authoring workflow.
// Field names in errors come from json tags.
func NewValidator() *CustomValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate implements echo.Validator
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, Messages(err))
	}
	return nil
}

// Engine exposes the underlying validator
func (cv *CustomValidator) Engine() *validator.Validate {
	return cv.validator
}

// Messages flattens validation errors into field -> message pairs
func Messages(err error) map[string]string {
	out := map[string]string{}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["error"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = fe.Field() + " is required"
		case "max":
			out[fe.Field()] = fe.Field() + " must be at most " + fe.Param() + " characters"
		case "min":
			out[fe.Field()] = fe.Field() + " must be at least " + fe.Param() + " characters"
		case "oneof":
			out[fe.Field()] = fe.Field() + " must be one of: " + fe.Param()
		default:
			out[fe.Field()] = fe.Field() + " is invalid"
		}
	}
	return out
}
