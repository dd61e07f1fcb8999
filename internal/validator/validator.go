// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"pennywise/internal/models"
	"pennywise/internal/uuid"
)

// Register registers all custom validators with the Gin binding engine and
// reports fields by their JSON or query name.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(fieldName)
		_ = v.RegisterValidation("budget_type", validateBudgetType)
		_ = v.RegisterValidation("uuid_string", validateUUIDString)
	}
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func validateBudgetType(fl validator.FieldLevel) bool {
	return models.BudgetType(fl.Field().String()).Valid()
}

func validateUUIDString(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "" || uuid.IsValid(s)
}

// FieldErrors converts binding validation failures into a field-keyed message
// map. It returns nil when err is not a validation failure, e.g. malformed JSON.
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "required_without":
		return fmt.Sprintf("%s is required unless a category is given", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "budget_type":
		return fmt.Sprintf("%s must be Income or Expenses", fe.Field())
	case "uuid_string":
		return fmt.Sprintf("%s must be a UUID", fe.Field())
	case "unique":
		return fmt.Sprintf("%s must not contain duplicates", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
