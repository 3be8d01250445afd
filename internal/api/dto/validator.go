package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/interaction-tracker/internal/domain"
	apperrors "github.com/spec-kit/interaction-tracker/pkg/util"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("interaction_status", func(fl validator.FieldLevel) bool {
		return domain.InteractionStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("interaction_category", func(fl validator.FieldLevel) bool {
		return domain.InteractionCategory(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("interaction_channel", func(fl validator.FieldLevel) bool {
		return domain.InteractionChannel(fl.Field().String()).Valid()
	})
	return v
}

// Validate checks struct tags and converts failures into a field error map.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		if _, seen := details[fe.Field()]; seen {
			continue
		}
		details[fe.Field()] = fieldMessage(fe)
	}
	return apperrors.NewValidationError("validation failed", details)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without", "notblank":
		return "this field is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "eqfield":
		return "passwords must match"
	case "interaction_status", "interaction_category", "interaction_channel":
		return "not a valid choice"
	case "gt":
		return "must be a positive id"
	default:
		return "invalid value"
	}
}
