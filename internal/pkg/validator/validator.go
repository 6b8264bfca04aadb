package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Limit period validation
	validate.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		period := fl.Field().String()
		validPeriods := []string{"daily", "weekly", "monthly"}
		for _, p := range validPeriods {
			if period == p {
				return true
			}
		}
		return false
	})

	// Category restriction validation
	validate.RegisterValidation("restriction", func(fl validator.FieldLevel) bool {
		restriction := fl.Field().String()
		validRestrictions := []string{"allowed", "requires_approval", "blocked"}
		for _, r := range validRestrictions {
			if restriction == r {
				return true
			}
		}
		return false
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gt":
			errors[field] = "Value must be greater than " + err.Param()
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "period":
			errors[field] = "Invalid period. Must be: daily, weekly, or monthly"
		case "restriction":
			errors[field] = "Invalid restriction. Must be: allowed, requires_approval, or blocked"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
