package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cargolink/escrow-api/internal/pkg/money"
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
	// Positive decimal string with at most two fractional digits.
	validate.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := money.ParseAmount(fl.Field().String())
		return err == nil
	})

	validate.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		raw := fl.Field().String()
		if raw == "" {
			return true
		}
		_, err := money.ParseCurrency(raw)
		return err == nil
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			fields[field] = "This field is required"
		case "max":
			fields[field] = "Value is too long (max: " + fe.Param() + ")"
		case "len":
			fields[field] = "Value must be exactly " + fe.Param() + " characters"
		case "numeric":
			fields[field] = "Value must contain digits only"
		case "uuid":
			fields[field] = "Invalid identifier"
		case "amount":
			fields[field] = "Amount must be a positive decimal with at most 2 fractional digits"
		case "currency":
			fields[field] = "Unsupported currency. Must be: KZT, USD or EUR"
		case "gt":
			fields[field] = "Value must be greater than " + fe.Param()
		default:
			fields[field] = "Invalid value"
		}
	}

	return fields
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
