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
	// Mobile network validation
	validate.RegisterValidation("network", func(fl validator.FieldLevel) bool {
		network := strings.ToLower(fl.Field().String())
		validNetworks := []string{"mtn", "glo", "airtel", "9mobile"}
		for _, n := range validNetworks {
			if network == n {
				return true
			}
		}
		return false
	})

	// Electricity distributor validation
	validate.RegisterValidation("disco", func(fl validator.FieldLevel) bool {
		disco := fl.Field().String()
		validDiscos := []string{
			"ikeja-electric", "eko-electric", "phed", "jos-electric",
			"kaduna-electric", "kano-electric", "port-harcourt-electric",
		}
		for _, d := range validDiscos {
			if disco == d {
				return true
			}
		}
		return false
	})

	// TV service validation
	validate.RegisterValidation("tv_service", func(fl validator.FieldLevel) bool {
		service := strings.ToLower(fl.Field().String())
		validServices := []string{"dstv", "gotv", "startimes"}
		for _, s := range validServices {
			if service == s {
				return true
			}
		}
		return false
	})

	// Service category validation
	validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		category := fl.Field().String()
		validCategories := []string{"airtime", "data", "electricity", "tv"}
		for _, c := range validCategories {
			if category == c {
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
		case "numeric":
			errors[field] = "Value must be numeric"
		case "e164":
			errors[field] = "Invalid phone number format"
		case "network":
			errors[field] = "Invalid network. Must be: mtn, glo, airtel, or 9mobile"
		case "disco":
			errors[field] = "Invalid electricity distributor"
		case "tv_service":
			errors[field] = "Invalid TV service. Must be: dstv, gotv, or startimes"
		case "category":
			errors[field] = "Invalid category. Must be: airtime, data, electricity, or tv"
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
