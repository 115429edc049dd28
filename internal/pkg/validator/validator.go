package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

// Allowed enum values for custom tags.
var (
	CancelReasons = []string{"changed_mind", "found_alternative", "condition_mismatch", "arrangement_issue", "personal_reason", "other"}
	RefundTypes   = []string{"full", "partial", "none"}
	ReportReasons = []string{"spam", "abuse", "scam", "other"}
)

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

func oneOf(values []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		for _, allowed := range values {
			if v == allowed {
				return true
			}
		}
		return false
	}
}

func registerCustomValidations() {
	validate.RegisterValidation("cancel_reason", oneOf(CancelReasons))
	validate.RegisterValidation("refund_type", oneOf(RefundTypes))
	validate.RegisterValidation("report_reason", oneOf(ReportReasons))
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

	fields := make(map[string]string)
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			fields[field] = "This field is required"
		case "min":
			fields[field] = "Value is too short (min: " + fe.Param() + ")"
		case "max":
			fields[field] = "Value is too long (max: " + fe.Param() + ")"
		case "gte":
			fields[field] = "Value must be at least " + fe.Param()
		case "lte":
			fields[field] = "Value must be at most " + fe.Param()
		case "uuid":
			fields[field] = "Invalid identifier"
		case "cancel_reason":
			fields[field] = "Invalid reason. Must be one of: " + strings.Join(CancelReasons, ", ")
		case "refund_type":
			fields[field] = "Invalid refund type. Must be: full, partial, or none"
		case "report_reason":
			fields[field] = "Invalid reason. Must be: spam, abuse, scam, or other"
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
