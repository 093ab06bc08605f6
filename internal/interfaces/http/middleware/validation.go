package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/cardshellz/echelon/internal/domain/inbound"
	"github.com/cardshellz/echelon/internal/domain/trade"
	"github.com/cardshellz/echelon/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// enumValidators backs the binding tags used on request bodies
var enumValidators = map[string]func(string) bool{
	"incoterm": func(s string) bool {
		_, err := trade.ParseIncoterm(s)
		return err == nil
	},
	"shipment_mode":     func(s string) bool { return inbound.ShipmentMode(s).IsValid() },
	"cost_type":         func(s string) bool { return inbound.CostType(s).IsValid() },
	"cost_status":       func(s string) bool { return inbound.CostStatus(s).IsValid() },
	"allocation_method": func(s string) bool { return inbound.AllocationMethod(s).IsValid() },
}

// SetupValidator reports JSON field names in errors and registers the enum tags.
// Call once before serving.
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding validator is not go-playground/validator")
	}
	return RegisterValidators(v)
}

// RegisterValidators installs the tag name func and enum tags on v
func RegisterValidators(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	for tag, valid := range enumValidators {
		valid := valid
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return valid(fl.Field().String())
		}); err != nil {
			return err
		}
	}
	return nil
}

// FormatValidationErrors converts binding errors into field details. Errors
// that are not field validations (malformed JSON) yield no details.
func FormatValidationErrors(err error) []dto.ValidationDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make([]dto.ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, dto.ValidationDetail{
			Field:   e.Field(),
			Message: validationMessage(e),
		})
	}
	return details
}

// HandleValidationError writes a 400 validation envelope
func HandleValidationError(c *gin.Context, err error) {
	details := FormatValidationErrors(err)
	message := "Request validation failed"
	if details == nil {
		message = err.Error()
	}
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(message, GetRequestID(c), details))
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Type().Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Type().Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "incoterm":
		return "Must be a supported incoterm"
	case "shipment_mode":
		return "Must be a valid shipment mode"
	case "cost_type":
		return "Must be a valid cost type"
	case "cost_status":
		return "Must be a valid cost status"
	case "allocation_method":
		return "Must be a valid allocation method"
	default:
		return "Invalid value"
	}
}
