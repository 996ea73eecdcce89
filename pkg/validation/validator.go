// Package validation validates and sanitizes API input
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Aidin1998/pincex_mockfeed/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

var (
	symbolRegex   = regexp.MustCompile(`^[A-Z0-9][A-Z0-9._-]{0,31}$`)
	exchangeRegex = regexp.MustCompile(`^[A-Z]{2,16}$`)
)

var triggers = map[string]bool{
	"MANUAL":    true,
	"STARTUP":   true,
	"SHUTDOWN":  true,
	"SCHEDULER": true,
}

// Validator wraps validator/v10 with the mock feed's custom rules and a
// strict HTML sanitizer for free text
type Validator struct {
	validator *validator.Validate
	logger    *zap.Logger
	sanitizer *bluemonday.Policy
}

// NewValidator creates a validator with the custom tags registered:
// feed_trigger, symbol and exchange_code
func NewValidator(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Validator{
		validator: validator.New(),
		logger:    logger.Named("validation"),
		sanitizer: bluemonday.StrictPolicy(),
	}
	v.registerCustomValidators()
	return v
}

// ValidateStruct validates s and converts failures into RFC 7807 field errors
func (v *Validator) ValidateStruct(s interface{}) ([]errors.ValidationError, error) {
	err := v.validator.Struct(s)
	if err == nil {
		return nil, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil, err
	}

	out := make([]errors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, errors.ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Value:   fe.Value(),
			Message: v.getErrorMessage(fe),
			Code:    fe.Tag(),
		})
	}
	v.logger.Debug("Request validation failed", zap.Int("errors", len(out)))
	return out, fmt.Errorf("validation failed: %s", out[0].Message)
}

// SanitizeText strips markup and control characters from free text
func (v *Validator) SanitizeText(input string) string {
	clean := v.sanitizer.Sanitize(input)
	clean = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, clean)
	return strings.TrimSpace(clean)
}

// NormalizeSymbol upper-cases and trims a symbol, returning false when it
// is not a valid instrument symbol
func NormalizeSymbol(symbol string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return s, symbolRegex.MatchString(s)
}

func (v *Validator) registerCustomValidators() {
	v.validator.RegisterValidation("feed_trigger", func(fl validator.FieldLevel) bool {
		return triggers[strings.ToUpper(strings.TrimSpace(fl.Field().String()))]
	})

	v.validator.RegisterValidation("symbol", func(fl validator.FieldLevel) bool {
		_, ok := NormalizeSymbol(fl.Field().String())
		return ok
	})

	v.validator.RegisterValidation("exchange_code", func(fl validator.FieldLevel) bool {
		return exchangeRegex.MatchString(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
	})
}

// getErrorMessage returns a human-readable error message for validation errors
func (v *Validator) getErrorMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
	case "feed_trigger":
		return fmt.Sprintf("%s must be one of MANUAL, STARTUP, SHUTDOWN or SCHEDULER", field)
	case "symbol":
		return fmt.Sprintf("%s must be a valid instrument symbol", field)
	case "exchange_code":
		return fmt.Sprintf("%s must be a valid exchange code", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
