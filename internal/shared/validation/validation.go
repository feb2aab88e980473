package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"bus-tracker/internal/shared/apperrors"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
	return validate
}

// Struct validates request DTOs by their `validate` tags. Failures wrap
// apperrors.ErrValidation and name the offending JSON field.
func Struct(v interface{}) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed on %q", apperrors.ErrValidation, lowerFirst(fe.Field()), fe.Tag())
	}
	return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
}

// ValidateCoordinates validates latitude and longitude values
func ValidateCoordinates(lat, lng float64) error {
	if !isFinite(lat) || !isFinite(lng) {
		return fmt.Errorf("%w: coordinates must be finite numbers", apperrors.ErrValidation)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude must be between -90 and 90", apperrors.ErrValidation)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude must be between -180 and 180", apperrors.ErrValidation)
	}
	return nil
}

// ValidateHeading validates heading in degrees
func ValidateHeading(heading float64) error {
	if !isFinite(heading) || heading < 0 || heading > 360 {
		return fmt.Errorf("%w: heading must be between 0 and 360 degrees", apperrors.ErrValidation)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
