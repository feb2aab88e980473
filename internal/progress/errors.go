package progress

import (
	"fmt"

	"bus-tracker/internal/shared/apperrors"
)

var ErrInvalidStops = fmt.Errorf("%w: invalid stop list", apperrors.ErrValidation)
