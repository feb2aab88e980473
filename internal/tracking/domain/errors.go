package domain

import (
	"fmt"

	"bus-tracker/internal/shared/apperrors"
)

var (
	ErrMissingVehicleID = fmt.Errorf("%w: vehicle id is required", apperrors.ErrValidation)
	ErrVehicleNotFound  = fmt.Errorf("%w: vehicle has no location record", apperrors.ErrNotFound)
)
