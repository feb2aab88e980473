package domain

import (
	"fmt"

	"bus-tracker/internal/shared/apperrors"
)

var (
	ErrMissingVehicleID    = fmt.Errorf("%w: vehicleId is required", apperrors.ErrValidation)
	ErrMissingRecipientUID = fmt.Errorf("%w: recipientUid is required", apperrors.ErrValidation)
	ErrDirectoryLookup     = fmt.Errorf("%w: recipient directory lookup failed", apperrors.ErrUnavailable)
	ErrGateway             = fmt.Errorf("%w: push gateway call failed", apperrors.ErrUpstream)
	ErrRecipientNotFound   = fmt.Errorf("%w: recipient not found", apperrors.ErrNotFound)
)
