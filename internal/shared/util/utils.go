package util

import (
	"strings"

	"github.com/google/uuid"
)

func GenerateUUID() string {
	return uuid.NewString()
}

// NormalizeVehicleID is the canonical form used as the key of every
// per-vehicle record and of the user directory's vehicle assignment.
func NormalizeVehicleID(id string) string {
	return strings.ToUpper(strings.Join(strings.Fields(id), ""))
}
