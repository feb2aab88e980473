package validation

import (
	"errors"
	"math"
	"strings"
	"testing"

	"bus-tracker/internal/shared/apperrors"
)

type sampleRequest struct {
	VehicleID string `validate:"notblank"`
	Title     string `validate:"omitempty,max=5"`
}

func TestStruct(t *testing.T) {
	if err := Struct(sampleRequest{VehicleID: "B-12"}); err != nil {
		t.Fatalf("valid struct rejected: %v", err)
	}

	err := Struct(sampleRequest{VehicleID: "   "})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "vehicleID") {
		t.Errorf("error should name the field, got %q", err.Error())
	}

	if err := Struct(sampleRequest{VehicleID: "x", Title: "too long"}); err == nil {
		t.Error("max length not enforced")
	}
}

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		lat, lng float64
		ok       bool
	}{
		{43.25, 76.95, true},
		{-90, 180, true},
		{91, 0, false},
		{0, 181, false},
		{math.NaN(), 0, false},
		{0, math.Inf(-1), false},
	}
	for _, tt := range tests {
		err := ValidateCoordinates(tt.lat, tt.lng)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateCoordinates(%v, %v) err = %v, want ok=%v", tt.lat, tt.lng, err, tt.ok)
		}
	}
}

func TestValidateHeading(t *testing.T) {
	if err := ValidateHeading(359.9); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateHeading(-1); err == nil {
		t.Error("negative heading accepted")
	}
}
