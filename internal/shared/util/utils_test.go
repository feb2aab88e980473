package util

import (
	"testing"

	"github.com/google/uuid"
)

func TestNormalizeVehicleID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"B-12", "B-12"},
		{" b-12 ", "B-12"},
		{"b 12", "B12"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeVehicleID(tt.in); got != tt.want {
			t.Errorf("NormalizeVehicleID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGenerateUUID(t *testing.T) {
	a, b := GenerateUUID(), GenerateUUID()
	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("GenerateUUID returned invalid uuid %q: %v", a, err)
	}
}
