package features

import (
	"math"
	"testing"
)

func TestHaversineSamePointIsZero(t *testing.T) {
	d := Haversine(37.7749, -122.4194, 37.7749, -122.4194)
	if math.Abs(d) > 1e-9 {
		t.Errorf("distance between identical points = %v, want 0", d)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// San Francisco to New York, roughly 4130 km great-circle.
	d := Haversine(37.7749, -122.4194, 40.7128, -74.0060)
	if d < 4000 || d > 4300 {
		t.Errorf("SF-NYC distance = %v km, want roughly 4130km", d)
	}
}

func TestHaversineSymmetric(t *testing.T) {
	d1 := Haversine(10, 20, 30, 40)
	d2 := Haversine(30, 40, 10, 20)
	if math.Abs(d1-d2) > 1e-9 {
		t.Errorf("Haversine not symmetric: %v != %v", d1, d2)
	}
}
