package monitor

import "testing"

func TestPSIIdenticalDistributionsNearZero(t *testing.T) {
	b := NewFeatureBuffer(10000)
	for i := 0; i < 400; i++ {
		b.Observe(float64(i % 10))
	}
	psi, ok := b.PSI(200)
	if !ok {
		t.Fatal("expected PSI to be computed")
	}
	if psi >= 1e-9 {
		t.Errorf("PSI(A, A) = %v, want < 1e-9", psi)
	}
}

func TestPSINonNegative(t *testing.T) {
	b := NewFeatureBuffer(10000)
	for i := 0; i < 200; i++ {
		b.Observe(1.0)
	}
	for i := 0; i < 200; i++ {
		b.Observe(100.0)
	}
	psi, ok := b.PSI(200)
	if !ok {
		t.Fatal("expected PSI to be computed")
	}
	if psi < 0 {
		t.Errorf("PSI = %v, want >= 0", psi)
	}
}

func TestPSIBelowMinimumObservations(t *testing.T) {
	b := NewFeatureBuffer(10000)
	for i := 0; i < 50; i++ {
		b.Observe(float64(i))
	}
	if _, ok := b.PSI(200); ok {
		t.Error("expected PSI to be unavailable below the minimum observation count")
	}
}

func TestFeatureBufferBoundedCapacity(t *testing.T) {
	b := NewFeatureBuffer(5)
	for i := 0; i < 20; i++ {
		b.Observe(float64(i))
	}
	if len(b.obs) != 5 {
		t.Errorf("buffer len = %d, want 5", len(b.obs))
	}
	if b.obs[0] != 15 {
		t.Errorf("oldest retained value = %v, want 15", b.obs[0])
	}
}
