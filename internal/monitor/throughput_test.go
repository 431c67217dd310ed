package monitor

import (
	"testing"
	"time"
)

func TestThroughputRateUnavailableBelowTwoObservations(t *testing.T) {
	c := NewThroughputCounter()
	if _, ok := c.Rate(); ok {
		t.Error("expected rate to be unavailable with zero observations")
	}
	c.Mark(time.Now())
	if _, ok := c.Rate(); ok {
		t.Error("expected rate to be unavailable with a single observation")
	}
}

func TestThroughputRateComputation(t *testing.T) {
	c := NewThroughputCounter()
	start := time.Unix(1000, 0)
	for i := 0; i < 10; i++ {
		c.Mark(start.Add(time.Duration(i) * time.Second))
	}
	rate, ok := c.Rate()
	if !ok {
		t.Fatal("expected rate to be computed")
	}
	want := 10.0 / 9.0
	if diff := rate - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("rate = %v, want %v", rate, want)
	}
}

func TestThroughputWrapsAroundWindow(t *testing.T) {
	c := NewThroughputCounter()
	start := time.Unix(1000, 0)
	for i := 0; i < throughputWindow+20; i++ {
		c.Mark(start.Add(time.Duration(i) * time.Second))
	}
	rate, ok := c.Rate()
	if !ok {
		t.Fatal("expected rate to be computed")
	}
	want := float64(throughputWindow) / float64(throughputWindow-1)
	if diff := rate - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("rate = %v, want %v", rate, want)
	}
}
