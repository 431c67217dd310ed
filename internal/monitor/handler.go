package monitor

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes wires the Monitor's HTTP surface (spec.md §6):
// GET /metrics (pull-based Prometheus exposition) and
// GET /metrics/{calibration|drift|latency} (human/JSON convenience views
// over the same collectors).
func RegisterRoutes(r gin.IRouter, t *Tracker, reg *prometheus.Registry) {
	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	r.GET("/metrics", gin.WrapH(h))
	r.GET("/metrics/calibration", handleCalibration(t))
	r.GET("/metrics/drift", handleDrift(t))
	r.GET("/metrics/latency", handleLatency(t))
}

func handleCalibration(t *Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"models": t.Calibration()})
	}
}

func handleDrift(t *Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"features": t.Drift()})
	}
}

func handleLatency(t *Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		rate, ready := t.Throughput()
		c.JSON(http.StatusOK, gin.H{
			"throughput_per_sec": rate,
			"throughput_ready":   ready,
			"detail":             "full latency histograms are exposed via GET /metrics (Prometheus exposition format)",
		})
	}
}
