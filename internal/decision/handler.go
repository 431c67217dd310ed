package decision

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/enterprise/fraud-pipeline/internal/models"
)

// RegisterRoutes wires the Decision Engine's HTTP surface (spec.md §6):
// POST /decide (sync test path), GET /policy, POST /policy/reload.
func RegisterRoutes(r gin.IRouter, w *Worker, policies *PolicyStore) {
	r.POST("/decide", handleDecide(w))
	r.GET("/policy", handlePolicy(policies))
	r.POST("/policy/reload", handlePolicyReload(policies))
}

type decideRequest struct {
	FeatureVector models.FeatureVector `json:"feature_vector" binding:"required"`
	Scores        models.ModelScores   `json:"scores" binding:"required"`
}

func handleDecide(w *Worker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req decideRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation_error", "message": err.Error()})
			return
		}

		out, err := w.DecideSync(c.Request.Context(), Input{FeatureVector: &req.FeatureVector, Scores: req.Scores})
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transient_error", "message": "decision temporarily unavailable, retry"})
			return
		}

		c.JSON(http.StatusOK, out)
	}
}

func handlePolicy(policies *PolicyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := policies.Current()
		c.JSON(http.StatusOK, gin.H{
			"version":          p.Version,
			"block_threshold":  p.BlockThreshold,
			"hold_threshold":   p.HoldThreshold,
			"trusted_channels": keys(p.TrustedChannels),
		})
	}
}

func handlePolicyReload(policies *PolicyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := policies.Reload(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transient_error", "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "reloaded", "version": policies.Current().Version})
	}
}
