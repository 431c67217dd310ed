package scoring

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/enterprise/fraud-pipeline/internal/models"
)

// RegisterRoutes wires the Ensemble Scorer's HTTP surface (spec.md §6):
// POST /score, a synchronous test path over the same Worker the Kafka
// consumer drives.
func RegisterRoutes(r gin.IRouter, w *Worker) {
	r.POST("/score", handleScore(w))
}

func handleScore(w *Worker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var fv models.FeatureVector
		if err := c.ShouldBindJSON(&fv); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation_error", "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, w.ScoreSync(&fv))
	}
}
