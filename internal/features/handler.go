package features

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/enterprise/fraud-pipeline/internal/models"
)

// RegisterRoutes wires the synchronous feature-computation test path
// (spec.md §6: POST /process) onto r.
func RegisterRoutes(r gin.IRouter, w *Worker) {
	r.POST("/process", handleProcess(w))
}

type processRequest struct {
	EventID    string            `json:"event_id"`
	EntityID   string            `json:"entity_id" binding:"required"`
	Type       models.EventType  `json:"event_type"`
	Amount     float64           `json:"amount"`
	Currency   string            `json:"currency"`
	Channel    models.Channel    `json:"channel"`
	ClaimType  models.ClaimType  `json:"claim_type"`
	MerchantID string            `json:"merchant_id"`
	IPAddress  string            `json:"ip_address"`
	DeviceFP   string            `json:"device_fingerprint"`
	SessionID  string            `json:"session_id"`
	UserAgent  string            `json:"user_agent"`
	Metadata   map[string]string `json:"metadata"`
}

func handleProcess(w *Worker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req processRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation_error", "message": err.Error()})
			return
		}

		ev := &models.Event{
			EventID:    req.EventID,
			EntityID:   req.EntityID,
			Type:       req.Type,
			Amount:     req.Amount,
			Currency:   req.Currency,
			Channel:    req.Channel,
			ClaimType:  req.ClaimType,
			MerchantID: req.MerchantID,
			IPAddress:  req.IPAddress,
			DeviceFP:   req.DeviceFP,
			SessionID:  req.SessionID,
			UserAgent:  req.UserAgent,
			Metadata:   req.Metadata,
		}

		fv := w.ComputeSync(c.Request.Context(), ev)
		c.JSON(http.StatusOK, fv)
	}
}
