package audit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/enterprise/fraud-pipeline/internal/models"
)

// RegisterRoutes wires the Auditor's HTTP surface (spec.md §6):
// POST /audit/event|decision|case, GET /audit/{event_id}, GET
// /audit/events?..., GET /audit/verify/{event_id}.
func RegisterRoutes(r gin.IRouter, a *Auditor) {
	r.POST("/audit/event", handleRecord(a, "event", models.EvidenceAuditEvent))
	r.POST("/audit/decision", handleRecord(a, "decision", models.EvidenceDecision))
	r.POST("/audit/case", handleRecord(a, "case", models.EvidenceCaseEvent))
	r.GET("/audit/:event_id", handleGet(a))
	r.GET("/audit/events", handleList(a))
	r.GET("/audit/verify/:event_id", handleVerify(a))
}

type recordRequest struct {
	EventID  string                 `json:"event_id" binding:"required"`
	EntityID string                 `json:"entity_id"`
	UserID   string                 `json:"user_id"`
	Action   string                 `json:"action"`
	Details  string                 `json:"details"`
	Payload  map[string]interface{} `json:"payload" binding:"required"`
}

func handleRecord(a *Auditor, eventType string, evidenceType models.EvidenceType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req recordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation_error", "message": err.Error()})
			return
		}

		bundle, err := a.Record(c.Request.Context(), RecordParams{
			EventID:      req.EventID,
			EventType:    eventType,
			EntityID:     req.EntityID,
			UserID:       req.UserID,
			Action:       req.Action,
			Details:      req.Details,
			EvidenceType: evidenceType,
			Payload:      req.Payload,
		})
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit_path_error", "message": err.Error()})
			return
		}

		c.JSON(http.StatusOK, bundle)
	}
}

func handleGet(a *Auditor) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID := c.Param("event_id")
		row, found, err := a.index.GetByEventID(c.Request.Context(), eventID)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transient_error", "message": err.Error()})
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "no audit row for event_id"})
			return
		}
		c.JSON(http.StatusOK, row)
	}
}

func handleList(a *Auditor) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		offset, _ := strconv.Atoi(c.Query("offset"))

		rows, err := a.List(c.Request.Context(), ListFilter{
			EventType: c.Query("event_type"),
			EntityID:  c.Query("entity_id"),
			UserID:    c.Query("user_id"),
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transient_error", "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": rows})
	}
}

func handleVerify(a *Auditor) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID := c.Param("event_id")
		result, err := a.Verify(c.Request.Context(), eventID)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transient_error", "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"integrity_status": result.Status,
			"calculated_hash":  result.CalculatedHash,
			"stored_hash":      result.StoredHash,
		})
	}
}
