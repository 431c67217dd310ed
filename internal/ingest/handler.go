package ingest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/internal/errs"
	"github.com/enterprise/fraud-pipeline/internal/models"
)

// RegisterRoutes wires the Ingest component's HTTP surface (spec.md §6:
// POST /txn, POST /claim), in the teacher's gin-handler-method style.
func RegisterRoutes(r gin.IRouter, svc *Service) {
	r.POST("/txn", handleTxn(svc))
	r.POST("/claim", handleClaim(svc))
}

type txnRequest struct {
	EntityID   string            `json:"entity_id" binding:"required"`
	Amount     float64           `json:"amount" binding:"required,gt=0"`
	Currency   string            `json:"currency" binding:"required,len=3"`
	Channel    models.Channel    `json:"channel" binding:"required"`
	MerchantID string            `json:"merchant_id"`
	MerchantCat string           `json:"merchant_category"`
	IPAddress  string            `json:"ip_address"`
	DeviceFP   string            `json:"device_fingerprint"`
	SessionID  string            `json:"session_id"`
	UserAgent  string            `json:"user_agent"`
	Metadata   map[string]string `json:"metadata"`
}

func handleTxn(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req txnRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"status": "rejected", "message": err.Error()})
			return
		}

		ev := &models.Event{
			EntityID:    req.EntityID,
			Amount:      req.Amount,
			Currency:    req.Currency,
			Channel:     req.Channel,
			MerchantID:  req.MerchantID,
			MerchantCat: req.MerchantCat,
			IPAddress:   req.IPAddress,
			DeviceFP:    req.DeviceFP,
			SessionID:   req.SessionID,
			UserAgent:   req.UserAgent,
			Metadata:    req.Metadata,
		}

		result, err := svc.IngestTransaction(c.Request.Context(), ev)
		if err != nil {
			respondIngestError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type claimRequest struct {
	EntityID  string            `json:"entity_id" binding:"required"`
	Amount    float64           `json:"amount" binding:"required,gt=0"`
	ClaimType models.ClaimType  `json:"claim_type" binding:"required"`
	IPAddress string            `json:"ip_address"`
	DeviceFP  string            `json:"device_fingerprint"`
	SessionID string            `json:"session_id"`
	UserAgent string            `json:"user_agent"`
	Metadata  map[string]string `json:"metadata"`
}

func handleClaim(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req claimRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"status": "rejected", "message": err.Error()})
			return
		}

		ev := &models.Event{
			EntityID:  req.EntityID,
			Amount:    req.Amount,
			ClaimType: req.ClaimType,
			IPAddress: req.IPAddress,
			DeviceFP:  req.DeviceFP,
			SessionID: req.SessionID,
			UserAgent: req.UserAgent,
			Metadata:  req.Metadata,
		}

		result, err := svc.IngestClaim(c.Request.Context(), ev)
		if err != nil {
			respondIngestError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func respondIngestError(c *gin.Context, err error) {
	var verr *errs.ValidationError
	if ok := func() bool { v, ok := err.(*errs.ValidationError); verr = v; return ok }(); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"status": "rejected", "field": verr.Field, "message": verr.Reason})
		return
	}

	log.Error().Err(err).Msg("ingest: transport failure publishing event")
	c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "event log unavailable, retry"})
}
