package handlers

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/havenstay/leaseflow-backend/internal/http/response"
	"github.com/havenstay/leaseflow-backend/internal/services"
)

type LeaseHandler struct {
	leaseService services.LeaseService
}

func NewLeaseHandler(leaseService services.LeaseService) *LeaseHandler {
	return &LeaseHandler{leaseService: leaseService}
}

// POST /leases
// body: { "property_id": "...", "landlord_id": "...", "tenant_id": "...",
//         "lease_start": "2026-03-01T00:00:00Z", "lease_end": "...",
//         "monthly_rent": "5000000", "deposit": "5000000" }
func (h *LeaseHandler) RequestLease(c *gin.Context) {
	var req struct {
		PropertyID  uuid.UUID       `json:"property_id" binding:"required"`
		LandlordID  uuid.UUID       `json:"landlord_id" binding:"required"`
		TenantID    uuid.UUID       `json:"tenant_id" binding:"required"`
		LeaseStart  time.Time       `json:"lease_start" binding:"required"`
		LeaseEnd    time.Time       `json:"lease_end" binding:"required"`
		MonthlyRent decimal.Decimal `json:"monthly_rent"`
		Deposit     decimal.Decimal `json:"deposit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, err)
		return
	}

	l, err := h.leaseService.RequestLease(c.Request.Context(), services.RequestLeaseInput{
		PropertyID:  req.PropertyID,
		LandlordID:  req.LandlordID,
		TenantID:    req.TenantID,
		LeaseStart:  req.LeaseStart,
		LeaseEnd:    req.LeaseEnd,
		MonthlyRent: req.MonthlyRent,
		Deposit:     req.Deposit,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"lease": l})
}

// GET /leases/:id
func (h *LeaseHandler) GetLease(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondBadRequest(c, fmt.Errorf("invalid lease id"))
		return
	}
	l, err := h.leaseService.GetByID(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lease": l})
}

// GET /properties/:id/leases
func (h *LeaseHandler) ListByProperty(c *gin.Context) {
	propertyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondBadRequest(c, fmt.Errorf("invalid property id"))
		return
	}
	leases, err := h.leaseService.ListByProperty(c.Request.Context(), propertyID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"leases": leases})
}

// POST /leases/:id/cancel
func (h *LeaseHandler) CancelLease(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondBadRequest(c, fmt.Errorf("invalid lease id"))
		return
	}
	if err := h.leaseService.Cancel(c.Request.Context(), id); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
