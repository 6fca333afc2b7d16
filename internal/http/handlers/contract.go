package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	types "github.com/havenstay/leaseflow-backend/internal/domain"
	"github.com/havenstay/leaseflow-backend/internal/http/response"
	"github.com/havenstay/leaseflow-backend/internal/services"
)

type ContractHandler struct {
	contractService services.ContractService
}

func NewContractHandler(contractService services.ContractService) *ContractHandler {
	return &ContractHandler{contractService: contractService}
}

// POST /contracts
// Either lease_id alone (terms are copied from the lease) or the full set
// of terms for a walk-in contract.
func (h *ContractHandler) CreateContract(c *gin.Context) {
	var req struct {
		LeaseID     *uuid.UUID      `json:"lease_id"`
		PropertyID  uuid.UUID       `json:"property_id"`
		TenantID    uuid.UUID       `json:"tenant_id"`
		LandlordID  uuid.UUID       `json:"landlord_id"`
		StartDate   time.Time       `json:"start_date"`
		EndDate     time.Time       `json:"end_date"`
		MonthlyRent decimal.Decimal `json:"monthly_rent"`
		Deposit     decimal.Decimal `json:"deposit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, err)
		return
	}

	contract, err := h.contractService.Create(c.Request.Context(), services.CreateContractInput{
		LeaseID:     req.LeaseID,
		PropertyID:  req.PropertyID,
		TenantID:    req.TenantID,
		LandlordID:  req.LandlordID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		MonthlyRent: req.MonthlyRent,
		Deposit:     req.Deposit,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"contract": contract})
}

// GET /contracts/:id
func (h *ContractHandler) GetContract(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondBadRequest(c, fmt.Errorf("invalid contract id"))
		return
	}
	contract, err := h.contractService.GetByID(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"contract": contract})
}

// POST /contracts/:id/signature-requests
// body: { "party": "TENANT" | "LANDLORD" }
// The code travels over the notification channel, never in the response.
func (h *ContractHandler) RequestSignature(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondBadRequest(c, fmt.Errorf("invalid contract id"))
		return
	}
	var req struct {
		Party types.Party `json:"party" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, err)
		return
	}

	issued, err := h.contractService.RequestSignature(c.Request.Context(), id, req.Party)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true, "expires_at": issued.ExpiresAt})
}

// POST /contracts/:id/sign
// body: { "party": "...", "otp_code": "123456", "expected_version": 2 }
func (h *ContractHandler) Sign(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondBadRequest(c, fmt.Errorf("invalid contract id"))
		return
	}
	var req struct {
		Party           types.Party `json:"party" binding:"required"`
		OtpCode         string      `json:"otp_code" binding:"required"`
		ExpectedVersion int64       `json:"expected_version"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, err)
		return
	}

	contract, err := h.contractService.Sign(c.Request.Context(), id, req.Party, req.OtpCode, req.ExpectedVersion)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"contract": contract})
}

// POST /contracts/:id/pause
func (h *ContractHandler) Pause(c *gin.Context) {
	h.applyTransition(c, h.contractService.Pause)
}

// POST /contracts/:id/resume
func (h *ContractHandler) Resume(c *gin.Context) {
	h.applyTransition(c, h.contractService.Resume)
}

// POST /contracts/:id/terminate
func (h *ContractHandler) Terminate(c *gin.Context) {
	h.applyTransition(c, h.contractService.Terminate)
}

func (h *ContractHandler) applyTransition(c *gin.Context, op func(context.Context, uuid.UUID) (*types.Contract, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondBadRequest(c, fmt.Errorf("invalid contract id"))
		return
	}
	contract, err := op(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"contract": contract})
}

// POST /events/payment-completed
// body: { "contract_id": "...", "amount_paid": "10000000" }
// Consumed by the payment provider webhook relay; retried deliveries are
// safe because activation is idempotent.
func (h *ContractHandler) PaymentCompleted(c *gin.Context) {
	var req struct {
		ContractID uuid.UUID       `json:"contract_id" binding:"required"`
		AmountPaid decimal.Decimal `json:"amount_paid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, err)
		return
	}

	contract, err := h.contractService.OnPaymentCompleted(c.Request.Context(), req.ContractID, req.AmountPaid)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"contract": contract})
}
