package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/havenstay/leaseflow-backend/internal/http/response"
	"github.com/havenstay/leaseflow-backend/internal/services"
)

const maxPhotoBytes = 10 << 20

type BillHandler struct {
	billingService services.BillingService
}

func NewBillHandler(billingService services.BillingService) *BillHandler {
	return &BillHandler{billingService: billingService}
}

// POST /bills
func (h *BillHandler) CreateBill(c *gin.Context) {
	var req struct {
		ContractID   uuid.UUID `json:"contract_id" binding:"required"`
		BillingMonth time.Time `json:"billing_month" binding:"required"`

		ElectricityNew decimal.Decimal `json:"electricity_new"`
		WaterNew       decimal.Decimal `json:"water_new"`

		OpeningElectricity *decimal.Decimal `json:"opening_electricity"`
		OpeningWater       *decimal.Decimal `json:"opening_water"`

		ElectricityUnitPrice decimal.Decimal `json:"electricity_unit_price"`
		WaterUnitPrice       decimal.Decimal `json:"water_unit_price"`

		InternetFee    decimal.Decimal `json:"internet_fee"`
		ParkingFee     decimal.Decimal `json:"parking_fee"`
		CleaningFee    decimal.Decimal `json:"cleaning_fee"`
		MaintenanceFee decimal.Decimal `json:"maintenance_fee"`
		OtherFee       decimal.Decimal `json:"other_fee"`

		MeterReadingID *uuid.UUID `json:"meter_reading_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, err)
		return
	}

	bill, err := h.billingService.CreateBill(c.Request.Context(), services.CreateBillInput{
		ContractID:           req.ContractID,
		BillingMonth:         req.BillingMonth,
		ElectricityNew:       req.ElectricityNew,
		WaterNew:             req.WaterNew,
		OpeningElectricity:   req.OpeningElectricity,
		OpeningWater:         req.OpeningWater,
		ElectricityUnitPrice: req.ElectricityUnitPrice,
		WaterUnitPrice:       req.WaterUnitPrice,
		InternetFee:          req.InternetFee,
		ParkingFee:           req.ParkingFee,
		CleaningFee:          req.CleaningFee,
		MaintenanceFee:       req.MaintenanceFee,
		OtherFee:             req.OtherFee,
		MeterReadingID:       req.MeterReadingID,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"bill": bill})
}

// GET /bills/:id
func (h *BillHandler) GetBill(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondBadRequest(c, fmt.Errorf("invalid bill id"))
		return
	}
	bill, err := h.billingService.GetBill(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"bill": bill})
}

// GET /contracts/:id/bills
func (h *BillHandler) ListBills(c *gin.Context) {
	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondBadRequest(c, fmt.Errorf("invalid contract id"))
		return
	}
	bills, err := h.billingService.ListBills(c.Request.Context(), contractID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"bills": bills})
}

// POST /bills/:id/mark-paid
func (h *BillHandler) MarkPaid(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondBadRequest(c, fmt.Errorf("invalid bill id"))
		return
	}
	bill, err := h.billingService.MarkPaid(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"bill": bill})
}

// POST /meter-readings/extract
// multipart field "photo". The response is a suggestion; nothing is stored.
func (h *BillHandler) ExtractReading(c *gin.Context) {
	photo, err := readPhoto(c)
	if err != nil {
		response.RespondBadRequest(c, err)
		return
	}
	extracted, err := h.billingService.ExtractReading(c.Request.Context(), photo)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"reading": extracted})
}

// POST /meter-readings
// multipart: "photo" (optional) plus form fields.
func (h *BillHandler) RecordReading(c *gin.Context) {
	contractID, err := uuid.Parse(c.PostForm("contract_id"))
	if err != nil {
		response.RespondBadRequest(c, fmt.Errorf("invalid contract_id"))
		return
	}
	recordedBy, err := uuid.Parse(c.PostForm("recorded_by"))
	if err != nil {
		response.RespondBadRequest(c, fmt.Errorf("invalid recorded_by"))
		return
	}
	readingMonth, err := time.Parse(time.RFC3339, c.PostForm("reading_month"))
	if err != nil {
		response.RespondBadRequest(c, fmt.Errorf("invalid reading_month"))
		return
	}
	electricity, err := decimal.NewFromString(c.PostForm("electricity_reading"))
	if err != nil {
		response.RespondBadRequest(c, fmt.Errorf("invalid electricity_reading"))
		return
	}
	water, err := decimal.NewFromString(c.PostForm("water_reading"))
	if err != nil {
		response.RespondBadRequest(c, fmt.Errorf("invalid water_reading"))
		return
	}
	confidence, _ := decimal.NewFromString(c.DefaultPostForm("extraction_confidence", "0"))

	var (
		photo       []byte
		contentType string
	)
	if fh, err := c.FormFile("photo"); err == nil {
		f, err := fh.Open()
		if err != nil {
			response.RespondBadRequest(c, fmt.Errorf("unreadable photo"))
			return
		}
		defer f.Close()
		photo, err = io.ReadAll(io.LimitReader(f, maxPhotoBytes))
		if err != nil {
			response.RespondBadRequest(c, fmt.Errorf("unreadable photo"))
			return
		}
		contentType = fh.Header.Get("Content-Type")
	}

	conf, _ := confidence.Float64()
	reading, err := h.billingService.RecordReading(c.Request.Context(), services.RecordReadingInput{
		ContractID:           contractID,
		ReadingMonth:         readingMonth,
		ElectricityReading:   electricity,
		WaterReading:         water,
		RecordedBy:           recordedBy,
		Photo:                photo,
		PhotoContentType:     contentType,
		ExtractionConfidence: conf,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"meter_reading": reading})
}

func readPhoto(c *gin.Context) ([]byte, error) {
	fh, err := c.FormFile("photo")
	if err != nil {
		return nil, fmt.Errorf("photo file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("unreadable photo")
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxPhotoBytes))
}
