package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	billingrepo "github.com/havenstay/leaseflow-backend/internal/data/repos/billing"
	contractrepo "github.com/havenstay/leaseflow-backend/internal/data/repos/contract"
	types "github.com/havenstay/leaseflow-backend/internal/domain"
	"github.com/havenstay/leaseflow-backend/internal/domain/billing"
	pkgerr "github.com/havenstay/leaseflow-backend/internal/pkg/errors"
	"github.com/havenstay/leaseflow-backend/internal/platform/gcp"
	"github.com/havenstay/leaseflow-backend/internal/platform/logger"
)

type CreateBillInput struct {
	ContractID   uuid.UUID
	BillingMonth time.Time

	ElectricityNew decimal.Decimal
	WaterNew       decimal.Decimal

	// Opening values seed the very first bill of a contract. Later bills
	// ignore them: the previous bill's closing readings are authoritative.
	OpeningElectricity *decimal.Decimal
	OpeningWater       *decimal.Decimal

	ElectricityUnitPrice decimal.Decimal
	WaterUnitPrice       decimal.Decimal

	InternetFee    decimal.Decimal
	ParkingFee     decimal.Decimal
	CleaningFee    decimal.Decimal
	MaintenanceFee decimal.Decimal
	OtherFee       decimal.Decimal

	// MeterReadingID links the supporting photo evidence, if any.
	MeterReadingID *uuid.UUID
}

type RecordReadingInput struct {
	ContractID         uuid.UUID
	ReadingMonth       time.Time
	ElectricityReading decimal.Decimal
	WaterReading       decimal.Decimal
	RecordedBy         uuid.UUID
	Photo              []byte
	PhotoContentType   string

	ExtractionConfidence float64
}

// ExtractedReading is the OCR suggestion for a meter photo. Confirmed is
// false when the detection confidence falls below the configured floor;
// the caller must then type the value in manually.
type ExtractedReading struct {
	Value      decimal.Decimal `json:"value"`
	Confidence float64         `json:"confidence"`
	Confirmed  bool            `json:"confirmed"`
	RawText    string          `json:"raw_text"`
}

type BillingService interface {
	CreateBill(ctx context.Context, in CreateBillInput) (*types.Bill, error)
	GetBill(ctx context.Context, billID uuid.UUID) (*types.Bill, error)
	ListBills(ctx context.Context, contractID uuid.UUID) ([]*types.Bill, error)
	MarkPaid(ctx context.Context, billID uuid.UUID) (*types.Bill, error)
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
	ExtractReading(ctx context.Context, photo []byte) (*ExtractedReading, error)
	RecordReading(ctx context.Context, in RecordReadingInput) (*types.MeterReading, error)
	ListReadings(ctx context.Context, contractID uuid.UUID) ([]*types.MeterReading, error)
}

type billingService struct {
	db            *gorm.DB
	log           *logger.Logger
	bills         billingrepo.BillRepo
	readings      billingrepo.MeterReadingRepo
	contracts     contractrepo.ContractRepo
	ocr           gcp.MeterOCR
	photos        gcp.PhotoBucket
	locker        Locker
	notifier      Notifier
	minConfidence float64
	dueDays       int
}

func NewBillingService(
	db *gorm.DB,
	baseLog *logger.Logger,
	bills billingrepo.BillRepo,
	readings billingrepo.MeterReadingRepo,
	contracts contractrepo.ContractRepo,
	ocr gcp.MeterOCR,
	photos gcp.PhotoBucket,
	locker Locker,
	notifier Notifier,
	minConfidence float64,
	dueDays int,
) BillingService {
	if minConfidence <= 0 {
		minConfidence = 0.80
	}
	if dueDays <= 0 {
		dueDays = 10
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &billingService{
		db:            db,
		log:           baseLog.With("service", "BillingService"),
		bills:         bills,
		readings:      readings,
		contracts:     contracts,
		ocr:           ocr,
		photos:        photos,
		locker:        locker,
		notifier:      notifier,
		minConfidence: minConfidence,
		dueDays:       dueDays,
	}
}

func (s *billingService) CreateBill(ctx context.Context, in CreateBillInput) (*types.Bill, error) {
	c, err := s.contracts.GetByID(ctx, nil, in.ContractID)
	if err != nil {
		return nil, err
	}
	if c.Status != types.ContractStatusActive {
		return nil, fmt.Errorf("%w: contract %s is %s, billing requires ACTIVE", pkgerr.ErrInvalidStatusTransition, c.ID, c.Status)
	}
	if in.ElectricityUnitPrice.IsNegative() || in.WaterUnitPrice.IsNegative() {
		return nil, fmt.Errorf("%w: unit prices must not be negative", pkgerr.ErrInvalidArgument)
	}

	month := billing.NormalizeMonth(in.BillingMonth)

	// The continuity read and the insert must see each other: without the
	// per-contract lock, two concurrent bills for different months could
	// both chain to the same prior closing under read committed.
	unlock, err := s.locker.Acquire(ctx, "bill:contract:"+in.ContractID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	var b *types.Bill
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prior, err := s.bills.GetLatestByContract(ctx, tx, in.ContractID)
		var elecOld, waterOld decimal.Decimal
		switch {
		case err == nil:
			priorMonth := billing.NormalizeMonth(prior.BillingMonth)
			if priorMonth.Equal(month) {
				return fmt.Errorf("%w: contract %s already billed for %s", pkgerr.ErrBillAlreadyExists, in.ContractID, month.Format("2006-01"))
			}
			if month.Before(priorMonth) {
				return fmt.Errorf("%w: billing month %s precedes latest bill %s", pkgerr.ErrInvalidArgument, month.Format("2006-01"), priorMonth.Format("2006-01"))
			}
			// Continuity: this month opens where the last bill closed,
			// regardless of what the caller supplied.
			elecOld = prior.ElectricityNew
			waterOld = prior.WaterNew
		case errors.Is(err, pkgerr.ErrNotFound):
			if in.OpeningElectricity == nil || in.OpeningWater == nil {
				return fmt.Errorf("%w: contract %s has no prior bill", pkgerr.ErrFirstBillMissingOldValues, in.ContractID)
			}
			elecOld = *in.OpeningElectricity
			waterOld = *in.OpeningWater
		default:
			return err
		}

		elecCons := in.ElectricityNew.Sub(elecOld)
		waterCons := in.WaterNew.Sub(waterOld)
		if elecCons.IsNegative() || waterCons.IsNegative() {
			return fmt.Errorf("%w: new reading below old (electricity %s -> %s, water %s -> %s)",
				pkgerr.ErrInvalidMeterReading, elecOld, in.ElectricityNew, waterOld, in.WaterNew)
		}

		elecAmount := elecCons.Mul(in.ElectricityUnitPrice)
		waterAmount := waterCons.Mul(in.WaterUnitPrice)
		total := elecAmount.Add(waterAmount).
			Add(in.InternetFee).Add(in.ParkingFee).
			Add(in.CleaningFee).Add(in.MaintenanceFee).Add(in.OtherFee)

		b = &types.Bill{
			ID:           uuid.New(),
			ContractID:   in.ContractID,
			BillingMonth: month,

			ElectricityOld:         elecOld,
			ElectricityNew:         in.ElectricityNew,
			ElectricityConsumption: elecCons,
			ElectricityUnitPrice:   in.ElectricityUnitPrice,
			ElectricityAmount:      elecAmount,

			WaterOld:         waterOld,
			WaterNew:         in.WaterNew,
			WaterConsumption: waterCons,
			WaterUnitPrice:   in.WaterUnitPrice,
			WaterAmount:      waterAmount,

			InternetFee:    in.InternetFee,
			ParkingFee:     in.ParkingFee,
			CleaningFee:    in.CleaningFee,
			MaintenanceFee: in.MaintenanceFee,
			OtherFee:       in.OtherFee,

			TotalAmount: total,
			Status:      types.BillStatusPending,
			DueDate:     month.AddDate(0, 0, s.dueDays),
		}
		if _, err := s.bills.Create(ctx, tx, b); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: contract %s already billed for %s", pkgerr.ErrBillAlreadyExists, in.ContractID, month.Format("2006-01"))
			}
			return err
		}
		if in.MeterReadingID != nil {
			if _, err := s.readings.LinkToBill(ctx, tx, *in.MeterReadingID, b.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Bill created",
		"bill_id", b.ID,
		"contract_id", b.ContractID,
		"billing_month", month.Format("2006-01"),
		"total_amount", b.TotalAmount.String(),
	)
	if pubErr := s.notifier.Publish(ctx, Event{
		Type: EventBillCreated,
		Payload: map[string]interface{}{
			"bill_id":       b.ID.String(),
			"contract_id":   b.ContractID.String(),
			"billing_month": month.Format("2006-01"),
			"total_amount":  b.TotalAmount.String(),
		},
	}); pubErr != nil {
		s.log.Warn("Failed to publish BillCreated", "bill_id", b.ID, "error", pubErr)
	}
	return b, nil
}

func (s *billingService) GetBill(ctx context.Context, billID uuid.UUID) (*types.Bill, error) {
	return s.bills.GetByID(ctx, nil, billID)
}

func (s *billingService) ListBills(ctx context.Context, contractID uuid.UUID) ([]*types.Bill, error) {
	return s.bills.ListByContract(ctx, nil, contractID)
}

func (s *billingService) MarkPaid(ctx context.Context, billID uuid.UUID) (*types.Bill, error) {
	ok, err := s.bills.TransitionStatus(ctx, nil, billID,
		[]types.BillStatus{types.BillStatusDraft, types.BillStatusPending, types.BillStatusOverdue},
		types.BillStatusPaid)
	if err != nil {
		return nil, err
	}
	b, err := s.bills.GetByID(ctx, nil, billID)
	if err != nil {
		return nil, err
	}
	if !ok && b.Status != types.BillStatusPaid {
		return nil, fmt.Errorf("%w: bill %s is %s", pkgerr.ErrInvalidStatusTransition, billID, b.Status)
	}
	if ok {
		s.log.Info("Bill paid", "bill_id", billID)
	}
	return b, nil
}

// MarkOverdue flips unpaid bills past their due date. Each bill is its
// own guarded update, so a rerun after a crash picks up where it left off.
func (s *billingService) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.bills.ListDueBefore(ctx, nil, now,
		[]types.BillStatus{types.BillStatusDraft, types.BillStatusPending}, 500)
	if err != nil {
		return 0, err
	}
	flipped := 0
	for _, b := range due {
		ok, err := s.bills.TransitionStatus(ctx, nil, b.ID,
			[]types.BillStatus{types.BillStatusDraft, types.BillStatusPending},
			types.BillStatusOverdue)
		if err != nil {
			s.log.Warn("Overdue sweep: transition failed", "bill_id", b.ID, "error", err)
			continue
		}
		if ok {
			flipped++
		}
	}
	if flipped > 0 {
		s.log.Info("Overdue sweep finished", "flipped", flipped, "candidates", len(due))
	}
	return flipped, nil
}

func (s *billingService) ExtractReading(ctx context.Context, photo []byte) (*ExtractedReading, error) {
	if s.ocr == nil {
		return nil, fmt.Errorf("%w: OCR is not configured", pkgerr.ErrExternalService)
	}
	text, conf, err := s.ocr.DetectText(ctx, photo)
	if err != nil {
		return nil, err
	}

	value, found := parseMeterValue(text)
	if !found {
		return &ExtractedReading{Confidence: conf, Confirmed: false, RawText: text}, nil
	}
	return &ExtractedReading{
		Value:      value,
		Confidence: conf,
		Confirmed:  conf >= s.minConfidence,
		RawText:    text,
	}, nil
}

func (s *billingService) RecordReading(ctx context.Context, in RecordReadingInput) (*types.MeterReading, error) {
	if in.ContractID == uuid.Nil || in.RecordedBy == uuid.Nil {
		return nil, fmt.Errorf("%w: contract and recorder are required", pkgerr.ErrInvalidArgument)
	}
	if in.ElectricityReading.IsNegative() || in.WaterReading.IsNegative() {
		return nil, fmt.Errorf("%w: readings must not be negative", pkgerr.ErrInvalidMeterReading)
	}
	c, err := s.contracts.GetByID(ctx, nil, in.ContractID)
	if err != nil {
		return nil, err
	}

	m := &types.MeterReading{
		ID:                   uuid.New(),
		PropertyID:           c.PropertyID,
		ContractID:           c.ID,
		ReadingMonth:         billing.NormalizeMonth(in.ReadingMonth),
		ElectricityReading:   in.ElectricityReading,
		WaterReading:         in.WaterReading,
		RecordedBy:           in.RecordedBy,
		ExtractionConfidence: in.ExtractionConfidence,
	}

	if len(in.Photo) > 0 && s.photos != nil {
		key := fmt.Sprintf("meters/%s/%s.jpg", c.ID, m.ID)
		url, err := s.photos.Upload(ctx, key, in.PhotoContentType, bytes.NewReader(in.Photo))
		if err != nil {
			// The reading itself is still valid evidence; keep it and
			// flag the missing photo.
			s.log.Warn("Failed to upload meter photo", "contract_id", c.ID, "error", err)
		} else {
			m.PhotoBucketKey = key
			m.PhotoURL = url
		}
	}

	if _, err := s.readings.Create(ctx, nil, m); err != nil {
		return nil, err
	}
	s.log.Info("Meter reading recorded", "reading_id", m.ID, "contract_id", c.ID, "recorded_by", in.RecordedBy)
	return m, nil
}

func (s *billingService) ListReadings(ctx context.Context, contractID uuid.UUID) ([]*types.MeterReading, error) {
	return s.readings.ListByContract(ctx, nil, contractID)
}

// parseMeterValue picks the longest digit run (with at most one decimal
// point) out of OCR text. Meter faces print the reading as the dominant
// number, so the longest run wins ties with serial fragments.
func parseMeterValue(text string) (decimal.Decimal, bool) {
	best := ""
	cur := ""
	dotted := false
	flush := func() {
		trimmed := cur
		// A trailing dot is OCR noise, not a decimal.
		for len(trimmed) > 0 && trimmed[len(trimmed)-1] == '.' {
			trimmed = trimmed[:len(trimmed)-1]
		}
		if countDigits(trimmed) > countDigits(best) {
			best = trimmed
		}
		cur = ""
		dotted = false
	}
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			cur += string(r)
		case r == '.' && cur != "" && !dotted:
			cur += "."
			dotted = true
		default:
			flush()
		}
	}
	flush()

	if best == "" {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(best)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
