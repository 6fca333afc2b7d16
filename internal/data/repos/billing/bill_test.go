package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/havenstay/leaseflow-backend/internal/data/repos/testutil"
	types "github.com/havenstay/leaseflow-backend/internal/domain"
	"github.com/havenstay/leaseflow-backend/internal/domain/billing"
)

func newBill(contractID uuid.UUID, month time.Time) *types.Bill {
	return &types.Bill{
		ID:           uuid.New(),
		ContractID:   contractID,
		BillingMonth: billing.NormalizeMonth(month),

		ElectricityOld:         decimal.NewFromInt(100),
		ElectricityNew:         decimal.NewFromInt(150),
		ElectricityConsumption: decimal.NewFromInt(50),
		ElectricityUnitPrice:   decimal.NewFromInt(3500),
		ElectricityAmount:      decimal.NewFromInt(175000),

		WaterOld:         decimal.NewFromInt(10),
		WaterNew:         decimal.NewFromInt(15),
		WaterConsumption: decimal.NewFromInt(5),
		WaterUnitPrice:   decimal.NewFromInt(10000),
		WaterAmount:      decimal.NewFromInt(50000),

		TotalAmount: decimal.NewFromInt(225000),
		Status:      types.BillStatusPending,
		DueDate:     billing.NormalizeMonth(month).AddDate(0, 0, 10),
	}
}

func TestCreateRejectsDuplicateMonth(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewBillRepo(db, testutil.Logger(t))
	ctx := context.Background()
	contractID := uuid.New()

	if _, err := repo.Create(ctx, tx, newBill(contractID, testutil.Date(2026, 3, 15))); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	// Same contract, same normalized month, different day of entry.
	_, err := repo.Create(ctx, tx, newBill(contractID, testutil.Date(2026, 3, 28)))
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("want duplicated key error, got %v", err)
	}

	// Another contract may bill the same month.
	if _, err := repo.Create(ctx, tx, newBill(uuid.New(), testutil.Date(2026, 3, 15))); err != nil {
		t.Fatalf("other contract same month: %v", err)
	}
}

func TestGetLatestByContract(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewBillRepo(db, testutil.Logger(t))
	ctx := context.Background()
	contractID := uuid.New()

	if _, err := repo.Create(ctx, tx, newBill(contractID, testutil.Date(2026, 2, 1))); err != nil {
		t.Fatalf("Create: %v", err)
	}
	march := newBill(contractID, testutil.Date(2026, 3, 1))
	if _, err := repo.Create(ctx, tx, march); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetLatestByContract(ctx, tx, contractID)
	if err != nil {
		t.Fatalf("GetLatestByContract: %v", err)
	}
	if got.ID != march.ID {
		t.Fatalf("want the March bill, got month %v", got.BillingMonth)
	}
}

func TestListDueBefore(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewBillRepo(db, testutil.Logger(t))
	ctx := context.Background()

	overdue := newBill(uuid.New(), testutil.Date(2026, 1, 1))
	if _, err := repo.Create(ctx, tx, overdue); err != nil {
		t.Fatalf("Create: %v", err)
	}
	paid := newBill(uuid.New(), testutil.Date(2026, 1, 1))
	paid.Status = types.BillStatusPaid
	if _, err := repo.Create(ctx, tx, paid); err != nil {
		t.Fatalf("Create: %v", err)
	}
	notYetDue := newBill(uuid.New(), testutil.Date(2026, 6, 1))
	if _, err := repo.Create(ctx, tx, notYetDue); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.ListDueBefore(ctx, tx, testutil.Date(2026, 3, 1),
		[]types.BillStatus{types.BillStatusDraft, types.BillStatusPending}, 10)
	if err != nil {
		t.Fatalf("ListDueBefore: %v", err)
	}
	if len(got) != 1 || got[0].ID != overdue.ID {
		t.Fatalf("want only the unpaid past-due bill, got %d rows", len(got))
	}
}

func TestBillTransitionStatus(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewBillRepo(db, testutil.Logger(t))
	ctx := context.Background()

	b := newBill(uuid.New(), testutil.Date(2026, 3, 1))
	if _, err := repo.Create(ctx, tx, b); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := repo.TransitionStatus(ctx, tx, b.ID, []types.BillStatus{types.BillStatusPending}, types.BillStatusPaid)
	if err != nil || !ok {
		t.Fatalf("TransitionStatus: ok=%v err=%v", ok, err)
	}
	ok, err = repo.TransitionStatus(ctx, tx, b.ID, []types.BillStatus{types.BillStatusPending}, types.BillStatusPaid)
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if ok {
		t.Fatal("repeat transition must report false")
	}
}

func TestLinkToBillImmutable(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	bills := NewBillRepo(db, testutil.Logger(t))
	readings := NewMeterReadingRepo(db, testutil.Logger(t))
	ctx := context.Background()
	contractID := uuid.New()

	b := newBill(contractID, testutil.Date(2026, 3, 1))
	if _, err := bills.Create(ctx, tx, b); err != nil {
		t.Fatalf("Create bill: %v", err)
	}
	m := &types.MeterReading{
		ID:                 uuid.New(),
		PropertyID:         uuid.New(),
		ContractID:         contractID,
		ReadingMonth:       testutil.Date(2026, 3, 1),
		ElectricityReading: decimal.NewFromInt(150),
		WaterReading:       decimal.NewFromInt(15),
		RecordedBy:         uuid.New(),
	}
	if _, err := readings.Create(ctx, tx, m); err != nil {
		t.Fatalf("Create reading: %v", err)
	}

	ok, err := readings.LinkToBill(ctx, tx, m.ID, b.ID)
	if err != nil || !ok {
		t.Fatalf("LinkToBill: ok=%v err=%v", ok, err)
	}
	// Relinking to another bill must fail silently.
	ok, err = readings.LinkToBill(ctx, tx, m.ID, uuid.New())
	if err != nil {
		t.Fatalf("LinkToBill: %v", err)
	}
	if ok {
		t.Fatal("a linked reading must be immutable")
	}

	got, err := readings.GetByID(ctx, tx, m.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.BillID == nil || *got.BillID != b.ID {
		t.Fatalf("reading must stay linked to the original bill, got %v", got.BillID)
	}
}
