package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	billingrepo "github.com/havenstay/leaseflow-backend/internal/data/repos/billing"
	contractrepo "github.com/havenstay/leaseflow-backend/internal/data/repos/contract"
	"github.com/havenstay/leaseflow-backend/internal/data/repos/testutil"
	types "github.com/havenstay/leaseflow-backend/internal/domain"
	pkgerr "github.com/havenstay/leaseflow-backend/internal/pkg/errors"
)

type stubOCR struct {
	text string
	conf float64
	err  error
}

func (s stubOCR) DetectText(ctx context.Context, img []byte) (string, float64, error) {
	return s.text, s.conf, s.err
}

func (s stubOCR) Close() error { return nil }

type billingFixture struct {
	svc       BillingService
	contracts contractrepo.ContractRepo
	readings  billingrepo.MeterReadingRepo
}

func newBillingFixture(t *testing.T, ocr stubOCR) billingFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	bills := billingrepo.NewBillRepo(db, log)
	readings := billingrepo.NewMeterReadingRepo(db, log)
	contracts := contractrepo.NewContractRepo(db, log)
	svc := NewBillingService(db, log, bills, readings, contracts, ocr, nil, NewLocalLocker(), NewNoopNotifier(), 0.80, 10)
	return billingFixture{svc: svc, contracts: contracts, readings: readings}
}

func activeContract(t *testing.T, f billingFixture) *types.Contract {
	t.Helper()
	c := testutil.NewContract(types.ContractStatusActive, testutil.Date(2026, 1, 1), testutil.Date(2027, 1, 1))
	if _, err := f.contracts.Create(context.Background(), nil, c); err != nil {
		t.Fatalf("create contract: %v", err)
	}
	return c
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func firstBillInput(contractID uuid.UUID) CreateBillInput {
	return CreateBillInput{
		ContractID:           contractID,
		BillingMonth:         testutil.Date(2026, 3, 17),
		ElectricityNew:       dec(150),
		WaterNew:             dec(15),
		OpeningElectricity:   decPtr(100),
		OpeningWater:         decPtr(10),
		ElectricityUnitPrice: dec(3500),
		WaterUnitPrice:       dec(10000),
		InternetFee:          dec(200000),
	}
}

func TestCreateFirstBill(t *testing.T) {
	f := newBillingFixture(t, stubOCR{})
	ctx := context.Background()
	c := activeContract(t, f)

	b, err := f.svc.CreateBill(ctx, firstBillInput(c.ID))
	if err != nil {
		t.Fatalf("CreateBill: %v", err)
	}

	if !b.BillingMonth.Equal(testutil.Date(2026, 3, 1)) {
		t.Fatalf("billing month = %v, want normalized to first of month", b.BillingMonth)
	}
	if !b.ElectricityConsumption.Equal(dec(50)) {
		t.Fatalf("electricity consumption = %s, want 50", b.ElectricityConsumption)
	}
	if !b.ElectricityAmount.Equal(dec(175000)) {
		t.Fatalf("electricity amount = %s, want 175000", b.ElectricityAmount)
	}
	if !b.WaterAmount.Equal(dec(50000)) {
		t.Fatalf("water amount = %s, want 50000", b.WaterAmount)
	}
	if !b.TotalAmount.Equal(dec(425000)) {
		t.Fatalf("total = %s, want 175000+50000+200000", b.TotalAmount)
	}
	if b.Status != types.BillStatusPending {
		t.Fatalf("status = %s, want PENDING", b.Status)
	}
	if !b.DueDate.Equal(testutil.Date(2026, 3, 11)) {
		t.Fatalf("due date = %v, want month start + 10 days", b.DueDate)
	}
}

func TestCreateFirstBillRequiresOpeningValues(t *testing.T) {
	f := newBillingFixture(t, stubOCR{})
	ctx := context.Background()
	c := activeContract(t, f)

	in := firstBillInput(c.ID)
	in.OpeningElectricity = nil
	if _, err := f.svc.CreateBill(ctx, in); !errors.Is(err, pkgerr.ErrFirstBillMissingOldValues) {
		t.Fatalf("want ErrFirstBillMissingOldValues, got %v", err)
	}
}

func TestCreateBillContinuityOverridesCaller(t *testing.T) {
	f := newBillingFixture(t, stubOCR{})
	ctx := context.Background()
	c := activeContract(t, f)

	if _, err := f.svc.CreateBill(ctx, firstBillInput(c.ID)); err != nil {
		t.Fatalf("first CreateBill: %v", err)
	}

	in := CreateBillInput{
		ContractID:     c.ID,
		BillingMonth:   testutil.Date(2026, 4, 1),
		ElectricityNew: dec(210),
		WaterNew:       dec(22),
		// Caller-supplied openings disagree with the March bill; the
		// stored closings win.
		OpeningElectricity:   decPtr(999),
		OpeningWater:         decPtr(999),
		ElectricityUnitPrice: dec(3500),
		WaterUnitPrice:       dec(10000),
	}
	b, err := f.svc.CreateBill(ctx, in)
	if err != nil {
		t.Fatalf("second CreateBill: %v", err)
	}
	if !b.ElectricityOld.Equal(dec(150)) || !b.WaterOld.Equal(dec(15)) {
		t.Fatalf("old readings must come from the prior bill, got %s / %s", b.ElectricityOld, b.WaterOld)
	}
	if !b.ElectricityConsumption.Equal(dec(60)) || !b.WaterConsumption.Equal(dec(7)) {
		t.Fatalf("consumption = %s / %s", b.ElectricityConsumption, b.WaterConsumption)
	}
}

func TestCreateBillDuplicateMonth(t *testing.T) {
	f := newBillingFixture(t, stubOCR{})
	ctx := context.Background()
	c := activeContract(t, f)

	if _, err := f.svc.CreateBill(ctx, firstBillInput(c.ID)); err != nil {
		t.Fatalf("CreateBill: %v", err)
	}
	in := firstBillInput(c.ID)
	in.BillingMonth = testutil.Date(2026, 3, 28) // same month, later day
	if _, err := f.svc.CreateBill(ctx, in); !errors.Is(err, pkgerr.ErrBillAlreadyExists) {
		t.Fatalf("want ErrBillAlreadyExists, got %v", err)
	}
}

func TestCreateBillEarlierMonthRejected(t *testing.T) {
	f := newBillingFixture(t, stubOCR{})
	ctx := context.Background()
	c := activeContract(t, f)

	if _, err := f.svc.CreateBill(ctx, firstBillInput(c.ID)); err != nil {
		t.Fatalf("CreateBill: %v", err)
	}
	in := firstBillInput(c.ID)
	in.BillingMonth = testutil.Date(2026, 2, 1)
	if _, err := f.svc.CreateBill(ctx, in); !errors.Is(err, pkgerr.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestCreateBillNegativeConsumption(t *testing.T) {
	f := newBillingFixture(t, stubOCR{})
	ctx := context.Background()
	c := activeContract(t, f)

	in := firstBillInput(c.ID)
	in.ElectricityNew = dec(90) // below the opening of 100
	if _, err := f.svc.CreateBill(ctx, in); !errors.Is(err, pkgerr.ErrInvalidMeterReading) {
		t.Fatalf("want ErrInvalidMeterReading, got %v", err)
	}
}

func TestCreateBillRequiresActiveContract(t *testing.T) {
	f := newBillingFixture(t, stubOCR{})
	ctx := context.Background()

	c := testutil.NewContract(types.ContractStatusDraft, testutil.Date(2026, 1, 1), testutil.Date(2027, 1, 1))
	if _, err := f.contracts.Create(ctx, nil, c); err != nil {
		t.Fatalf("create contract: %v", err)
	}
	if _, err := f.svc.CreateBill(ctx, firstBillInput(c.ID)); !errors.Is(err, pkgerr.ErrInvalidStatusTransition) {
		t.Fatalf("want ErrInvalidStatusTransition, got %v", err)
	}
}

func TestCreateBillLinksReading(t *testing.T) {
	f := newBillingFixture(t, stubOCR{})
	ctx := context.Background()
	c := activeContract(t, f)

	m, err := f.svc.RecordReading(ctx, RecordReadingInput{
		ContractID:         c.ID,
		ReadingMonth:       testutil.Date(2026, 3, 1),
		ElectricityReading: dec(150),
		WaterReading:       dec(15),
		RecordedBy:         uuid.New(),
	})
	if err != nil {
		t.Fatalf("RecordReading: %v", err)
	}

	in := firstBillInput(c.ID)
	in.MeterReadingID = &m.ID
	b, err := f.svc.CreateBill(ctx, in)
	if err != nil {
		t.Fatalf("CreateBill: %v", err)
	}

	got, err := f.readings.GetByID(ctx, nil, m.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.BillID == nil || *got.BillID != b.ID {
		t.Fatalf("reading not linked to the bill: %v", got.BillID)
	}
}

func TestConcurrentCreateBillsChainReadings(t *testing.T) {
	f := newBillingFixture(t, stubOCR{})
	ctx := context.Background()
	c := activeContract(t, f)

	if _, err := f.svc.CreateBill(ctx, firstBillInput(c.ID)); err != nil {
		t.Fatalf("CreateBill: %v", err)
	}

	next := func(month time.Time, elec, water int64) CreateBillInput {
		return CreateBillInput{
			ContractID:           c.ID,
			BillingMonth:         month,
			ElectricityNew:       dec(elec),
			WaterNew:             dec(water),
			ElectricityUnitPrice: dec(3500),
			WaterUnitPrice:       dec(10000),
		}
	}
	inputs := []CreateBillInput{
		next(testutil.Date(2026, 4, 1), 200, 20),
		next(testutil.Date(2026, 5, 1), 260, 26),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(inputs))
	for i := range inputs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateBill(ctx, inputs[i])
		}(i)
	}
	wg.Wait()

	// A loser may arrive after a later month already exists; that is the
	// only acceptable failure.
	for i, err := range errs {
		if err != nil && !errors.Is(err, pkgerr.ErrInvalidArgument) {
			t.Fatalf("CreateBill %d: %v", i, err)
		}
	}

	// Whatever the interleaving, the stored bills must chain: every
	// opening is exactly the previous bill's closing. Two bills both
	// opening at the March closing would mean the continuity read ran
	// outside the critical section.
	all, err := f.svc.ListBills(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListBills: %v", err)
	}
	if len(all) < 2 {
		t.Fatalf("got %d bills, want the March bill plus at least one winner", len(all))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].BillingMonth.Before(all[j].BillingMonth) })
	for i := 1; i < len(all); i++ {
		if !all[i].ElectricityOld.Equal(all[i-1].ElectricityNew) ||
			!all[i].WaterOld.Equal(all[i-1].WaterNew) {
			t.Fatalf("bill %s opens at %s/%s, previous closed at %s/%s",
				all[i].BillingMonth.Format("2006-01"),
				all[i].ElectricityOld, all[i].WaterOld,
				all[i-1].ElectricityNew, all[i-1].WaterNew)
		}
	}
}

func TestMarkPaidIdempotent(t *testing.T) {
	f := newBillingFixture(t, stubOCR{})
	ctx := context.Background()
	c := activeContract(t, f)

	b, err := f.svc.CreateBill(ctx, firstBillInput(c.ID))
	if err != nil {
		t.Fatalf("CreateBill: %v", err)
	}

	paid, err := f.svc.MarkPaid(ctx, b.ID)
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if paid.Status != types.BillStatusPaid {
		t.Fatalf("status = %s, want PAID", paid.Status)
	}
	if _, err := f.svc.MarkPaid(ctx, b.ID); err != nil {
		t.Fatalf("repeat MarkPaid must be a no-op: %v", err)
	}
}

func TestMarkOverdueSweep(t *testing.T) {
	f := newBillingFixture(t, stubOCR{})
	ctx := context.Background()
	c := activeContract(t, f)

	b, err := f.svc.CreateBill(ctx, firstBillInput(c.ID)) // due 2026-03-11
	if err != nil {
		t.Fatalf("CreateBill: %v", err)
	}

	if _, err := f.svc.MarkOverdue(ctx, testutil.Date(2026, 4, 1)); err != nil {
		t.Fatalf("MarkOverdue: %v", err)
	}
	got, err := f.svc.GetBill(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetBill: %v", err)
	}
	if got.Status != types.BillStatusOverdue {
		t.Fatalf("status = %s, want OVERDUE", got.Status)
	}

	// A paid bill never flips.
	if _, err := f.svc.MarkPaid(ctx, b.ID); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if _, err := f.svc.MarkOverdue(ctx, testutil.Date(2026, 5, 1)); err != nil {
		t.Fatalf("MarkOverdue: %v", err)
	}
	got, _ = f.svc.GetBill(ctx, b.ID)
	if got.Status != types.BillStatusPaid {
		t.Fatalf("sweep moved a paid bill to %s", got.Status)
	}
}

func TestExtractReading(t *testing.T) {
	cases := []struct {
		name          string
		ocr           stubOCR
		wantValue     string
		wantConfirmed bool
	}{
		{"confident", stubOCR{text: "ELECTRIC METER\n004215 kWh", conf: 0.95}, "4215", true},
		{"low confidence", stubOCR{text: "004215", conf: 0.40}, "4215", false},
		{"decimal reading", stubOCR{text: "1234.5 m3", conf: 0.90}, "1234.5", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newBillingFixture(t, tc.ocr)
			got, err := f.svc.ExtractReading(context.Background(), []byte("jpeg"))
			if err != nil {
				t.Fatalf("ExtractReading: %v", err)
			}
			want, _ := decimal.NewFromString(tc.wantValue)
			if !got.Value.Equal(want) {
				t.Fatalf("value = %s, want %s", got.Value, want)
			}
			if got.Confirmed != tc.wantConfirmed {
				t.Fatalf("confirmed = %v, want %v", got.Confirmed, tc.wantConfirmed)
			}
		})
	}
}

func TestExtractReadingNoDigits(t *testing.T) {
	f := newBillingFixture(t, stubOCR{text: "no digits here", conf: 0.99})
	got, err := f.svc.ExtractReading(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("ExtractReading: %v", err)
	}
	if got.Confirmed {
		t.Fatal("no detected value must never be confirmed")
	}
	if got.RawText != "no digits here" {
		t.Fatalf("raw text = %q", got.RawText)
	}
}

func TestExtractReadingProviderFailure(t *testing.T) {
	f := newBillingFixture(t, stubOCR{err: pkgerr.ErrExternalService})
	if _, err := f.svc.ExtractReading(context.Background(), []byte("jpeg")); !errors.Is(err, pkgerr.ErrExternalService) {
		t.Fatalf("want ErrExternalService, got %v", err)
	}
}

func TestParseMeterValue(t *testing.T) {
	cases := []struct {
		text  string
		want  string
		found bool
	}{
		{"004215 kWh", "4215", true},
		{"SN-42 READING 128456", "128456", true},
		{"meter 7 value 12345", "12345", true},
		{"1234.5", "1234.5", true},
		{"12.3.4", "12.3", true},
		{"reading: 99.", "99", true},
		{"", "", false},
		{"no digits", "", false},
	}
	for _, tc := range cases {
		got, found := parseMeterValue(tc.text)
		if tc.want == "" {
			if found {
				t.Errorf("parseMeterValue(%q): want no value, got %s", tc.text, got)
			}
			continue
		}
		want, _ := decimal.NewFromString(tc.want)
		if !found || !got.Equal(want) {
			t.Errorf("parseMeterValue(%q) = %s, %v; want %s", tc.text, got, found, want)
		}
	}
}
