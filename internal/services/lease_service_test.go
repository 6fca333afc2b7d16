package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	contractrepo "github.com/havenstay/leaseflow-backend/internal/data/repos/contract"
	leaserepo "github.com/havenstay/leaseflow-backend/internal/data/repos/lease"
	"github.com/havenstay/leaseflow-backend/internal/data/repos/testutil"
	types "github.com/havenstay/leaseflow-backend/internal/domain"
	pkgerr "github.com/havenstay/leaseflow-backend/internal/pkg/errors"
)

func newLeaseService(t *testing.T) LeaseService {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	return NewLeaseService(db, log,
		leaserepo.NewLeaseRepo(db, log),
		contractrepo.NewContractRepo(db, log),
		NewLocalLocker(),
		NewNoopNotifier(),
	)
}

func leaseInput(propertyID uuid.UUID, start, end time.Time) RequestLeaseInput {
	return RequestLeaseInput{
		PropertyID:  propertyID,
		LandlordID:  uuid.New(),
		TenantID:    uuid.New(),
		LeaseStart:  start,
		LeaseEnd:    end,
		MonthlyRent: decimal.NewFromInt(5000000),
		Deposit:     decimal.NewFromInt(5000000),
	}
}

func TestRequestLeaseAdmitsAndRejectsOverlap(t *testing.T) {
	svc := newLeaseService(t)
	ctx := context.Background()
	propertyID := uuid.New()

	l, err := svc.RequestLease(ctx, leaseInput(propertyID, testutil.Date(2026, 3, 1), testutil.Date(2026, 6, 1)))
	if err != nil {
		t.Fatalf("RequestLease: %v", err)
	}
	if l.Status != types.LeaseStatusPendingApproval {
		t.Fatalf("status = %s, want PENDING_APPROVAL", l.Status)
	}
	if l.BookingReference == "" {
		t.Fatal("booking reference must be assigned")
	}

	_, err = svc.RequestLease(ctx, leaseInput(propertyID, testutil.Date(2026, 4, 1), testutil.Date(2026, 7, 1)))
	if !errors.Is(err, pkgerr.ErrLeaseConflict) {
		t.Fatalf("overlapping request: want ErrLeaseConflict, got %v", err)
	}

	// A back-to-back range on the same property is admitted.
	if _, err := svc.RequestLease(ctx, leaseInput(propertyID, testutil.Date(2026, 6, 1), testutil.Date(2026, 9, 1))); err != nil {
		t.Fatalf("back-to-back request: %v", err)
	}

	// Same range on another property is admitted.
	if _, err := svc.RequestLease(ctx, leaseInput(uuid.New(), testutil.Date(2026, 3, 1), testutil.Date(2026, 6, 1))); err != nil {
		t.Fatalf("other property: %v", err)
	}
}

func TestRequestLeaseConcurrentOverlapSingleWinner(t *testing.T) {
	svc := newLeaseService(t)
	propertyID := uuid.New()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RequestLease(context.Background(),
				leaseInput(propertyID, testutil.Date(2026, 3, 1), testutil.Date(2026, 6, 1)))
		}(i)
	}
	wg.Wait()

	winners, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, pkgerr.ErrLeaseConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 || conflicts != n-1 {
		t.Fatalf("winners = %d, conflicts = %d; want exactly one winner", winners, conflicts)
	}
}

func TestRequestLeaseValidation(t *testing.T) {
	svc := newLeaseService(t)
	ctx := context.Background()

	bad := leaseInput(uuid.New(), testutil.Date(2026, 6, 1), testutil.Date(2026, 3, 1))
	if _, err := svc.RequestLease(ctx, bad); !errors.Is(err, pkgerr.ErrInvalidArgument) {
		t.Fatalf("reversed range: want ErrInvalidArgument, got %v", err)
	}

	bad = leaseInput(uuid.New(), testutil.Date(2026, 3, 1), testutil.Date(2026, 6, 1))
	bad.MonthlyRent = decimal.NewFromInt(-1)
	if _, err := svc.RequestLease(ctx, bad); !errors.Is(err, pkgerr.ErrInvalidArgument) {
		t.Fatalf("negative rent: want ErrInvalidArgument, got %v", err)
	}
}

func TestConfirmAndCancelIdempotent(t *testing.T) {
	svc := newLeaseService(t)
	ctx := context.Background()

	l, err := svc.RequestLease(ctx, leaseInput(uuid.New(), testutil.Date(2026, 3, 1), testutil.Date(2026, 6, 1)))
	if err != nil {
		t.Fatalf("RequestLease: %v", err)
	}

	if err := svc.Confirm(ctx, l.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if err := svc.Confirm(ctx, l.ID); err != nil {
		t.Fatalf("repeat Confirm must be a no-op: %v", err)
	}

	if err := svc.Cancel(ctx, l.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := svc.Cancel(ctx, l.ID); err != nil {
		t.Fatalf("repeat Cancel must be a no-op: %v", err)
	}

	// A terminated lease cannot be confirmed again.
	if err := svc.Confirm(ctx, l.ID); !errors.Is(err, pkgerr.ErrInvalidStatusTransition) {
		t.Fatalf("Confirm after Cancel: want ErrInvalidStatusTransition, got %v", err)
	}
}

func TestExpireLeasesSkipsContractBacked(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	leases := leaserepo.NewLeaseRepo(db, log)
	contracts := contractrepo.NewContractRepo(db, log)
	svc := NewLeaseService(db, log, leases, contracts, NewLocalLocker(), NewNoopNotifier())
	ctx := context.Background()

	// An ended lease with no contract: the sweep owns it.
	loose := testutil.NewLease(uuid.New(), testutil.Date(2025, 1, 1), testutil.Date(2025, 7, 1))
	loose.Status = types.LeaseStatusActive
	if _, err := leases.Create(ctx, nil, loose); err != nil {
		t.Fatalf("create lease: %v", err)
	}

	// An ended lease with a contract: contract expiry drives it.
	backed := testutil.NewLease(uuid.New(), testutil.Date(2025, 1, 1), testutil.Date(2025, 7, 1))
	backed.Status = types.LeaseStatusActive
	if _, err := leases.Create(ctx, nil, backed); err != nil {
		t.Fatalf("create lease: %v", err)
	}
	c := testutil.NewContract(types.ContractStatusActive, backed.LeaseStart, backed.LeaseEnd)
	c.LeaseID = &backed.ID
	if _, err := contracts.Create(ctx, nil, c); err != nil {
		t.Fatalf("create contract: %v", err)
	}

	n, err := svc.ExpireLeases(ctx, testutil.Date(2026, 1, 1))
	if err != nil {
		t.Fatalf("ExpireLeases: %v", err)
	}
	if n < 1 {
		t.Fatalf("expired = %d, want at least the loose lease", n)
	}

	got, _ := leases.GetByID(ctx, nil, loose.ID)
	if got.Status != types.LeaseStatusExpired {
		t.Fatalf("loose lease = %s, want EXPIRED", got.Status)
	}
	got, _ = leases.GetByID(ctx, nil, backed.ID)
	if got.Status != types.LeaseStatusActive {
		t.Fatalf("contract-backed lease must be left to contract expiry, got %s", got.Status)
	}

	// Rerun leaves both rows untouched.
	if _, err := svc.ExpireLeases(ctx, testutil.Date(2026, 1, 1)); err != nil {
		t.Fatalf("ExpireLeases rerun: %v", err)
	}
	got, _ = leases.GetByID(ctx, nil, loose.ID)
	if got.Status != types.LeaseStatusExpired {
		t.Fatalf("rerun moved loose lease to %s", got.Status)
	}
	got, _ = leases.GetByID(ctx, nil, backed.ID)
	if got.Status != types.LeaseStatusActive {
		t.Fatalf("rerun moved contract-backed lease to %s", got.Status)
	}
}
