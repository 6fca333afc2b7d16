package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	contractrepo "github.com/havenstay/leaseflow-backend/internal/data/repos/contract"
	leaserepo "github.com/havenstay/leaseflow-backend/internal/data/repos/lease"
	types "github.com/havenstay/leaseflow-backend/internal/domain"
	pkgerr "github.com/havenstay/leaseflow-backend/internal/pkg/errors"
	"github.com/havenstay/leaseflow-backend/internal/platform/logger"
)

type RequestLeaseInput struct {
	PropertyID  uuid.UUID
	LandlordID  uuid.UUID
	TenantID    uuid.UUID
	LeaseStart  time.Time
	LeaseEnd    time.Time
	MonthlyRent decimal.Decimal
	Deposit     decimal.Decimal
}

// LeaseService is the booking availability resolver. Admission runs inside
// a per-property critical section so the overlap check and the insert are
// atomic with respect to other requests for the same property; requests
// for different properties proceed in parallel.
type LeaseService interface {
	RequestLease(ctx context.Context, in RequestLeaseInput) (*types.Lease, error)
	Confirm(ctx context.Context, leaseID uuid.UUID) error
	Cancel(ctx context.Context, leaseID uuid.UUID) error
	ExpireLeases(ctx context.Context, now time.Time) (int, error)
	GetByID(ctx context.Context, leaseID uuid.UUID) (*types.Lease, error)
	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]*types.Lease, error)
}

type leaseService struct {
	db        *gorm.DB
	log       *logger.Logger
	leases    leaserepo.LeaseRepo
	contracts contractrepo.ContractRepo
	locker    Locker
	notifier  Notifier
}

func NewLeaseService(
	db *gorm.DB,
	baseLog *logger.Logger,
	leases leaserepo.LeaseRepo,
	contracts contractrepo.ContractRepo,
	locker Locker,
	notifier Notifier,
) LeaseService {
	return &leaseService{
		db:        db,
		log:       baseLog.With("service", "LeaseService"),
		leases:    leases,
		contracts: contracts,
		locker:    locker,
		notifier:  notifier,
	}
}

func (s *leaseService) RequestLease(ctx context.Context, in RequestLeaseInput) (*types.Lease, error) {
	if err := validateLeaseInput(in); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Acquire(ctx, "lease:prop:"+in.PropertyID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerr.ErrExternalService, err)
	}
	defer unlock()

	l := &types.Lease{
		ID:               uuid.New(),
		PropertyID:       in.PropertyID,
		LandlordID:       in.LandlordID,
		TenantID:         in.TenantID,
		LeaseStart:       in.LeaseStart.UTC(),
		LeaseEnd:         in.LeaseEnd.UTC(),
		MonthlyRent:      in.MonthlyRent,
		Deposit:          in.Deposit,
		Status:           types.LeaseStatusPendingApproval,
		BookingReference: newBookingReference(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		overlapping, err := s.leases.ListOpenOverlapping(ctx, tx, in.PropertyID, l.LeaseStart, l.LeaseEnd)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return fmt.Errorf("%w: property %s has %d open lease(s) in the period",
				pkgerr.ErrLeaseConflict, in.PropertyID, len(overlapping))
		}
		_, err = s.leases.Create(ctx, tx, l)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Lease admitted",
		"lease_id", l.ID,
		"property_id", l.PropertyID,
		"booking_reference", l.BookingReference,
	)
	if pubErr := s.notifier.Publish(ctx, Event{
		Type: EventLeaseRequested,
		Payload: map[string]interface{}{
			"lease_id":          l.ID.String(),
			"property_id":       l.PropertyID.String(),
			"booking_reference": l.BookingReference,
		},
	}); pubErr != nil {
		s.log.Warn("Failed to publish LeaseRequested", "lease_id", l.ID, "error", pubErr)
	}
	return l, nil
}

// Confirm moves an admitted lease to ACTIVE. The contract state machine is
// the only caller: a lease activates exactly when its contract does.
func (s *leaseService) Confirm(ctx context.Context, leaseID uuid.UUID) error {
	ok, err := s.leases.TransitionStatus(ctx, nil, leaseID,
		[]types.LeaseStatus{types.LeaseStatusPendingApproval}, types.LeaseStatusActive)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	current, err := s.leases.GetByID(ctx, nil, leaseID)
	if err != nil {
		return err
	}
	if current.Status == types.LeaseStatusActive {
		return nil
	}
	return fmt.Errorf("%w: lease %s is %s", pkgerr.ErrInvalidStatusTransition, leaseID, current.Status)
}

func (s *leaseService) Cancel(ctx context.Context, leaseID uuid.UUID) error {
	ok, err := s.leases.TransitionStatus(ctx, nil, leaseID,
		[]types.LeaseStatus{types.LeaseStatusPendingApproval, types.LeaseStatusActive},
		types.LeaseStatusTerminated)
	if err != nil {
		return err
	}
	if ok {
		s.log.Info("Lease cancelled", "lease_id", leaseID)
		return nil
	}
	current, err := s.leases.GetByID(ctx, nil, leaseID)
	if err != nil {
		return err
	}
	if current.Status == types.LeaseStatusTerminated {
		return nil
	}
	return fmt.Errorf("%w: lease %s is %s", pkgerr.ErrInvalidStatusTransition, leaseID, current.Status)
}

// ExpireLeases sweeps ACTIVE leases past their end date. Leases whose
// contract still exists are skipped here; contract expiry drives them so
// the two state machines converge from a single trigger. Item failures
// are logged and do not abort the batch.
func (s *leaseService) ExpireLeases(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.leases.ListActiveEndedBefore(ctx, nil, now, 500)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	var expired atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, cand := range candidates {
		l := cand
		g.Go(func() error {
			if _, err := s.contracts.GetByLeaseID(gctx, nil, l.ID); err == nil {
				return nil
			} else if !errors.Is(err, pkgerr.ErrNotFound) {
				s.log.Warn("Lease sweep: contract lookup failed", "lease_id", l.ID, "error", err)
				return nil
			}
			ok, err := s.leases.TransitionStatus(gctx, nil, l.ID,
				[]types.LeaseStatus{types.LeaseStatusActive}, types.LeaseStatusExpired)
			if err != nil {
				s.log.Warn("Lease sweep: transition failed", "lease_id", l.ID, "error", err)
				return nil
			}
			if ok {
				expired.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(expired.Load())
	if n > 0 {
		s.log.Info("Lease sweep finished", "expired", n, "candidates", len(candidates))
	}
	return n, nil
}

func (s *leaseService) GetByID(ctx context.Context, leaseID uuid.UUID) (*types.Lease, error) {
	return s.leases.GetByID(ctx, nil, leaseID)
}

func (s *leaseService) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]*types.Lease, error) {
	return s.leases.ListByProperty(ctx, nil, propertyID)
}

func validateLeaseInput(in RequestLeaseInput) error {
	if in.PropertyID == uuid.Nil || in.TenantID == uuid.Nil || in.LandlordID == uuid.Nil {
		return fmt.Errorf("%w: property, tenant and landlord are required", pkgerr.ErrInvalidArgument)
	}
	if in.LeaseStart.IsZero() || in.LeaseEnd.IsZero() || !in.LeaseStart.Before(in.LeaseEnd) {
		return fmt.Errorf("%w: lease start must be before lease end", pkgerr.ErrInvalidArgument)
	}
	if in.MonthlyRent.IsNegative() || in.Deposit.IsNegative() {
		return fmt.Errorf("%w: rent and deposit must not be negative", pkgerr.ErrInvalidArgument)
	}
	return nil
}

func newBookingReference() string {
	short := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:10]
	return "BK-" + time.Now().UTC().Format("20060102") + "-" + short
}
