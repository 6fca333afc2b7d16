package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	contractrepo "github.com/havenstay/leaseflow-backend/internal/data/repos/contract"
	leaserepo "github.com/havenstay/leaseflow-backend/internal/data/repos/lease"
	types "github.com/havenstay/leaseflow-backend/internal/domain"
	contractdom "github.com/havenstay/leaseflow-backend/internal/domain/contract"
	pkgerr "github.com/havenstay/leaseflow-backend/internal/pkg/errors"
	"github.com/havenstay/leaseflow-backend/internal/platform/logger"
)

const casAttempts = 3

type CreateContractInput struct {
	LeaseID     *uuid.UUID
	PropertyID  uuid.UUID
	TenantID    uuid.UUID
	LandlordID  uuid.UUID
	StartDate   time.Time
	EndDate     time.Time
	MonthlyRent decimal.Decimal
	Deposit     decimal.Decimal
}

// ContractService drives the DRAFT → ... → ACTIVE lifecycle. Every
// mutation is a compare-and-swap against the contract's version column;
// losers of a race get ErrVersionConflict and retry with a fresh read.
// The contract is the single source of truth for lease status: a lease
// activates, terminates and expires as an effect of its contract.
type ContractService interface {
	Create(ctx context.Context, in CreateContractInput) (*types.Contract, error)
	GetByID(ctx context.Context, contractID uuid.UUID) (*types.Contract, error)
	RequestSignature(ctx context.Context, contractID uuid.UUID, party types.Party) (*IssuedOtp, error)
	Sign(ctx context.Context, contractID uuid.UUID, party types.Party, otpCode string, expectedVersion int64) (*types.Contract, error)
	OnPaymentCompleted(ctx context.Context, contractID uuid.UUID, amountPaid decimal.Decimal) (*types.Contract, error)
	Pause(ctx context.Context, contractID uuid.UUID) (*types.Contract, error)
	Resume(ctx context.Context, contractID uuid.UUID) (*types.Contract, error)
	Terminate(ctx context.Context, contractID uuid.UUID) (*types.Contract, error)
	ExpireContracts(ctx context.Context, now time.Time) (int, error)
}

type contractService struct {
	db         *gorm.DB
	log        *logger.Logger
	contracts  contractrepo.ContractRepo
	leases     leaserepo.LeaseRepo
	otps       OtpService
	pdf        PdfClient
	notifier   Notifier
	pdfTimeout time.Duration
}

func NewContractService(
	db *gorm.DB,
	baseLog *logger.Logger,
	contracts contractrepo.ContractRepo,
	leases leaserepo.LeaseRepo,
	otps OtpService,
	pdf PdfClient,
	notifier Notifier,
	pdfTimeout time.Duration,
) ContractService {
	if pdfTimeout <= 0 {
		pdfTimeout = 30 * time.Second
	}
	return &contractService{
		db:         db,
		log:        baseLog.With("service", "ContractService"),
		contracts:  contracts,
		leases:     leases,
		otps:       otps,
		pdf:        pdf,
		notifier:   notifier,
		pdfTimeout: pdfTimeout,
	}
}

func (s *contractService) Create(ctx context.Context, in CreateContractInput) (*types.Contract, error) {
	if in.LeaseID != nil {
		l, err := s.leases.GetByID(ctx, nil, *in.LeaseID)
		if err != nil {
			return nil, err
		}
		if l.Status != types.LeaseStatusPendingApproval && l.Status != types.LeaseStatusActive {
			return nil, fmt.Errorf("%w: lease %s is %s", pkgerr.ErrInvalidStatusTransition, l.ID, l.Status)
		}
		// The lease is authoritative for terms when the contract is
		// derived from a booking.
		in.PropertyID = l.PropertyID
		in.TenantID = l.TenantID
		in.LandlordID = l.LandlordID
		in.StartDate = l.LeaseStart
		in.EndDate = l.LeaseEnd
		in.MonthlyRent = l.MonthlyRent
		in.Deposit = l.Deposit
	}

	if in.PropertyID == uuid.Nil || in.TenantID == uuid.Nil || in.LandlordID == uuid.Nil {
		return nil, fmt.Errorf("%w: property, tenant and landlord are required", pkgerr.ErrInvalidArgument)
	}
	if in.TenantID == in.LandlordID {
		return nil, fmt.Errorf("%w: tenant and landlord must differ", pkgerr.ErrInvalidArgument)
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() || !in.StartDate.Before(in.EndDate) {
		return nil, fmt.Errorf("%w: start date must be before end date", pkgerr.ErrInvalidArgument)
	}
	if in.MonthlyRent.IsNegative() || in.Deposit.IsNegative() {
		return nil, fmt.Errorf("%w: rent and deposit must not be negative", pkgerr.ErrInvalidArgument)
	}

	token, err := generateSignatureToken()
	if err != nil {
		return nil, err
	}

	c := &types.Contract{
		ID:             uuid.New(),
		LeaseID:        in.LeaseID,
		PropertyID:     in.PropertyID,
		TenantID:       in.TenantID,
		LandlordID:     in.LandlordID,
		StartDate:      in.StartDate.UTC(),
		EndDate:        in.EndDate.UTC(),
		MonthlyRent:    in.MonthlyRent,
		Deposit:        in.Deposit,
		Status:         types.ContractStatusDraft,
		SignatureToken: token,
		Version:        0,
	}
	if _, err := s.contracts.Create(ctx, nil, c); err != nil {
		return nil, err
	}

	s.log.Info("Contract drafted", "contract_id", c.ID, "property_id", c.PropertyID)
	s.generatePdfAsync(c, false)
	return c, nil
}

func (s *contractService) GetByID(ctx context.Context, contractID uuid.UUID) (*types.Contract, error) {
	return s.contracts.GetByID(ctx, nil, contractID)
}

func (s *contractService) RequestSignature(ctx context.Context, contractID uuid.UUID, party types.Party) (*IssuedOtp, error) {
	c, err := s.contracts.GetByID(ctx, nil, contractID)
	if err != nil {
		return nil, err
	}
	userID, err := c.UserOf(party)
	if err != nil {
		return nil, err
	}
	if c.Status != types.ContractStatusDraft && c.Status != types.ContractStatusPendingSignature {
		return nil, fmt.Errorf("%w: contract %s is %s", pkgerr.ErrInvalidStatusTransition, c.ID, c.Status)
	}

	issued, err := s.otps.Issue(ctx, c.ID, userID, purposeOf(party))
	if err != nil {
		return nil, err
	}

	if pubErr := s.notifier.Publish(ctx, Event{
		Type: EventOtpIssued,
		Payload: map[string]interface{}{
			"contract_id": c.ID.String(),
			"user_id":     userID.String(),
			"purpose":     string(purposeOf(party)),
			"code":        issued.Code,
			"expires_at":  issued.ExpiresAt.Format(time.RFC3339),
		},
	}); pubErr != nil {
		s.log.Warn("Failed to publish OtpIssued", "contract_id", c.ID, "error", pubErr)
	}
	return issued, nil
}

func (s *contractService) Sign(ctx context.Context, contractID uuid.UUID, party types.Party, otpCode string, expectedVersion int64) (*types.Contract, error) {
	c, err := s.contracts.GetByID(ctx, nil, contractID)
	if err != nil {
		return nil, err
	}
	userID, err := c.UserOf(party)
	if err != nil {
		return nil, err
	}

	// Re-signing by an already-signed party is a no-op success, without
	// burning another OTP.
	if c.SignedBy(party) {
		return c, nil
	}

	if err := s.otps.Verify(ctx, c.ID, userID, purposeOf(party), otpCode, time.Now().UTC()); err != nil {
		return nil, err
	}

	bothSigned := c.SignedBy(otherParty(party))
	ev := contractdom.EventSignatureRecorded
	if bothSigned {
		ev = contractdom.EventFullySigned
	}
	next, err := contractdom.Transition(c.Status, ev)
	if err != nil {
		return nil, fmt.Errorf("%w: contract %s is %s", pkgerr.ErrInvalidStatusTransition, c.ID, c.Status)
	}

	fields := map[string]interface{}{"status": next}
	if party == types.PartyTenant {
		fields["tenant_signed"] = true
	} else {
		fields["landlord_signed"] = true
	}

	ok, err := s.contracts.CompareAndUpdate(ctx, nil, c.ID, expectedVersion, fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: contract %s version %d is stale", pkgerr.ErrVersionConflict, c.ID, expectedVersion)
	}

	c.Status = next
	if party == types.PartyTenant {
		c.TenantSigned = true
	} else {
		c.LandlordSigned = true
	}
	c.Version = expectedVersion + 1

	s.log.Info("Contract signed",
		"contract_id", c.ID,
		"party", party,
		"status", c.Status,
	)

	if bothSigned {
		s.generatePdfAsync(c, true)
		if pubErr := s.notifier.Publish(ctx, Event{
			Type: EventContractSigned,
			Payload: map[string]interface{}{
				"contract_id": c.ID.String(),
				"status":      string(c.Status),
			},
		}); pubErr != nil {
			s.log.Warn("Failed to publish ContractSigned", "contract_id", c.ID, "error", pubErr)
		}
	}
	return c, nil
}

// OnPaymentCompleted consumes the external payment event. An insufficient
// amount is a legitimate "not yet" state: the contract stays in
// PENDING_PAYMENT and the next payment event retries activation.
func (s *contractService) OnPaymentCompleted(ctx context.Context, contractID uuid.UUID, amountPaid decimal.Decimal) (*types.Contract, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		c, err := s.contracts.GetByID(ctx, nil, contractID)
		if err != nil {
			return nil, err
		}
		if c.Status == types.ContractStatusActive {
			return c, nil
		}
		if c.Status != types.ContractStatusPendingPayment {
			return nil, fmt.Errorf("%w: contract %s is %s", pkgerr.ErrInvalidStatusTransition, c.ID, c.Status)
		}

		required := c.Deposit.Add(c.MonthlyRent)
		if amountPaid.LessThan(required) {
			s.log.Info("Payment insufficient for activation",
				"contract_id", c.ID,
				"amount_paid", amountPaid.String(),
				"required", required.String(),
			)
			return c, nil
		}

		ok, err := s.contracts.CompareAndUpdate(ctx, nil, c.ID, c.Version, map[string]interface{}{
			"status": types.ContractStatusActive,
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		c.Status = types.ContractStatusActive
		c.Version++
		s.activateLease(ctx, c)
		s.log.Info("Contract activated", "contract_id", c.ID, "amount_paid", amountPaid.String())
		if pubErr := s.notifier.Publish(ctx, Event{
			Type: EventContractActivated,
			Payload: map[string]interface{}{
				"contract_id": c.ID.String(),
			},
		}); pubErr != nil {
			s.log.Warn("Failed to publish ContractActivated", "contract_id", c.ID, "error", pubErr)
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: contract %s kept changing", pkgerr.ErrVersionConflict, contractID)
}

func (s *contractService) Pause(ctx context.Context, contractID uuid.UUID) (*types.Contract, error) {
	return s.applyEvent(ctx, contractID, contractdom.EventPause)
}

func (s *contractService) Resume(ctx context.Context, contractID uuid.UUID) (*types.Contract, error) {
	return s.applyEvent(ctx, contractID, contractdom.EventResume)
}

func (s *contractService) Terminate(ctx context.Context, contractID uuid.UUID) (*types.Contract, error) {
	return s.applyEvent(ctx, contractID, contractdom.EventTerminate)
}

func (s *contractService) applyEvent(ctx context.Context, contractID uuid.UUID, ev types.ContractEvent) (*types.Contract, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		c, err := s.contracts.GetByID(ctx, nil, contractID)
		if err != nil {
			return nil, err
		}
		next, err := contractdom.Transition(c.Status, ev)
		if err != nil {
			return nil, fmt.Errorf("%w: %s from %s", pkgerr.ErrInvalidStatusTransition, ev, c.Status)
		}
		ok, err := s.contracts.CompareAndUpdate(ctx, nil, c.ID, c.Version, map[string]interface{}{
			"status": next,
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		c.Status = next
		c.Version++
		s.driveLease(ctx, c, ev)
		s.log.Info("Contract transitioned", "contract_id", c.ID, "event", ev, "status", next)
		return c, nil
	}
	return nil, fmt.Errorf("%w: contract %s kept changing", pkgerr.ErrVersionConflict, contractID)
}

// ExpireContracts sweeps ACTIVE contracts past their end date, then drives
// the attached leases. Restartable: each item is its own CAS, a retried
// run cannot double-transition.
func (s *contractService) ExpireContracts(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.contracts.ListActiveEndedBefore(ctx, nil, now, 500)
	if err != nil {
		return 0, err
	}

	expired := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	results := make([]bool, len(candidates))
	for i, cand := range candidates {
		i, c := i, cand
		g.Go(func() error {
			ok, err := s.contracts.CompareAndUpdate(gctx, nil, c.ID, c.Version, map[string]interface{}{
				"status": types.ContractStatusExpired,
			})
			if err != nil {
				s.log.Warn("Contract sweep: transition failed", "contract_id", c.ID, "error", err)
				return nil
			}
			if ok {
				results[i] = true
				s.driveLease(gctx, c, contractdom.EventExpire)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, ok := range results {
		if ok {
			expired++
		}
	}
	if expired > 0 {
		s.log.Info("Contract sweep finished", "expired", expired, "candidates", len(candidates))
	}
	return expired, nil
}

// activateLease confirms the backing lease when its contract activates.
func (s *contractService) activateLease(ctx context.Context, c *types.Contract) {
	if c.LeaseID == nil {
		return
	}
	if _, err := s.leases.TransitionStatus(ctx, nil, *c.LeaseID,
		[]types.LeaseStatus{types.LeaseStatusPendingApproval}, types.LeaseStatusActive); err != nil {
		s.log.Warn("Failed to activate lease for contract", "contract_id", c.ID, "lease_id", *c.LeaseID, "error", err)
	}
}

// driveLease keeps the lease convergent with its contract after a
// lifecycle event. Failures are logged; the idempotent CAS means the next
// sweep or event replays the transition.
func (s *contractService) driveLease(ctx context.Context, c *types.Contract, ev types.ContractEvent) {
	if c.LeaseID == nil {
		return
	}
	var from []types.LeaseStatus
	var to types.LeaseStatus
	switch ev {
	case contractdom.EventPause:
		from, to = []types.LeaseStatus{types.LeaseStatusActive}, types.LeaseStatusPaused
	case contractdom.EventResume:
		from, to = []types.LeaseStatus{types.LeaseStatusPaused}, types.LeaseStatusActive
	case contractdom.EventTerminate:
		from = []types.LeaseStatus{types.LeaseStatusPendingApproval, types.LeaseStatusActive, types.LeaseStatusPaused}
		to = types.LeaseStatusTerminated
	case contractdom.EventExpire:
		from, to = []types.LeaseStatus{types.LeaseStatusActive, types.LeaseStatusPaused}, types.LeaseStatusExpired
	default:
		return
	}
	if _, err := s.leases.TransitionStatus(ctx, nil, *c.LeaseID, from, to); err != nil {
		s.log.Warn("Failed to drive lease status",
			"contract_id", c.ID,
			"lease_id", *c.LeaseID,
			"event", ev,
			"error", err,
		)
	}
}

// generatePdfAsync renders in the background. The state machine only ever
// records the URL on explicit success; a timeout or failure leaves the
// contract untouched.
func (s *contractService) generatePdfAsync(c *types.Contract, final bool) {
	snapshot := *c
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.pdfTimeout)
		defer cancel()

		var (
			url string
			err error
		)
		if final {
			url, err = s.pdf.GenerateFinalPdf(ctx, &snapshot)
		} else {
			url, err = s.pdf.GeneratePreviewPdf(ctx, &snapshot)
		}
		if err != nil {
			s.log.Warn("PDF generation failed", "contract_id", snapshot.ID, "final", final, "error", err)
			return
		}
		if err := s.contracts.SetPdfURL(ctx, nil, snapshot.ID, url); err != nil {
			s.log.Warn("Failed to store PDF URL", "contract_id", snapshot.ID, "error", err)
		}
	}()
}

func purposeOf(p types.Party) types.OtpPurpose {
	if p == types.PartyTenant {
		return types.OtpPurposeTenantSign
	}
	return types.OtpPurposeLandlordSign
}

func otherParty(p types.Party) types.Party {
	if p == types.PartyTenant {
		return types.PartyLandlord
	}
	return types.PartyTenant
}

func generateSignatureToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
