package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	otprepo "github.com/havenstay/leaseflow-backend/internal/data/repos/otp"
	types "github.com/havenstay/leaseflow-backend/internal/domain"
	pkgerr "github.com/havenstay/leaseflow-backend/internal/pkg/errors"
	"github.com/havenstay/leaseflow-backend/internal/platform/logger"
)

const otpCodeDigits = 6

type IssuedOtp struct {
	Code      string
	ExpiresAt time.Time
}

// OtpService issues and checks single-use, purpose-scoped codes. Verify
// fails closed: expired, mismatched, consumed, and never-issued codes are
// indistinguishable to the caller.
type OtpService interface {
	Issue(ctx context.Context, contractID, userID uuid.UUID, purpose types.OtpPurpose) (*IssuedOtp, error)
	Verify(ctx context.Context, contractID, userID uuid.UUID, purpose types.OtpPurpose, code string, now time.Time) error
}

type otpService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo otprepo.VerificationRepo
	ttl  time.Duration
}

func NewOtpService(db *gorm.DB, baseLog *logger.Logger, repo otprepo.VerificationRepo, ttl time.Duration) OtpService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &otpService{
		db:   db,
		log:  baseLog.With("service", "OtpService"),
		repo: repo,
		ttl:  ttl,
	}
}

func (s *otpService) Issue(ctx context.Context, contractID, userID uuid.UUID, purpose types.OtpPurpose) (*IssuedOtp, error) {
	code, err := generateOtpCode(otpCodeDigits)
	if err != nil {
		return nil, fmt.Errorf("generate otp code: %w", err)
	}

	now := time.Now().UTC()
	rec := &types.OtpVerification{
		ID:         uuid.New(),
		ContractID: contractID,
		UserID:     userID,
		Purpose:    purpose,
		Code:       code,
		ExpiresAt:  now.Add(s.ttl),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.ExpireLive(ctx, tx, contractID, userID, purpose, now); err != nil {
			return err
		}
		_, err := s.repo.Create(ctx, tx, rec)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("OTP issued",
		"contract_id", contractID,
		"user_id", userID,
		"purpose", purpose,
		"expires_at", rec.ExpiresAt,
	)
	return &IssuedOtp{Code: code, ExpiresAt: rec.ExpiresAt}, nil
}

func (s *otpService) Verify(ctx context.Context, contractID, userID uuid.UUID, purpose types.OtpPurpose, code string, now time.Time) error {
	rec, err := s.repo.GetLive(ctx, nil, contractID, userID, purpose, now)
	if errors.Is(err, pkgerr.ErrNotFound) {
		return pkgerr.ErrOtpInvalid
	}
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return pkgerr.ErrOtpInvalid
	}

	consumed, err := s.repo.MarkVerified(ctx, nil, rec.ID)
	if err != nil {
		return err
	}
	if !consumed {
		// Lost a race with a concurrent verification of the same record.
		return pkgerr.ErrOtpInvalid
	}
	return nil
}

func generateOtpCode(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
