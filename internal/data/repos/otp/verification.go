package otp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/havenstay/leaseflow-backend/internal/domain"
	pkgerr "github.com/havenstay/leaseflow-backend/internal/pkg/errors"
	"github.com/havenstay/leaseflow-backend/internal/platform/logger"
)

type VerificationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, v *types.OtpVerification) (*types.OtpVerification, error)
	GetLive(ctx context.Context, tx *gorm.DB, contractID, userID uuid.UUID, purpose types.OtpPurpose, now time.Time) (*types.OtpVerification, error)
	ExpireLive(ctx context.Context, tx *gorm.DB, contractID, userID uuid.UUID, purpose types.OtpPurpose, now time.Time) error
	MarkVerified(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
}

type verificationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVerificationRepo(db *gorm.DB, baseLog *logger.Logger) VerificationRepo {
	repoLog := baseLog.With("repo", "OtpVerificationRepo")
	return &verificationRepo{db: db, log: repoLog}
}

func (r *verificationRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *verificationRepo) Create(ctx context.Context, tx *gorm.DB, v *types.OtpVerification) (*types.OtpVerification, error) {
	if v == nil {
		return nil, pkgerr.ErrInvalidArgument
	}
	if err := r.handle(tx).WithContext(ctx).Create(v).Error; err != nil {
		return nil, err
	}
	return v, nil
}

func (r *verificationRepo) GetLive(ctx context.Context, tx *gorm.DB, contractID, userID uuid.UUID, purpose types.OtpPurpose, now time.Time) (*types.OtpVerification, error) {
	var result types.OtpVerification
	err := r.handle(tx).WithContext(ctx).
		Where("contract_id = ? AND user_id = ? AND purpose = ?", contractID, userID, purpose).
		Where("verified = ? AND expires_at > ?", false, now).
		Order("created_at DESC").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ExpireLive invalidates every live record for the tuple by dragging its
// expiry into the past. Issuing a fresh code always goes through here
// first, so at most one live record exists per tuple.
func (r *verificationRepo) ExpireLive(ctx context.Context, tx *gorm.DB, contractID, userID uuid.UUID, purpose types.OtpPurpose, now time.Time) error {
	return r.handle(tx).WithContext(ctx).
		Model(&types.OtpVerification{}).
		Where("contract_id = ? AND user_id = ? AND purpose = ?", contractID, userID, purpose).
		Where("verified = ? AND expires_at > ?", false, now).
		Update("expires_at", now).Error
}

// MarkVerified consumes the record. The verified=false guard makes the
// operation single-use even under concurrent verification attempts.
func (r *verificationRepo) MarkVerified(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	res := r.handle(tx).WithContext(ctx).
		Model(&types.OtpVerification{}).
		Where("id = ? AND verified = ?", id, false).
		Update("verified", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
