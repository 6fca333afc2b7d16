package contract

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

type ContractRepo interface {
	Create(ctx context.Context, tx *gorm.DB, c *types.Contract) (*types.Contract, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Contract, error)
	GetByLeaseID(ctx context.Context, tx *gorm.DB, leaseID uuid.UUID) (*types.Contract, error)
	CompareAndUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectedVersion int64, fields map[string]interface{}) (bool, error)
	SetPdfURL(ctx context.Context, tx *gorm.DB, id uuid.UUID, url string) error
	ListActiveEndedBefore(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.Contract, error)
}

type contractRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContractRepo(db *gorm.DB, baseLog *logger.Logger) ContractRepo {
	repoLog := baseLog.With("repo", "ContractRepo")
	return &contractRepo{db: db, log: repoLog}
}

func (r *contractRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *contractRepo) Create(ctx context.Context, tx *gorm.DB, c *types.Contract) (*types.Contract, error) {
	if c == nil {
		return nil, pkgerr.ErrInvalidArgument
	}
	if err := r.handle(tx).WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func (r *contractRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Contract, error) {
	var result types.Contract
	err := r.handle(tx).WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *contractRepo) GetByLeaseID(ctx context.Context, tx *gorm.DB, leaseID uuid.UUID) (*types.Contract, error) {
	var result types.Contract
	err := r.handle(tx).WithContext(ctx).
		Where("lease_id = ?", leaseID).
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

// CompareAndUpdate applies fields only when the stored version still equals
// expectedVersion, bumping the version in the same statement. A false
// return means another writer got there first; the caller re-reads and
// retries or surfaces ErrVersionConflict.
func (r *contractRepo) CompareAndUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectedVersion int64, fields map[string]interface{}) (bool, error) {
	updates := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = expectedVersion + 1
	updates["updated_at"] = time.Now().UTC()

	res := r.handle(tx).WithContext(ctx).
		Model(&types.Contract{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetPdfURL records an async collaborator result. It deliberately skips the
// version check: a PDF landing between a client's read and its Sign call
// must not invalidate the signature attempt.
func (r *contractRepo) SetPdfURL(ctx context.Context, tx *gorm.DB, id uuid.UUID, url string) error {
	return r.handle(tx).WithContext(ctx).
		Model(&types.Contract{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"pdf_url":    url,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *contractRepo) ListActiveEndedBefore(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.Contract, error) {
	var results []*types.Contract
	q := r.handle(tx).WithContext(ctx).
		Where("status = ?", types.ContractStatusActive).
		Where("end_date < ?", now).
		Order("end_date ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
