package lease

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/havenstay/leaseflow-backend/internal/domain"
	leasedom "github.com/havenstay/leaseflow-backend/internal/domain/lease"
	pkgerr "github.com/havenstay/leaseflow-backend/internal/pkg/errors"
	"github.com/havenstay/leaseflow-backend/internal/platform/logger"
)

type LeaseRepo interface {
	Create(ctx context.Context, tx *gorm.DB, l *types.Lease) (*types.Lease, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Lease, error)
	ListByProperty(ctx context.Context, tx *gorm.DB, propertyID uuid.UUID) ([]*types.Lease, error)
	ListOpenOverlapping(ctx context.Context, tx *gorm.DB, propertyID uuid.UUID, start, end time.Time) ([]*types.Lease, error)
	ListActiveEndedBefore(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.Lease, error)
	TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from []types.LeaseStatus, to types.LeaseStatus) (bool, error)
}

type leaseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLeaseRepo(db *gorm.DB, baseLog *logger.Logger) LeaseRepo {
	repoLog := baseLog.With("repo", "LeaseRepo")
	return &leaseRepo{db: db, log: repoLog}
}

func (r *leaseRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *leaseRepo) Create(ctx context.Context, tx *gorm.DB, l *types.Lease) (*types.Lease, error) {
	if l == nil {
		return nil, pkgerr.ErrInvalidArgument
	}
	if err := r.handle(tx).WithContext(ctx).Create(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

func (r *leaseRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Lease, error) {
	var result types.Lease
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

func (r *leaseRepo) ListByProperty(ctx context.Context, tx *gorm.DB, propertyID uuid.UUID) ([]*types.Lease, error) {
	var results []*types.Lease
	if err := r.handle(tx).WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("lease_start ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListOpenOverlapping returns open-status leases on the property whose
// half-open [lease_start, lease_end) interval intersects [start, end).
func (r *leaseRepo) ListOpenOverlapping(ctx context.Context, tx *gorm.DB, propertyID uuid.UUID, start, end time.Time) ([]*types.Lease, error) {
	var results []*types.Lease
	if err := r.handle(tx).WithContext(ctx).
		Where("property_id = ?", propertyID).
		Where("status IN ?", leasedom.OpenStatuses()).
		Where("lease_start < ? AND lease_end > ?", end, start).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *leaseRepo) ListActiveEndedBefore(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.Lease, error) {
	var results []*types.Lease
	q := r.handle(tx).WithContext(ctx).
		Where("status = ?", types.LeaseStatusActive).
		Where("lease_end < ?", now).
		Order("lease_end ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// TransitionStatus flips status only when the row is currently in one of
// the from statuses, bumping the version in the same statement. The false
// return means the row was not in an eligible status (or is gone), which
// keeps sweeps idempotent under retries.
func (r *leaseRepo) TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from []types.LeaseStatus, to types.LeaseStatus) (bool, error) {
	res := r.handle(tx).WithContext(ctx).
		Model(&types.Lease{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
