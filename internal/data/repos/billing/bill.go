package billing

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

type BillRepo interface {
	Create(ctx context.Context, tx *gorm.DB, b *types.Bill) (*types.Bill, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Bill, error)
	GetLatestByContract(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) (*types.Bill, error)
	ListByContract(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) ([]*types.Bill, error)
	ListDueBefore(ctx context.Context, tx *gorm.DB, now time.Time, statuses []types.BillStatus, limit int) ([]*types.Bill, error)
	TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from []types.BillStatus, to types.BillStatus) (bool, error)
}

type billRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBillRepo(db *gorm.DB, baseLog *logger.Logger) BillRepo {
	repoLog := baseLog.With("repo", "BillRepo")
	return &billRepo{db: db, log: repoLog}
}

func (r *billRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Create inserts the bill. The unique (contract_id, billing_month) index
// backs up the service-level duplicate check; a violation surfaces as
// gorm.ErrDuplicatedKey and is translated by the caller.
func (r *billRepo) Create(ctx context.Context, tx *gorm.DB, b *types.Bill) (*types.Bill, error) {
	if b == nil {
		return nil, pkgerr.ErrInvalidArgument
	}
	if err := r.handle(tx).WithContext(ctx).Create(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

func (r *billRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Bill, error) {
	var result types.Bill
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

func (r *billRepo) GetLatestByContract(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) (*types.Bill, error) {
	var result types.Bill
	err := r.handle(tx).WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("billing_month DESC").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *billRepo) ListByContract(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) ([]*types.Bill, error) {
	var results []*types.Bill
	if err := r.handle(tx).WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("billing_month ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *billRepo) ListDueBefore(ctx context.Context, tx *gorm.DB, now time.Time, statuses []types.BillStatus, limit int) ([]*types.Bill, error) {
	var results []*types.Bill
	q := r.handle(tx).WithContext(ctx).
		Where("status IN ?", statuses).
		Where("due_date < ?", now).
		Order("due_date ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// TransitionStatus is a CAS on status. Already being in the target status
// is not an error for callers; they treat a false return from an
// already-transitioned row as a no-op.
func (r *billRepo) TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from []types.BillStatus, to types.BillStatus) (bool, error) {
	res := r.handle(tx).WithContext(ctx).
		Model(&types.Bill{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
