package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/havenstay/leaseflow-backend/internal/domain"
	pkgerr "github.com/havenstay/leaseflow-backend/internal/pkg/errors"
	"github.com/havenstay/leaseflow-backend/internal/platform/logger"
)

type MeterReadingRepo interface {
	Create(ctx context.Context, tx *gorm.DB, m *types.MeterReading) (*types.MeterReading, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.MeterReading, error)
	ListByContract(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) ([]*types.MeterReading, error)
	LinkToBill(ctx context.Context, tx *gorm.DB, id, billID uuid.UUID) (bool, error)
}

type meterReadingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMeterReadingRepo(db *gorm.DB, baseLog *logger.Logger) MeterReadingRepo {
	repoLog := baseLog.With("repo", "MeterReadingRepo")
	return &meterReadingRepo{db: db, log: repoLog}
}

func (r *meterReadingRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *meterReadingRepo) Create(ctx context.Context, tx *gorm.DB, m *types.MeterReading) (*types.MeterReading, error) {
	if m == nil {
		return nil, pkgerr.ErrInvalidArgument
	}
	if err := r.handle(tx).WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

func (r *meterReadingRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.MeterReading, error) {
	var result types.MeterReading
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

func (r *meterReadingRepo) ListByContract(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) ([]*types.MeterReading, error) {
	var results []*types.MeterReading
	if err := r.handle(tx).WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("reading_month ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// LinkToBill attaches the reading to a finalized bill. Readings already
// linked are immutable, hence the bill_id IS NULL guard.
func (r *meterReadingRepo) LinkToBill(ctx context.Context, tx *gorm.DB, id, billID uuid.UUID) (bool, error) {
	res := r.handle(tx).WithContext(ctx).
		Model(&types.MeterReading{}).
		Where("id = ? AND bill_id IS NULL", id).
		Update("bill_id", billID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
