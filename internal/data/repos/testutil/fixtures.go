package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	types "github.com/havenstay/leaseflow-backend/internal/domain"
)

var bookingSeq atomic.Int64

// NewLease builds an open lease fixture; callers override fields as needed.
func NewLease(propertyID uuid.UUID, start, end time.Time) *types.Lease {
	return &types.Lease{
		ID:               uuid.New(),
		PropertyID:       propertyID,
		LandlordID:       uuid.New(),
		TenantID:         uuid.New(),
		LeaseStart:       start,
		LeaseEnd:         end,
		MonthlyRent:      decimal.NewFromInt(5000000),
		Deposit:          decimal.NewFromInt(5000000),
		Status:           types.LeaseStatusPendingApproval,
		BookingReference: fmt.Sprintf("BK-TEST-%06d", bookingSeq.Add(1)),
	}
}

func NewContract(status types.ContractStatus, start, end time.Time) *types.Contract {
	return &types.Contract{
		ID:          uuid.New(),
		PropertyID:  uuid.New(),
		TenantID:    uuid.New(),
		LandlordID:  uuid.New(),
		StartDate:   start,
		EndDate:     end,
		MonthlyRent: decimal.NewFromInt(5000000),
		Deposit:     decimal.NewFromInt(5000000),
		Status:      status,
	}
}

func CreateContract(tb testing.TB, tx *gorm.DB, c *types.Contract) *types.Contract {
	tb.Helper()
	if err := tx.Create(c).Error; err != nil {
		tb.Fatalf("create contract fixture: %v", err)
	}
	return c
}

func CreateLease(tb testing.TB, tx *gorm.DB, l *types.Lease) *types.Lease {
	tb.Helper()
	if err := tx.Create(l).Error; err != nil {
		tb.Fatalf("create lease fixture: %v", err)
	}
	return l
}

// Date is a shorthand for UTC midnight fixtures.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
