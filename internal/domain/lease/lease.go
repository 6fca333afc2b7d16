package lease

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusActive          Status = "ACTIVE"
	StatusPaused          Status = "PAUSED"
	StatusTerminated      Status = "TERMINATED"
	StatusExpired         Status = "EXPIRED"
	StatusRenewed         Status = "RENEWED"
)

// OpenStatuses are the statuses that block a property's calendar. Two
// leases in an open status may never overlap on the same property.
func OpenStatuses() []Status {
	return []Status{StatusPendingApproval, StatusActive}
}

// Lease is a tenancy commitment for a property and date range. Leases are
// never physically deleted; every exit is a status transition.
type Lease struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PropertyID       uuid.UUID       `gorm:"type:uuid;index;not null" json:"property_id"`
	LandlordID       uuid.UUID       `gorm:"type:uuid;index;not null" json:"landlord_id"`
	TenantID         uuid.UUID       `gorm:"type:uuid;index;not null" json:"tenant_id"`
	LeaseStart       time.Time       `gorm:"not null" json:"lease_start"`
	LeaseEnd         time.Time       `gorm:"not null" json:"lease_end"`
	MonthlyRent      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"monthly_rent"`
	Deposit          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"deposit"`
	Status           Status          `gorm:"size:32;index;not null" json:"status"`
	BookingReference string          `gorm:"size:64;uniqueIndex" json:"booking_reference"`
	Version          int64           `gorm:"not null;default:0" json:"version"`
	CreatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Lease) TableName() string { return "lease" }

// Overlaps reports whether the half-open intervals [LeaseStart, LeaseEnd)
// and [start, end) intersect.
func (l Lease) Overlaps(start, end time.Time) bool {
	return l.LeaseStart.Before(end) && l.LeaseEnd.After(start)
}
