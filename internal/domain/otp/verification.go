package otp

import (
	"time"

	"github.com/google/uuid"
)

type Purpose string

const (
	PurposeTenantSign   Purpose = "TENANT_SIGN"
	PurposeLandlordSign Purpose = "LANDLORD_SIGN"
)

// Verification is a single-use, purpose-scoped code. At most one live
// (unverified, unexpired) record exists per (contract, user, purpose);
// issuing a new one expires any prior live record for the tuple.
type Verification struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ContractID uuid.UUID `gorm:"type:uuid;index:idx_otp_tuple;not null" json:"contract_id"`
	UserID     uuid.UUID `gorm:"type:uuid;index:idx_otp_tuple;not null" json:"user_id"`
	Purpose    Purpose   `gorm:"size:32;index:idx_otp_tuple;not null" json:"purpose"`
	Code       string    `gorm:"size:16;not null" json:"-"`
	Verified   bool      `gorm:"not null;default:false" json:"verified"`
	ExpiresAt  time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Verification) TableName() string { return "otp_verification" }

// Live reports whether the record can still be consumed at now.
func (v Verification) Live(now time.Time) bool {
	return !v.Verified && v.ExpiresAt.After(now)
}
