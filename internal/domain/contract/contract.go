package contract

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerr "github.com/havenstay/leaseflow-backend/internal/pkg/errors"
)

type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusPendingSignature Status = "PENDING_SIGNATURE"
	StatusPendingPayment   Status = "PENDING_PAYMENT"
	StatusActive           Status = "ACTIVE"
	StatusPaused           Status = "PAUSED"
	StatusTerminated       Status = "TERMINATED"
	StatusExpired          Status = "EXPIRED"
	StatusRenewed          Status = "RENEWED"
)

type Party string

const (
	PartyTenant   Party = "TENANT"
	PartyLandlord Party = "LANDLORD"
)

// Contract is the signable agreement derived from an admitted lease.
// Version is a monotonic optimistic-lock token: it increments on every
// successful mutation and every writer must present the version it read.
type Contract struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	LeaseID        *uuid.UUID      `gorm:"type:uuid;index" json:"lease_id,omitempty"`
	PropertyID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"property_id"`
	TenantID       uuid.UUID       `gorm:"type:uuid;index;not null" json:"tenant_id"`
	LandlordID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"landlord_id"`
	StartDate      time.Time       `gorm:"not null" json:"start_date"`
	EndDate        time.Time       `gorm:"not null" json:"end_date"`
	MonthlyRent    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"monthly_rent"`
	Deposit        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"deposit"`
	Status         Status          `gorm:"size:32;index;not null" json:"status"`
	TenantSigned   bool            `gorm:"not null;default:false" json:"tenant_signed"`
	LandlordSigned bool            `gorm:"not null;default:false" json:"landlord_signed"`
	PdfURL         string          `gorm:"size:512" json:"pdf_url"`
	SignatureToken string          `gorm:"size:128" json:"-"`
	Version        int64           `gorm:"not null;default:0" json:"version"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Contract) TableName() string { return "contract" }

// PartyOf resolves which side of the contract userID is on.
func (c Contract) PartyOf(userID uuid.UUID) (Party, error) {
	switch userID {
	case c.TenantID:
		return PartyTenant, nil
	case c.LandlordID:
		return PartyLandlord, nil
	default:
		return "", pkgerr.ErrInvalidParty
	}
}

// UserOf is the inverse of PartyOf.
func (c Contract) UserOf(p Party) (uuid.UUID, error) {
	switch p {
	case PartyTenant:
		return c.TenantID, nil
	case PartyLandlord:
		return c.LandlordID, nil
	default:
		return uuid.Nil, pkgerr.ErrInvalidParty
	}
}

// SignedBy reports whether the given party has already signed.
func (c Contract) SignedBy(p Party) bool {
	if p == PartyTenant {
		return c.TenantSigned
	}
	return c.LandlordSigned
}

// Event is a lifecycle trigger. Transitions are a pure function of
// (current status, event); side effects live in the service layer.
type Event string

const (
	EventSignatureRecorded Event = "SIGNATURE_RECORDED"
	EventFullySigned       Event = "FULLY_SIGNED"
	EventPaymentCompleted  Event = "PAYMENT_COMPLETED"
	EventPause             Event = "PAUSE"
	EventResume            Event = "RESUME"
	EventTerminate         Event = "TERMINATE"
	EventExpire            Event = "EXPIRE"
	EventRenew             Event = "RENEW"
)

var transitions = map[Status]map[Event]Status{
	StatusDraft: {
		EventSignatureRecorded: StatusPendingSignature,
		EventFullySigned:       StatusPendingPayment,
	},
	StatusPendingSignature: {
		EventSignatureRecorded: StatusPendingSignature,
		EventFullySigned:       StatusPendingPayment,
	},
	StatusPendingPayment: {
		EventPaymentCompleted: StatusActive,
	},
	StatusActive: {
		EventPause:     StatusPaused,
		EventTerminate: StatusTerminated,
		EventExpire:    StatusExpired,
		EventRenew:     StatusRenewed,
	},
	StatusPaused: {
		EventResume:    StatusActive,
		EventTerminate: StatusTerminated,
	},
}

// Transition returns the successor status for (from, ev), or
// ErrInvalidStatusTransition when the pair is not legal.
func Transition(from Status, ev Event) (Status, error) {
	if next, ok := transitions[from][ev]; ok {
		return next, nil
	}
	return from, pkgerr.ErrInvalidStatusTransition
}
