package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BillStatus string

const (
	BillStatusDraft   BillStatus = "DRAFT"
	BillStatusPending BillStatus = "PENDING"
	BillStatusPaid    BillStatus = "PAID"
	BillStatusOverdue BillStatus = "OVERDUE"
)

// Bill is one month of consumption-based charges for an active contract.
// Amounts are computed once at creation and stored, so later unit-price
// changes never alter historical bills. The continuity invariant: the
// old reading of month m equals the new reading of month m-1.
type Bill struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ContractID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_bill_contract_month;not null" json:"contract_id"`
	// BillingMonth is normalized to the first day of the month, UTC.
	BillingMonth time.Time `gorm:"uniqueIndex:idx_bill_contract_month;not null" json:"billing_month"`

	ElectricityOld         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"electricity_old"`
	ElectricityNew         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"electricity_new"`
	ElectricityConsumption decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"electricity_consumption"`
	ElectricityUnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"electricity_unit_price"`
	ElectricityAmount      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"electricity_amount"`

	WaterOld         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"water_old"`
	WaterNew         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"water_new"`
	WaterConsumption decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"water_consumption"`
	WaterUnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"water_unit_price"`
	WaterAmount      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"water_amount"`

	InternetFee    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"internet_fee"`
	ParkingFee     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"parking_fee"`
	CleaningFee    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cleaning_fee"`
	MaintenanceFee decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"maintenance_fee"`
	OtherFee       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"other_fee"`

	TotalAmount decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_amount"`

	Status    BillStatus `gorm:"size:16;index;not null" json:"status"`
	DueDate   time.Time  `gorm:"index;not null" json:"due_date"`
	CreatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Bill) TableName() string { return "bill" }

// NormalizeMonth truncates t to the first instant of its month, UTC.
func NormalizeMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
