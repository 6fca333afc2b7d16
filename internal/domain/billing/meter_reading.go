package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MeterReading is the audit trail behind a bill's meter values, produced
// by the OCR-assisted path or manual entry. Once BillID is set the record
// is treated as immutable.
type MeterReading struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PropertyID           uuid.UUID       `gorm:"type:uuid;index;not null" json:"property_id"`
	ContractID           uuid.UUID       `gorm:"type:uuid;index;not null" json:"contract_id"`
	BillID               *uuid.UUID      `gorm:"type:uuid;index" json:"bill_id,omitempty"`
	ReadingMonth         time.Time       `gorm:"not null" json:"reading_month"`
	ElectricityReading   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"electricity_reading"`
	WaterReading         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"water_reading"`
	PhotoBucketKey       string          `gorm:"size:512" json:"photo_bucket_key"`
	PhotoURL             string          `gorm:"size:512" json:"photo_url"`
	RecordedBy           uuid.UUID       `gorm:"type:uuid;not null" json:"recorded_by"`
	ExtractionConfidence float64         `gorm:"default:0" json:"extraction_confidence"`
	CreatedAt            time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (MeterReading) TableName() string { return "meter_reading" }
