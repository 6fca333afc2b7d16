package app

import (
	"time"

	"github.com/havenstay/leaseflow-backend/internal/platform/envutil"
)

type Config struct {
	OtpTTL           time.Duration
	PdfTimeout       time.Duration
	OcrMinConfidence float64
	BillDueDays      int

	ContractExpiryInterval time.Duration
	LeaseExpiryInterval    time.Duration
	OverdueInterval        time.Duration
}

func LoadConfig() Config {
	return Config{
		OtpTTL:           envutil.Seconds("OTP_TTL_SECONDS", 10*time.Minute),
		PdfTimeout:       envutil.Seconds("PDF_RENDERER_TIMEOUT_SECONDS", 30*time.Second),
		OcrMinConfidence: envutil.Float("OCR_MIN_CONFIDENCE", 0.80),
		BillDueDays:      envutil.Int("BILL_DUE_DAYS", 10),

		ContractExpiryInterval: envutil.Seconds("CONTRACT_EXPIRY_SWEEP_SECONDS", time.Hour),
		LeaseExpiryInterval:    envutil.Seconds("LEASE_EXPIRY_SWEEP_SECONDS", time.Hour),
		OverdueInterval:        envutil.Seconds("BILL_OVERDUE_SWEEP_SECONDS", 6*time.Hour),
	}
}
