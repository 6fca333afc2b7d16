package app

import (
	"gorm.io/gorm"

	"github.com/havenstay/leaseflow-backend/internal/platform/gcp"
	"github.com/havenstay/leaseflow-backend/internal/platform/logger"
	"github.com/havenstay/leaseflow-backend/internal/services"
)

type Services struct {
	Lease    services.LeaseService
	Contract services.ContractService
	Otp      services.OtpService
	Billing  services.BillingService
	Notifier services.Notifier
	Locker   services.Locker
}

// wireServices prefers the distributed implementations and degrades to
// in-process ones when their backing infrastructure is not configured.
// Single-instance deployments run fine without Redis, GCS or Vision.
func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos) (Services, error) {
	log.Info("Wiring services...")

	rdb, err := services.NewRedisClient(log)
	if err != nil {
		return Services{}, err
	}

	var locker services.Locker
	var notifier services.Notifier
	if rdb != nil {
		locker = services.NewRedisLocker(log, rdb)
		notifier = services.NewRedisNotifier(log, rdb)
	} else {
		log.Warn("REDIS_ADDR not set, using in-process lock and noop notifier")
		locker = services.NewLocalLocker()
		notifier = services.NewNoopNotifier()
	}

	var pdf services.PdfClient
	if pdfCfg := services.PdfConfigFromEnv(); pdfCfg.BaseURL != "" {
		pdf, err = services.NewPdfClient(log, pdfCfg)
		if err != nil {
			return Services{}, err
		}
	} else {
		log.Warn("PDF_RENDERER_BASE_URL not set, contract PDFs disabled")
		pdf = services.NewDisabledPdfClient()
	}

	var ocr gcp.MeterOCR
	if o, err := gcp.NewVisionOCR(log); err != nil {
		log.Warn("Vision OCR unavailable, meter extraction disabled", "error", err)
	} else {
		ocr = o
	}

	var photos gcp.PhotoBucket
	if b, err := gcp.NewPhotoBucket(log); err != nil {
		log.Warn("Photo bucket unavailable, meter photos will not be stored", "error", err)
	} else {
		photos = b
	}

	otpSvc := services.NewOtpService(db, log, repos.Otp, cfg.OtpTTL)
	leaseSvc := services.NewLeaseService(db, log, repos.Lease, repos.Contract, locker, notifier)
	contractSvc := services.NewContractService(db, log, repos.Contract, repos.Lease, otpSvc, pdf, notifier, cfg.PdfTimeout)
	billingSvc := services.NewBillingService(db, log, repos.Bill, repos.MeterReading, repos.Contract,
		ocr, photos, locker, notifier, cfg.OcrMinConfidence, cfg.BillDueDays)

	return Services{
		Lease:    leaseSvc,
		Contract: contractSvc,
		Otp:      otpSvc,
		Billing:  billingSvc,
		Notifier: notifier,
		Locker:   locker,
	}, nil
}
