package app

import (
	"gorm.io/gorm"

	billingrepo "github.com/havenstay/leaseflow-backend/internal/data/repos/billing"
	contractrepo "github.com/havenstay/leaseflow-backend/internal/data/repos/contract"
	leaserepo "github.com/havenstay/leaseflow-backend/internal/data/repos/lease"
	otprepo "github.com/havenstay/leaseflow-backend/internal/data/repos/otp"
	"github.com/havenstay/leaseflow-backend/internal/platform/logger"
)

type Repos struct {
	Lease        leaserepo.LeaseRepo
	Contract     contractrepo.ContractRepo
	Otp          otprepo.VerificationRepo
	Bill         billingrepo.BillRepo
	MeterReading billingrepo.MeterReadingRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Lease:        leaserepo.NewLeaseRepo(db, log),
		Contract:     contractrepo.NewContractRepo(db, log),
		Otp:          otprepo.NewVerificationRepo(db, log),
		Bill:         billingrepo.NewBillRepo(db, log),
		MeterReading: billingrepo.NewMeterReadingRepo(db, log),
	}
}
