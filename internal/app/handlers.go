package app

import (
	httpH "github.com/havenstay/leaseflow-backend/internal/http/handlers"
	"github.com/havenstay/leaseflow-backend/internal/platform/logger"
)

type Handlers struct {
	Lease    *httpH.LeaseHandler
	Contract *httpH.ContractHandler
	Bill     *httpH.BillHandler
	Health   *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, svcs Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Lease:    httpH.NewLeaseHandler(svcs.Lease),
		Contract: httpH.NewContractHandler(svcs.Contract),
		Bill:     httpH.NewBillHandler(svcs.Billing),
		Health:   httpH.NewHealthHandler(),
	}
}
