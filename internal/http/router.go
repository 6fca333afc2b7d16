package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/havenstay/leaseflow-backend/internal/http/handlers"
	httpMW "github.com/havenstay/leaseflow-backend/internal/http/middleware"
	"github.com/havenstay/leaseflow-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	LeaseHandler    *httpH.LeaseHandler
	ContractHandler *httpH.ContractHandler
	BillHandler     *httpH.BillHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.LeaseHandler != nil {
			api.POST("/leases", cfg.LeaseHandler.RequestLease)
			api.GET("/leases/:id", cfg.LeaseHandler.GetLease)
			api.POST("/leases/:id/cancel", cfg.LeaseHandler.CancelLease)
			api.GET("/properties/:id/leases", cfg.LeaseHandler.ListByProperty)
		}

		if cfg.ContractHandler != nil {
			api.POST("/contracts", cfg.ContractHandler.CreateContract)
			api.GET("/contracts/:id", cfg.ContractHandler.GetContract)
			api.POST("/contracts/:id/signature-requests", cfg.ContractHandler.RequestSignature)
			api.POST("/contracts/:id/sign", cfg.ContractHandler.Sign)
			api.POST("/contracts/:id/pause", cfg.ContractHandler.Pause)
			api.POST("/contracts/:id/resume", cfg.ContractHandler.Resume)
			api.POST("/contracts/:id/terminate", cfg.ContractHandler.Terminate)
			api.POST("/events/payment-completed", cfg.ContractHandler.PaymentCompleted)
		}

		if cfg.BillHandler != nil {
			api.POST("/bills", cfg.BillHandler.CreateBill)
			api.GET("/bills/:id", cfg.BillHandler.GetBill)
			api.POST("/bills/:id/mark-paid", cfg.BillHandler.MarkPaid)
			api.GET("/contracts/:id/bills", cfg.BillHandler.ListBills)
			api.POST("/meter-readings", cfg.BillHandler.RecordReading)
			api.POST("/meter-readings/extract", cfg.BillHandler.ExtractReading)
		}
	}

	return r
}
