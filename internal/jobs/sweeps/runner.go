// Package sweeps runs the periodic lifecycle jobs: contract expiry, lease
// expiry and overdue billing. Every sweep is a set of independent guarded
// updates, so overlapping or restarted runs converge instead of clashing.
package sweeps

import (
	"context"
	"time"

	"github.com/havenstay/leaseflow-backend/internal/platform/logger"
	"github.com/havenstay/leaseflow-backend/internal/services"
)

type Config struct {
	ContractExpiryInterval time.Duration
	LeaseExpiryInterval    time.Duration
	OverdueInterval        time.Duration
}

type Runner struct {
	log       *logger.Logger
	contracts services.ContractService
	leases    services.LeaseService
	billing   services.BillingService
	cfg       Config
}

func NewRunner(
	baseLog *logger.Logger,
	contracts services.ContractService,
	leases services.LeaseService,
	billing services.BillingService,
	cfg Config,
) *Runner {
	if cfg.ContractExpiryInterval <= 0 {
		cfg.ContractExpiryInterval = time.Hour
	}
	if cfg.LeaseExpiryInterval <= 0 {
		cfg.LeaseExpiryInterval = time.Hour
	}
	if cfg.OverdueInterval <= 0 {
		cfg.OverdueInterval = 6 * time.Hour
	}
	return &Runner{
		log:       baseLog.With("component", "SweepRunner"),
		contracts: contracts,
		leases:    leases,
		billing:   billing,
		cfg:       cfg,
	}
}

// Start launches one goroutine per sweep. They stop when ctx is canceled.
func (r *Runner) Start(ctx context.Context) {
	go r.loop(ctx, "contract_expiry", r.cfg.ContractExpiryInterval, func(ctx context.Context, now time.Time) (int, error) {
		return r.contracts.ExpireContracts(ctx, now)
	})
	go r.loop(ctx, "lease_expiry", r.cfg.LeaseExpiryInterval, func(ctx context.Context, now time.Time) (int, error) {
		return r.leases.ExpireLeases(ctx, now)
	})
	go r.loop(ctx, "bill_overdue", r.cfg.OverdueInterval, func(ctx context.Context, now time.Time) (int, error) {
		return r.billing.MarkOverdue(ctx, now)
	})
}

func (r *Runner) loop(ctx context.Context, name string, interval time.Duration, sweep func(context.Context, time.Time) (int, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info("Sweep stopped", "sweep", name)
			return
		case <-ticker.C:
			n, err := sweep(ctx, time.Now().UTC())
			if err != nil {
				r.log.Warn("Sweep failed", "sweep", name, "error", err)
				continue
			}
			if n > 0 {
				r.log.Info("Sweep applied transitions", "sweep", name, "count", n)
			}
		}
	}
}
