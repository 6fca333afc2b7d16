package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/havenstay/leaseflow-backend/internal/db"
	leasehttp "github.com/havenstay/leaseflow-backend/internal/http"
	"github.com/havenstay/leaseflow-backend/internal/jobs/sweeps"
	"github.com/havenstay/leaseflow-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *leasehttp.Server
	Cfg      Config
	Repos    Repos
	Services Services
	Sweeps   *sweeps.Runner
	cancel   context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, reposet)
	if err != nil {
		log.Sync()
		return nil, err
	}
	handlerset := wireHandlers(log, serviceset)

	server := leasehttp.NewServer(leasehttp.RouterConfig{
		Log:             log,
		LeaseHandler:    handlerset.Lease,
		ContractHandler: handlerset.Contract,
		BillHandler:     handlerset.Bill,
		HealthHandler:   handlerset.Health,
	})

	runner := sweeps.NewRunner(log, serviceset.Contract, serviceset.Lease, serviceset.Billing, sweeps.Config{
		ContractExpiryInterval: cfg.ContractExpiryInterval,
		LeaseExpiryInterval:    cfg.LeaseExpiryInterval,
		OverdueInterval:        cfg.OverdueInterval,
	})

	return &App{
		Log:      log,
		DB:       theDB,
		Server:   server,
		Cfg:      cfg,
		Repos:    reposet,
		Services: serviceset,
		Sweeps:   runner,
	}, nil
}

func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Sweeps != nil {
		a.Sweeps.Start(ctx)
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
