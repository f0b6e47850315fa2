package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"almacenpos/internal/config"
	"almacenpos/internal/infra"
	"almacenpos/internal/lock"
	"almacenpos/internal/repository"
	"almacenpos/internal/repository/memory"
	"almacenpos/internal/router"
	"almacenpos/internal/service"
	"almacenpos/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev: pretty, prod: JSON
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	zerolog.DefaultContextLogger = &log.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Storage ───────────────────────────────────────────────────────────────
	var (
		db    *gorm.DB
		uow   repository.UnitOfWork
		repos repository.Repositories
	)
	switch cfg.StoreBackend {
	case "memory":
		store := memory.New()
		uow, repos = store, store.Repositories()
		log.Warn().Msg("using in-memory store; data is lost on restart")
	default:
		db, err = infra.NewDatabase(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		uow, repos = repository.NewUnitOfWork(db), repository.NewRepositories(db)
	}

	// ── Redis (optional) ─────────────────────────────────────────────────────
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
	}

	var locker lock.Locker = lock.NewLocal(cfg.LockTimeout)
	if cfg.LockBackend == "redis" {
		locker = lock.NewRedis(rdb, cfg.LockTTL, cfg.LockTimeout)
	}

	// Interfaces stay nil without Redis: close reports and the sale cache are
	// then disabled.
	var (
		notifier service.CierreNotifier
		cache    service.VentaCache
	)
	var dispatcher *worker.Dispatcher
	if rdb != nil {
		dispatcher = worker.NewDispatcher(rdb)
		notifier = dispatcher
		cache = infra.NewVentaCache(rdb, cfg.IdempotencyTTL)
	}

	// ── Services ──────────────────────────────────────────────────────────────
	creditoSvc := service.NewCreditoService(uow, repos, locker, time.Now)
	stockSvc := service.NewStockService(uow, repos, locker)
	turnoSvc := service.NewTurnoService(uow, repos, locker, notifier, time.Now)
	ventaSvc := service.NewVentaService(uow, repos, locker, cache, time.Now)
	authSvc := service.NewAuthService(repos.Usuarios, cfg)

	// ── Background work ───────────────────────────────────────────────────────
	var pool *worker.Pool
	if rdb != nil {
		mailer := infra.NewMailer(cfg)
		smtpCB := infra.NewCircuitBreaker(infra.DefaultCBConfig("smtp"))

		reportes := worker.ReporteWorkerConfig{
			Turnos:      repos.Turnos,
			Ventas:      repos.Ventas,
			Tienda:      cfg.StoreName,
			StoragePath: cfg.ReportStoragePath,
			EmailTo:     splitList(cfg.ReportEmailTo),
		}
		if mailer.Configurado() && len(reportes.EmailTo) > 0 {
			reportes.Emails = dispatcher
		}

		pool = worker.NewPool(rdb, worker.DefaultMaxAttempts)
		pool.Register(worker.QueueReporte, worker.JobReporteTurno, worker.NewReporteWorker(reportes).Process)
		pool.Register(worker.QueueEmail, worker.JobEmail, worker.NewEmailWorker(mailer, smtpCB).Process)
		pool.Start(ctx, cfg.WorkerPoolSize)

		worker.StartRedriveCron(ctx, worker.RedriveCronConfig{
			RDB:    rdb,
			CB:     smtpCB,
			Queues: []string{worker.QueueEmail},
		})
	}

	conciliacion := worker.NewConciliacionCron(creditoSvc, turnoSvc, cfg.WorkerPoolSize)
	if err := conciliacion.Start(cfg.ReconciliationSchedule); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.ReconciliationSchedule).Msg("invalid reconciliation schedule")
	}

	// ── HTTP ──────────────────────────────────────────────────────────────────
	r := router.New(router.Deps{
		Config:  cfg,
		DB:      db,
		RDB:     rdb,
		Auth:    authSvc,
		Credito: creditoSvc,
		Stock:   stockSvc,
		Turnos:  turnoSvc,
		Ventas:  ventaSvc,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("store", cfg.StoreBackend).Bool("redis", rdb != nil).Msgf("%s listening on :%d", cfg.StoreName, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	conciliacion.Stop()
	cancel()
	if pool != nil {
		pool.Wait()
	}
	log.Info().Msg("server exited")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
