package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restorant/internal/config"
	"restorant/internal/infra"
	"restorant/internal/router"
	"restorant/internal/service"
	"restorant/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
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
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	db, err := infra.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open ledger database")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var publicador infra.Publicador = infra.NopPublicador{}
	if cfg.AMQPURL != "" {
		rp, err := infra.NewRabbitPublicador(cfg.AMQPURL)
		if err != nil {
			// events are best-effort; settlements must not depend on the broker
			log.Warn().Err(err).Msg("rabbitmq unavailable, venta events disabled")
		} else {
			publicador = rp
		}
	}
	defer publicador.Close()

	// Only transient ledger failures trip the breaker.
	ledgerCB := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
		FailureThreshold: cfg.CBFailureThreshold,
		OpenTimeout:      time.Duration(cfg.CBOpenTimeoutSeconds) * time.Second,
		CountsAsFailure:  service.EsTransitorio,
	})

	// Alert jobs (dead-lettered settlements) go through the Redis worker pool.
	mailer := infra.NewMailer(cfg)
	dispatcher := worker.NewDispatcher(rdb)
	worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, map[string]worker.JobHandler{
		worker.QueueAlertas: worker.NewAlertaWorker(mailer).Process,
	})

	r, reconciliador := router.New(cfg, db, rdb, ledgerCB, publicador, dispatcher)

	worker.StartRetryCron(ctx, worker.RetryCronConfig{
		Reconciliador: reconciliador,
		CB:            ledgerCB,
		Interval:      cfg.ReconcileInterval(),
	})

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get sql.DB")
	}
	monitor := infra.NewMonitorConexion(sqlDB, cfg.MonitorInterval(), func(ctx context.Context) {
		// ledger is back: stop short-circuiting and replay right away
		ledgerCB.Reset()
		res, err := reconciliador.Drenar(ctx)
		if err != nil {
			log.Error().Err(err).Msg("drain on reconnect failed")
			return
		}
		log.Info().
			Int("mesas", res.Mesas).
			Int("liquidados", res.Liquidados).
			Int("pendientes", res.Pendientes).
			Int("fallidos", res.Fallidos).
			Msg("drain on reconnect")
	})
	go monitor.Start(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("restorant backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
