package worker

// retry_cron.go
// Background goroutine that drains the offline settlement queue every
// RECONCILE_INTERVAL. Skips the tick while the ledger circuit breaker is
// open so a downed database is not hammered.

import (
	"context"
	"time"

	"restorant/internal/infra"

	"github.com/rs/zerolog/log"
)

// RetryCronConfig holds all dependencies for the reconcile goroutine.
type RetryCronConfig struct {
	Reconciliador *Reconciliador
	CB            *infra.CircuitBreaker
	Interval      time.Duration
}

// StartRetryCron launches the periodic drain. It respects ctx for graceful
// shutdown.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", cfg.Interval).Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				drainTick(ctx, cfg)
			}
		}
	}()
}

func drainTick(ctx context.Context, cfg RetryCronConfig) {
	if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
		return
	}
	if _, err := cfg.Reconciliador.Drenar(ctx); err != nil {
		log.Error().Err(err).Msg("retry_cron: drain failed")
	}
}
