package infra

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// MonitorConexion polls the ledger and fires onRestore on every
// offline → online edge. Reconciliation hangs off that callback so a queued
// settlement is replayed as soon as the database is reachable again.
type MonitorConexion struct {
	db        Pinger
	interval  time.Duration
	onRestore func(ctx context.Context)
	online    atomic.Bool
}

func NewMonitorConexion(db Pinger, interval time.Duration, onRestore func(ctx context.Context)) *MonitorConexion {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	m := &MonitorConexion{db: db, interval: interval, onRestore: onRestore}
	m.online.Store(true)
	return m
}

// Online reports the result of the last probe.
func (m *MonitorConexion) Online() bool { return m.online.Load() }

// Start blocks until ctx is cancelled.
func (m *MonitorConexion) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", m.interval).Msg("monitor de conexión iniciado")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("monitor de conexión detenido")
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Probe runs one connectivity check.
func (m *MonitorConexion) Probe(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, m.interval)
	err := m.db.PingContext(pctx)
	cancel()

	if err != nil {
		if m.online.Swap(false) {
			log.Warn().Err(err).Msg("ledger sin conexión: liquidaciones irán a la cola")
		}
		return
	}
	if !m.online.Swap(true) {
		log.Info().Msg("ledger reconectado: drenando cola")
		if m.onRestore != nil {
			m.onRestore(ctx)
		}
	}
}
