package worker

// dlq.go: dead-lettered background jobs.
//
//	dlq:jobs:alertas  alert mails that failed MaxJobRetries times
//
// Settlements have their own dead-letter list (repository.DLQLiquidacion);
// this one only holds notification jobs, so losing an entry never loses money.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// JobFallido is a job parked after exhausting its retries.
type JobFallido struct {
	Cola      string          `json:"cola"`
	Tipo      string          `json:"tipo"`
	Payload   json.RawMessage `json:"payload"`
	Motivo    string          `json:"motivo"`
	Intentos  int             `json:"intentos"`
	FalladoAt time.Time       `json:"fallado_at"`
}

// moverJobAFallidos parks job under dlq:{queue}. Newest first.
func moverJobAFallidos(ctx context.Context, rdb *redis.Client, queue string, job Job, motivo string) {
	data, err := json.Marshal(JobFallido{
		Cola:      queue,
		Tipo:      job.Type,
		Payload:   job.Payload,
		Motivo:    motivo,
		Intentos:  job.Attempts,
		FalladoAt: time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: marshal")
		return
	}
	// the pool ctx may be shutting down; the entry must still land
	if err := rdb.LPush(context.WithoutCancel(ctx), DLQPrefix+queue, data).Err(); err != nil {
		log.Error().Err(err).Str("queue", queue).RawJSON("payload", job.Payload).Msg("dlq: push failed, job lost")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("type", job.Type).
		Int("attempts", job.Attempts).
		Str("motivo", motivo).
		Msg("dlq: job movido a fallidos")
}

// JobsFallidos counts parked jobs of queue. Used by /health.
func JobsFallidos(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}
