package worker

// alerta_worker.go
// Processes operator alert jobs from QueueAlertas: settlements that the
// reconciler dead-lettered are mailed to ALERT_EMAIL.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// AlertaJobPayload is the job envelope sent to QueueAlertas.
type AlertaJobPayload struct {
	Asunto  string `json:"asunto"`
	Cuerpo  string `json:"cuerpo"`
	PDFPath string `json:"pdf_path,omitempty"`
}

// Notificador is satisfied by *infra.Mailer.
type Notificador interface {
	Enabled() bool
	SendAlerta(subject, body, pdfPath string) error
}

type AlertaWorker struct {
	mailer Notificador
}

func NewAlertaWorker(mailer Notificador) *AlertaWorker {
	return &AlertaWorker{mailer: mailer}
}

// Process sends the alert. Without SMTP configured the alert is only logged,
// at error level so that log-based alerting still sees it.
func (w *AlertaWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload AlertaJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("alerta_worker: invalid payload")
		return nil // not retryable
	}
	if w.mailer == nil || !w.mailer.Enabled() {
		log.Error().Str("asunto", payload.Asunto).Str("cuerpo", payload.Cuerpo).
			Msg("alerta_worker: SMTP no configurado, alerta sólo en log")
		return nil
	}
	if err := w.mailer.SendAlerta(payload.Asunto, payload.Cuerpo, payload.PDFPath); err != nil {
		return fmt.Errorf("alerta_worker: send: %w", err)
	}
	log.Info().Str("asunto", payload.Asunto).Msg("alerta_worker: alerta enviada")
	return nil
}
