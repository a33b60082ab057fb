package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNotificador struct {
	enabled bool
	err     error
	sent    []AlertaJobPayload
}

func (n *stubNotificador) Enabled() bool { return n.enabled }

func (n *stubNotificador) SendAlerta(subject, body, pdfPath string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, AlertaJobPayload{Asunto: subject, Cuerpo: body, PDFPath: pdfPath})
	return nil
}

func alertaRaw(t *testing.T, p AlertaJobPayload) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

func TestAlertaWorker_Sends(t *testing.T) {
	n := &stubNotificador{enabled: true}
	w := NewAlertaWorker(n)

	err := w.Process(context.Background(), alertaRaw(t, AlertaJobPayload{Asunto: "Liquidación fallida - mesa 4", Cuerpo: "x"}))
	require.NoError(t, err)
	require.Len(t, n.sent, 1)
	assert.Equal(t, "Liquidación fallida - mesa 4", n.sent[0].Asunto)
}

func TestAlertaWorker_WithoutSMTPOnlyLogs(t *testing.T) {
	n := &stubNotificador{enabled: false}
	w := NewAlertaWorker(n)

	require.NoError(t, w.Process(context.Background(), alertaRaw(t, AlertaJobPayload{Asunto: "a"})))
	assert.Empty(t, n.sent)

	require.NoError(t, NewAlertaWorker(nil).Process(context.Background(), alertaRaw(t, AlertaJobPayload{Asunto: "a"})))
}

func TestAlertaWorker_SendErrorIsRetryable(t *testing.T) {
	w := NewAlertaWorker(&stubNotificador{enabled: true, err: errors.New("smtp 421")})
	err := w.Process(context.Background(), alertaRaw(t, AlertaJobPayload{Asunto: "a"}))
	assert.Error(t, err)
}

func TestAlertaWorker_InvalidPayloadIsDropped(t *testing.T) {
	w := NewAlertaWorker(&stubNotificador{enabled: true})
	assert.NoError(t, w.Process(context.Background(), json.RawMessage(`{not json`)))
}
