package worker

// email_worker.go
// Processes email jobs from QueueEmail: shift reports mailed to the owner.
// Every send goes through the circuit breaker so a dead SMTP relay fails fast
// and the job is retried or parked in the DLQ.

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"almacenpos/internal/infra"

	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	To          []string `json:"to"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	AdjuntoPath string   `json:"adjunto_path,omitempty"`
}

type enviador interface {
	Enviar(to []string, subject, body string, adjuntos ...infra.Adjunto) error
}

type EmailWorker struct {
	mailer enviador
	cb     *infra.CircuitBreaker
}

func NewEmailWorker(mailer enviador, cb *infra.CircuitBreaker) *EmailWorker {
	return &EmailWorker{mailer: mailer, cb: cb}
}

// Process sends one email. Malformed payloads are dropped; send failures are
// returned so the pool retries them.
func (w *EmailWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("email_worker: invalid payload")
		return nil
	}
	if len(payload.To) == 0 {
		log.Warn().Msg("email_worker: no recipients, skipping")
		return nil
	}

	var adjuntos []infra.Adjunto
	if payload.AdjuntoPath != "" {
		data, err := os.ReadFile(payload.AdjuntoPath)
		if err != nil {
			return fmt.Errorf("email_worker: read attachment: %w", err)
		}
		adjuntos = append(adjuntos, infra.Adjunto{
			Nombre:      filepath.Base(payload.AdjuntoPath),
			ContentType: "application/pdf",
			Datos:       data,
		})
	}

	err := w.cb.Execute(func() error {
		return w.mailer.Enviar(payload.To, payload.Subject, payload.Body, adjuntos...)
	})
	if err != nil {
		return fmt.Errorf("email_worker: send: %w", err)
	}
	log.Info().Strs("to", payload.To).Str("subject", payload.Subject).Msg("email_worker: email sent")
	return nil
}
