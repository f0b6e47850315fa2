package worker

// reporte_worker.go
// Processes reporte_turno jobs: renders the close report of a shift to
// REPORT_STORAGE_PATH and, when REPORT_EMAIL_TO is set, queues it for mailing.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"almacenpos/internal/infra"
	"almacenpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type emailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload EmailJobPayload) error
}

type ReporteWorkerConfig struct {
	Turnos      repository.TurnoRepository
	Ventas      repository.VentaRepository
	Emails      emailEnqueuer // nil disables mailing
	Tienda      string
	StoragePath string
	EmailTo     []string
}

type ReporteWorker struct {
	cfg ReporteWorkerConfig
}

func NewReporteWorker(cfg ReporteWorkerConfig) *ReporteWorker {
	return &ReporteWorker{cfg: cfg}
}

// Process renders the report. It only reads the ledger.
func (w *ReporteWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ReporteJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("reporte_worker: invalid payload")
		return nil
	}
	turnoID, err := uuid.Parse(payload.TurnoID)
	if err != nil {
		log.Error().Str("turno_id", payload.TurnoID).Msg("reporte_worker: invalid turno_id")
		return nil
	}

	turno, err := w.cfg.Turnos.FindByID(ctx, turnoID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Error().Str("turno_id", payload.TurnoID).Msg("reporte_worker: turno not found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reporte_worker: load turno: %w", err)
	}
	ventas, err := w.cfg.Ventas.ListByTurno(ctx, turnoID)
	if err != nil {
		return fmt.Errorf("reporte_worker: load ventas: %w", err)
	}

	var buf bytes.Buffer
	if err := infra.GenerarReporteTurnoPDF(&buf, w.cfg.Tienda, turno, ventas); err != nil {
		log.Error().Err(err).Str("turno_id", payload.TurnoID).Msg("reporte_worker: cannot render")
		return nil
	}

	if err := os.MkdirAll(w.cfg.StoragePath, 0o755); err != nil {
		return fmt.Errorf("reporte_worker: create storage dir: %w", err)
	}
	path := filepath.Join(w.cfg.StoragePath, fmt.Sprintf("turno_%s.pdf", turnoID))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("reporte_worker: write file: %w", err)
	}
	log.Info().Str("turno_id", payload.TurnoID).Str("path", path).Msg("reporte_worker: report written")

	if w.cfg.Emails == nil || len(w.cfg.EmailTo) == 0 {
		return nil
	}
	return w.cfg.Emails.EnqueueEmail(ctx, EmailJobPayload{
		To:          w.cfg.EmailTo,
		Subject:     fmt.Sprintf("%s: cierre de turno %s", w.cfg.Tienda, turno.Inicio.Format("02/01/2006")),
		Body:        "Se adjunta el reporte de cierre del turno.",
		AdjuntoPath: path,
	})
}
