package worker

// conciliacion_cron.go
// Periodic read-only audit of both ledgers: every client's cached balance is
// recomputed from its history and every open shift's running summary from its
// sales and expenses. Divergences are logged, never repaired.

import (
	"context"
	"sync"
	"time"

	"almacenpos/internal/dto"
	"almacenpos/internal/repository"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type ClienteAuditor interface {
	ListarSaldos(ctx context.Context, filtro repository.ClienteFiltro) (*dto.ClienteListResponse, error)
	Conciliar(ctx context.Context, clienteID uuid.UUID) (*dto.ConciliacionClienteResponse, error)
}

type TurnoAuditor interface {
	ListarAbiertos(ctx context.Context) ([]dto.TurnoResponse, error)
	Verificar(ctx context.Context, turnoID uuid.UUID) (*dto.VerificacionTurnoResponse, error)
}

// ResultadoConciliacion summarizes one audit run. Errores counts items that
// could not be audited (e.g. a lock timeout on a busy client); they are
// retried on the next run.
type ResultadoConciliacion struct {
	Clientes               int
	ClientesInconsistentes []string
	Turnos                 int
	TurnosInconsistentes   []string
	Errores                int
	Duracion               time.Duration
}

type ConciliacionCron struct {
	clientes    ClienteAuditor
	turnos      TurnoAuditor
	paralelismo int
	cron        *cron.Cron
	log         zerolog.Logger
}

func NewConciliacionCron(clientes ClienteAuditor, turnos TurnoAuditor, paralelismo int) *ConciliacionCron {
	if paralelismo <= 0 {
		paralelismo = 4
	}
	return &ConciliacionCron{
		clientes:    clientes,
		turnos:      turnos,
		paralelismo: paralelismo,
		cron:        cron.New(),
		log:         log.With().Str("component", "conciliacion").Logger(),
	}
}

// Start schedules Run (e.g. "@every 1h", "0 3 * * *") and starts the cron.
func (c *ConciliacionCron) Start(schedule string) error {
	_, err := c.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := c.Run(ctx); err != nil {
			c.log.Error().Err(err).Msg("conciliacion: run failed")
		}
	})
	if err != nil {
		return err
	}
	c.cron.Start()
	c.log.Info().Str("schedule", schedule).Msg("conciliacion: scheduled")
	return nil
}

// Stop waits for a running audit to finish.
func (c *ConciliacionCron) Stop() {
	<-c.cron.Stop().Done()
	c.log.Info().Msg("conciliacion: stopped")
}

// Run audits every client and every open shift with bounded parallelism.
// Per-item failures are logged and counted; only failing to list the items
// aborts the run.
func (c *ConciliacionCron) Run(ctx context.Context) (*ResultadoConciliacion, error) {
	inicio := time.Now()
	clientes, err := c.clientes.ListarSaldos(ctx, repository.ClienteFiltro{})
	if err != nil {
		return nil, err
	}
	abiertos, err := c.turnos.ListarAbiertos(ctx)
	if err != nil {
		return nil, err
	}

	res := &ResultadoConciliacion{Clientes: len(clientes.Data), Turnos: len(abiertos)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.paralelismo)

	for _, cl := range clientes.Data {
		id, err := uuid.Parse(cl.ID)
		if err != nil {
			continue
		}
		g.Go(func() error {
			r, err := c.clientes.Conciliar(gctx, id)
			if err != nil {
				c.log.Error().Err(err).Str("cliente_id", id.String()).Msg("conciliacion: no se pudo auditar el cliente")
				mu.Lock()
				res.Errores++
				mu.Unlock()
				return nil
			}
			if !r.Consistente {
				c.log.Warn().Str("cliente_id", r.ClienteID).Int64("saldo", r.Saldo.Int64()).
					Interface("detalle", r.Detalle).Msg("conciliacion: saldo de cliente inconsistente")
				mu.Lock()
				res.ClientesInconsistentes = append(res.ClientesInconsistentes, r.ClienteID)
				mu.Unlock()
			}
			return nil
		})
	}
	for _, t := range abiertos {
		id, err := uuid.Parse(t.ID)
		if err != nil {
			continue
		}
		g.Go(func() error {
			v, err := c.turnos.Verificar(gctx, id)
			if err != nil {
				c.log.Error().Err(err).Str("turno_id", id.String()).Msg("conciliacion: no se pudo auditar el turno")
				mu.Lock()
				res.Errores++
				mu.Unlock()
				return nil
			}
			if !v.Consistente {
				c.log.Warn().Str("turno_id", v.TurnoID).Interface("acumulado", v.Acumulado).
					Interface("recalculado", v.Recalculado).Msg("conciliacion: resumen de turno inconsistente")
				mu.Lock()
				res.TurnosInconsistentes = append(res.TurnosInconsistentes, v.TurnoID)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Duracion = time.Since(inicio)
	c.log.Info().
		Int("clientes", res.Clientes).
		Int("clientes_inconsistentes", len(res.ClientesInconsistentes)).
		Int("turnos", res.Turnos).
		Int("turnos_inconsistentes", len(res.TurnosInconsistentes)).
		Int("errores", res.Errores).
		Dur("duracion", res.Duracion).
		Msg("conciliacion: run complete")
	return res, nil
}
