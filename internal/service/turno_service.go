package service

import (
	"context"
	"errors"
	"time"

	"almacenpos/internal/apperr"
	"almacenpos/internal/dto"
	"almacenpos/internal/lock"
	"almacenpos/internal/model"
	"almacenpos/internal/money"
	"almacenpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CierreNotifier is told about every shift that closed successfully.
// Notification failures are logged; they never undo the close.
type CierreNotifier interface {
	TurnoCerrado(ctx context.Context, turnoID uuid.UUID) error
}

type RegistrarGastoInput struct {
	Tipo              model.TipoGasto
	Monto             money.Money
	Proveedor         *string
	Descripcion       *string
	PagadoConEfectivo bool
}

type TurnoService interface {
	Abrir(ctx context.Context, vendedorID uuid.UUID, tipo model.TipoTurno, montoInicial money.Money) (*dto.TurnoResponse, error)
	// TurnoActivo is the explicit seller → open shift lookup.
	TurnoActivo(ctx context.Context, vendedorID uuid.UUID) (*dto.TurnoResponse, error)
	RegistrarGasto(ctx context.Context, turnoID uuid.UUID, in RegistrarGastoInput) (*dto.GastoResponse, error)
	Cerrar(ctx context.Context, turnoID uuid.UUID, contado money.Money, observaciones *string) (*dto.TurnoResponse, error)
	ObtenerResumen(ctx context.Context, turnoID uuid.UUID) (*dto.TurnoResponse, error)
	Historial(ctx context.Context, page, limit int) (*dto.TurnoListResponse, error)
	ListarAbiertos(ctx context.Context) ([]dto.TurnoResponse, error)
	// Verificar rebuilds the summary from the stored sales and expenses and
	// compares it with the running accumulators.
	Verificar(ctx context.Context, turnoID uuid.UUID) (*dto.VerificacionTurnoResponse, error)
}

type turnoService struct {
	uow      repository.UnitOfWork
	repos    repository.Repositories
	locker   lock.Locker
	notifier CierreNotifier
	now      Clock
}

func NewTurnoService(uow repository.UnitOfWork, repos repository.Repositories, locker lock.Locker, notifier CierreNotifier, now Clock) TurnoService {
	if now == nil {
		now = time.Now
	}
	return &turnoService{uow: uow, repos: repos, locker: locker, notifier: notifier, now: now}
}

// ── Abrir ────────────────────────────────────────────────────────────────────

func (s *turnoService) Abrir(ctx context.Context, vendedorID uuid.UUID, tipo model.TipoTurno, montoInicial money.Money) (*dto.TurnoResponse, error) {
	t, err := model.NuevoTurno(vendedorID, tipo, montoInicial, s.now())
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, lock.Vendedor(vendedorID))
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.uow.Do(ctx, func(r repository.Repositories) error {
		abierto, err := r.Turnos.FindAbiertoPorVendedor(ctx, vendedorID)
		if err == nil {
			return apperr.New(apperr.KindDuplicate, "el vendedor ya tiene un turno abierto").With("turno_id", abierto.ID.String())
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return r.Turnos.Create(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("turno_id", t.ID.String()).
		Str("vendedor_id", vendedorID.String()).
		Str("tipo", string(tipo)).
		Int64("monto_inicial", montoInicial.Int64()).
		Msg("turno: abierto")
	return turnoToResponse(t), nil
}

func (s *turnoService) TurnoActivo(ctx context.Context, vendedorID uuid.UUID) (*dto.TurnoResponse, error) {
	t, err := s.repos.Turnos.FindAbiertoPorVendedor(ctx, vendedorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, "el vendedor no tiene un turno abierto", err).With("vendedor_id", vendedorID.String())
		}
		return nil, err
	}
	full, err := s.repos.Turnos.FindByID(ctx, t.ID)
	if err != nil {
		return nil, noEncontrado(err, "turno", t.ID)
	}
	return turnoToResponse(full), nil
}

// ── RegistrarGasto ───────────────────────────────────────────────────────────

func (s *turnoService) RegistrarGasto(ctx context.Context, turnoID uuid.UUID, in RegistrarGastoInput) (*dto.GastoResponse, error) {
	release, err := s.locker.Acquire(ctx, lock.Turno(turnoID))
	if err != nil {
		return nil, err
	}
	defer release()

	g := &model.GastoTurno{
		Tipo:              in.Tipo,
		Monto:             in.Monto,
		Proveedor:         in.Proveedor,
		Descripcion:       in.Descripcion,
		PagadoConEfectivo: in.PagadoConEfectivo,
		CreatedAt:         s.now(),
	}
	err = s.uow.Do(ctx, func(r repository.Repositories) error {
		t, err := r.Turnos.FindForUpdate(ctx, turnoID)
		if err != nil {
			return noEncontrado(err, "turno", turnoID)
		}
		if err := t.RegistrarGasto(g); err != nil {
			return err
		}
		if err := r.Turnos.CreateGasto(ctx, g); err != nil {
			return err
		}
		return r.Turnos.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("turno_id", turnoID.String()).
		Str("tipo", string(g.Tipo)).
		Int64("monto", g.Monto.Int64()).
		Bool("efectivo", g.PagadoConEfectivo).
		Msg("turno: gasto registrado")
	resp := gastoToResponse(g)
	return &resp, nil
}

// ── Cerrar ───────────────────────────────────────────────────────────────────

func (s *turnoService) Cerrar(ctx context.Context, turnoID uuid.UUID, contado money.Money, observaciones *string) (*dto.TurnoResponse, error) {
	release, err := s.locker.Acquire(ctx, lock.Turno(turnoID))
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		t      *model.Turno
		arqueo model.Arqueo
	)
	err = s.uow.Do(ctx, func(r repository.Repositories) error {
		var err error
		t, err = r.Turnos.FindForUpdate(ctx, turnoID)
		if err != nil {
			return noEncontrado(err, "turno", turnoID)
		}
		arqueo, err = t.Cerrar(contado, s.now(), observaciones)
		if err != nil {
			return err
		}
		return r.Turnos.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	ev := log.Info()
	if arqueo.Clasificacion != model.DiferenciaNormal {
		ev = log.Warn()
	}
	ev.Str("turno_id", turnoID.String()).
		Int64("esperado", arqueo.EfectivoEsperado.Int64()).
		Int64("contado", arqueo.EfectivoContado.Int64()).
		Int64("diferencia", arqueo.Diferencia.Int64()).
		Str("clasificacion", arqueo.Clasificacion).
		Msg("turno: cerrado")

	if s.notifier != nil {
		if err := s.notifier.TurnoCerrado(ctx, turnoID); err != nil {
			log.Error().Err(err).Str("turno_id", turnoID.String()).Msg("turno: no se pudo notificar el cierre")
		}
	}
	return turnoToResponse(t), nil
}

// ── Lecturas ─────────────────────────────────────────────────────────────────

func (s *turnoService) ObtenerResumen(ctx context.Context, turnoID uuid.UUID) (*dto.TurnoResponse, error) {
	t, err := s.repos.Turnos.FindByID(ctx, turnoID)
	if err != nil {
		return nil, noEncontrado(err, "turno", turnoID)
	}
	return turnoToResponse(t), nil
}

func (s *turnoService) Historial(ctx context.Context, page, limit int) (*dto.TurnoListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	ts, total, err := s.repos.Turnos.ListCerrados(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	resp := &dto.TurnoListResponse{Data: make([]dto.TurnoResponse, len(ts)), Total: total, Page: page, Limit: limit}
	for i := range ts {
		resp.Data[i] = *turnoToResponse(&ts[i])
	}
	return resp, nil
}

func (s *turnoService) ListarAbiertos(ctx context.Context) ([]dto.TurnoResponse, error) {
	ts, err := s.repos.Turnos.ListAbiertos(ctx)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.TurnoResponse, len(ts))
	for i := range ts {
		resp[i] = *turnoToResponse(&ts[i])
	}
	return resp, nil
}

// ── Verificar ────────────────────────────────────────────────────────────────

func (s *turnoService) Verificar(ctx context.Context, turnoID uuid.UUID) (*dto.VerificacionTurnoResponse, error) {
	release, err := s.locker.Acquire(ctx, lock.Turno(turnoID))
	if err != nil {
		return nil, err
	}
	defer release()

	t, err := s.repos.Turnos.FindByID(ctx, turnoID)
	if err != nil {
		return nil, noEncontrado(err, "turno", turnoID)
	}
	ventas, err := s.repos.Ventas.ListByTurno(ctx, turnoID)
	if err != nil {
		return nil, err
	}

	acumulado := t.Resumen()
	recalculado := model.ResumirMovimientos(ventas, t.Gastos)
	ok := acumulado.Iguales(recalculado)
	if !ok {
		log.Warn().
			Str("turno_id", turnoID.String()).
			Int64("acumulado", acumulado.TotalVentas.Int64()).
			Int64("recalculado", recalculado.TotalVentas.Int64()).
			Msg("turno: resumen inconsistente con las ventas registradas")
	}
	return &dto.VerificacionTurnoResponse{
		TurnoID:     turnoID.String(),
		Consistente: ok,
		Acumulado:   resumenToResponse(acumulado),
		Recalculado: resumenToResponse(recalculado),
	}, nil
}
