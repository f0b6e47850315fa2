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

// RegistrarMovimientoInput is one manual posting to a client's ledger.
type RegistrarMovimientoInput struct {
	ClienteID      uuid.UUID
	Tipo           model.TipoMovimiento
	Monto          money.Money
	Descripcion    string
	IdempotencyKey *string
}

type CreditoService interface {
	RegistrarMovimiento(ctx context.Context, in RegistrarMovimientoInput) (*dto.MovimientoResponse, error)
	Autorizar(ctx context.Context, clienteID uuid.UUID, monto money.Money) (*dto.AutorizacionResponse, error)
	SetAutorizado(ctx context.Context, clienteID uuid.UUID, autorizado bool) (*dto.ClienteResponse, error)
	ObtenerCliente(ctx context.Context, clienteID uuid.UUID) (*dto.ClienteResponse, error)
	ListarSaldos(ctx context.Context, filtro repository.ClienteFiltro) (*dto.ClienteListResponse, error)
	// Historial returns movements created in [desde, hasta); nil bounds are open.
	Historial(ctx context.Context, clienteID uuid.UUID, desde, hasta *time.Time) (*dto.HistorialClienteResponse, error)
	// Conciliar recomputes the balance from the history and reports any
	// divergence from the cached one. It never repairs.
	Conciliar(ctx context.Context, clienteID uuid.UUID) (*dto.ConciliacionClienteResponse, error)
}

type creditoService struct {
	uow    repository.UnitOfWork
	repos  repository.Repositories
	locker lock.Locker
	now    Clock
}

func NewCreditoService(uow repository.UnitOfWork, repos repository.Repositories, locker lock.Locker, now Clock) CreditoService {
	if now == nil {
		now = time.Now
	}
	return &creditoService{uow: uow, repos: repos, locker: locker, now: now}
}

// ── RegistrarMovimiento ──────────────────────────────────────────────────────

func (s *creditoService) RegistrarMovimiento(ctx context.Context, in RegistrarMovimientoInput) (*dto.MovimientoResponse, error) {
	if !in.Tipo.Valido() {
		return nil, apperr.Newf(apperr.KindInvalidMovement, "tipo de movimiento desconocido: %q", in.Tipo)
	}

	release, err := s.locker.Acquire(ctx, lock.Cliente(in.ClienteID))
	if err != nil {
		return nil, err
	}
	defer release()

	var mov *model.MovimientoCliente
	err = s.uow.Do(ctx, func(r repository.Repositories) error {
		if in.IdempotencyKey != nil {
			prev, err := r.Clientes.FindMovimientoByKey(ctx, *in.IdempotencyKey)
			if err == nil {
				if prev.ClienteID != in.ClienteID || prev.Tipo != in.Tipo {
					return apperr.New(apperr.KindDuplicate, "la clave de idempotencia ya se usó en otra operación").
						With("idempotency_key", *in.IdempotencyKey).
						With("movimiento_id", prev.ID.String())
				}
				mov = prev
				return nil
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}

		c, err := r.Clientes.FindForUpdate(ctx, in.ClienteID)
		if err != nil {
			return noEncontrado(err, "cliente", in.ClienteID)
		}
		mov, err = postear(ctx, r.Clientes, c, in.Tipo, in.Monto, in.Descripcion, nil, in.IdempotencyKey, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("cliente_id", in.ClienteID.String()).
		Str("tipo", string(mov.Tipo)).
		Int64("monto", mov.Monto.Int64()).
		Int64("saldo", mov.SaldoPosterior.Int64()).
		Msg("credito: movimiento registrado")

	resp := movimientoToResponse(mov)
	return &resp, nil
}

// ── Autorizar / SetAutorizado ────────────────────────────────────────────────

func (s *creditoService) Autorizar(ctx context.Context, clienteID uuid.UUID, monto money.Money) (*dto.AutorizacionResponse, error) {
	if !monto.IsPositive() {
		return nil, apperr.New(apperr.KindInvalidRequest, "el monto a autorizar debe ser positivo").With("monto", monto.Int64())
	}
	c, err := s.repos.Clientes.FindByID(ctx, clienteID)
	if err != nil {
		return nil, noEncontrado(err, "cliente", clienteID)
	}
	return &dto.AutorizacionResponse{
		ClienteID:  c.ID.String(),
		Monto:      monto,
		Autorizado: c.PuedeFiar(monto),
		Saldo:      c.Saldo,
		Limite:     c.LimiteCredito,
		Disponible: c.Disponible(),
	}, nil
}

func (s *creditoService) SetAutorizado(ctx context.Context, clienteID uuid.UUID, autorizado bool) (*dto.ClienteResponse, error) {
	release, err := s.locker.Acquire(ctx, lock.Cliente(clienteID))
	if err != nil {
		return nil, err
	}
	defer release()

	var c *model.Cliente
	err = s.uow.Do(ctx, func(r repository.Repositories) error {
		var err error
		c, err = r.Clientes.FindForUpdate(ctx, clienteID)
		if err != nil {
			return noEncontrado(err, "cliente", clienteID)
		}
		c.Autorizado = autorizado
		return r.Clientes.Update(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("cliente_id", clienteID.String()).Bool("autorizado", autorizado).Msg("credito: autorización actualizada")
	return clienteToResponse(c), nil
}

// ── Lecturas ─────────────────────────────────────────────────────────────────

func (s *creditoService) ObtenerCliente(ctx context.Context, clienteID uuid.UUID) (*dto.ClienteResponse, error) {
	c, err := s.repos.Clientes.FindByID(ctx, clienteID)
	if err != nil {
		return nil, noEncontrado(err, "cliente", clienteID)
	}
	return clienteToResponse(c), nil
}

func (s *creditoService) ListarSaldos(ctx context.Context, filtro repository.ClienteFiltro) (*dto.ClienteListResponse, error) {
	cs, err := s.repos.Clientes.List(ctx, filtro)
	if err != nil {
		return nil, err
	}
	resp := &dto.ClienteListResponse{Data: make([]dto.ClienteResponse, len(cs))}
	for i := range cs {
		resp.Data[i] = *clienteToResponse(&cs[i])
		if cs[i].Saldo.IsPositive() {
			resp.TotalAdeudado = resp.TotalAdeudado.Add(cs[i].Saldo)
		}
	}
	return resp, nil
}

func (s *creditoService) Historial(ctx context.Context, clienteID uuid.UUID, desde, hasta *time.Time) (*dto.HistorialClienteResponse, error) {
	if desde != nil && hasta != nil && hasta.Before(*desde) {
		return nil, apperr.New(apperr.KindInvalidRequest, "el rango de fechas es inválido")
	}
	c, err := s.repos.Clientes.FindByID(ctx, clienteID)
	if err != nil {
		return nil, noEncontrado(err, "cliente", clienteID)
	}
	movs, err := s.repos.Clientes.ListMovimientos(ctx, clienteID, desde, hasta)
	if err != nil {
		return nil, err
	}
	resp := &dto.HistorialClienteResponse{
		Cliente:     *clienteToResponse(c),
		Movimientos: make([]dto.MovimientoResponse, len(movs)),
	}
	for i := range movs {
		resp.Movimientos[i] = movimientoToResponse(&movs[i])
	}
	return resp, nil
}

// ── Conciliar ────────────────────────────────────────────────────────────────

func (s *creditoService) Conciliar(ctx context.Context, clienteID uuid.UUID) (*dto.ConciliacionClienteResponse, error) {
	// Holding the client key keeps a posting from landing between the two reads.
	release, err := s.locker.Acquire(ctx, lock.Cliente(clienteID))
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := s.repos.Clientes.FindByID(ctx, clienteID)
	if err != nil {
		return nil, noEncontrado(err, "cliente", clienteID)
	}
	movs, err := s.repos.Clientes.ListMovimientos(ctx, clienteID, nil, nil)
	if err != nil {
		return nil, err
	}

	resp := &dto.ConciliacionClienteResponse{
		ClienteID:   clienteID.String(),
		Saldo:       c.Saldo,
		Movimientos: len(movs),
		Consistente: true,
	}
	if err := model.VerificarHistorial(c.Saldo, c.UltimaSecuencia, movs); err != nil {
		detalle := err.Error()
		resp.Consistente = false
		resp.Detalle = &detalle
		log.Warn().Str("cliente_id", clienteID.String()).Str("detalle", detalle).Msg("credito: historial inconsistente")
	}
	return resp, nil
}
