package service

import (
	"context"
	"errors"
	"fmt"
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

// ProcesarVentaInput is a checkout request as seen by the sale processor.
type ProcesarVentaInput struct {
	VendedorID uuid.UUID
	TurnoID    uuid.UUID
	Lineas     []Linea
	MetodoPago model.MetodoPago
	// ClienteID is required for fiado and ignored otherwise.
	ClienteID *uuid.UUID
	// MontoRecibido applies to efectivo only; nil means exact payment.
	MontoRecibido  *money.Money
	IdempotencyKey *string
}

// DevolverVentaInput returns part or all of a recorded sale.
type DevolverVentaInput struct {
	VendedorID      uuid.UUID
	VentaOriginalID uuid.UUID
	Lineas          []Linea
	Motivo          *string
	IdempotencyKey  *string
}

// VentaCache keeps recent responses by idempotency key so a retried checkout
// is answered without touching the database. The stored key on the sale
// stays authoritative.
type VentaCache interface {
	Get(ctx context.Context, key string) (*dto.VentaResponse, bool)
	Set(ctx context.Context, key string, v *dto.VentaResponse)
}

type VentaService interface {
	Procesar(ctx context.Context, in ProcesarVentaInput) (*dto.VentaResponse, error)
	Devolver(ctx context.Context, in DevolverVentaInput) (*dto.VentaResponse, error)
	ObtenerVenta(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error)
	ListarVentasTurno(ctx context.Context, turnoID uuid.UUID) ([]dto.VentaResponse, error)
}

type ventaService struct {
	uow    repository.UnitOfWork
	repos  repository.Repositories
	locker lock.Locker
	cache  VentaCache
	now    Clock
}

// NewVentaService wires the sale processor. cache may be nil.
func NewVentaService(uow repository.UnitOfWork, repos repository.Repositories, locker lock.Locker, cache VentaCache, now Clock) VentaService {
	if now == nil {
		now = time.Now
	}
	return &ventaService{uow: uow, repos: repos, locker: locker, cache: cache, now: now}
}

// previa returns the sale already recorded under key, if any. A key that was
// used by a different operation (coincide false) is a duplicate, never a replay.
func (s *ventaService) previa(ctx context.Context, ventas repository.VentaRepository, key *string, coincide func(*dto.VentaResponse) bool) (*dto.VentaResponse, error) {
	if key == nil {
		return nil, nil
	}
	var (
		resp *dto.VentaResponse
		ok   bool
	)
	if s.cache != nil {
		resp, ok = s.cache.Get(ctx, *key)
	}
	if !ok {
		v, err := ventas.FindByIdempotencyKey(ctx, *key)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		resp = ventaToResponse(v)
	}
	if !coincide(resp) {
		return nil, apperr.New(apperr.KindDuplicate, "la clave de idempotencia ya se usó en otra operación").
			With("idempotency_key", *key).
			With("venta_id", resp.ID)
	}
	return resp, nil
}

func mismaVenta(in ProcesarVentaInput) func(*dto.VentaResponse) bool {
	return func(v *dto.VentaResponse) bool {
		return v.Tipo == string(model.TipoVentaNormal) &&
			v.TurnoID == in.TurnoID.String() &&
			v.VendedorID == in.VendedorID.String()
	}
}

func mismaDevolucion(in DevolverVentaInput) func(*dto.VentaResponse) bool {
	return func(v *dto.VentaResponse) bool {
		return v.Tipo == string(model.TipoVentaDevolucion) &&
			v.VentaOriginalID != nil && *v.VentaOriginalID == in.VentaOriginalID.String() &&
			v.VendedorID == in.VendedorID.String()
	}
}

func (s *ventaService) recordar(ctx context.Context, key *string, resp *dto.VentaResponse) {
	if key != nil && s.cache != nil {
		s.cache.Set(ctx, *key, resp)
	}
}

// turnoDelVendedor loads the shift for update and checks it can take sales
// from vendedorID.
func turnoDelVendedor(ctx context.Context, repo repository.TurnoRepository, turnoID, vendedorID uuid.UUID) (*model.Turno, error) {
	t, err := repo.FindForUpdate(ctx, turnoID)
	if err != nil {
		return nil, noEncontrado(err, "turno", turnoID)
	}
	if !t.Abierto() {
		return nil, apperr.New(apperr.KindShiftClosed, "el turno está cerrado").With("turno_id", turnoID.String())
	}
	if t.VendedorID != vendedorID {
		return nil, apperr.New(apperr.KindShiftClosed, "el turno no pertenece al vendedor").
			With("turno_id", turnoID.String()).
			With("vendedor_id", vendedorID.String())
	}
	return t, nil
}

func registrarEnTurno(ctx context.Context, repo repository.TurnoRepository, t *model.Turno, v *model.Venta) error {
	fueraDeRango, err := t.RegistrarVenta(v)
	if err != nil {
		return err
	}
	if fueraDeRango {
		log.Warn().
			Str("turno_id", t.ID.String()).
			Str("venta_id", v.ID.String()).
			Str("metodo_pago", string(v.MetodoPago)).
			Int64("ventas_acumuladas", t.VentasAcumuladas.Int64()).
			Msg("turno: la devolución dejó acumulados negativos")
	}
	return repo.Update(ctx, t)
}

// ── Procesar ─────────────────────────────────────────────────────────────────
// All sub-effects commit together:
//   1. shift open and owned by the seller
//   2. prices copied from the catalog into the items
//   3. fiado: credit authorization and the fiado movement
//   4. stock decrement, all lines or none
//   5. ticket number, sale row, shift accumulators

func (s *ventaService) Procesar(ctx context.Context, in ProcesarVentaInput) (*dto.VentaResponse, error) {
	lineas, err := unirLineas(in.Lineas)
	if err != nil {
		return nil, err
	}
	if !in.MetodoPago.Valido() {
		return nil, apperr.Newf(apperr.KindInvalidRequest, "método de pago inválido: %q", in.MetodoPago)
	}
	if in.MetodoPago == model.PagoFiado && in.ClienteID == nil {
		return nil, apperr.New(apperr.KindInvalidRequest, "la venta fiada requiere un cliente")
	}
	if in.MetodoPago != model.PagoFiado {
		in.ClienteID = nil
	}
	if in.MetodoPago != model.PagoEfectivo {
		in.MontoRecibido = nil
	}
	if in.MontoRecibido != nil && in.MontoRecibido.IsNegative() {
		return nil, apperr.New(apperr.KindInvalidRequest, "el monto recibido no puede ser negativo")
	}

	if resp, err := s.previa(ctx, s.repos.Ventas, in.IdempotencyKey, mismaVenta(in)); err != nil || resp != nil {
		return resp, err
	}

	keys := make([]lock.Key, 0, len(lineas)+2)
	for _, l := range lineas {
		keys = append(keys, lock.Producto(l.ProductoID))
	}
	if in.ClienteID != nil {
		keys = append(keys, lock.Cliente(*in.ClienteID))
	}
	keys = append(keys, lock.Turno(in.TurnoID))

	release, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		venta  *model.Venta
		previa *dto.VentaResponse
	)
	err = s.uow.Do(ctx, func(r repository.Repositories) error {
		// A concurrent retry with the same key may have committed while we waited.
		if p, err := s.previa(ctx, r.Ventas, in.IdempotencyKey, mismaVenta(in)); err != nil || p != nil {
			previa = p
			return err
		}

		t, err := turnoDelVendedor(ctx, r.Turnos, in.TurnoID, in.VendedorID)
		if err != nil {
			return err
		}

		productos, err := cargarProductos(ctx, r.Productos, lineas)
		if err != nil {
			return err
		}
		venta = &model.Venta{
			ID:             uuid.New(),
			Tipo:           model.TipoVentaNormal,
			MetodoPago:     in.MetodoPago,
			TurnoID:        t.ID,
			VendedorID:     in.VendedorID,
			ClienteID:      in.ClienteID,
			IdempotencyKey: in.IdempotencyKey,
			CreatedAt:      s.now(),
		}
		for _, l := range lineas {
			p := productos[l.ProductoID]
			if !p.Activo {
				return apperr.New(apperr.KindInvalidRequest, "el producto está inactivo").
					With("producto_id", p.ID.String()).
					With("nombre", p.Nombre)
			}
			venta.Items = append(venta.Items, model.VentaItem{
				ID:             uuid.New(),
				VentaID:        venta.ID,
				ProductoID:     p.ID,
				Nombre:         p.Nombre,
				PrecioUnitario: p.PrecioVenta,
				Cantidad:       l.Cantidad,
				Subtotal:       p.PrecioVenta.Mul(l.Cantidad),
			})
		}
		venta.Total = model.SumarItems(venta.Items)

		if in.MetodoPago == model.PagoEfectivo {
			recibido := venta.Total
			if in.MontoRecibido != nil {
				recibido = *in.MontoRecibido
			}
			if recibido.LessThan(venta.Total) {
				return apperr.New(apperr.KindInvalidRequest, "el monto recibido es menor al total").
					With("total", venta.Total.Int64()).
					With("recibido", recibido.Int64())
			}
			vuelto := recibido.Sub(venta.Total)
			venta.MontoRecibido = &recibido
			venta.Vuelto = &vuelto
		}

		numero, err := r.Ventas.NextTicketNumber(ctx)
		if err != nil {
			return err
		}
		venta.NumeroTicket = numero

		if in.MetodoPago == model.PagoFiado {
			c, err := r.Clientes.FindForUpdate(ctx, *in.ClienteID)
			if err != nil {
				return noEncontrado(err, "cliente", *in.ClienteID)
			}
			if !c.PuedeFiar(venta.Total) {
				return apperr.New(apperr.KindCreditDenied, "crédito denegado").
					With("cliente_id", c.ID.String()).
					With("autorizado", c.Autorizado).
					With("solicitado", venta.Total.Int64()).
					With("saldo", c.Saldo.Int64()).
					With("limite", c.LimiteCredito.Int64()).
					With("disponible", c.Disponible().Int64())
			}
			desc := fmt.Sprintf("Venta fiada ticket #%d", numero)
			if _, err := postear(ctx, r.Clientes, c, model.MovimientoFiado, venta.Total, desc, &venta.ID, nil, venta.CreatedAt); err != nil {
				return err
			}
		}

		if err := aplicarStock(ctx, r.Productos, productos, lineas, DireccionVenta); err != nil {
			return err
		}
		if err := r.Ventas.Create(ctx, venta); err != nil {
			return err
		}
		return registrarEnTurno(ctx, r.Turnos, t, venta)
	})
	if err != nil {
		return nil, err
	}
	if previa != nil {
		return previa, nil
	}

	log.Info().
		Str("venta_id", venta.ID.String()).
		Int64("ticket", venta.NumeroTicket).
		Str("turno_id", venta.TurnoID.String()).
		Str("metodo_pago", string(venta.MetodoPago)).
		Int64("total", venta.Total.Int64()).
		Msg("venta: procesada")

	resp := ventaToResponse(venta)
	s.recordar(ctx, in.IdempotencyKey, resp)
	return resp, nil
}

// ── Devolver ─────────────────────────────────────────────────────────────────
// A return always references the original sale. Quantities are bounded by
// what was sold minus what earlier returns already gave back, and unit prices
// come from the original. It books against the seller's current open shift.

func (s *ventaService) Devolver(ctx context.Context, in DevolverVentaInput) (*dto.VentaResponse, error) {
	lineas, err := unirLineas(in.Lineas)
	if err != nil {
		return nil, err
	}
	if resp, err := s.previa(ctx, s.repos.Ventas, in.IdempotencyKey, mismaDevolucion(in)); err != nil || resp != nil {
		return resp, err
	}

	orig, err := s.repos.Ventas.FindByID(ctx, in.VentaOriginalID)
	if err != nil {
		return nil, noEncontrado(err, "venta", in.VentaOriginalID)
	}
	if orig.EsDevolucion() {
		return nil, apperr.New(apperr.KindInvalidRequest, "no se puede devolver una devolución").With("venta_id", orig.ID.String())
	}
	activo, err := s.repos.Turnos.FindAbiertoPorVendedor(ctx, in.VendedorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindShiftClosed, "el vendedor no tiene un turno abierto").With("vendedor_id", in.VendedorID.String())
		}
		return nil, err
	}

	keys := make([]lock.Key, 0, len(lineas)+2)
	for _, l := range lineas {
		keys = append(keys, lock.Producto(l.ProductoID))
	}
	if orig.MetodoPago == model.PagoFiado && orig.ClienteID != nil {
		keys = append(keys, lock.Cliente(*orig.ClienteID))
	}
	keys = append(keys, lock.Turno(activo.ID))

	release, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		dev    *model.Venta
		previa *dto.VentaResponse
	)
	err = s.uow.Do(ctx, func(r repository.Repositories) error {
		if p, err := s.previa(ctx, r.Ventas, in.IdempotencyKey, mismaDevolucion(in)); err != nil || p != nil {
			previa = p
			return err
		}

		t, err := turnoDelVendedor(ctx, r.Turnos, activo.ID, in.VendedorID)
		if err != nil {
			return err
		}

		anteriores, err := r.Ventas.ListDevoluciones(ctx, orig.ID)
		if err != nil {
			return err
		}
		devuelto := make(map[uuid.UUID]int)
		for _, d := range anteriores {
			for _, it := range d.Items {
				devuelto[it.ProductoID] += it.Cantidad
			}
		}
		vendido := make(map[uuid.UUID]int)
		originales := make(map[uuid.UUID]model.VentaItem)
		for _, it := range orig.Items {
			vendido[it.ProductoID] += it.Cantidad
			originales[it.ProductoID] = it
		}

		dev = &model.Venta{
			ID:              uuid.New(),
			Tipo:            model.TipoVentaDevolucion,
			MetodoPago:      orig.MetodoPago,
			TurnoID:         t.ID,
			VendedorID:      in.VendedorID,
			ClienteID:       orig.ClienteID,
			VentaOriginalID: &orig.ID,
			IdempotencyKey:  in.IdempotencyKey,
			Motivo:          in.Motivo,
			CreatedAt:       s.now(),
		}
		for _, l := range lineas {
			it, ok := originales[l.ProductoID]
			if !ok {
				return apperr.New(apperr.KindInvalidRequest, "el producto no pertenece a la venta original").
					With("producto_id", l.ProductoID.String())
			}
			if restante := vendido[l.ProductoID] - devuelto[l.ProductoID]; l.Cantidad > restante {
				return apperr.New(apperr.KindInvalidRequest, "la cantidad a devolver excede lo vendido").
					With("producto_id", l.ProductoID.String()).
					With("vendido", vendido[l.ProductoID]).
					With("devuelto", devuelto[l.ProductoID]).
					With("solicitado", l.Cantidad)
			}
			dev.Items = append(dev.Items, model.VentaItem{
				ID:             uuid.New(),
				VentaID:        dev.ID,
				ProductoID:     l.ProductoID,
				Nombre:         it.Nombre,
				PrecioUnitario: it.PrecioUnitario,
				Cantidad:       l.Cantidad,
				Subtotal:       it.PrecioUnitario.Mul(l.Cantidad),
			})
		}
		dev.Total = model.SumarItems(dev.Items)

		numero, err := r.Ventas.NextTicketNumber(ctx)
		if err != nil {
			return err
		}
		dev.NumeroTicket = numero

		if orig.MetodoPago == model.PagoFiado && orig.ClienteID != nil {
			c, err := r.Clientes.FindForUpdate(ctx, *orig.ClienteID)
			if err != nil {
				return noEncontrado(err, "cliente", *orig.ClienteID)
			}
			// The client may already have paid part of the original; never push the balance below zero.
			if abono := money.Min(dev.Total, c.Saldo); abono.IsPositive() {
				desc := fmt.Sprintf("Devolución ticket #%d (venta #%d)", numero, orig.NumeroTicket)
				if _, err := postear(ctx, r.Clientes, c, model.MovimientoAbono, abono, desc, &dev.ID, nil, dev.CreatedAt); err != nil {
					return err
				}
			}
		}

		productos, err := cargarProductos(ctx, r.Productos, lineas)
		if err != nil {
			return err
		}
		if err := aplicarStock(ctx, r.Productos, productos, lineas, DireccionDevolucion); err != nil {
			return err
		}
		if err := r.Ventas.Create(ctx, dev); err != nil {
			return err
		}
		return registrarEnTurno(ctx, r.Turnos, t, dev)
	})
	if err != nil {
		return nil, err
	}
	if previa != nil {
		return previa, nil
	}

	log.Info().
		Str("venta_id", dev.ID.String()).
		Str("venta_original_id", orig.ID.String()).
		Int64("ticket", dev.NumeroTicket).
		Int64("total", dev.Total.Int64()).
		Msg("venta: devolución registrada")

	resp := ventaToResponse(dev)
	s.recordar(ctx, in.IdempotencyKey, resp)
	return resp, nil
}

// ── Lecturas ─────────────────────────────────────────────────────────────────

func (s *ventaService) ObtenerVenta(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error) {
	v, err := s.repos.Ventas.FindByID(ctx, id)
	if err != nil {
		return nil, noEncontrado(err, "venta", id)
	}
	return ventaToResponse(v), nil
}

func (s *ventaService) ListarVentasTurno(ctx context.Context, turnoID uuid.UUID) ([]dto.VentaResponse, error) {
	if _, err := s.repos.Turnos.FindByID(ctx, turnoID); err != nil {
		return nil, noEncontrado(err, "turno", turnoID)
	}
	vs, err := s.repos.Ventas.ListByTurno(ctx, turnoID)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.VentaResponse, len(vs))
	for i := range vs {
		resp[i] = *ventaToResponse(&vs[i])
	}
	return resp, nil
}
