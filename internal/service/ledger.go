package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"almacenpos/internal/apperr"
	"almacenpos/internal/model"
	"almacenpos/internal/money"
	"almacenpos/internal/repository"

	"github.com/google/uuid"
)

// Linea is one product line of a sale, a return or a stock movement.
type Linea struct {
	ProductoID uuid.UUID
	Cantidad   int
}

// Direccion of a stock movement.
type Direccion int

const (
	DireccionVenta      Direccion = iota // decrements, all-or-nothing
	DireccionDevolucion                  // increments, unbounded
)

// Clock returns the current time; tests replace it.
type Clock func() time.Time

// ── Shared ledger steps ──────────────────────────────────────────────────────
// These run inside a unit of work with the caller already holding the locks
// of every resource they touch.

// unirLineas validates and merges lines on the same product, sorted by id.
func unirLineas(lineas []Linea) ([]Linea, error) {
	if len(lineas) == 0 {
		return nil, apperr.New(apperr.KindInvalidRequest, "la operación no tiene productos")
	}
	idx := make(map[uuid.UUID]int, len(lineas))
	out := make([]Linea, 0, len(lineas))
	for _, l := range lineas {
		if l.Cantidad <= 0 {
			return nil, apperr.New(apperr.KindInvalidRequest, "la cantidad debe ser mayor a cero").
				With("producto_id", l.ProductoID.String()).
				With("cantidad", l.Cantidad)
		}
		if i, ok := idx[l.ProductoID]; ok {
			out[i].Cantidad += l.Cantidad
			continue
		}
		idx[l.ProductoID] = len(out)
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductoID.String() < out[j].ProductoID.String() })
	return out, nil
}

func noEncontrado(err error, entidad string, id uuid.UUID) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, entidad+" no encontrado", err).With("id", id.String())
	}
	return err
}

// cargarProductos loads every product of lineas for update.
func cargarProductos(ctx context.Context, repo repository.ProductoRepository, lineas []Linea) (map[uuid.UUID]*model.Producto, error) {
	out := make(map[uuid.UUID]*model.Producto, len(lineas))
	for _, l := range lineas {
		p, err := repo.FindForUpdate(ctx, l.ProductoID)
		if err != nil {
			return nil, noEncontrado(err, "producto", l.ProductoID)
		}
		out[l.ProductoID] = p
	}
	return out, nil
}

// aplicarStock moves stock for every line. For a sale every line is checked
// before anything is written; a shortage on any line fails the whole set.
func aplicarStock(ctx context.Context, repo repository.ProductoRepository, productos map[uuid.UUID]*model.Producto, lineas []Linea, dir Direccion) error {
	signo := -1
	if dir == DireccionDevolucion {
		signo = 1
	}

	var faltantes []map[string]any
	nuevos := make(map[uuid.UUID]int, len(lineas))
	for _, l := range lineas {
		p := *productos[l.ProductoID]
		if err := p.AplicarDelta(signo * l.Cantidad); err != nil {
			faltantes = append(faltantes, map[string]any{
				"producto_id": p.ID.String(),
				"nombre":      p.Nombre,
				"disponible":  p.StockActual,
				"solicitado":  l.Cantidad,
			})
			continue
		}
		nuevos[l.ProductoID] = p.StockActual
	}
	if len(faltantes) > 0 {
		return apperr.New(apperr.KindInsufficientStock, "stock insuficiente").With("faltantes", faltantes)
	}

	for _, l := range lineas {
		if err := repo.UpdateStock(ctx, l.ProductoID, nuevos[l.ProductoID]); err != nil {
			return err
		}
		productos[l.ProductoID].StockActual = nuevos[l.ProductoID]
	}
	return nil
}

// postear appends one movement to the client's history and persists the new
// cached balance. c must have been loaded for update in the same unit.
func postear(ctx context.Context, repo repository.ClienteRepository, c *model.Cliente, tipo model.TipoMovimiento, monto money.Money, descripcion string, ventaID *uuid.UUID, key *string, ahora time.Time) (*model.MovimientoCliente, error) {
	mov, err := c.Aplicar(tipo, monto, descripcion, ahora)
	if err != nil {
		return nil, err
	}
	mov.VentaID = ventaID
	mov.IdempotencyKey = key
	if err := repo.AppendMovimiento(ctx, &mov); err != nil {
		return nil, err
	}
	if err := repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return &mov, nil
}
