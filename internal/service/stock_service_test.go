package service_test

import (
	"testing"

	"almacenpos/internal/apperr"
	"almacenpos/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStock_ReservarYAplicar(t *testing.T) {
	f := newFixture(t)
	a := f.producto(t, "Lavandina", 900, 5)
	b := f.producto(t, "Esponja", 300, 1)

	err := f.stock.ReservarYAplicar(f.ctx, []service.Linea{{ProductoID: a.ID, Cantidad: 2}, {ProductoID: b.ID, Cantidad: 2}}, service.DireccionVenta)
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, 5, f.stockDe(t, a.ID))
	assert.Equal(t, 1, f.stockDe(t, b.ID))

	require.NoError(t, f.stock.ReservarYAplicar(f.ctx, []service.Linea{{ProductoID: a.ID, Cantidad: 2}, {ProductoID: b.ID, Cantidad: 1}}, service.DireccionVenta))
	assert.Equal(t, 3, f.stockDe(t, a.ID))
	assert.Equal(t, 0, f.stockDe(t, b.ID))

	// Returns have no upper bound.
	require.NoError(t, f.stock.ReservarYAplicar(f.ctx, []service.Linea{{ProductoID: b.ID, Cantidad: 40}}, service.DireccionDevolucion))
	assert.Equal(t, 40, f.stockDe(t, b.ID))
}

func TestStock_ReservarYAplicarRejectsBadLines(t *testing.T) {
	f := newFixture(t)
	a := f.producto(t, "Trapo", 500, 5)

	err := f.stock.ReservarYAplicar(f.ctx, nil, service.DireccionVenta)
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	err = f.stock.ReservarYAplicar(f.ctx, []service.Linea{{ProductoID: a.ID, Cantidad: -1}}, service.DireccionDevolucion)
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	assert.Equal(t, 5, f.stockDe(t, a.ID))
}

func TestStock_EsStockBajoAndAlertas(t *testing.T) {
	f := newFixture(t)
	bajo := f.producto(t, "Sal", 400, 2) // minimo 2
	f.producto(t, "Pimienta", 700, 30)

	r, err := f.stock.EsStockBajo(f.ctx, bajo.ID)
	require.NoError(t, err)
	assert.True(t, r.StockBajo)

	alertas, err := f.stock.Alertas(f.ctx)
	require.NoError(t, err)
	require.Len(t, alertas, 1)
	assert.Equal(t, bajo.ID.String(), alertas[0].ID)

	todos, err := f.stock.Listar(f.ctx)
	require.NoError(t, err)
	assert.Len(t, todos, 2)
}
