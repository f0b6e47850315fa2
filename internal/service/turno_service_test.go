package service_test

import (
	"testing"

	"almacenpos/internal/apperr"
	"almacenpos/internal/model"
	"almacenpos/internal/money"
	"almacenpos/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurno_CloseExample(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 10000)
	pCaja := f.producto(t, "Caja de té", 5000, 10)
	pTarjeta := f.producto(t, "Aceite", 3000, 10)

	_, err := f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
		VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoEfectivo,
		Lineas: []service.Linea{{ProductoID: pCaja.ID, Cantidad: 1}},
	})
	require.NoError(t, err)
	_, err = f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
		VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoTarjeta,
		Lineas: []service.Linea{{ProductoID: pTarjeta.ID, Cantidad: 1}},
	})
	require.NoError(t, err)
	_, err = f.turnos.RegistrarGasto(f.ctx, turnoID, service.RegistrarGastoInput{
		Tipo: model.GastoFlete, Monto: money.New(2000), PagadoConEfectivo: true,
	})
	require.NoError(t, err)

	resp, err := f.turnos.Cerrar(f.ctx, turnoID, money.New(13000), ptr("sin novedades"))
	require.NoError(t, err)

	require.NotNil(t, resp.Arqueo)
	assert.Equal(t, "cerrado", resp.Estado)
	assert.Equal(t, money.New(13000), resp.Arqueo.EfectivoEsperado)
	assert.True(t, resp.Arqueo.Diferencia.IsZero())
	assert.Equal(t, model.DiferenciaNormal, resp.Arqueo.Clasificacion)
	assert.Equal(t, money.New(8000), resp.Resumen.TotalVentas)
	assert.Equal(t, 2, resp.Resumen.CantidadTickets)
	assert.Equal(t, money.New(5000), resp.Resumen.DesglosePagos["efectivo"])
	assert.Equal(t, money.New(3000), resp.Resumen.DesglosePagos["tarjeta"])
	assert.Equal(t, money.New(2000), resp.Resumen.TotalGastos)
	assert.Equal(t, []uuid.UUID{turnoID}, f.notifier.cerrados)
}

func TestTurno_SecondCloseFailsAndKeepsSummary(t *testing.T) {
	f := newFixture(t)
	turnoID, _ := f.turno(t, 1000)

	first, err := f.turnos.Cerrar(f.ctx, turnoID, money.New(900), nil)
	require.NoError(t, err)

	_, err = f.turnos.Cerrar(f.ctx, turnoID, money.New(5000), nil)
	assert.ErrorIs(t, err, apperr.ErrAlreadyClosed)

	again, err := f.turnos.ObtenerResumen(f.ctx, turnoID)
	require.NoError(t, err)
	assert.Equal(t, first.Arqueo, again.Arqueo)
	assert.Equal(t, money.New(-100), again.Arqueo.Diferencia)
	assert.Len(t, f.notifier.cerrados, 1)
}

func TestTurno_NegativeCountRejected(t *testing.T) {
	f := newFixture(t)
	turnoID, _ := f.turno(t, 0)

	_, err := f.turnos.Cerrar(f.ctx, turnoID, money.New(-1), nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidCount)
	assert.True(t, f.turnoDe(t, turnoID).Abierto())
}

func TestTurno_OneOpenShiftPerSeller(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 0)

	_, err := f.turnos.Abrir(f.ctx, vendedorID, model.TurnoNoche, money.New(0))
	assert.ErrorIs(t, err, apperr.ErrDuplicate)

	activo, err := f.turnos.TurnoActivo(f.ctx, vendedorID)
	require.NoError(t, err)
	assert.Equal(t, turnoID.String(), activo.ID)

	_, err = f.turnos.Cerrar(f.ctx, turnoID, money.New(0), nil)
	require.NoError(t, err)
	_, err = f.turnos.TurnoActivo(f.ctx, vendedorID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.turnos.Abrir(f.ctx, vendedorID, model.TurnoNoche, money.New(0))
	assert.NoError(t, err)
}

func TestTurno_RejectsWorkAfterClose(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 0)
	p := f.producto(t, "Galletitas", 800, 5)
	_, err := f.turnos.Cerrar(f.ctx, turnoID, money.New(0), nil)
	require.NoError(t, err)

	_, err = f.turnos.RegistrarGasto(f.ctx, turnoID, service.RegistrarGastoInput{Tipo: model.GastoOtro, Monto: money.New(10)})
	assert.ErrorIs(t, err, apperr.ErrShiftClosed)

	_, err = f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
		VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoEfectivo,
		Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 1}},
	})
	assert.ErrorIs(t, err, apperr.ErrShiftClosed)
	assert.Equal(t, 5, f.stockDe(t, p.ID))
}

func TestTurno_GastoValidation(t *testing.T) {
	f := newFixture(t)
	turnoID, _ := f.turno(t, 0)

	_, err := f.turnos.RegistrarGasto(f.ctx, turnoID, service.RegistrarGastoInput{Tipo: model.GastoSueldo, Monto: money.New(0)})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	_, err = f.turnos.RegistrarGasto(f.ctx, turnoID, service.RegistrarGastoInput{Tipo: "propina", Monto: money.New(10)})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	// Expenses paid by other means do not lower the expected cash.
	_, err = f.turnos.RegistrarGasto(f.ctx, turnoID, service.RegistrarGastoInput{Tipo: model.GastoProveedor, Monto: money.New(700), Proveedor: ptr("Distribuidora Sur")})
	require.NoError(t, err)
	resp, err := f.turnos.Cerrar(f.ctx, turnoID, money.New(0), nil)
	require.NoError(t, err)
	assert.True(t, resp.Arqueo.EfectivoEsperado.IsZero())
	assert.Equal(t, money.New(700), resp.Resumen.TotalGastos)
}

func TestTurno_VerificarMatchesStoredSales(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 0)
	p := f.producto(t, "Harina", 1200, 20)

	for i := 0; i < 3; i++ {
		_, err := f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
			VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoTransferencia,
			Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: i + 1}},
		})
		require.NoError(t, err)
	}
	_, err := f.turnos.RegistrarGasto(f.ctx, turnoID, service.RegistrarGastoInput{Tipo: model.GastoOperacion, Monto: money.New(50), PagadoConEfectivo: true})
	require.NoError(t, err)

	v, err := f.turnos.Verificar(f.ctx, turnoID)
	require.NoError(t, err)
	assert.True(t, v.Consistente)
	assert.Equal(t, money.New(7200), v.Recalculado.TotalVentas)
	assert.Equal(t, v.Acumulado, v.Recalculado)
}

func TestTurno_HistorialListsClosedShifts(t *testing.T) {
	f := newFixture(t)
	abierto, _ := f.turno(t, 0)
	for i := 0; i < 3; i++ {
		id, _ := f.turno(t, 0)
		_, err := f.turnos.Cerrar(f.ctx, id, money.New(0), nil)
		require.NoError(t, err)
	}

	h, err := f.turnos.Historial(f.ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), h.Total)
	assert.Len(t, h.Data, 2)

	abiertos, err := f.turnos.ListarAbiertos(f.ctx)
	require.NoError(t, err)
	require.Len(t, abiertos, 1)
	assert.Equal(t, abierto.String(), abiertos[0].ID)
}
