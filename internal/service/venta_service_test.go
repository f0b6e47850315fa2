package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"almacenpos/internal/apperr"
	"almacenpos/internal/dto"
	"almacenpos/internal/model"
	"almacenpos/internal/money"
	"almacenpos/internal/repository"
	"almacenpos/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVenta_CashSale(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 1000)
	yerba := f.producto(t, "Yerba", 2500, 10)
	azucar := f.producto(t, "Azúcar", 1200, 10)

	resp, err := f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
		VendedorID: vendedorID,
		TurnoID:    turnoID,
		MetodoPago: model.PagoEfectivo,
		Lineas: []service.Linea{
			{ProductoID: yerba.ID, Cantidad: 1},
			{ProductoID: azucar.ID, Cantidad: 2},
			{ProductoID: yerba.ID, Cantidad: 1},
		},
		MontoRecibido: ptr(money.New(10000)),
	})
	require.NoError(t, err)

	assert.Equal(t, money.New(7400), resp.Total)
	assert.Equal(t, money.New(2600), *resp.Vuelto)
	assert.Equal(t, int64(1), resp.NumeroTicket)
	require.Len(t, resp.Items, 2, "lines on the same product are merged")
	var sum money.Money
	for _, it := range resp.Items {
		sum = sum.Add(it.Subtotal)
	}
	assert.Equal(t, resp.Total, sum)

	assert.Equal(t, 8, f.stockDe(t, yerba.ID))
	assert.Equal(t, 8, f.stockDe(t, azucar.ID))

	tr := f.turnoDe(t, turnoID)
	assert.Equal(t, money.New(7400), tr.VentasAcumuladas)
	assert.Equal(t, 1, tr.TicketsAcumulados)
	assert.Equal(t, money.New(7400), tr.PagosAcumulados[model.PagoEfectivo])
}

func TestVenta_PriceIsCopiedAtSaleTime(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 0)
	p := f.producto(t, "Leche", 900, 10)

	resp, err := f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
		VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoTarjeta,
		Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 1}},
	})
	require.NoError(t, err)

	got, err := f.ventas.ObtenerVenta(f.ctx, uuid.MustParse(resp.ID))
	require.NoError(t, err)
	assert.Equal(t, money.New(900), got.Items[0].PrecioUnitario)
	assert.Equal(t, "Leche", got.Items[0].Producto)
	assert.Nil(t, got.Vuelto, "non-cash sales carry no change")
}

func TestVenta_CashBelowTotalRejected(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 0)
	p := f.producto(t, "Queso", 6000, 3)

	_, err := f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
		VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoEfectivo,
		Lineas:        []service.Linea{{ProductoID: p.ID, Cantidad: 1}},
		MontoRecibido: ptr(money.New(5000)),
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	assert.Equal(t, 3, f.stockDe(t, p.ID))
	assert.Zero(t, f.turnoDe(t, turnoID).TicketsAcumulados)
}

func TestVenta_InputValidation(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 0)
	p := f.producto(t, "Arroz", 1000, 3)

	cases := []struct {
		name string
		in   service.ProcesarVentaInput
	}{
		{"sin lineas", service.ProcesarVentaInput{VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoEfectivo}},
		{"cantidad cero", service.ProcesarVentaInput{VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoEfectivo, Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 0}}}},
		{"metodo desconocido", service.ProcesarVentaInput{VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: "cheque", Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 1}}}},
		{"fiado sin cliente", service.ProcesarVentaInput{VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoFiado, Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 1}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ventas.Procesar(f.ctx, tc.in)
			assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
		})
	}
	assert.Equal(t, 3, f.stockDe(t, p.ID))
}

func TestVenta_FiadoCreditExample(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 0)
	c := f.cliente(t, 50000)
	p := f.producto(t, "Bolsa de 10000", 10000, 20)

	fiado := func(unidades int) (*dto.VentaResponse, error) {
		return f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
			VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoFiado, ClienteID: &c.ID,
			Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: unidades}},
		})
	}

	resp, err := fiado(2)
	require.NoError(t, err)
	assert.Equal(t, money.New(20000), f.saldoDe(t, c.ID))

	movs, err := f.repos.Clientes.ListMovimientos(f.ctx, c.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.Equal(t, model.MovimientoFiado, movs[0].Tipo)
	assert.Equal(t, resp.ID, movs[0].VentaID.String())

	_, err = fiado(4)
	require.ErrorIs(t, err, apperr.ErrCreditDenied)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, int64(40000), appErr.Context["solicitado"])
	assert.Equal(t, int64(20000), appErr.Context["saldo"])
	assert.Equal(t, int64(50000), appErr.Context["limite"])
	assert.Equal(t, int64(30000), appErr.Context["disponible"])

	// Nothing from the denied sale is visible.
	assert.Equal(t, money.New(20000), f.saldoDe(t, c.ID))
	assert.Equal(t, 18, f.stockDe(t, p.ID))
	tr := f.turnoDe(t, turnoID)
	assert.Equal(t, 1, tr.TicketsAcumulados)
	assert.Equal(t, money.New(20000), tr.PagosAcumulados[model.PagoFiado])
}

func TestVenta_FiadoDeniedForDeauthorizedClient(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 0)
	c := f.cliente(t, 50000)
	p := f.producto(t, "Fideos", 700, 5)
	_, err := f.credito.SetAutorizado(f.ctx, c.ID, false)
	require.NoError(t, err)

	_, err = f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
		VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoFiado, ClienteID: &c.ID,
		Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 1}},
	})
	assert.ErrorIs(t, err, apperr.ErrCreditDenied)
}

func TestVenta_InsufficientStockIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 0)
	hay := f.producto(t, "Pan", 500, 10)
	falta := f.producto(t, "Manteca", 1800, 1)

	_, err := f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
		VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoEfectivo,
		Lineas: []service.Linea{{ProductoID: hay.ID, Cantidad: 3}, {ProductoID: falta.ID, Cantidad: 2}},
	})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	appErr, _ := apperr.As(err)
	faltantes, ok := appErr.Context["faltantes"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, faltantes, 1)
	assert.Equal(t, falta.ID.String(), faltantes[0]["producto_id"])

	assert.Equal(t, 10, f.stockDe(t, hay.ID))
	assert.Equal(t, 1, f.stockDe(t, falta.ID))
}

func TestVenta_ShiftMustBelongToSeller(t *testing.T) {
	f := newFixture(t)
	turnoID, _ := f.turno(t, 0)
	p := f.producto(t, "Café", 4000, 5)

	_, err := f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
		VendedorID: uuid.New(), TurnoID: turnoID, MetodoPago: model.PagoEfectivo,
		Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 1}},
	})
	assert.ErrorIs(t, err, apperr.ErrShiftClosed)
}

func TestVenta_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 0)

	_, err := f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
		VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoEfectivo,
		Lineas: []service.Linea{{ProductoID: uuid.New(), Cantidad: 1}},
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVenta_IdempotencyKeyProcessesOnce(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 0)
	p := f.producto(t, "Vino", 3500, 10)
	in := service.ProcesarVentaInput{
		VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoTarjeta,
		Lineas:         []service.Linea{{ProductoID: p.ID, Cantidad: 2}},
		IdempotencyKey: ptr("caja1-000123"),
	}

	first, err := f.ventas.Procesar(f.ctx, in)
	require.NoError(t, err)
	second, err := f.ventas.Procesar(f.ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 8, f.stockDe(t, p.ID))
	assert.Equal(t, 1, f.turnoDe(t, turnoID).TicketsAcumulados)
}

func TestDevolucion_KeyOfASaleIsDuplicate(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 0)
	p := f.producto(t, "Aceite", 2500, 10)

	orig, err := f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
		VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoEfectivo,
		Lineas:         []service.Linea{{ProductoID: p.ID, Cantidad: 2}},
		IdempotencyKey: ptr("caja1-000777"),
	})
	require.NoError(t, err)

	_, err = f.ventas.Devolver(f.ctx, service.DevolverVentaInput{
		VendedorID:      vendedorID,
		VentaOriginalID: uuid.MustParse(orig.ID),
		Lineas:          []service.Linea{{ProductoID: p.ID, Cantidad: 1}},
		IdempotencyKey:  ptr("caja1-000777"),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindDuplicate, apperr.KindOf(err))
	assert.Equal(t, 8, f.stockDe(t, p.ID))
	assert.Equal(t, 1, f.turnoDe(t, turnoID).TicketsAcumulados)

	// A return retried with its own key still replays.
	in := service.DevolverVentaInput{
		VendedorID:      vendedorID,
		VentaOriginalID: uuid.MustParse(orig.ID),
		Lineas:          []service.Linea{{ProductoID: p.ID, Cantidad: 1}},
		IdempotencyKey:  ptr("caja1-000778"),
	}
	first, err := f.ventas.Devolver(f.ctx, in)
	require.NoError(t, err)
	second, err := f.ventas.Devolver(f.ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 9, f.stockDe(t, p.ID))
}

func TestVenta_KeyFromAnotherShiftIsDuplicate(t *testing.T) {
	f := newFixture(t)
	turnoA, vendedorA := f.turno(t, 0)
	turnoB, vendedorB := f.turno(t, 0)
	p := f.producto(t, "Harina", 900, 10)

	_, err := f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
		VendedorID: vendedorA, TurnoID: turnoA, MetodoPago: model.PagoTarjeta,
		Lineas:         []service.Linea{{ProductoID: p.ID, Cantidad: 1}},
		IdempotencyKey: ptr("terminal-1"),
	})
	require.NoError(t, err)

	_, err = f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
		VendedorID: vendedorB, TurnoID: turnoB, MetodoPago: model.PagoTarjeta,
		Lineas:         []service.Linea{{ProductoID: p.ID, Cantidad: 1}},
		IdempotencyKey: ptr("terminal-1"),
	})
	assert.Equal(t, apperr.KindDuplicate, apperr.KindOf(err))
	assert.Equal(t, 9, f.stockDe(t, p.ID))
}

func TestVenta_FailureAfterLedgerWritesRollsBackEverything(t *testing.T) {
	f := newFixtureWith(t, func(u repository.UnitOfWork) repository.UnitOfWork { return failingUoW{inner: u} })
	// Setup runs directly on the store so the injected failure only hits sales.
	vendedorID := uuid.New()
	tr, err := model.NuevoTurno(vendedorID, model.TurnoDia, money.New(0), f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.repos.Turnos.Create(f.ctx, tr))
	c := f.cliente(t, 50000)
	p := f.producto(t, "Detergente", 2000, 5)

	_, err = f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
		VendedorID: vendedorID, TurnoID: tr.ID, MetodoPago: model.PagoFiado, ClienteID: &c.ID,
		Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 2}},
	})
	require.True(t, errors.Is(err, errInyectado))

	assert.True(t, f.saldoDe(t, c.ID).IsZero())
	movs, err := f.repos.Clientes.ListMovimientos(f.ctx, c.ID, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, movs)
	assert.Equal(t, 5, f.stockDe(t, p.ID))
	assert.Zero(t, f.turnoDe(t, tr.ID).TicketsAcumulados)
}

func TestVenta_ConcurrentSalesNeverOversell(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 0)
	p := f.producto(t, "Oferta", 100, 10)

	const intentos = 25
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		vendidas int
		sinStock int
	)
	for i := 0; i < intentos; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ventas.Procesar(context.Background(), service.ProcesarVentaInput{
				VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoEfectivo,
				Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 1}},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				vendidas++
			case errors.Is(err, apperr.ErrInsufficientStock):
				sinStock++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, vendidas)
	assert.Equal(t, intentos-10, sinStock)
	assert.Zero(t, f.stockDe(t, p.ID))

	tr := f.turnoDe(t, turnoID)
	assert.Equal(t, 10, tr.TicketsAcumulados)
	assert.Equal(t, money.New(1000), tr.VentasAcumuladas)

	v, err := f.turnos.Verificar(f.ctx, turnoID)
	require.NoError(t, err)
	assert.True(t, v.Consistente)
}

// ── Devoluciones ─────────────────────────────────────────────────────────────

func TestDevolucion_CashReturnReducesShiftTotals(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 0)
	p := f.producto(t, "Bidón", 5000, 4)

	orig, err := f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
		VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoEfectivo,
		Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 2}},
	})
	require.NoError(t, err)
	before := f.turnoDe(t, turnoID)

	dev, err := f.ventas.Devolver(f.ctx, service.DevolverVentaInput{
		VendedorID:      vendedorID,
		VentaOriginalID: uuid.MustParse(orig.ID),
		Lineas:          []service.Linea{{ProductoID: p.ID, Cantidad: 1}},
		Motivo:          ptr("envase roto"),
	})
	require.NoError(t, err)
	assert.Equal(t, "devolucion", dev.Tipo)
	assert.Equal(t, money.New(5000), dev.Total)
	assert.Equal(t, orig.ID, *dev.VentaOriginalID)

	after := f.turnoDe(t, turnoID)
	assert.Equal(t, before.VentasAcumuladas.Sub(money.New(5000)), after.VentasAcumuladas)
	assert.Equal(t, before.PagosAcumulados[model.PagoEfectivo].Sub(money.New(5000)), after.PagosAcumulados[model.PagoEfectivo])
	assert.Equal(t, 2, after.TicketsAcumulados)
	assert.Equal(t, 3, f.stockDe(t, p.ID))
}

func TestDevolucion_CannotExceedSoldQuantity(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 0)
	p := f.producto(t, "Lata", 800, 10)
	otro := f.producto(t, "Otro", 100, 10)

	orig, err := f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
		VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoTarjeta,
		Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 3}},
	})
	require.NoError(t, err)
	origID := uuid.MustParse(orig.ID)

	_, err = f.ventas.Devolver(f.ctx, service.DevolverVentaInput{VendedorID: vendedorID, VentaOriginalID: origID, Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 2}}})
	require.NoError(t, err)

	_, err = f.ventas.Devolver(f.ctx, service.DevolverVentaInput{VendedorID: vendedorID, VentaOriginalID: origID, Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 2}}})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	_, err = f.ventas.Devolver(f.ctx, service.DevolverVentaInput{VendedorID: vendedorID, VentaOriginalID: origID, Lineas: []service.Linea{{ProductoID: otro.ID, Cantidad: 1}}})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	_, err = f.ventas.Devolver(f.ctx, service.DevolverVentaInput{VendedorID: vendedorID, VentaOriginalID: uuid.New(), Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 1}}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Equal(t, 9, f.stockDe(t, p.ID))
}

func TestDevolucion_FiadoReturnCreditsTheClient(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 0)
	c := f.cliente(t, 50000)
	p := f.producto(t, "Gaseosa", 3000, 10)

	orig, err := f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
		VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoFiado, ClienteID: &c.ID,
		Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 3}},
	})
	require.NoError(t, err)
	// The client paid most of it already.
	_, err = f.credito.RegistrarMovimiento(f.ctx, mov(c.ID, model.MovimientoAbono, 8000))
	require.NoError(t, err)

	_, err = f.ventas.Devolver(f.ctx, service.DevolverVentaInput{
		VendedorID: vendedorID, VentaOriginalID: uuid.MustParse(orig.ID),
		Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 2}},
	})
	require.NoError(t, err)

	// 6000 returned but only 1000 was owed; the balance stops at zero.
	assert.True(t, f.saldoDe(t, c.ID).IsZero())
	conc, err := f.credito.Conciliar(f.ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, conc.Consistente)
	assert.Equal(t, 3, conc.Movimientos)
}

func TestDevolucion_RequiresOpenShift(t *testing.T) {
	f := newFixture(t)
	turnoID, vendedorID := f.turno(t, 0)
	p := f.producto(t, "Jugo", 600, 10)

	orig, err := f.ventas.Procesar(f.ctx, service.ProcesarVentaInput{
		VendedorID: vendedorID, TurnoID: turnoID, MetodoPago: model.PagoEfectivo,
		Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 1}},
	})
	require.NoError(t, err)
	_, err = f.turnos.Cerrar(f.ctx, turnoID, money.New(600), nil)
	require.NoError(t, err)

	_, err = f.ventas.Devolver(f.ctx, service.DevolverVentaInput{
		VendedorID: vendedorID, VentaOriginalID: uuid.MustParse(orig.ID),
		Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 1}},
	})
	assert.ErrorIs(t, err, apperr.ErrShiftClosed)

	// A return from an earlier shift lands in the new one and may push it negative.
	nuevo, err := f.turnos.Abrir(f.ctx, vendedorID, model.TurnoNoche, money.New(0))
	require.NoError(t, err)
	_, err = f.ventas.Devolver(f.ctx, service.DevolverVentaInput{
		VendedorID: vendedorID, VentaOriginalID: uuid.MustParse(orig.ID),
		Lineas: []service.Linea{{ProductoID: p.ID, Cantidad: 1}},
	})
	require.NoError(t, err)
	tr := f.turnoDe(t, uuid.MustParse(nuevo.ID))
	assert.Equal(t, money.New(-600), tr.VentasAcumuladas)
}
