package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"almacenpos/internal/lock"
	"almacenpos/internal/model"
	"almacenpos/internal/money"
	"almacenpos/internal/repository"
	"almacenpos/internal/repository/memory"
	"almacenpos/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// ── Fixture ───────────────────────────────────────────────────────────────────

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu       sync.Mutex
	cerrados []uuid.UUID
}

func (n *recordingNotifier) TurnoCerrado(_ context.Context, id uuid.UUID) error {
	n.mu.Lock()
	n.cerrados = append(n.cerrados, id)
	n.mu.Unlock()
	return nil
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	repos    repository.Repositories
	clock    *fakeClock
	notifier *recordingNotifier

	credito service.CreditoService
	stock   service.StockService
	turnos  service.TurnoService
	ventas  service.VentaService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, nil)
}

// newFixtureWith lets a test wrap the unit of work, e.g. to inject failures.
func newFixtureWith(t *testing.T, wrap func(repository.UnitOfWork) repository.UnitOfWork) *fixture {
	t.Helper()
	store := memory.New()
	var uow repository.UnitOfWork = store
	if wrap != nil {
		uow = wrap(store)
	}
	locker := lock.NewLocal(5 * time.Second)
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}
	repos := store.Repositories()

	return &fixture{
		ctx:      context.Background(),
		store:    store,
		repos:    repos,
		clock:    clock,
		notifier: notifier,
		credito:  service.NewCreditoService(uow, repos, locker, clock.Now),
		stock:    service.NewStockService(uow, repos, locker),
		turnos:   service.NewTurnoService(uow, repos, locker, notifier, clock.Now),
		ventas:   service.NewVentaService(uow, repos, locker, nil, clock.Now),
	}
}

func (f *fixture) producto(t *testing.T, nombre string, precio int64, stock int) *model.Producto {
	t.Helper()
	p := &model.Producto{Nombre: nombre, Categoria: "almacen", PrecioVenta: money.New(precio), StockActual: stock, StockMinimo: 2, Activo: true}
	require.NoError(t, f.repos.Productos.Create(f.ctx, p))
	return p
}

func (f *fixture) cliente(t *testing.T, limite int64) *model.Cliente {
	t.Helper()
	c := &model.Cliente{Nombre: "Cliente " + uuid.NewString()[:8], Autorizado: true, LimiteCredito: money.New(limite), PlanPago: model.PlanMensual}
	require.NoError(t, f.repos.Clientes.Create(f.ctx, c))
	return c
}

// turno opens a shift for a fresh seller and returns both ids.
func (f *fixture) turno(t *testing.T, inicial int64) (turnoID, vendedorID uuid.UUID) {
	t.Helper()
	vendedorID = uuid.New()
	resp, err := f.turnos.Abrir(f.ctx, vendedorID, model.TurnoDia, money.New(inicial))
	require.NoError(t, err)
	return uuid.MustParse(resp.ID), vendedorID
}

func (f *fixture) stockDe(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := f.repos.Productos.FindByID(f.ctx, id)
	require.NoError(t, err)
	return p.StockActual
}

func (f *fixture) saldoDe(t *testing.T, id uuid.UUID) money.Money {
	t.Helper()
	c, err := f.repos.Clientes.FindByID(f.ctx, id)
	require.NoError(t, err)
	return c.Saldo
}

func (f *fixture) turnoDe(t *testing.T, id uuid.UUID) *model.Turno {
	t.Helper()
	tr, err := f.repos.Turnos.FindByID(f.ctx, id)
	require.NoError(t, err)
	return tr
}

func ptr[T any](v T) *T { return &v }

// ── Failure injection ─────────────────────────────────────────────────────────

var errInyectado = errors.New("falla inyectada")

// failingVentas fails every Create, after the ledgers have already been
// written in the same unit of work.
type failingVentas struct {
	repository.VentaRepository
}

func (failingVentas) Create(context.Context, *model.Venta) error { return errInyectado }

type failingUoW struct {
	inner repository.UnitOfWork
}

func (u failingUoW) Do(ctx context.Context, fn func(r repository.Repositories) error) error {
	return u.inner.Do(ctx, func(r repository.Repositories) error {
		r.Ventas = failingVentas{r.Ventas}
		return fn(r)
	})
}
