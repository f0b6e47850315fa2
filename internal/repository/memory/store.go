// Package memory is an in-process implementation of the repositories, used
// for development (STORE_BACKEND=memory) and by the service tests.
//
// Units of work keep an undo journal: every write made through a unit's
// repositories records how to restore the previous value, and a failed unit
// replays the journal in reverse. Callers hold the per-resource locks for every
// row they write, so restoring a row cannot clobber a concurrent writer.
//
// Isolation is read-uncommitted: writes land in the shared maps immediately,
// so a reader that holds no resource lock (idempotency pre-checks, Autorizar,
// ListarSaldos, the reconciliation audit) can observe a row that its unit
// later rolls back. Locked read-modify-write paths are unaffected, as are the
// ledger invariants once every unit has finished. Production runs on the
// postgres repositories, where each unit is a database transaction.
package memory

import (
	"context"
	"sync"

	"almacenpos/internal/model"
	"almacenpos/internal/repository"

	"github.com/google/uuid"
)

// Store holds every table in maps guarded by one RWMutex. Values are copied in
// and out so callers never share memory with the store.
type Store struct {
	mu sync.RWMutex

	productos   map[uuid.UUID]model.Producto
	clientes    map[uuid.UUID]model.Cliente
	movimientos map[uuid.UUID][]model.MovimientoCliente
	movPorClave map[string]uuid.UUID
	ventas      map[uuid.UUID]model.Venta
	ventaOrden  []uuid.UUID
	ventaClave  map[string]uuid.UUID
	turnos      map[uuid.UUID]model.Turno
	gastos      map[uuid.UUID][]model.GastoTurno
	usuarios    map[uuid.UUID]model.Usuario
	ticket      int64
}

func New() *Store {
	return &Store{
		productos:   make(map[uuid.UUID]model.Producto),
		clientes:    make(map[uuid.UUID]model.Cliente),
		movimientos: make(map[uuid.UUID][]model.MovimientoCliente),
		movPorClave: make(map[string]uuid.UUID),
		ventas:      make(map[uuid.UUID]model.Venta),
		ventaClave:  make(map[string]uuid.UUID),
		turnos:      make(map[uuid.UUID]model.Turno),
		gastos:      make(map[uuid.UUID][]model.GastoTurno),
		usuarios:    make(map[uuid.UUID]model.Usuario),
	}
}

var _ repository.UnitOfWork = (*Store)(nil)

// journal collects undo steps for one unit of work. A nil journal means
// writes are not transactional.
type journal struct {
	mu   sync.Mutex
	undo []func()
}

func (j *journal) record(f func()) {
	if j == nil {
		return
	}
	j.mu.Lock()
	j.undo = append(j.undo, f)
	j.mu.Unlock()
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// Repositories returns non-transactional repositories over the store.
func (s *Store) Repositories() repository.Repositories {
	return s.bind(nil)
}

func (s *Store) bind(j *journal) repository.Repositories {
	return repository.Repositories{
		Productos: &productoRepo{s: s, j: j},
		Clientes:  &clienteRepo{s: s, j: j},
		Ventas:    &ventaRepo{s: s, j: j},
		Turnos:    &turnoRepo{s: s, j: j},
		Usuarios:  &usuarioRepo{s: s, j: j},
	}
}

// Do runs fn as one unit of work, compensating every write if fn fails or panics.
func (s *Store) Do(ctx context.Context, fn func(r repository.Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	j := &journal{}
	defer func() {
		if p := recover(); p != nil {
			j.rollback()
			panic(p)
		}
	}()
	if err = fn(s.bind(j)); err != nil {
		j.rollback()
	}
	return err
}
