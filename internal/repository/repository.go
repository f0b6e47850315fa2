package repository

import (
	"context"
	"errors"
	"time"

	"almacenpos/internal/apperr"
	"almacenpos/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrNotFound is returned by every Find* when no row matches.
var ErrNotFound = apperr.New(apperr.KindNotFound, "registro no encontrado")

// ErrDuplicate is returned when a unique key (idempotency key, ticket) already exists.
var ErrDuplicate = apperr.New(apperr.KindDuplicate, "registro duplicado")

type ProductoRepository interface {
	Create(ctx context.Context, p *model.Producto) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Producto, error)
	// FindForUpdate loads the row and, inside a transaction, locks it until commit.
	FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Producto, error)
	UpdateStock(ctx context.Context, id uuid.UUID, stock int) error
	List(ctx context.Context) ([]model.Producto, error)
	ListStockBajo(ctx context.Context) ([]model.Producto, error)
}

// ClienteFiltro narrows ListarSaldos.
type ClienteFiltro struct {
	SoloConSaldo bool
	Nombre       string
}

type ClienteRepository interface {
	Create(ctx context.Context, c *model.Cliente) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Cliente, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Cliente, error)
	// Update persists Saldo, UltimaSecuencia and Autorizado.
	Update(ctx context.Context, c *model.Cliente) error
	List(ctx context.Context, f ClienteFiltro) ([]model.Cliente, error)
	// AppendMovimiento is the only write path to the history; there is no update or delete.
	AppendMovimiento(ctx context.Context, m *model.MovimientoCliente) error
	// ListMovimientos returns movements ordered by Secuencia; nil bounds are open.
	ListMovimientos(ctx context.Context, clienteID uuid.UUID, desde, hasta *time.Time) ([]model.MovimientoCliente, error)
	FindMovimientoByKey(ctx context.Context, key string) (*model.MovimientoCliente, error)
}

type VentaRepository interface {
	Create(ctx context.Context, v *model.Venta) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*model.Venta, error)
	NextTicketNumber(ctx context.Context) (int64, error)
	ListByTurno(ctx context.Context, turnoID uuid.UUID) ([]model.Venta, error)
	ListDevoluciones(ctx context.Context, ventaOriginalID uuid.UUID) ([]model.Venta, error)
}

type TurnoRepository interface {
	Create(ctx context.Context, t *model.Turno) error
	// FindByID loads the shift with its expenses.
	FindByID(ctx context.Context, id uuid.UUID) (*model.Turno, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Turno, error)
	FindAbiertoPorVendedor(ctx context.Context, vendedorID uuid.UUID) (*model.Turno, error)
	// Update persists the shift row only; expenses go through CreateGasto.
	Update(ctx context.Context, t *model.Turno) error
	CreateGasto(ctx context.Context, g *model.GastoTurno) error
	ListAbiertos(ctx context.Context) ([]model.Turno, error)
	ListCerrados(ctx context.Context, page, limit int) ([]model.Turno, int64, error)
}

type UsuarioRepository interface {
	Create(ctx context.Context, u *model.Usuario) error
	FindByUsername(ctx context.Context, username string) (*model.Usuario, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Usuario, error)
}

// Repositories groups every repository bound to the same connection or transaction.
type Repositories struct {
	Productos ProductoRepository
	Clientes  ClienteRepository
	Ventas    VentaRepository
	Turnos    TurnoRepository
	Usuarios  UsuarioRepository
}

// UnitOfWork runs fn with repositories whose writes commit together or not at
// all. A non-nil error from fn undoes every write made through r.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(r Repositories) error) error
}

// NewRepositories binds all GORM repositories to db (a pool or a transaction).
func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Productos: NewProductoRepository(db),
		Clientes:  NewClienteRepository(db),
		Ventas:    NewVentaRepository(db),
		Turnos:    NewTurnoRepository(db),
		Usuarios:  NewUsuarioRepository(db),
	}
}

type gormUnitOfWork struct{ db *gorm.DB }

// NewUnitOfWork runs each unit inside a database transaction.
func NewUnitOfWork(db *gorm.DB) UnitOfWork { return &gormUnitOfWork{db: db} }

func (u *gormUnitOfWork) Do(ctx context.Context, fn func(r Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// translate maps driver errors onto the repository sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.Wrap(apperr.KindDuplicate, "registro duplicado: "+pgErr.ConstraintName, err)
	}
	return err
}
