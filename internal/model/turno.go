package model

import (
	"time"

	"almacenpos/internal/apperr"
	"almacenpos/internal/money"

	"github.com/google/uuid"
)

// TipoTurno: "dia" | "noche"
type TipoTurno string

const (
	TurnoDia   TipoTurno = "dia"
	TurnoNoche TipoTurno = "noche"
)

// EstadoTurno: "abierto" | "cerrado". cerrado is terminal.
type EstadoTurno string

const (
	TurnoAbierto EstadoTurno = "abierto"
	TurnoCerrado EstadoTurno = "cerrado"
)

// TipoGasto: "sueldo" | "flete" | "proveedor" | "otro" | "operacion"
type TipoGasto string

const (
	GastoSueldo    TipoGasto = "sueldo"
	GastoFlete     TipoGasto = "flete"
	GastoProveedor TipoGasto = "proveedor"
	GastoOtro      TipoGasto = "otro"
	GastoOperacion TipoGasto = "operacion"
)

func (t TipoGasto) Valido() bool {
	switch t {
	case GastoSueldo, GastoFlete, GastoProveedor, GastoOtro, GastoOperacion:
		return true
	}
	return false
}

// Desglose maps a payment method to its summed amount.
type Desglose map[MetodoPago]money.Money

func (d Desglose) clone() Desglose {
	out := make(Desglose, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Turno is one cashier's shift. While abierto only the running accumulators
// move; the reconciliation fields (pointers and DesglosePagos) stay nil until
// Cerrar fills all of them at once.
type Turno struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VendedorID   uuid.UUID   `gorm:"type:uuid;index;not null"`
	Tipo         TipoTurno   `gorm:"type:varchar(10);not null"`
	Estado       EstadoTurno `gorm:"type:varchar(10);not null;default:'abierto'"`
	MontoInicial money.Money `gorm:"type:bigint;not null"`
	Inicio       time.Time   `gorm:"not null"`
	Fin          *time.Time

	// Running accumulators, maintained by RegistrarVenta / RegistrarGasto.
	VentasAcumuladas  money.Money `gorm:"type:bigint;not null;default:0"`
	TicketsAcumulados int         `gorm:"not null;default:0"`
	PagosAcumulados   Desglose    `gorm:"type:jsonb;serializer:json"`
	GastosAcumulados  money.Money `gorm:"type:bigint;not null;default:0"`
	GastosEfectivo    money.Money `gorm:"type:bigint;not null;default:0"`

	// Reconciliation, set only by Cerrar.
	EfectivoEsperado        *money.Money `gorm:"type:bigint"`
	EfectivoContado         *money.Money `gorm:"type:bigint"`
	Diferencia              *money.Money `gorm:"type:bigint"`
	TotalVentas             *money.Money `gorm:"type:bigint"`
	CantidadTickets         *int
	DesglosePagos           Desglose     `gorm:"type:jsonb;serializer:json"`
	TotalGastos             *money.Money `gorm:"type:bigint"`
	ClasificacionDiferencia *string      `gorm:"type:varchar(20)"`
	Observaciones           *string

	Gastos []GastoTurno `gorm:"foreignKey:TurnoID"`
}

// GastoTurno is an immutable expense booked against an open shift. Only
// expenses PagadoConEfectivo reduce the cash expected in the drawer.
type GastoTurno struct {
	ID                uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TurnoID           uuid.UUID   `gorm:"type:uuid;index;not null"`
	Tipo              TipoGasto   `gorm:"type:varchar(20);not null"`
	Monto             money.Money `gorm:"type:bigint;not null"`
	Proveedor         *string
	Descripcion       *string
	PagadoConEfectivo bool `gorm:"not null;default:true"`
	CreatedAt         time.Time
}

func (GastoTurno) TableName() string { return "gastos_turno" }

// NuevoTurno opens a shift for vendedorID.
func NuevoTurno(vendedorID uuid.UUID, tipo TipoTurno, montoInicial money.Money, inicio time.Time) (*Turno, error) {
	if tipo != TurnoDia && tipo != TurnoNoche {
		return nil, apperr.Newf(apperr.KindInvalidRequest, "tipo de turno inválido: %q", tipo)
	}
	if montoInicial.IsNegative() {
		return nil, apperr.New(apperr.KindInvalidRequest, "el monto inicial no puede ser negativo").With("monto_inicial", montoInicial.Int64())
	}
	return &Turno{
		ID:              uuid.New(),
		VendedorID:      vendedorID,
		Tipo:            tipo,
		Estado:          TurnoAbierto,
		MontoInicial:    montoInicial,
		Inicio:          inicio,
		PagosAcumulados: Desglose{},
	}, nil
}

func (t *Turno) Abierto() bool { return t.Estado == TurnoAbierto }

func (t *Turno) errCerrado() error {
	return apperr.New(apperr.KindShiftClosed, "el turno está cerrado").With("turno_id", t.ID.String())
}

// RegistrarVenta accumulates v into the running totals. A return subtracts.
// fueraDeRango is true when a return left total sales or a payment method
// below zero; that only happens for returns of sales from an earlier shift
// and is reported, not rejected.
func (t *Turno) RegistrarVenta(v *Venta) (fueraDeRango bool, err error) {
	if !t.Abierto() {
		return false, t.errCerrado()
	}
	if t.PagosAcumulados == nil {
		t.PagosAcumulados = Desglose{}
	}
	c := v.Contribucion()
	t.VentasAcumuladas = t.VentasAcumuladas.Add(c)
	t.TicketsAcumulados++
	t.PagosAcumulados[v.MetodoPago] = t.PagosAcumulados[v.MetodoPago].Add(c)
	return t.VentasAcumuladas.IsNegative() || t.PagosAcumulados[v.MetodoPago].IsNegative(), nil
}

// RegistrarGasto appends g to the shift.
func (t *Turno) RegistrarGasto(g *GastoTurno) error {
	if !t.Abierto() {
		return t.errCerrado()
	}
	if !g.Tipo.Valido() {
		return apperr.Newf(apperr.KindInvalidRequest, "tipo de gasto inválido: %q", g.Tipo)
	}
	if !g.Monto.IsPositive() {
		return apperr.New(apperr.KindInvalidRequest, "el monto del gasto debe ser mayor a cero").With("monto", g.Monto.Int64())
	}
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	g.TurnoID = t.ID
	t.Gastos = append(t.Gastos, *g)
	t.GastosAcumulados = t.GastosAcumulados.Add(g.Monto)
	if g.PagadoConEfectivo {
		t.GastosEfectivo = t.GastosEfectivo.Add(g.Monto)
	}
	return nil
}

// Resumen returns the running summary from the accumulators.
func (t *Turno) Resumen() Resumen {
	return Resumen{
		TotalVentas:     t.VentasAcumuladas,
		CantidadTickets: t.TicketsAcumulados,
		DesglosePagos:   t.PagosAcumulados.clone(),
		TotalGastos:     t.GastosAcumulados,
		GastosEfectivo:  t.GastosEfectivo,
	}
}

// Cerrar reconciles the drawer against contado and closes the shift.
// A closed shift rejects every further call, including a second Cerrar,
// without touching the stored summary.
func (t *Turno) Cerrar(contado money.Money, ahora time.Time, observaciones *string) (Arqueo, error) {
	if !t.Abierto() {
		return Arqueo{}, apperr.New(apperr.KindAlreadyClosed, "el turno ya fue cerrado").With("turno_id", t.ID.String())
	}
	if contado.IsNegative() {
		return Arqueo{}, apperr.New(apperr.KindInvalidCount, "el efectivo contado no puede ser negativo").With("efectivo_contado", contado.Int64())
	}

	r := t.Resumen()
	a := CalcularArqueo(t.MontoInicial, r, contado)

	t.EfectivoEsperado = &a.EfectivoEsperado
	t.EfectivoContado = &a.EfectivoContado
	t.Diferencia = &a.Diferencia
	t.TotalVentas = &r.TotalVentas
	t.CantidadTickets = &r.CantidadTickets
	t.DesglosePagos = r.DesglosePagos
	t.TotalGastos = &r.TotalGastos
	t.ClasificacionDiferencia = &a.Clasificacion
	t.Observaciones = observaciones
	t.Fin = &ahora
	t.Estado = TurnoCerrado
	return a, nil
}
