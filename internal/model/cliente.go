package model

import (
	"fmt"
	"time"

	"almacenpos/internal/apperr"
	"almacenpos/internal/money"

	"github.com/google/uuid"
)

// PlanPago is informational only; it never changes ledger mechanics.
type PlanPago string

const (
	PlanInmediato PlanPago = "inmediato"
	PlanQuincenal PlanPago = "quincenal"
	PlanMensual   PlanPago = "mensual"
)

// TipoMovimiento: "fiado" | "abono" | "pago_total"
type TipoMovimiento string

const (
	MovimientoFiado     TipoMovimiento = "fiado"
	MovimientoAbono     TipoMovimiento = "abono"
	MovimientoPagoTotal TipoMovimiento = "pago_total"
)

func (t TipoMovimiento) Valido() bool {
	switch t {
	case MovimientoFiado, MovimientoAbono, MovimientoPagoTotal:
		return true
	}
	return false
}

// Cliente is a store-credit account. Saldo is positive when the client owes
// money and is a cached projection of the movement history:
// Saldo == last movement's SaldoPosterior. Clients are never deleted, only
// deauthorized.
type Cliente struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nombre        string      `gorm:"index;not null"`
	Telefono      *string
	Autorizado    bool        `gorm:"not null;default:true"`
	Saldo         money.Money `gorm:"type:bigint;not null;default:0"`
	LimiteCredito money.Money `gorm:"type:bigint;not null;default:0"`
	PlanPago      PlanPago    `gorm:"type:varchar(20);not null;default:'inmediato'"`
	// UltimaSecuencia is the Secuencia of the newest movement (0 = none yet).
	UltimaSecuencia int64 `gorm:"not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Movimientos []MovimientoCliente `gorm:"foreignKey:ClienteID"`
}

// MovimientoCliente is an immutable ledger entry. Monto is the signed delta
// (fiado +, abono/pago_total −); SaldoPosterior is the balance right after it.
// Corrections are new movements, never edits.
type MovimientoCliente struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ClienteID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_movimiento_cliente_secuencia,priority:1"`
	Secuencia      int64          `gorm:"not null;uniqueIndex:idx_movimiento_cliente_secuencia,priority:2"`
	Tipo           TipoMovimiento `gorm:"type:varchar(20);not null"`
	Monto          money.Money    `gorm:"type:bigint;not null"`
	Descripcion    string         `gorm:"not null;default:''"`
	SaldoPosterior money.Money    `gorm:"type:bigint;not null"`
	VentaID        *uuid.UUID     `gorm:"type:uuid;index"`
	IdempotencyKey *string        `gorm:"uniqueIndex"`
	CreatedAt      time.Time      `gorm:"index"`
}

func (MovimientoCliente) TableName() string { return "movimientos_cliente" }

// Disponible is the credit still available before hitting the limit.
func (c *Cliente) Disponible() money.Money {
	return c.LimiteCredito.Sub(c.Saldo)
}

// PuedeFiar reports whether a credit purchase of monto is allowed.
func (c *Cliente) PuedeFiar(monto money.Money) bool {
	return c.Autorizado && c.Saldo.Add(monto).LessOrEqual(c.LimiteCredito)
}

// Aplicar builds the next movement and advances the cached balance in one
// step. On error the client is left untouched.
//
//   - fiado adds monto.
//   - abono subtracts monto; it may not exceed the current balance.
//   - pago_total ignores monto and settles the balance to exactly zero.
func (c *Cliente) Aplicar(tipo TipoMovimiento, monto money.Money, descripcion string, ahora time.Time) (MovimientoCliente, error) {
	var delta money.Money
	switch tipo {
	case MovimientoFiado:
		if !monto.IsPositive() {
			return MovimientoCliente{}, apperr.New(apperr.KindInvalidMovement, "el monto debe ser mayor a cero").With("monto", monto.Int64())
		}
		delta = monto
	case MovimientoAbono:
		if !monto.IsPositive() {
			return MovimientoCliente{}, apperr.New(apperr.KindInvalidMovement, "el monto debe ser mayor a cero").With("monto", monto.Int64())
		}
		if monto.GreaterThan(c.Saldo) {
			return MovimientoCliente{}, apperr.New(apperr.KindInvalidMovement, "el abono excede el saldo adeudado").
				With("monto", monto.Int64()).
				With("saldo", c.Saldo.Int64())
		}
		delta = monto.Neg()
	case MovimientoPagoTotal:
		if !c.Saldo.IsPositive() {
			return MovimientoCliente{}, apperr.New(apperr.KindInvalidMovement, "el cliente no tiene saldo pendiente").With("saldo", c.Saldo.Int64())
		}
		delta = c.Saldo.Neg()
	default:
		return MovimientoCliente{}, apperr.Newf(apperr.KindInvalidMovement, "tipo de movimiento desconocido: %q", tipo)
	}

	mov := MovimientoCliente{
		ID:             uuid.New(),
		ClienteID:      c.ID,
		Secuencia:      c.UltimaSecuencia + 1,
		Tipo:           tipo,
		Monto:          delta,
		Descripcion:    descripcion,
		SaldoPosterior: c.Saldo.Add(delta),
		CreatedAt:      ahora,
	}
	c.Saldo = mov.SaldoPosterior
	c.UltimaSecuencia = mov.Secuencia
	return mov, nil
}

// VerificarHistorial checks that movs (ordered by Secuencia) form a gap-free
// chain whose running sum matches every SaldoPosterior and ends at saldo.
func VerificarHistorial(saldo money.Money, ultimaSecuencia int64, movs []MovimientoCliente) error {
	var acumulado money.Money
	for i, m := range movs {
		if m.Secuencia != int64(i+1) {
			return fmt.Errorf("secuencia %d en posición %d", m.Secuencia, i+1)
		}
		acumulado = acumulado.Add(m.Monto)
		if acumulado != m.SaldoPosterior {
			return fmt.Errorf("movimiento %d: saldo posterior %s, suma acumulada %s", m.Secuencia, m.SaldoPosterior, acumulado)
		}
	}
	if int64(len(movs)) != ultimaSecuencia {
		return fmt.Errorf("última secuencia %d, movimientos %d", ultimaSecuencia, len(movs))
	}
	if acumulado != saldo {
		return fmt.Errorf("saldo en caché %s, suma del historial %s", saldo, acumulado)
	}
	return nil
}
