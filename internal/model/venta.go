package model

import (
	"time"

	"almacenpos/internal/money"

	"github.com/google/uuid"
)

// MetodoPago: "efectivo" | "tarjeta" | "transferencia" | "fiado" | "personal"
type MetodoPago string

const (
	PagoEfectivo      MetodoPago = "efectivo"
	PagoTarjeta       MetodoPago = "tarjeta"
	PagoTransferencia MetodoPago = "transferencia"
	PagoFiado         MetodoPago = "fiado"
	PagoPersonal      MetodoPago = "personal"
)

func (m MetodoPago) Valido() bool {
	switch m {
	case PagoEfectivo, PagoTarjeta, PagoTransferencia, PagoFiado, PagoPersonal:
		return true
	}
	return false
}

// TipoVenta: "venta" | "devolucion"
type TipoVenta string

const (
	TipoVentaNormal     TipoVenta = "venta"
	TipoVentaDevolucion TipoVenta = "devolucion"
)

// Venta is an immutable sale or return. Total is always a positive magnitude;
// a devolucion contributes it negatively to the shift and positively to stock.
// Σ Items.Subtotal == Total.
type Venta struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NumeroTicket    int64        `gorm:"uniqueIndex;not null"`
	Tipo            TipoVenta    `gorm:"type:varchar(20);not null;default:'venta'"`
	Total           money.Money  `gorm:"type:bigint;not null"`
	MetodoPago      MetodoPago   `gorm:"type:varchar(20);not null"`
	MontoRecibido   *money.Money `gorm:"type:bigint"`
	Vuelto          *money.Money `gorm:"type:bigint"`
	TurnoID         uuid.UUID    `gorm:"type:uuid;index;not null"`
	VendedorID      uuid.UUID    `gorm:"type:uuid;not null"`
	ClienteID       *uuid.UUID   `gorm:"type:uuid;index"`
	VentaOriginalID *uuid.UUID   `gorm:"type:uuid;index"`
	IdempotencyKey  *string      `gorm:"uniqueIndex"`
	Motivo          *string
	CreatedAt       time.Time `gorm:"index"`

	Items []VentaItem `gorm:"foreignKey:VentaID"`
}

// VentaItem copies the unit price at sale time so later catalog changes
// never alter a recorded sale.
type VentaItem struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VentaID        uuid.UUID   `gorm:"type:uuid;index;not null"`
	ProductoID     uuid.UUID   `gorm:"type:uuid;index;not null"`
	Nombre         string      `gorm:"not null"`
	PrecioUnitario money.Money `gorm:"type:bigint;not null"`
	Cantidad       int         `gorm:"not null"`
	Subtotal       money.Money `gorm:"type:bigint;not null"`
}

func (Venta) TableName() string { return "ventas" }
func (VentaItem) TableName() string { return "venta_items" }

// EsDevolucion reports whether v is a return.
func (v *Venta) EsDevolucion() bool { return v.Tipo == TipoVentaDevolucion }

// Contribucion is the signed amount v adds to its shift's totals.
func (v *Venta) Contribucion() money.Money {
	if v.EsDevolucion() {
		return v.Total.Neg()
	}
	return v.Total
}

// SumarItems totals the subtotals of items.
func SumarItems(items []VentaItem) money.Money {
	var total money.Money
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}
	return total
}
