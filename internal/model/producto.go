package model

import (
	"time"

	"almacenpos/internal/apperr"
	"almacenpos/internal/money"

	"github.com/google/uuid"
)

// Producto is a catalog entry. Catalog editing happens elsewhere; this
// service only reads prices and moves StockActual through sales and returns.
// StockActual never goes below zero.
type Producto struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CodigoBarras *string     `gorm:"uniqueIndex"`
	Nombre       string      `gorm:"index;not null"`
	Categoria    string      `gorm:"not null;default:'general'"`
	PrecioVenta  money.Money `gorm:"type:bigint;not null"`
	StockActual  int         `gorm:"not null;default:0;check:stock_actual >= 0"`
	StockMinimo  int         `gorm:"not null;default:5"`
	Activo       bool        `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EsStockBajo reports whether stock is at or below the alert threshold.
func (p *Producto) EsStockBajo() bool {
	return p.StockActual <= p.StockMinimo
}

// AplicarDelta moves StockActual by delta. A decrement that would leave the
// stock negative fails with InsufficientStock and changes nothing.
func (p *Producto) AplicarDelta(delta int) error {
	if p.StockActual+delta < 0 {
		return apperr.New(apperr.KindInsufficientStock, "stock insuficiente").
			With("producto_id", p.ID.String()).
			With("disponible", p.StockActual).
			With("solicitado", -delta)
	}
	p.StockActual += delta
	return nil
}
