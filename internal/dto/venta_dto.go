package dto

import "almacenpos/internal/money"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ItemVentaRequest struct {
	ProductoID string `json:"producto_id" validate:"required,uuid"`
	Cantidad   int    `json:"cantidad"    validate:"required,min=1"`
}

type ProcesarVentaRequest struct {
	TurnoID    string             `json:"turno_id"    validate:"required,uuid"`
	Items      []ItemVentaRequest `json:"items"       validate:"required,min=1,dive"`
	MetodoPago string             `json:"metodo_pago" validate:"required,oneof=efectivo tarjeta transferencia fiado personal"`
	// ClienteID is required when MetodoPago is fiado.
	ClienteID *string `json:"cliente_id" validate:"omitempty,uuid"`
	// MontoRecibido applies to efectivo only; absent means exact payment.
	MontoRecibido *money.Money `json:"monto_recibido" validate:"omitempty,min=0"`
	// IdempotencyKey may also arrive in the Idempotency-Key header.
	IdempotencyKey *string `json:"idempotency_key" validate:"omitempty,max=100"`
}

type DevolverVentaRequest struct {
	Items          []ItemVentaRequest `json:"items"           validate:"required,min=1,dive"`
	Motivo         *string            `json:"motivo"          validate:"omitempty,max=255"`
	IdempotencyKey *string            `json:"idempotency_key" validate:"omitempty,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ItemVentaResponse struct {
	ProductoID     string      `json:"producto_id"`
	Producto       string      `json:"producto"`
	Cantidad       int         `json:"cantidad"`
	PrecioUnitario money.Money `json:"precio_unitario"`
	Subtotal       money.Money `json:"subtotal"`
}

type VentaResponse struct {
	ID              string              `json:"id"`
	NumeroTicket    int64               `json:"numero_ticket"`
	Tipo            string              `json:"tipo"`
	Items           []ItemVentaResponse `json:"items"`
	Total           money.Money         `json:"total"`
	MetodoPago      string              `json:"metodo_pago"`
	MontoRecibido   *money.Money        `json:"monto_recibido"`
	Vuelto          *money.Money        `json:"vuelto"`
	TurnoID         string              `json:"turno_id"`
	VendedorID      string              `json:"vendedor_id"`
	ClienteID       *string             `json:"cliente_id"`
	VentaOriginalID *string             `json:"venta_original_id"`
	Motivo          *string             `json:"motivo"`
	CreatedAt       string              `json:"created_at"`
}
