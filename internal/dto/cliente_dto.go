package dto

import "almacenpos/internal/money"

// ─── Filter / List ──────────────────────────────────────────────────────────

type ClienteFilter struct {
	ConSaldo bool   `form:"con_saldo"`
	Nombre   string `form:"nombre"`
}

// RangoFechas bounds a history query. Dates are YYYY-MM-DD; hasta is inclusive.
type RangoFechas struct {
	Desde string `form:"desde" validate:"omitempty,datetime=2006-01-02"`
	Hasta string `form:"hasta" validate:"omitempty,datetime=2006-01-02"`
}

type ClienteListResponse struct {
	Data          []ClienteResponse `json:"data"`
	TotalAdeudado money.Money       `json:"total_adeudado"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type RegistrarMovimientoRequest struct {
	Tipo           string      `json:"tipo"            validate:"required,oneof=fiado abono pago_total"`
	Monto          money.Money `json:"monto"`
	Descripcion    string      `json:"descripcion"     validate:"max=255"`
	IdempotencyKey *string     `json:"idempotency_key" validate:"omitempty,max=100"`
}

type SetAutorizadoRequest struct {
	Autorizado *bool `json:"autorizado" validate:"required"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ClienteResponse struct {
	ID            string      `json:"id"`
	Nombre        string      `json:"nombre"`
	Telefono      *string     `json:"telefono"`
	Autorizado    bool        `json:"autorizado"`
	Saldo         money.Money `json:"saldo"`
	LimiteCredito money.Money `json:"limite_credito"`
	Disponible    money.Money `json:"disponible"`
	PlanPago      string      `json:"plan_pago"`
}

type MovimientoResponse struct {
	ID             string      `json:"id"`
	Secuencia      int64       `json:"secuencia"`
	Tipo           string      `json:"tipo"`
	Monto          money.Money `json:"monto"`
	Descripcion    string      `json:"descripcion"`
	SaldoPosterior money.Money `json:"saldo_posterior"`
	VentaID        *string     `json:"venta_id"`
	CreatedAt      string      `json:"created_at"`
}

type HistorialClienteResponse struct {
	Cliente     ClienteResponse      `json:"cliente"`
	Movimientos []MovimientoResponse `json:"movimientos"`
}

type AutorizacionResponse struct {
	ClienteID  string      `json:"cliente_id"`
	Monto      money.Money `json:"monto"`
	Autorizado bool        `json:"autorizado"`
	Saldo      money.Money `json:"saldo"`
	Limite     money.Money `json:"limite_credito"`
	Disponible money.Money `json:"disponible"`
}

type ConciliacionClienteResponse struct {
	ClienteID   string      `json:"cliente_id"`
	Saldo       money.Money `json:"saldo"`
	Movimientos int         `json:"movimientos"`
	Consistente bool        `json:"consistente"`
	Detalle     *string     `json:"detalle"`
}
