package dto

import "almacenpos/internal/money"

// ─── Filter / List ──────────────────────────────────────────────────────────

// TurnoFilter is bound from the query string of GET /v1/turnos/historial.
type TurnoFilter struct {
	Page  int `form:"page,default=1"   validate:"min=1"`
	Limit int `form:"limit,default=20" validate:"min=1,max=100"`
}

type TurnoListResponse struct {
	Data  []TurnoResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirTurnoRequest struct {
	Tipo         string      `json:"tipo"          validate:"required,oneof=dia noche"`
	MontoInicial money.Money `json:"monto_inicial" validate:"min=0"`
}

type RegistrarGastoRequest struct {
	Tipo        string      `json:"tipo"        validate:"required,oneof=sueldo flete proveedor otro operacion"`
	Monto       money.Money `json:"monto"       validate:"gt=0"`
	Proveedor   *string     `json:"proveedor"   validate:"omitempty,max=120"`
	Descripcion *string     `json:"descripcion" validate:"omitempty,max=255"`
	// PagadoConEfectivo defaults to true when omitted.
	PagadoConEfectivo *bool `json:"pagado_con_efectivo"`
}

type CerrarTurnoRequest struct {
	EfectivoContado *money.Money `json:"efectivo_contado" validate:"required"`
	Observaciones   *string      `json:"observaciones"    validate:"omitempty,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type GastoResponse struct {
	ID                string      `json:"id"`
	Tipo              string      `json:"tipo"`
	Monto             money.Money `json:"monto"`
	Proveedor         *string     `json:"proveedor"`
	Descripcion       *string     `json:"descripcion"`
	PagadoConEfectivo bool        `json:"pagado_con_efectivo"`
	CreatedAt         string      `json:"created_at"`
}

type ResumenTurnoResponse struct {
	TotalVentas     money.Money            `json:"total_ventas"`
	CantidadTickets int                    `json:"cantidad_tickets"`
	DesglosePagos   map[string]money.Money `json:"desglose_pagos"`
	TotalGastos     money.Money            `json:"total_gastos"`
	GastosEfectivo  money.Money            `json:"gastos_efectivo"`
}

type ArqueoResponse struct {
	EfectivoEsperado money.Money `json:"efectivo_esperado"`
	EfectivoContado  money.Money `json:"efectivo_contado"`
	Diferencia       money.Money `json:"diferencia"`
	Clasificacion    string      `json:"clasificacion"` // normal | advertencia | critico
}

type TurnoResponse struct {
	ID            string               `json:"id"`
	VendedorID    string               `json:"vendedor_id"`
	Tipo          string               `json:"tipo"`
	Estado        string               `json:"estado"`
	MontoInicial  money.Money          `json:"monto_inicial"`
	Inicio        string               `json:"inicio"`
	Fin           *string              `json:"fin"`
	Resumen       ResumenTurnoResponse `json:"resumen"`
	Arqueo        *ArqueoResponse      `json:"arqueo"`
	Observaciones *string              `json:"observaciones"`
	Gastos        []GastoResponse      `json:"gastos"`
}

// VerificacionTurnoResponse compares the running accumulators with the
// summary rebuilt from the stored sales and expenses.
type VerificacionTurnoResponse struct {
	TurnoID     string               `json:"turno_id"`
	Consistente bool                 `json:"consistente"`
	Acumulado   ResumenTurnoResponse `json:"acumulado"`
	Recalculado ResumenTurnoResponse `json:"recalculado"`
}
