package service

import (
	"time"

	"almacenpos/internal/dto"
	"almacenpos/internal/model"
	"almacenpos/internal/money"

	"github.com/google/uuid"
)

func formatTime(t time.Time) string { return t.Format(time.RFC3339) }

func optString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func ventaToResponse(v *model.Venta) *dto.VentaResponse {
	resp := &dto.VentaResponse{
		ID:              v.ID.String(),
		NumeroTicket:    v.NumeroTicket,
		Tipo:            string(v.Tipo),
		Items:           make([]dto.ItemVentaResponse, len(v.Items)),
		Total:           v.Total,
		MetodoPago:      string(v.MetodoPago),
		MontoRecibido:   v.MontoRecibido,
		Vuelto:          v.Vuelto,
		TurnoID:         v.TurnoID.String(),
		VendedorID:      v.VendedorID.String(),
		ClienteID:       optString(v.ClienteID),
		VentaOriginalID: optString(v.VentaOriginalID),
		Motivo:          v.Motivo,
		CreatedAt:       formatTime(v.CreatedAt),
	}
	for i, it := range v.Items {
		resp.Items[i] = dto.ItemVentaResponse{
			ProductoID:     it.ProductoID.String(),
			Producto:       it.Nombre,
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			Subtotal:       it.Subtotal,
		}
	}
	return resp
}

func resumenToResponse(r model.Resumen) dto.ResumenTurnoResponse {
	desglose := make(map[string]money.Money, len(r.DesglosePagos))
	for k, v := range r.DesglosePagos {
		desglose[string(k)] = v
	}
	return dto.ResumenTurnoResponse{
		TotalVentas:     r.TotalVentas,
		CantidadTickets: r.CantidadTickets,
		DesglosePagos:   desglose,
		TotalGastos:     r.TotalGastos,
		GastosEfectivo:  r.GastosEfectivo,
	}
}

func gastoToResponse(g *model.GastoTurno) dto.GastoResponse {
	return dto.GastoResponse{
		ID:                g.ID.String(),
		Tipo:              string(g.Tipo),
		Monto:             g.Monto,
		Proveedor:         g.Proveedor,
		Descripcion:       g.Descripcion,
		PagadoConEfectivo: g.PagadoConEfectivo,
		CreatedAt:         formatTime(g.CreatedAt),
	}
}

// turnoToResponse reports the running summary while open and the frozen
// closing summary once closed.
func turnoToResponse(t *model.Turno) *dto.TurnoResponse {
	resp := &dto.TurnoResponse{
		ID:            t.ID.String(),
		VendedorID:    t.VendedorID.String(),
		Tipo:          string(t.Tipo),
		Estado:        string(t.Estado),
		MontoInicial:  t.MontoInicial,
		Inicio:        formatTime(t.Inicio),
		Resumen:       resumenToResponse(t.Resumen()),
		Observaciones: t.Observaciones,
		Gastos:        make([]dto.GastoResponse, len(t.Gastos)),
	}
	for i := range t.Gastos {
		resp.Gastos[i] = gastoToResponse(&t.Gastos[i])
	}
	if t.Fin != nil {
		fin := formatTime(*t.Fin)
		resp.Fin = &fin
	}
	if !t.Abierto() && t.EfectivoEsperado != nil {
		resp.Resumen = resumenToResponse(model.Resumen{
			TotalVentas:     *t.TotalVentas,
			CantidadTickets: *t.CantidadTickets,
			DesglosePagos:   t.DesglosePagos,
			TotalGastos:     *t.TotalGastos,
			GastosEfectivo:  t.GastosEfectivo,
		})
		resp.Arqueo = &dto.ArqueoResponse{
			EfectivoEsperado: *t.EfectivoEsperado,
			EfectivoContado:  *t.EfectivoContado,
			Diferencia:       *t.Diferencia,
		}
		if t.ClasificacionDiferencia != nil {
			resp.Arqueo.Clasificacion = *t.ClasificacionDiferencia
		}
	}
	return resp
}

func clienteToResponse(c *model.Cliente) *dto.ClienteResponse {
	return &dto.ClienteResponse{
		ID:            c.ID.String(),
		Nombre:        c.Nombre,
		Telefono:      c.Telefono,
		Autorizado:    c.Autorizado,
		Saldo:         c.Saldo,
		LimiteCredito: c.LimiteCredito,
		Disponible:    c.Disponible(),
		PlanPago:      string(c.PlanPago),
	}
}

func movimientoToResponse(m *model.MovimientoCliente) dto.MovimientoResponse {
	return dto.MovimientoResponse{
		ID:             m.ID.String(),
		Secuencia:      m.Secuencia,
		Tipo:           string(m.Tipo),
		Monto:          m.Monto,
		Descripcion:    m.Descripcion,
		SaldoPosterior: m.SaldoPosterior,
		VentaID:        optString(m.VentaID),
		CreatedAt:      formatTime(m.CreatedAt),
	}
}

func productoToResponse(p *model.Producto) dto.ProductoResponse {
	return dto.ProductoResponse{
		ID:           p.ID.String(),
		CodigoBarras: p.CodigoBarras,
		Nombre:       p.Nombre,
		Categoria:    p.Categoria,
		PrecioVenta:  p.PrecioVenta,
		StockActual:  p.StockActual,
		StockMinimo:  p.StockMinimo,
		StockBajo:    p.EsStockBajo(),
	}
}
