package infra

// pdf.go: read-only document projections rendered with go-pdf/fpdf:
//   - shift close report (summary, payment breakdown, expenses, cash count)
//   - client statement (movement history with running balance)
//
// Both write to an io.Writer so callers decide between a file, an HTTP
// response or an email attachment.

import (
	"fmt"
	"io"
	"sort"
	"time"

	"almacenpos/internal/dto"
	"almacenpos/internal/model"
	"almacenpos/internal/money"

	"github.com/go-pdf/fpdf"
)

const pdfMargin = 12.0

func nuevoDocumento() (*fpdf.Fpdf, func(string) string, float64) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, _ := pdf.GetPageSize()
	return pdf, tr, pageW - 2*pdfMargin
}

func encabezado(pdf *fpdf.Fpdf, tr func(string) string, contentW float64, tienda, titulo string) {
	pdf.SetFont("Helvetica", "B", 15)
	pdf.CellFormat(contentW, 8, tr(tienda), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(contentW, 6, tr(titulo), "", 1, "C", false, 0, "")
	pdf.Ln(3)
}

func separador(pdf *fpdf.Fpdf) {
	pageW, _ := pdf.GetPageSize()
	pdf.Line(pdfMargin, pdf.GetY(), pageW-pdfMargin, pdf.GetY())
	pdf.Ln(2)
}

func fila(pdf *fpdf.Fpdf, tr func(string) string, labelW, valueW float64, label, value string) {
	pdf.CellFormat(labelW, 6, tr(label), "", 0, "L", false, 0, "")
	pdf.CellFormat(valueW, 6, tr(value), "", 1, "R", false, 0, "")
}

// ── Shift report ─────────────────────────────────────────────────────────────

// GenerarReporteTurnoPDF renders the close report of a closed shift. ventas
// are the shift's sales and returns, listed in ticket order.
func GenerarReporteTurnoPDF(w io.Writer, tienda string, t *model.Turno, ventas []model.Venta) error {
	if t.Abierto() || t.TotalVentas == nil || t.EfectivoEsperado == nil {
		return fmt.Errorf("pdf: el turno %s no está cerrado", t.ID)
	}

	pdf, tr, contentW := nuevoDocumento()
	encabezado(pdf, tr, contentW, tienda, "Reporte de cierre de turno")

	labelW, valueW := contentW*0.6, contentW*0.4

	// ── Shift info ────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 9)
	fila(pdf, tr, labelW, valueW, "Turno", t.ID.String())
	fila(pdf, tr, labelW, valueW, "Tipo", string(t.Tipo))
	fila(pdf, tr, labelW, valueW, "Inicio", t.Inicio.Format("02/01/2006 15:04"))
	if t.Fin != nil {
		fila(pdf, tr, labelW, valueW, "Fin", t.Fin.Format("02/01/2006 15:04"))
	}
	pdf.Ln(1)
	separador(pdf)

	// ── Summary ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW, 7, "Resumen", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	fila(pdf, tr, labelW, valueW, "Total de ventas", t.TotalVentas.Format())
	if t.CantidadTickets != nil {
		fila(pdf, tr, labelW, valueW, "Tickets", fmt.Sprintf("%d", *t.CantidadTickets))
	}
	metodos := make([]string, 0, len(t.DesglosePagos))
	for m := range t.DesglosePagos {
		metodos = append(metodos, string(m))
	}
	sort.Strings(metodos)
	for _, m := range metodos {
		fila(pdf, tr, labelW, valueW, "  "+m, t.DesglosePagos[model.MetodoPago(m)].Format())
	}
	if t.TotalGastos != nil {
		fila(pdf, tr, labelW, valueW, "Total de gastos", t.TotalGastos.Format())
	}
	pdf.Ln(1)
	separador(pdf)

	// ── Cash count ────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW, 7, "Arqueo de caja", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	fila(pdf, tr, labelW, valueW, "Monto inicial", t.MontoInicial.Format())
	fila(pdf, tr, labelW, valueW, "Efectivo esperado", t.EfectivoEsperado.Format())
	if t.EfectivoContado != nil {
		fila(pdf, tr, labelW, valueW, "Efectivo contado", t.EfectivoContado.Format())
	}
	if t.Diferencia != nil {
		pdf.SetFont("Helvetica", "B", 9)
		fila(pdf, tr, labelW, valueW, "Diferencia", t.Diferencia.Format())
		pdf.SetFont("Helvetica", "", 9)
	}
	if t.ClasificacionDiferencia != nil {
		fila(pdf, tr, labelW, valueW, "Clasificación", *t.ClasificacionDiferencia)
	}
	if t.Observaciones != nil && *t.Observaciones != "" {
		pdf.Ln(1)
		pdf.MultiCell(contentW, 5, tr("Observaciones: "+*t.Observaciones), "", "L", false)
	}

	// ── Expenses ──────────────────────────────────────────────────────────────
	if len(t.Gastos) > 0 {
		pdf.Ln(2)
		separador(pdf)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(contentW, 7, "Gastos", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		for _, g := range t.Gastos {
			label := string(g.Tipo)
			if g.Proveedor != nil {
				label += " (" + *g.Proveedor + ")"
			}
			if !g.PagadoConEfectivo {
				label += " [no efectivo]"
			}
			fila(pdf, tr, labelW, valueW, label, g.Monto.Format())
		}
	}

	// ── Tickets ───────────────────────────────────────────────────────────────
	if len(ventas) > 0 {
		pdf.Ln(2)
		separador(pdf)
		col := []float64{contentW * 0.15, contentW * 0.2, contentW * 0.25, contentW * 0.4}
		pdf.SetFont("Helvetica", "B", 8)
		pdf.CellFormat(col[0], 6, tr("Ticket"), "B", 0, "L", false, 0, "")
		pdf.CellFormat(col[1], 6, "Hora", "B", 0, "L", false, 0, "")
		pdf.CellFormat(col[2], 6, tr("Método"), "B", 0, "L", false, 0, "")
		pdf.CellFormat(col[3], 6, "Importe", "B", 1, "R", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		for _, v := range ventas {
			pdf.CellFormat(col[0], 5, fmt.Sprintf("#%d", v.NumeroTicket), "", 0, "L", false, 0, "")
			pdf.CellFormat(col[1], 5, v.CreatedAt.Format("15:04"), "", 0, "L", false, 0, "")
			pdf.CellFormat(col[2], 5, tr(string(v.MetodoPago)), "", 0, "L", false, 0, "")
			pdf.CellFormat(col[3], 5, tr(v.Contribucion().Format()), "", 1, "R", false, 0, "")
		}
	}

	return pdf.Output(w)
}

// ── Client statement ─────────────────────────────────────────────────────────

// GenerarEstadoCuentaPDF renders a client's history with the running balance.
// desde/hasta only label the period; h is already filtered.
func GenerarEstadoCuentaPDF(w io.Writer, tienda string, h *dto.HistorialClienteResponse, desde, hasta *time.Time) error {
	c := h.Cliente
	pdf, tr, contentW := nuevoDocumento()
	encabezado(pdf, tr, contentW, tienda, "Estado de cuenta")

	labelW, valueW := contentW*0.6, contentW*0.4
	pdf.SetFont("Helvetica", "", 9)
	fila(pdf, tr, labelW, valueW, "Cliente", c.Nombre)
	fila(pdf, tr, labelW, valueW, "Plan de pago", c.PlanPago)
	fila(pdf, tr, labelW, valueW, "Límite de crédito", c.LimiteCredito.Format())
	fila(pdf, tr, labelW, valueW, "Período", periodo(desde, hasta))
	pdf.Ln(1)
	separador(pdf)

	col := []float64{contentW * 0.08, contentW * 0.17, contentW * 0.13, contentW * 0.32, contentW * 0.15, contentW * 0.15}
	pdf.SetFont("Helvetica", "B", 8)
	for i, h := range []string{"#", "Fecha", "Tipo", "Detalle", "Monto", "Saldo"} {
		align := "L"
		if i >= 4 {
			align = "R"
		}
		ln := 0
		if i == len(col)-1 {
			ln = 1
		}
		pdf.CellFormat(col[i], 6, h, "B", ln, align, false, 0, "")
	}

	pdf.SetFont("Helvetica", "", 8)
	for _, m := range h.Movimientos {
		detalle := m.Descripcion
		if r := []rune(detalle); len(r) > 40 {
			detalle = string(r[:39]) + "…"
		}
		pdf.CellFormat(col[0], 5, fmt.Sprintf("%d", m.Secuencia), "", 0, "L", false, 0, "")
		pdf.CellFormat(col[1], 5, fecha(m.CreatedAt), "", 0, "L", false, 0, "")
		pdf.CellFormat(col[2], 5, tr(m.Tipo), "", 0, "L", false, 0, "")
		pdf.CellFormat(col[3], 5, tr(detalle), "", 0, "L", false, 0, "")
		pdf.CellFormat(col[4], 5, tr(m.Monto.Format()), "", 0, "R", false, 0, "")
		pdf.CellFormat(col[5], 5, tr(m.SaldoPosterior.Format()), "", 1, "R", false, 0, "")
	}
	if len(h.Movimientos) == 0 {
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(contentW, 6, tr("Sin movimientos en el período"), "", 1, "C", false, 0, "")
	}

	pdf.Ln(2)
	separador(pdf)
	pdf.SetFont("Helvetica", "B", 10)
	fila(pdf, tr, labelW, valueW, "Saldo actual", saldoFinal(c.Saldo))

	return pdf.Output(w)
}

func fecha(rfc3339 string) string {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return rfc3339
	}
	return t.Format("02/01/2006")
}

func periodo(desde, hasta *time.Time) string {
	switch {
	case desde != nil && hasta != nil:
		return desde.Format("02/01/2006") + " - " + hasta.Format("02/01/2006")
	case desde != nil:
		return "desde " + desde.Format("02/01/2006")
	case hasta != nil:
		return "hasta " + hasta.Format("02/01/2006")
	default:
		return "completo"
	}
}

func saldoFinal(s money.Money) string {
	if s.IsZero() {
		return "$0 (sin deuda)"
	}
	return s.Format()
}
