package model

import (
	"almacenpos/internal/money"

	"github.com/shopspring/decimal"
)

// Clasificacion of a cash difference, relative to the expected amount.
const (
	DiferenciaNormal      = "normal"      // |dif| <= 1%
	DiferenciaAdvertencia = "advertencia" // |dif| <= 5%
	DiferenciaCritica     = "critico"     // |dif| > 5%
)

// Resumen is a shift summary, either from running accumulators or rebuilt
// from the stored sales and expenses.
type Resumen struct {
	TotalVentas     money.Money
	CantidadTickets int
	DesglosePagos   Desglose
	TotalGastos     money.Money
	GastosEfectivo  money.Money
}

// Arqueo is the outcome of counting the drawer at close.
type Arqueo struct {
	EfectivoEsperado money.Money
	EfectivoContado  money.Money
	Diferencia       money.Money
	Clasificacion    string
}

// CalcularArqueo derives the expected cash and the difference.
//
//	esperado   = inicial + ventas en efectivo − gastos pagados con efectivo
//	diferencia = contado − esperado
//
// Card, transfer, fiado and staff sales never touch the drawer. For cash
// sales the drawer keeps exactly the sale total (received − change).
func CalcularArqueo(montoInicial money.Money, r Resumen, contado money.Money) Arqueo {
	esperado := montoInicial.Add(r.DesglosePagos[PagoEfectivo]).Sub(r.GastosEfectivo)
	dif := contado.Sub(esperado)
	return Arqueo{
		EfectivoEsperado: esperado,
		EfectivoContado:  contado,
		Diferencia:       dif,
		Clasificacion:    ClasificarDiferencia(dif, esperado),
	}
}

// ClasificarDiferencia buckets |diferencia| / esperado.
// With nothing expected any difference is critical; none at all is normal.
func ClasificarDiferencia(diferencia, esperado money.Money) string {
	if diferencia.IsZero() {
		return DiferenciaNormal
	}
	if !esperado.IsPositive() {
		return DiferenciaCritica
	}
	pct := diferencia.Abs().Decimal().Div(esperado.Decimal()).Mul(decimal.NewFromInt(100))
	switch {
	case pct.LessThanOrEqual(decimal.NewFromInt(1)):
		return DiferenciaNormal
	case pct.LessThanOrEqual(decimal.NewFromInt(5)):
		return DiferenciaAdvertencia
	default:
		return DiferenciaCritica
	}
}

// ResumirMovimientos rebuilds a shift summary from its stored sales and
// expenses. It must equal the running summary of the same shift.
func ResumirMovimientos(ventas []Venta, gastos []GastoTurno) Resumen {
	r := Resumen{DesglosePagos: Desglose{}}
	for i := range ventas {
		c := ventas[i].Contribucion()
		r.TotalVentas = r.TotalVentas.Add(c)
		r.CantidadTickets++
		r.DesglosePagos[ventas[i].MetodoPago] = r.DesglosePagos[ventas[i].MetodoPago].Add(c)
	}
	for _, g := range gastos {
		r.TotalGastos = r.TotalGastos.Add(g.Monto)
		if g.PagadoConEfectivo {
			r.GastosEfectivo = r.GastosEfectivo.Add(g.Monto)
		}
	}
	return r
}

// Iguales compares two summaries, treating a missing payment method as zero.
func (r Resumen) Iguales(o Resumen) bool {
	if r.TotalVentas != o.TotalVentas || r.CantidadTickets != o.CantidadTickets ||
		r.TotalGastos != o.TotalGastos || r.GastosEfectivo != o.GastosEfectivo {
		return false
	}
	for k, v := range r.DesglosePagos {
		if o.DesglosePagos[k] != v {
			return false
		}
	}
	for k, v := range o.DesglosePagos {
		if r.DesglosePagos[k] != v {
			return false
		}
	}
	return true
}
