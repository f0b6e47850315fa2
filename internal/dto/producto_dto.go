package dto

import "almacenpos/internal/money"

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductoResponse struct {
	ID           string      `json:"id"`
	CodigoBarras *string     `json:"codigo_barras"`
	Nombre       string      `json:"nombre"`
	Categoria    string      `json:"categoria"`
	PrecioVenta  money.Money `json:"precio_venta"`
	StockActual  int         `json:"stock_actual"`
	StockMinimo  int         `json:"stock_minimo"`
	StockBajo    bool        `json:"stock_bajo"`
}

type StockBajoResponse struct {
	ProductoID  string `json:"producto_id"`
	StockBajo   bool   `json:"stock_bajo"`
	StockActual int    `json:"stock_actual"`
	StockMinimo int    `json:"stock_minimo"`
}
