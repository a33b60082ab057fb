package dto

import "github.com/shopspring/decimal"

// ─── Filter / List ──────────────────────────────────────────────────────────

// VentaFilter is bound from query string of GET /v1/ventas.
// Desde and Hasta are inclusive calendar days (YYYY-MM-DD); both empty = today.
type VentaFilter struct {
	Desde  string `form:"desde"`
	Hasta  string `form:"hasta"`
	MesaID string `form:"mesa"`
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type DetalleVentaResponse struct {
	Tipo           string          `json:"tipo"`
	RefID          string          `json:"ref_id"`
	Nombre         string          `json:"nombre"`
	Categoria      string          `json:"categoria"`
	Cantidad       int             `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

type VentaResponse struct {
	ID            string                 `json:"id"`
	PedidoID      string                 `json:"pedido_id"`
	MesaID        string                 `json:"mesa_id"`
	NumeroPedido  string                 `json:"numero_pedido"`
	Total         decimal.Decimal        `json:"total"`
	CantidadItems int                    `json:"cantidad_items"`
	MetodoPago    string                 `json:"metodo_pago"`
	LiquidadaAt   string                 `json:"liquidada_at"`
	Detalles      []DetalleVentaResponse `json:"detalles"`
}

type VentaListResponse struct {
	Data  []VentaResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}
