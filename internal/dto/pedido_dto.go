package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// LineaPedidoRequest: an omitted PrecioUnitario is resolved from the catalog;
// an explicit 0 is kept.
type LineaPedidoRequest struct {
	Ref            LineRefRequest   `json:"ref"             validate:"required"`
	Cantidad       int              `json:"cantidad"        validate:"required,min=1,max=999"`
	PrecioUnitario *decimal.Decimal `json:"precio_unitario"`
	Notas          string           `json:"notas"           validate:"max=200"`
}

type CrearPedidoRequest struct {
	MesaID string               `json:"mesa_id" validate:"required,max=40"`
	Lineas []LineaPedidoRequest `json:"lineas"  validate:"dive"`
}

type ActualizarDetalleRequest struct {
	Cantidad int `json:"cantidad" validate:"required,min=1,max=999"`
}

type CompletarPedidoRequest struct {
	MetodoPago string `json:"metodo_pago" validate:"required,oneof=efectivo debito credito transferencia"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DetallePedidoResponse struct {
	ID             string          `json:"id"`
	Tipo           string          `json:"tipo"`
	RefID          string          `json:"ref_id"`
	Cantidad       int             `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Notas          string          `json:"notas,omitempty"`
}

type PedidoResponse struct {
	ID           string                  `json:"id"`
	MesaID       string                  `json:"mesa_id"`
	NumeroPedido string                  `json:"numero_pedido"`
	Subtotal     decimal.Decimal         `json:"subtotal"`
	Total        decimal.Decimal         `json:"total"`
	Estado       string                  `json:"estado"`
	CompletadoAt *string                 `json:"completado_at,omitempty"`
	Detalles     []DetallePedidoResponse `json:"detalles"`
}

type CompletarPedidoResponse struct {
	PedidoID string `json:"pedido_id"`
	VentaID  string `json:"venta_id"`
}
