package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// LineRefRequest identifies a catalog product or an off-menu special.
type LineRefRequest struct {
	Tipo string `json:"tipo" validate:"required,oneof=catalogo especial"`
	ID   string `json:"id"   validate:"required,uuid"`
}

type AgregarLineaRequest struct {
	Ref      LineRefRequest `json:"ref"      validate:"required"`
	Cantidad int            `json:"cantidad" validate:"required,min=1,max=999"`
	Notas    string         `json:"notas"    validate:"max=200"`
}

type QuitarLineaRequest struct {
	Ref LineRefRequest `json:"ref" validate:"required"`
}

type DecrementarLineaRequest struct {
	Ref LineRefRequest `json:"ref" validate:"required"`
	// Cantidad defaults to 1 when omitted.
	Cantidad int `json:"cantidad" validate:"omitempty,min=1"`
}

type LiquidarRequest struct {
	MetodoPago string `json:"metodo_pago" validate:"required,oneof=efectivo debito credito transferencia"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type LineaCuentaResponse struct {
	Tipo           string          `json:"tipo"`
	ID             string          `json:"id"`
	Cantidad       int             `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Notas          string          `json:"notas,omitempty"`
}

type CuentaResponse struct {
	MesaID string                `json:"mesa_id"`
	Lineas []LineaCuentaResponse `json:"lineas"`
	Total  decimal.Decimal       `json:"total"`
}

// LiquidacionResponse is the SettlementResult. Estado is "liquidada" when the
// ledger confirmed the sale, "en_cola" when it was queued for later replay.
type LiquidacionResponse struct {
	Estado       string          `json:"estado"`
	PedidoID     string          `json:"pedido_id"`
	VentaID      *string         `json:"venta_id,omitempty"`
	NumeroPedido *string         `json:"numero_pedido,omitempty"`
	Total        decimal.Decimal `json:"total"`
}
