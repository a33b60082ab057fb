package dto

import "github.com/shopspring/decimal"

type ItemColaResponse struct {
	ID            string          `json:"id"`
	PedidoID      string          `json:"pedido_id"`
	MesaID        string          `json:"mesa_id"`
	Total         decimal.Decimal `json:"total"`
	MetodoPago    string          `json:"metodo_pago"`
	Estado        string          `json:"estado"`
	Intentos      int             `json:"intentos"`
	UltimoError   string          `json:"ultimo_error,omitempty"`
	EncoladoAt    string          `json:"encolado_at"`
	ActualizadoAt string          `json:"actualizado_at"`
}

type ColaResponse struct {
	Items []ItemColaResponse `json:"items"`
	Total int                `json:"total"`
}

// DrenajeResponse summarises one reconciliation pass.
type DrenajeResponse struct {
	Mesas      int `json:"mesas"`
	Liquidados int `json:"liquidados"`
	Pendientes int `json:"pendientes"`
	Fallidos   int `json:"fallidos"`
}
