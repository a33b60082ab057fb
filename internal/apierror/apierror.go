// Package apierror provides the error envelopes returned to clients.
// Nothing internal (stack traces, SQL, Redis errors) goes into them.
package apierror

// Stable codes clients branch on. Detail is for humans and may change.
const (
	CodeValidacion          = "validacion"
	CodeNoAutenticado       = "no_autenticado"
	CodeSinPermiso          = "sin_permiso"
	CodeLineaInvalida       = "linea_invalida"
	CodeSinLineas           = "sin_lineas_validas"
	CodeNoEncontrado        = "no_encontrado"
	CodePedidoCerrado       = "pedido_cerrado"
	CodeLiquidacionCorrupta = "liquidacion_corrupta"
	CodeNumeroNoUnico       = "numero_no_unico"
	CodeNoDisponible        = "ledger_no_disponible"
	CodeLimite              = "limite_excedido"
	CodeInterno             = "interno"
)

// APIError is the envelope for all 4xx/5xx responses.
type APIError struct {
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

func WithCode(code, msg string) *APIError {
	return &APIError{Code: code, Detail: msg}
}

// ValidationError carries one failed tag per field.
type ValidationError struct {
	Code   string            `json:"code"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Code: CodeValidacion, Detail: "Error de validacion", Fields: fields}
}
