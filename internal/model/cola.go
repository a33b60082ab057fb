package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SolicitudLiquidacion is a validated settlement request. PedidoID is chosen
// by the coordinator and acts as the idempotency key for every replay.
type SolicitudLiquidacion struct {
	PedidoID   uuid.UUID       `json:"pedido_id"`
	MesaID     string          `json:"mesa_id"`
	Lineas     []LineaCuenta   `json:"lineas"`
	MetodoPago string          `json:"metodo_pago"`
	Total      decimal.Decimal `json:"total"`
	CreadaAt   time.Time       `json:"creada_at"`
}

// EstadoCola is the lifecycle of a queued settlement:
//
//	pendiente → reproduciendo → liquidado
//	                          → pendiente (retryable failure)
//	                          → fallido   (fatal, operator action)
type EstadoCola string

const (
	ColaPendiente     EstadoCola = "pendiente"
	ColaReproduciendo EstadoCola = "reproduciendo"
	ColaLiquidado     EstadoCola = "liquidado"
	ColaFallido       EstadoCola = "fallido"
)

var transicionesCola = map[EstadoCola][]EstadoCola{
	ColaPendiente:     {ColaReproduciendo},
	ColaReproduciendo: {ColaLiquidado, ColaPendiente, ColaFallido},
	// operator re-queue
	ColaFallido: {ColaPendiente},
}

// PuedePasarA reports whether e → next is a legal transition.
func (e EstadoCola) PuedePasarA(next EstadoCola) bool {
	for _, s := range transicionesCola[e] {
		if s == next {
			return true
		}
	}
	return false
}

// ItemCola is one queued settlement attempt.
type ItemCola struct {
	ID            uuid.UUID            `json:"id"`
	Solicitud     SolicitudLiquidacion `json:"solicitud"`
	Estado        EstadoCola           `json:"estado"`
	Intentos      int                  `json:"intentos"`
	UltimoError   string               `json:"ultimo_error,omitempty"`
	VentaID       *uuid.UUID           `json:"venta_id,omitempty"`
	EncoladoAt    time.Time            `json:"encolado_at"`
	ActualizadoAt time.Time            `json:"actualizado_at"`
}

func NuevoItemCola(s SolicitudLiquidacion) *ItemCola {
	now := time.Now().UTC()
	return &ItemCola{
		ID:            uuid.New(),
		Solicitud:     s,
		Estado:        ColaPendiente,
		EncoladoAt:    now,
		ActualizadoAt: now,
	}
}

// Pasar moves the item to next, rejecting illegal transitions.
func (i *ItemCola) Pasar(next EstadoCola) error {
	if !i.Estado.PuedePasarA(next) {
		return fmt.Errorf("transición de cola inválida: %s → %s", i.Estado, next)
	}
	i.Estado = next
	i.ActualizadoAt = time.Now().UTC()
	return nil
}
