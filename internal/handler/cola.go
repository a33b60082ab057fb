package handler

import (
	"context"
	"net/http"
	"time"

	"restorant/internal/dto"
	"restorant/internal/model"
	"restorant/internal/repository"
	"restorant/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Drenador runs one reconciliation pass. Satisfied by *worker.Reconciliador.
type Drenador interface {
	Drenar(ctx context.Context) (worker.Resumen, error)
}

// ColaHandler is the operator surface of the offline settlement queue.
type ColaHandler struct {
	cola     repository.ColaRepository
	drenador Drenador
}

func NewColaHandler(cola repository.ColaRepository, drenador Drenador) *ColaHandler {
	return &ColaHandler{cola: cola, drenador: drenador}
}

// Drenar godoc
// @Summary      Drenar la cola offline
// @Description  Reproduce las liquidaciones encoladas. Es seguro repetirlo: la liquidación es idempotente.
// @Tags         cola
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.DrenajeResponse
// @Router       /v1/cola/drenar [post]
func (h *ColaHandler) Drenar(c *gin.Context) {
	res, err := h.drenador.Drenar(c.Request.Context())
	if err != nil {
		// partial passes still report what they did
		log.Warn().Err(err).Msg("cola: drenaje con errores")
	}
	c.JSON(http.StatusOK, dto.DrenajeResponse{
		Mesas:      res.Mesas,
		Liquidados: res.Liquidados,
		Pendientes: res.Pendientes,
		Fallidos:   res.Fallidos,
	})
}

// ListarPendientes godoc
// @Summary      Liquidaciones pendientes de sincronizar
// @Tags         cola
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.ColaResponse
// @Router       /v1/cola [get]
func (h *ColaHandler) ListarPendientes(c *gin.Context) {
	items, err := h.cola.Pendientes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, colaToResponse(items))
}

// ListarFallidos godoc
// @Summary      Liquidaciones fallidas (dead-letter)
// @Tags         cola
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.ColaResponse
// @Router       /v1/cola/fallidos [get]
func (h *ColaHandler) ListarFallidos(c *gin.Context) {
	items, err := h.cola.Fallidos(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, colaToResponse(items))
}

// Reintentar godoc
// @Summary      Reencolar una liquidación fallida
// @Tags         cola
// @Produce      json
// @Security     BearerAuth
// @Param        id  path string true "ID del item"
// @Success      200 {object} dto.ItemColaResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/cola/fallidos/{id}/reintentar [post]
func (h *ColaHandler) Reintentar(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	item, err := h.cola.Reencolar(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Info().Str("item_id", id.String()).Str("mesa_id", item.Solicitud.MesaID).Msg("cola: item reencolado por operador")
	c.JSON(http.StatusOK, itemColaToResponse(*item))
}

func colaToResponse(items []model.ItemCola) dto.ColaResponse {
	out := make([]dto.ItemColaResponse, 0, len(items))
	for _, it := range items {
		out = append(out, itemColaToResponse(it))
	}
	return dto.ColaResponse{Items: out, Total: len(out)}
}

func itemColaToResponse(it model.ItemCola) dto.ItemColaResponse {
	return dto.ItemColaResponse{
		ID:            it.ID.String(),
		PedidoID:      it.Solicitud.PedidoID.String(),
		MesaID:        it.Solicitud.MesaID,
		Total:         it.Solicitud.Total,
		MetodoPago:    it.Solicitud.MetodoPago,
		Estado:        string(it.Estado),
		Intentos:      it.Intentos,
		UltimoError:   it.UltimoError,
		EncoladoAt:    it.EncoladoAt.Format(time.RFC3339),
		ActualizadoAt: it.ActualizadoAt.Format(time.RFC3339),
	}
}
