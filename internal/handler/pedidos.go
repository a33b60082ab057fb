package handler

import (
	"net/http"
	"time"

	"restorant/internal/dto"
	"restorant/internal/model"
	"restorant/internal/service"

	"github.com/gin-gonic/gin"
)

// PedidosHandler exposes the ledger to the cashier: building a pedido by
// hand and completing it into a Venta.
type PedidosHandler struct{ ledger service.LedgerService }

func NewPedidosHandler(ledger service.LedgerService) *PedidosHandler {
	return &PedidosHandler{ledger: ledger}
}

// CrearPedido godoc
// @Summary      Crear pedido
// @Tags         pedidos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CrearPedidoRequest true "Mesa y líneas"
// @Success      201  {object} dto.PedidoResponse
// @Router       /v1/pedidos [post]
func (h *PedidosHandler) CrearPedido(c *gin.Context) {
	var req dto.CrearPedidoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	lineas := make([]model.LineaCuenta, 0, len(req.Lineas))
	for _, l := range req.Lineas {
		linea, err := lineaFromRequest(l)
		if err != nil {
			respondError(c, err)
			return
		}
		lineas = append(lineas, linea)
	}
	p, err := h.ledger.CrearPedido(c.Request.Context(), req.MesaID, lineas)
	if err != nil {
		respondError(c, err)
		return
	}
	h.responderPedido(c, http.StatusCreated, p)
}

// ObtenerPedido godoc
// @Summary      Detalle de un pedido
// @Tags         pedidos
// @Produce      json
// @Security     BearerAuth
// @Param        id  path string true "UUID del pedido"
// @Success      200 {object} dto.PedidoResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/pedidos/{id} [get]
func (h *PedidosHandler) ObtenerPedido(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	p, err := h.ledger.ObtenerPedido(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pedidoToResponse(p))
}

// AgregarDetalle godoc
// @Summary      Agregar detalle a un pedido abierto
// @Tags         pedidos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                 true "UUID del pedido"
// @Param        body body dto.LineaPedidoRequest true "Línea"
// @Success      201  {object} dto.PedidoResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/pedidos/{id}/detalles [post]
func (h *PedidosHandler) AgregarDetalle(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.LineaPedidoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	linea, err := lineaFromRequest(req)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := h.ledger.AgregarDetalle(c.Request.Context(), id, linea); err != nil {
		respondError(c, err)
		return
	}
	h.responderPedido(c, http.StatusCreated, &model.Pedido{ID: id})
}

// ActualizarDetalle godoc
// @Summary      Cambiar cantidad de un detalle
// @Tags         pedidos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string                       true "UUID del pedido"
// @Param        detalle path string                       true "UUID del detalle"
// @Param        body    body dto.ActualizarDetalleRequest true "Cantidad"
// @Success      200     {object} dto.PedidoResponse
// @Router       /v1/pedidos/{id}/detalles/{detalle} [patch]
func (h *PedidosHandler) ActualizarDetalle(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	detalleID, ok := parseUUIDParam(c, "detalle")
	if !ok {
		return
	}
	var req dto.ActualizarDetalleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.ledger.ActualizarCantidadDetalle(c.Request.Context(), detalleID, req.Cantidad); err != nil {
		respondError(c, err)
		return
	}
	h.responderPedido(c, http.StatusOK, &model.Pedido{ID: id})
}

// EliminarDetalle godoc
// @Summary      Eliminar un detalle
// @Tags         pedidos
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string true "UUID del pedido"
// @Param        detalle path string true "UUID del detalle"
// @Success      200     {object} dto.PedidoResponse
// @Router       /v1/pedidos/{id}/detalles/{detalle} [delete]
func (h *PedidosHandler) EliminarDetalle(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	detalleID, ok := parseUUIDParam(c, "detalle")
	if !ok {
		return
	}
	if err := h.ledger.EliminarDetalle(c.Request.Context(), detalleID); err != nil {
		respondError(c, err)
		return
	}
	h.responderPedido(c, http.StatusOK, &model.Pedido{ID: id})
}

// CompletarPedido godoc
// @Summary      Completar pedido
// @Description  Convierte el pedido en su única venta. Idempotente: repetir devuelve la misma venta.
// @Tags         pedidos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                     true "UUID del pedido"
// @Param        body body dto.CompletarPedidoRequest true "Método de pago"
// @Success      200  {object} dto.CompletarPedidoResponse
// @Failure      404  {object} apierror.APIError
// @Failure      409  {object} apierror.APIError
// @Router       /v1/pedidos/{id}/completar [post]
func (h *PedidosHandler) CompletarPedido(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.CompletarPedidoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	ventaID, err := h.ledger.CompletarPedido(c.Request.Context(), id, req.MetodoPago)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CompletarPedidoResponse{PedidoID: id.String(), VentaID: ventaID.String()})
}

// responderPedido reloads the pedido so the response shows recomputed totals.
func (h *PedidosHandler) responderPedido(c *gin.Context, status int, p *model.Pedido) {
	full, err := h.ledger.ObtenerPedido(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, pedidoToResponse(full))
}

func lineaFromRequest(r dto.LineaPedidoRequest) (model.LineaCuenta, error) {
	ref, err := parseRef(r.Ref)
	if err != nil {
		return model.LineaCuenta{}, err
	}
	l := model.LineaCuenta{Ref: ref, Cantidad: r.Cantidad, Notas: r.Notas, SinPrecio: r.PrecioUnitario == nil}
	if r.PrecioUnitario != nil {
		if r.PrecioUnitario.IsNegative() {
			return model.LineaCuenta{}, service.ErrLineaInvalida
		}
		l.PrecioUnitario = *r.PrecioUnitario
	}
	return l, nil
}

func pedidoToResponse(p *model.Pedido) dto.PedidoResponse {
	detalles := make([]dto.DetallePedidoResponse, 0, len(p.Detalles))
	for _, d := range p.Detalles {
		item := dto.DetallePedidoResponse{
			ID:             d.ID.String(),
			Cantidad:       d.Cantidad,
			PrecioUnitario: d.PrecioUnitario,
			Subtotal:       d.Subtotal,
			Notas:          d.Notas,
		}
		if ref, ok := d.Ref(); ok {
			item.Tipo = string(ref.Kind)
			item.RefID = ref.ID.String()
		}
		detalles = append(detalles, item)
	}
	resp := dto.PedidoResponse{
		ID:           p.ID.String(),
		MesaID:       p.MesaID,
		NumeroPedido: p.NumeroPedido,
		Subtotal:     p.Subtotal,
		Total:        p.Total,
		Estado:       p.Estado,
		Detalles:     detalles,
	}
	if p.CompletadoAt != nil {
		s := p.CompletadoAt.Format(time.RFC3339)
		resp.CompletadoAt = &s
	}
	return resp
}
