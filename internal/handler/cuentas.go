package handler

import (
	"net/http"

	"restorant/internal/dto"
	"restorant/internal/service"

	"github.com/gin-gonic/gin"
)

type CuentasHandler struct {
	cuentas     service.CuentaService
	liquidacion service.LiquidacionService
}

func NewCuentasHandler(cuentas service.CuentaService, liquidacion service.LiquidacionService) *CuentasHandler {
	return &CuentasHandler{cuentas: cuentas, liquidacion: liquidacion}
}

// ObtenerCuenta godoc
// @Summary      Cuenta abierta de una mesa
// @Tags         cuentas
// @Produce      json
// @Security     BearerAuth
// @Param        mesa path string true "ID de la mesa"
// @Success      200  {object} dto.CuentaResponse
// @Router       /v1/mesas/{mesa}/cuenta [get]
func (h *CuentasHandler) ObtenerCuenta(c *gin.Context) {
	cu, err := h.cuentas.Obtener(c.Request.Context(), c.Param("mesa"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cuentaToResponse(cu))
}

// AgregarLinea godoc
// @Summary      Agregar línea a la cuenta
// @Description  Captura el precio del catálogo al agregar; una línea existente sólo suma cantidad.
// @Tags         cuentas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        mesa path string                   true "ID de la mesa"
// @Param        body body dto.AgregarLineaRequest  true "Línea"
// @Success      200  {object} dto.CuentaResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/mesas/{mesa}/cuenta/lineas [post]
func (h *CuentasHandler) AgregarLinea(c *gin.Context) {
	var req dto.AgregarLineaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	ref, err := parseRef(req.Ref)
	if err != nil {
		respondError(c, err)
		return
	}
	cu, err := h.cuentas.AgregarLinea(c.Request.Context(), c.Param("mesa"), ref, req.Cantidad, req.Notas)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cuentaToResponse(cu))
}

// QuitarLinea godoc
// @Summary      Quitar línea de la cuenta
// @Tags         cuentas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        mesa path string                  true "ID de la mesa"
// @Param        body body dto.QuitarLineaRequest  true "Referencia"
// @Success      200  {object} dto.CuentaResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/mesas/{mesa}/cuenta/lineas [delete]
func (h *CuentasHandler) QuitarLinea(c *gin.Context) {
	var req dto.QuitarLineaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	ref, err := parseRef(req.Ref)
	if err != nil {
		respondError(c, err)
		return
	}
	cu, err := h.cuentas.QuitarLinea(c.Request.Context(), c.Param("mesa"), ref)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cuentaToResponse(cu))
}

// DecrementarLinea godoc
// @Summary      Decrementar cantidad de una línea
// @Tags         cuentas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        mesa path string                       true "ID de la mesa"
// @Param        body body dto.DecrementarLineaRequest  true "Referencia y cantidad"
// @Success      200  {object} dto.CuentaResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/mesas/{mesa}/cuenta/lineas/decrementar [patch]
func (h *CuentasHandler) DecrementarLinea(c *gin.Context) {
	var req dto.DecrementarLineaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	ref, err := parseRef(req.Ref)
	if err != nil {
		respondError(c, err)
		return
	}
	cu, err := h.cuentas.DecrementarLinea(c.Request.Context(), c.Param("mesa"), ref, req.Cantidad)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cuentaToResponse(cu))
}

// Liquidar godoc
// @Summary      Liquidar la cuenta de una mesa
// @Description  Registra la venta en el ledger. Si el ledger no responde la liquidación queda en cola (202) y la cuenta se cierra igual.
// @Tags         cuentas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        mesa path string               true "ID de la mesa"
// @Param        body body dto.LiquidarRequest  true "Método de pago"
// @Success      201  {object} dto.LiquidacionResponse
// @Success      202  {object} dto.LiquidacionResponse
// @Failure      422  {object} apierror.APIError
// @Router       /v1/mesas/{mesa}/cuenta/liquidar [post]
func (h *CuentasHandler) Liquidar(c *gin.Context) {
	var req dto.LiquidarRequest
	if !bindAndValidate(c, &req) {
		return
	}
	res, err := h.liquidacion.LiquidarCuenta(c.Request.Context(), c.Param("mesa"), req.MetodoPago)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.LiquidacionResponse{
		Estado:   res.Estado,
		PedidoID: res.PedidoID.String(),
		Total:    res.Total,
	}
	status := http.StatusAccepted
	if res.VentaID != nil {
		id := res.VentaID.String()
		resp.VentaID = &id
		resp.NumeroPedido = &res.NumeroPedido
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}
