package handler

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"restorant/internal/apierror"
	"restorant/internal/dto"
	"restorant/internal/infra"
	"restorant/internal/service"

	"github.com/gin-gonic/gin"
)

type VentasHandler struct {
	svc         service.VentaService
	nombreLocal string
	pdfDir      string
}

// NewVentasHandler serves the sales read model. Tickets are rendered once
// into pdfDir and served from disk afterwards.
func NewVentasHandler(svc service.VentaService, nombreLocal, pdfDir string) *VentasHandler {
	return &VentasHandler{svc: svc, nombreLocal: nombreLocal, pdfDir: pdfDir}
}

// ListarVentas godoc
// @Summary      Listar ventas
// @Description  Read model de ventas liquidadas por rango de fechas (inclusive).
// @Tags         ventas
// @Produce      json
// @Security     BearerAuth
// @Param        desde query string false "Fecha YYYY-MM-DD (default: hoy)"
// @Param        hasta query string false "Fecha YYYY-MM-DD (default: desde)"
// @Param        mesa  query string false "Filtrar por mesa"
// @Param        page  query int    false "Página (default 1)"
// @Param        limit query int    false "Registros por página (default 50)"
// @Success      200   {object} dto.VentaListResponse
// @Failure      400   {object} apierror.APIError
// @Router       /v1/ventas [get]
func (h *VentasHandler) ListarVentas(c *gin.Context) {
	var filter dto.VentaFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	if err := validate.Struct(filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Paginación inválida"))
		return
	}
	resp, err := h.svc.ListarVentas(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ObtenerVenta godoc
// @Summary      Detalle de una venta
// @Tags         ventas
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "UUID de la venta"
// @Success      200 {object} dto.VentaResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/ventas/{id} [get]
func (h *VentasHandler) ObtenerVenta(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	v, err := h.svc.ObtenerVenta(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.VentaToResponse(v))
}

// Ticket godoc
// @Summary      Ticket PDF de una venta
// @Tags         ventas
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id  path string true "UUID de la venta"
// @Success      200
// @Failure      404 {object} apierror.APIError
// @Router       /v1/ventas/{id}/ticket [get]
func (h *VentasHandler) Ticket(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	v, err := h.svc.ObtenerVenta(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	path := filepath.Join(h.pdfDir, fmt.Sprintf("ticket_%s.pdf", v.NumeroPedido))
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		if path, err = infra.GenerateTicketPDF(v, h.pdfDir, h.nombreLocal); err != nil {
			respondError(c, err)
			return
		}
	}
	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="ticket_%s.pdf"`, v.NumeroPedido))
	c.File(path)
}
