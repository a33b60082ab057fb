package handler

import (
	"errors"
	"net/http"
	"reflect"

	"restorant/internal/apierror"
	"restorant/internal/dto"
	"restorant/internal/middleware"
	"restorant/internal/model"
	"restorant/internal/repository"
	"restorant/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// respondError maps the service error taxonomy onto HTTP. Unknown errors are
// logged and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, apierror.CodeInterno
	msg := "Error interno del servidor"

	switch {
	case errors.Is(err, service.ErrLineaInvalida),
		errors.Is(err, service.ErrMetodoPagoInvalido),
		errors.Is(err, service.ErrFiltroInvalido):
		status, code, msg = http.StatusBadRequest, apierror.CodeLineaInvalida, err.Error()
	case errors.Is(err, service.ErrSinLineasValidas):
		status, code, msg = http.StatusUnprocessableEntity, apierror.CodeSinLineas, err.Error()
	case errors.Is(err, service.ErrPedidoNoEncontrado),
		errors.Is(err, service.ErrDetalleNoEncontrado),
		errors.Is(err, service.ErrProductoNoEncontrado),
		errors.Is(err, service.ErrVentaNoEncontrada),
		errors.Is(err, service.ErrLineaNoEncontrada),
		errors.Is(err, repository.ErrItemNoEncontrado):
		status, code, msg = http.StatusNotFound, apierror.CodeNoEncontrado, err.Error()
	case errors.Is(err, service.ErrPedidoCerrado):
		status, code, msg = http.StatusConflict, apierror.CodePedidoCerrado, err.Error()
	case errors.Is(err, service.ErrLiquidacionCorrupta):
		status, code, msg = http.StatusConflict, apierror.CodeLiquidacionCorrupta, err.Error()
	case errors.Is(err, service.ErrNumeroNoUnico):
		status, code, msg = http.StatusConflict, apierror.CodeNumeroNoUnico, err.Error()
	case service.EsTransitorio(err):
		status, code, msg = http.StatusServiceUnavailable, apierror.CodeNoDisponible, "Servicio no disponible, intente nuevamente"
	}

	if status >= http.StatusInternalServerError || code == apierror.CodeLiquidacionCorrupta {
		log.Error().
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("path", c.FullPath()).
			Err(err).
			Msg("request failed")
	}
	c.JSON(status, apierror.WithCode(code, msg))
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return uuid.Nil, false
	}
	return id, true
}

// parseRef converts a validated request ref; the dto already checked the shape.
func parseRef(r dto.LineRefRequest) (model.LineRef, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return model.LineRef{}, service.ErrLineaInvalida
	}
	if r.Tipo == string(model.RefEspecial) {
		return model.RefEspecialDe(id), nil
	}
	return model.Catalogo(id), nil
}

func cuentaToResponse(cu *model.Cuenta) dto.CuentaResponse {
	lineas := make([]dto.LineaCuentaResponse, 0, len(cu.Lineas))
	for _, l := range cu.Lineas {
		lineas = append(lineas, dto.LineaCuentaResponse{
			Tipo:           string(l.Ref.Kind),
			ID:             l.Ref.ID.String(),
			Cantidad:       l.Cantidad,
			PrecioUnitario: l.PrecioUnitario,
			Subtotal:       l.Subtotal(),
			Notas:          l.Notas,
		})
	}
	return dto.CuentaResponse{MesaID: cu.MesaID, Lineas: lineas, Total: cu.Total()}
}
