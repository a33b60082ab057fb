package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"restorant/internal/dto"
	"restorant/internal/model"
	"restorant/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const fechaLayout = "2006-01-02"

// VentaService is the read model over settled sales. It never writes.
type VentaService interface {
	ObtenerVenta(ctx context.Context, id uuid.UUID) (*model.Venta, error)
	ListarVentas(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error)
}

type ventaService struct {
	repo repository.VentaRepository
	loc  *time.Location
	now  func() time.Time
}

func NewVentaService(repo repository.VentaRepository) VentaService {
	return &ventaService{repo: repo, loc: time.Local, now: time.Now}
}

func (s *ventaService) ObtenerVenta(ctx context.Context, id uuid.UUID) (*model.Venta, error) {
	v, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVentaNoEncontrada
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListarVentas returns sales settled between Desde and Hasta (inclusive days).
// A missing bound defaults to the other one; both missing means today.
func (s *ventaService) ListarVentas(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error) {
	desde, hasta, err := s.rango(filter.Desde, filter.Hasta)
	if err != nil {
		return nil, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}

	ventas, total, err := s.repo.List(ctx, repository.VentaQuery{
		Desde:  desde,
		Hasta:  hasta,
		MesaID: filter.MesaID,
		Offset: (filter.Page - 1) * filter.Limit,
		Limit:  filter.Limit,
	})
	if err != nil {
		return nil, err
	}

	data := make([]dto.VentaResponse, 0, len(ventas))
	for i := range ventas {
		data = append(data, *VentaToResponse(&ventas[i]))
	}
	return &dto.VentaListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *ventaService) rango(desdeStr, hastaStr string) (time.Time, time.Time, error) {
	if desdeStr == "" && hastaStr == "" {
		desdeStr = s.now().In(s.loc).Format(fechaLayout)
	}
	if desdeStr == "" {
		desdeStr = hastaStr
	}
	if hastaStr == "" {
		hastaStr = desdeStr
	}
	desde, err := time.ParseInLocation(fechaLayout, desdeStr, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: desde %q (YYYY-MM-DD)", ErrFiltroInvalido, desdeStr)
	}
	hasta, err := time.ParseInLocation(fechaLayout, hastaStr, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: hasta %q (YYYY-MM-DD)", ErrFiltroInvalido, hastaStr)
	}
	if hasta.Before(desde) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s > %s", ErrFiltroInvalido, desdeStr, hastaStr)
	}
	return desde.UTC(), hasta.AddDate(0, 0, 1).UTC(), nil
}

func VentaToResponse(v *model.Venta) *dto.VentaResponse {
	detalles := make([]dto.DetalleVentaResponse, 0, len(v.Detalles))
	for _, d := range v.Detalles {
		item := dto.DetalleVentaResponse{
			Nombre:         d.Nombre,
			Categoria:      d.Categoria,
			Cantidad:       d.Cantidad,
			PrecioUnitario: d.PrecioUnitario,
			Subtotal:       d.Subtotal,
		}
		if ref, ok := model.RefFromColumns(d.ProductoID, d.EspecialID); ok {
			item.Tipo = string(ref.Kind)
			item.RefID = ref.ID.String()
		}
		detalles = append(detalles, item)
	}
	return &dto.VentaResponse{
		ID:            v.ID.String(),
		PedidoID:      v.PedidoID.String(),
		MesaID:        v.MesaID,
		NumeroPedido:  v.NumeroPedido,
		Total:         v.Total,
		CantidadItems: v.CantidadItems,
		MetodoPago:    v.MetodoPago,
		LiquidadaAt:   v.LiquidadaAt.Format(time.RFC3339),
		Detalles:      detalles,
	}
}
