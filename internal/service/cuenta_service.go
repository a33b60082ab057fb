package service

import (
	"context"
	"errors"
	"fmt"

	"restorant/internal/model"
	"restorant/internal/repository"

	"github.com/shopspring/decimal"
)

var ErrLineaNoEncontrada = errors.New("la línea no está en la cuenta")

// CuentaService drives the open tab of each mesa. Prices are captured from
// the catalog when a slot is first added and never refreshed.
type CuentaService interface {
	Obtener(ctx context.Context, mesaID string) (*model.Cuenta, error)
	AgregarLinea(ctx context.Context, mesaID string, ref model.LineRef, cantidad int, notas string) (*model.Cuenta, error)
	QuitarLinea(ctx context.Context, mesaID string, ref model.LineRef) (*model.Cuenta, error)
	DecrementarLinea(ctx context.Context, mesaID string, ref model.LineRef, cantidad int) (*model.Cuenta, error)
}

type cuentaService struct {
	repo     repository.CuentaRepository
	catalogo Catalogo
}

func NewCuentaService(repo repository.CuentaRepository, catalogo Catalogo) CuentaService {
	return &cuentaService{repo: repo, catalogo: catalogo}
}

func (s *cuentaService) Obtener(ctx context.Context, mesaID string) (*model.Cuenta, error) {
	return s.repo.Get(ctx, mesaID)
}

func (s *cuentaService) AgregarLinea(ctx context.Context, mesaID string, ref model.LineRef, cantidad int, notas string) (*model.Cuenta, error) {
	if !ref.Valid() || cantidad <= 0 {
		return nil, ErrLineaInvalida
	}
	c, err := s.repo.Get(ctx, mesaID)
	if err != nil {
		return nil, err
	}

	precio := decimal.Zero
	if existente := buscarLinea(c, ref); existente != nil {
		precio = existente.PrecioUnitario
	} else {
		if precio, err = s.catalogo.LookupPrice(ctx, ref); err != nil {
			return nil, err
		}
	}
	if err := c.Agregar(ref, cantidad, precio, notas); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrLineaInvalida)
	}
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *cuentaService) QuitarLinea(ctx context.Context, mesaID string, ref model.LineRef) (*model.Cuenta, error) {
	c, err := s.repo.Get(ctx, mesaID)
	if err != nil {
		return nil, err
	}
	if !c.Quitar(ref) {
		return nil, ErrLineaNoEncontrada
	}
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *cuentaService) DecrementarLinea(ctx context.Context, mesaID string, ref model.LineRef, cantidad int) (*model.Cuenta, error) {
	c, err := s.repo.Get(ctx, mesaID)
	if err != nil {
		return nil, err
	}
	if !c.Decrementar(ref, cantidad) {
		return nil, ErrLineaNoEncontrada
	}
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func buscarLinea(c *model.Cuenta, ref model.LineRef) *model.LineaCuenta {
	for i := range c.Lineas {
		if c.Lineas[i].Ref == ref {
			return &c.Lineas[i]
		}
	}
	return nil
}
