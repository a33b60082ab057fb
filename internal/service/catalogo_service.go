package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"restorant/internal/model"
	"restorant/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Catalogo is the read-only menu lookup consumed by tabs and settlement.
type Catalogo interface {
	LookupPrice(ctx context.Context, ref model.LineRef) (decimal.Decimal, error)
	LookupDisplayName(ctx context.Context, ref model.LineRef) (string, error)
	IsSpecial(ref model.LineRef) bool
}

// itemCatalogo is the cached projection of a Producto or Especial.
type itemCatalogo struct {
	Nombre    string          `json:"nombre"`
	Precio    decimal.Decimal `json:"precio"`
	Categoria string          `json:"categoria"`
}

type catalogo struct {
	repo repository.CatalogoRepository
	rdb  *redis.Client // nil disables caching
	ttl  time.Duration
}

func NewCatalogo(repo repository.CatalogoRepository, rdb *redis.Client, ttl time.Duration) Catalogo {
	return &catalogo{repo: repo, rdb: rdb, ttl: ttl}
}

func (c *catalogo) LookupPrice(ctx context.Context, ref model.LineRef) (decimal.Decimal, error) {
	it, err := c.lookup(ctx, ref)
	if err != nil {
		return decimal.Zero, err
	}
	return it.Precio, nil
}

func (c *catalogo) LookupDisplayName(ctx context.Context, ref model.LineRef) (string, error) {
	it, err := c.lookup(ctx, ref)
	if err != nil {
		return "", err
	}
	return it.Nombre, nil
}

func (c *catalogo) IsSpecial(ref model.LineRef) bool { return ref.IsEspecial() }

func (c *catalogo) lookup(ctx context.Context, ref model.LineRef) (*itemCatalogo, error) {
	if !ref.Valid() {
		return nil, ErrLineaInvalida
	}
	cacheKey := "catalogo:" + ref.String()

	// 1. Redis cache
	if c.rdb != nil {
		if cached, err := c.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var it itemCatalogo
			if jsonErr := json.Unmarshal(cached, &it); jsonErr == nil {
				return &it, nil
			}
		}
	}

	// 2. Cache miss: query DB
	it, err := c.fromDB(ctx, ref)
	if err != nil {
		return nil, err
	}

	// 3. Populate cache: best effort
	if c.rdb != nil {
		if b, jsonErr := json.Marshal(it); jsonErr == nil {
			_ = c.rdb.Set(context.WithoutCancel(ctx), cacheKey, b, c.ttl).Err()
		}
	}
	return it, nil
}

func (c *catalogo) fromDB(ctx context.Context, ref model.LineRef) (*itemCatalogo, error) {
	if ref.IsEspecial() {
		e, err := c.repo.FindEspecial(ctx, ref.ID)
		if err != nil {
			return nil, catalogoErr(ref, err)
		}
		if !e.Disponible {
			return nil, fmt.Errorf("especial %s no disponible: %w", e.Nombre, ErrProductoNoEncontrado)
		}
		return &itemCatalogo{Nombre: e.Nombre, Precio: e.Precio, Categoria: model.CategoriaEspecial}, nil
	}
	p, err := c.repo.FindProducto(ctx, ref.ID)
	if err != nil {
		return nil, catalogoErr(ref, err)
	}
	if !p.Activo {
		return nil, fmt.Errorf("producto %s inactivo: %w", p.Nombre, ErrProductoNoEncontrado)
	}
	return &itemCatalogo{Nombre: p.Nombre, Precio: p.PrecioVenta, Categoria: p.Categoria}, nil
}

func catalogoErr(ref model.LineRef, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", ref, ErrProductoNoEncontrado)
	}
	return fmt.Errorf("catálogo %s: %w", ref, err)
}
