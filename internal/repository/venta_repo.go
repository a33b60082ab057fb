package repository

import (
	"context"
	"time"

	"restorant/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VentaQuery is the read-model filter for listSales. Hasta is exclusive.
type VentaQuery struct {
	Desde  time.Time
	Hasta  time.Time
	MesaID string
	Offset int
	Limit  int
}

// DetalleDerivado is one distinct product of a pedido, joined with the
// catalog for its current display name and category.
type DetalleDerivado struct {
	ProductoID *uuid.UUID
	EspecialID *uuid.UUID
	Nombre     string
	Categoria  string
	Cantidad   int64
	Subtotal   decimal.Decimal
}

type VentaRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error)
	List(ctx context.Context, q VentaQuery) ([]model.Venta, int64, error)

	FindByPedidoIDTx(tx *gorm.DB, pedidoID uuid.UUID) (*model.Venta, error)
	CreateTx(tx *gorm.DB, v *model.Venta) error
	CountDetallesTx(tx *gorm.DB, ventaID uuid.UUID) (int64, error)
	CreateDetallesTx(tx *gorm.DB, detalles []model.DetalleVenta) error
	// DerivarDetallesTx groups the pedido's detail rows by product and joins
	// productos/especiales. Rows whose catalog entry is gone keep an empty name.
	DerivarDetallesTx(tx *gorm.DB, pedidoID uuid.UUID) ([]DetalleDerivado, error)

	DB() *gorm.DB
}

type ventaRepo struct{ db *gorm.DB }

func NewVentaRepository(db *gorm.DB) VentaRepository { return &ventaRepo{db: db} }

func (r *ventaRepo) DB() *gorm.DB { return r.db }

func (r *ventaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := r.db.WithContext(ctx).Preload("Detalles").Where("id = ?", id).First(&v).Error
	return &v, err
}

func (r *ventaRepo) List(ctx context.Context, q VentaQuery) ([]model.Venta, int64, error) {
	var ventas []model.Venta
	var total int64

	base := r.db.WithContext(ctx).Model(&model.Venta{}).
		Where("liquidada_at >= ? AND liquidada_at < ?", q.Desde, q.Hasta)
	if q.MesaID != "" {
		base = base.Where("mesa_id = ?", q.MesaID)
	}

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := base.Preload("Detalles").
		Order("liquidada_at DESC").
		Offset(q.Offset).Limit(q.Limit).
		Find(&ventas).Error
	return ventas, total, err
}

func (r *ventaRepo) FindByPedidoIDTx(tx *gorm.DB, pedidoID uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := tx.Where("pedido_id = ?", pedidoID).First(&v).Error
	return &v, err
}

func (r *ventaRepo) CreateTx(tx *gorm.DB, v *model.Venta) error {
	return tx.Omit("Detalles").Create(v).Error
}

func (r *ventaRepo) CountDetallesTx(tx *gorm.DB, ventaID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&model.DetalleVenta{}).Where("venta_id = ?", ventaID).Count(&n).Error
	return n, err
}

func (r *ventaRepo) CreateDetallesTx(tx *gorm.DB, detalles []model.DetalleVenta) error {
	if len(detalles) == 0 {
		return nil
	}
	return tx.Create(&detalles).Error
}

func (r *ventaRepo) DerivarDetallesTx(tx *gorm.DB, pedidoID uuid.UUID) ([]DetalleDerivado, error) {
	var rows []DetalleDerivado
	err := tx.Raw(`
		SELECT d.producto_id,
		       d.especial_id,
		       COALESCE(p.nombre, e.nombre, '')  AS nombre,
		       CASE WHEN d.especial_id IS NOT NULL THEN ?
		            ELSE COALESCE(p.categoria, '') END AS categoria,
		       SUM(d.cantidad)                   AS cantidad,
		       SUM(d.subtotal)                   AS subtotal
		  FROM detalles_pedido d
		  LEFT JOIN productos  p ON p.id = d.producto_id
		  LEFT JOIN especiales e ON e.id = d.especial_id
		 WHERE d.pedido_id = ?
		 GROUP BY d.producto_id, d.especial_id, p.nombre, e.nombre, p.categoria
		 ORDER BY MIN(d.created_at)`,
		model.CategoriaEspecial, pedidoID,
	).Scan(&rows).Error
	for i := range rows {
		rows[i].Subtotal = rows[i].Subtotal.Round(2)
	}
	return rows, err
}
