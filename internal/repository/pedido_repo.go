package repository

import (
	"context"
	"time"

	"restorant/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PedidoRepository is the order side of the ledger. Methods suffixed Tx run
// on the caller's transaction; every detail mutation must be followed by
// RecalcularTotalesTx on the same tx.
type PedidoRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Pedido, error)
	ExistsNumero(ctx context.Context, numero string) (bool, error)

	CreateTx(tx *gorm.DB, p *model.Pedido) error
	ExistsTx(tx *gorm.DB, id uuid.UUID) (bool, error)
	// FindForUpdateTx locks the pedido row on Postgres (SELECT … FOR UPDATE).
	FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Pedido, error)
	MarcarCompletadoTx(tx *gorm.DB, id uuid.UUID, at time.Time) error

	CreateDetalleTx(tx *gorm.DB, d *model.DetallePedido) error
	FindDetalleTx(tx *gorm.DB, id uuid.UUID) (*model.DetallePedido, error)
	UpdateDetalleCantidadTx(tx *gorm.DB, d *model.DetallePedido) error
	DeleteDetalleTx(tx *gorm.DB, id uuid.UUID) error
	ListDetallesTx(tx *gorm.DB, pedidoID uuid.UUID) ([]model.DetallePedido, error)

	// RecalcularTotalesTx sets subtotal = total = Σ detalle.subtotal (0 when
	// no rows remain) and stamps updated_at.
	RecalcularTotalesTx(tx *gorm.DB, pedidoID uuid.UUID) (decimal.Decimal, error)

	DB() *gorm.DB
}

type pedidoRepo struct{ db *gorm.DB }

func NewPedidoRepository(db *gorm.DB) PedidoRepository { return &pedidoRepo{db: db} }

func (r *pedidoRepo) DB() *gorm.DB { return r.db }

func (r *pedidoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Pedido, error) {
	var p model.Pedido
	err := r.db.WithContext(ctx).
		Preload("Detalles", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Where("id = ?", id).First(&p).Error
	return &p, err
}

func (r *pedidoRepo) ExistsNumero(ctx context.Context, numero string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Pedido{}).Where("numero_pedido = ?", numero).Count(&n).Error
	return n > 0, err
}

func (r *pedidoRepo) CreateTx(tx *gorm.DB, p *model.Pedido) error {
	return tx.Omit("Detalles").Create(p).Error
}

func (r *pedidoRepo) ExistsTx(tx *gorm.DB, id uuid.UUID) (bool, error) {
	var n int64
	err := tx.Model(&model.Pedido{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *pedidoRepo) FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Pedido, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var p model.Pedido
	err := q.Where("id = ?", id).First(&p).Error
	return &p, err
}

func (r *pedidoRepo) MarcarCompletadoTx(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return tx.Model(&model.Pedido{}).Where("id = ?", id).Updates(map[string]any{
		"estado":        model.PedidoCompletado,
		"completado_at": at,
		"updated_at":    at,
	}).Error
}

func (r *pedidoRepo) CreateDetalleTx(tx *gorm.DB, d *model.DetallePedido) error {
	return tx.Create(d).Error
}

func (r *pedidoRepo) FindDetalleTx(tx *gorm.DB, id uuid.UUID) (*model.DetallePedido, error) {
	var d model.DetallePedido
	err := tx.Where("id = ?", id).First(&d).Error
	return &d, err
}

func (r *pedidoRepo) UpdateDetalleCantidadTx(tx *gorm.DB, d *model.DetallePedido) error {
	return tx.Model(&model.DetallePedido{}).Where("id = ?", d.ID).Updates(map[string]any{
		"cantidad":   d.Cantidad,
		"subtotal":   d.Subtotal,
		"updated_at": time.Now(),
	}).Error
}

func (r *pedidoRepo) DeleteDetalleTx(tx *gorm.DB, id uuid.UUID) error {
	return tx.Where("id = ?", id).Delete(&model.DetallePedido{}).Error
}

func (r *pedidoRepo) ListDetallesTx(tx *gorm.DB, pedidoID uuid.UUID) ([]model.DetallePedido, error) {
	var out []model.DetallePedido
	err := tx.Where("pedido_id = ?", pedidoID).Order("created_at").Find(&out).Error
	return out, err
}

func (r *pedidoRepo) RecalcularTotalesTx(tx *gorm.DB, pedidoID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.Raw(
		"SELECT COALESCE(SUM(subtotal), 0) FROM detalles_pedido WHERE pedido_id = ?", pedidoID,
	).Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	// SQLite hands SUM back as REAL
	total = total.Round(2)

	err = tx.Model(&model.Pedido{}).Where("id = ?", pedidoID).Updates(map[string]any{
		"subtotal":   total,
		"total":      total,
		"updated_at": time.Now(),
	}).Error
	return total, err
}
