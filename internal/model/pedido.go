package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Estado values for Pedido.
const (
	PedidoAbierto    = "abierto"
	PedidoCompletado = "completado"
)

// Pedido is the durable form of a tab before it becomes a Venta.
// Subtotal and Total are derived from Detalles and are rewritten inside the
// same transaction as every detail mutation.
type Pedido struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	MesaID       string          `gorm:"type:varchar(40);index;not null"`
	NumeroPedido string          `gorm:"type:varchar(40);uniqueIndex;not null"`
	Subtotal     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Total        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Estado       string          `gorm:"type:varchar(20);not null;default:'abierto'"`
	CompletadoAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Detalles []DetallePedido `gorm:"foreignKey:PedidoID"`
}

func (Pedido) TableName() string { return "pedidos" }

func (p *Pedido) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// DetallePedido is one line of a Pedido. Exactly one of ProductoID and
// EspecialID is set; use Ref/SetRef instead of touching them directly.
type DetallePedido struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	PedidoID       uuid.UUID       `gorm:"type:uuid;index;not null"`
	ProductoID     *uuid.UUID      `gorm:"type:uuid;index;check:chk_detalles_pedido_ref,(producto_id IS NULL) <> (especial_id IS NULL)"`
	EspecialID     *uuid.UUID      `gorm:"type:uuid;index"`
	Cantidad       int             `gorm:"not null;check:chk_detalles_pedido_cantidad,cantidad > 0"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Notas          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (DetallePedido) TableName() string { return "detalles_pedido" }

func (d *DetallePedido) BeforeCreate(_ *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// Ref returns the tagged reference; ok is false on a malformed row.
func (d *DetallePedido) Ref() (LineRef, bool) {
	return RefFromColumns(d.ProductoID, d.EspecialID)
}

func (d *DetallePedido) SetRef(ref LineRef) {
	d.ProductoID, d.EspecialID = ref.Columns()
}

// CalcularSubtotal sets Subtotal = Cantidad × PrecioUnitario.
func (d *DetallePedido) CalcularSubtotal() {
	d.Subtotal = d.PrecioUnitario.Mul(decimal.NewFromInt(int64(d.Cantidad))).Round(2)
}
