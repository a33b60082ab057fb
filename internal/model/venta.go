package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Venta is the settled, immutable result of a Pedido.
// The unique index on PedidoID backs the at-most-one-sale-per-order rule.
type Venta struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	PedidoID      uuid.UUID       `gorm:"type:uuid;uniqueIndex:uni_ventas_pedido_id;not null"`
	MesaID        string          `gorm:"type:varchar(40);index;not null"`
	NumeroPedido  string          `gorm:"type:varchar(40);not null"`
	Total         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CantidadItems int             `gorm:"not null"`
	// MetodoPago: "efectivo" | "debito" | "credito" | "transferencia" (label only)
	MetodoPago  string    `gorm:"type:varchar(20);not null"`
	LiquidadaAt time.Time `gorm:"index;not null"`
	CreatedAt   time.Time

	Pedido   *Pedido        `gorm:"foreignKey:PedidoID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Detalles []DetalleVenta `gorm:"foreignKey:VentaID"`
}

func (Venta) TableName() string { return "ventas" }

func (v *Venta) BeforeCreate(_ *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// DetalleVenta is one row per distinct product of the settled Pedido.
// Nombre and Categoria are copied from the catalog at settlement time.
type DetalleVenta struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	VentaID        uuid.UUID       `gorm:"type:uuid;index;not null"`
	ProductoID     *uuid.UUID      `gorm:"type:uuid"`
	EspecialID     *uuid.UUID      `gorm:"type:uuid"`
	Nombre         string          `gorm:"not null"`
	Categoria      string          `gorm:"not null"`
	Cantidad       int             `gorm:"not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt      time.Time
}

func (DetalleVenta) TableName() string { return "detalles_venta" }

func (d *DetalleVenta) BeforeCreate(_ *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
