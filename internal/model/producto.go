package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Producto is a catalog item. The catalog is owned by the menu module; the
// settlement engine only reads it.
type Producto struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Nombre      string    `gorm:"index;not null"`
	Descripcion *string
	Categoria   string          `gorm:"not null"`
	PrecioVenta decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Activo      bool            `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Producto) TableName() string { return "productos" }

func (p *Producto) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Especial is an off-menu dish (plato del día) sold alongside the catalog.
// It has no category of its own; sales report it under CategoriaEspecial.
type Especial struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Nombre      string    `gorm:"not null"`
	Descripcion *string
	Precio      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Disponible  bool            `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const CategoriaEspecial = "especial"

func (Especial) TableName() string { return "especiales" }

func (e *Especial) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
