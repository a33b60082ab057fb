package repository

import (
	"context"

	"restorant/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogoRepository is read-only access to the menu. Products and specials
// are maintained by the menu collaborator; this module never writes them.
type CatalogoRepository interface {
	FindProducto(ctx context.Context, id uuid.UUID) (*model.Producto, error)
	FindEspecial(ctx context.Context, id uuid.UUID) (*model.Especial, error)
}

type catalogoRepo struct{ db *gorm.DB }

func NewCatalogoRepository(db *gorm.DB) CatalogoRepository { return &catalogoRepo{db: db} }

func (r *catalogoRepo) FindProducto(ctx context.Context, id uuid.UUID) (*model.Producto, error) {
	var p model.Producto
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	return &p, err
}

func (r *catalogoRepo) FindEspecial(ctx context.Context, id uuid.UUID) (*model.Especial, error) {
	var e model.Especial
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	return &e, err
}
