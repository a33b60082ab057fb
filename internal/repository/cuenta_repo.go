package repository

import (
	"context"
	"errors"

	"restorant/internal/model"

	"github.com/redis/go-redis/v9"
)

const cuentaKeyPrefix = "cuenta:mesa:"

// CuentaRepository stores one open tab per mesa in Redis. A tab exists only
// while it has lines; saving an empty tab deletes the key.
type CuentaRepository interface {
	Get(ctx context.Context, mesaID string) (*model.Cuenta, error)
	Save(ctx context.Context, c *model.Cuenta) error
	Delete(ctx context.Context, mesaID string) error
}

type cuentaRepo struct{ rdb *redis.Client }

func NewCuentaRepository(rdb *redis.Client) CuentaRepository { return &cuentaRepo{rdb: rdb} }

// Get returns an empty tab when the mesa has none.
func (r *cuentaRepo) Get(ctx context.Context, mesaID string) (*model.Cuenta, error) {
	c := model.NuevaCuenta(mesaID)
	err := r.rdb.Get(ctx, cuentaKeyPrefix+mesaID).Scan(c)
	if errors.Is(err, redis.Nil) {
		return model.NuevaCuenta(mesaID), nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *cuentaRepo) Save(ctx context.Context, c *model.Cuenta) error {
	if c.Vacia() {
		return r.Delete(ctx, c.MesaID)
	}
	return r.rdb.Set(ctx, cuentaKeyPrefix+c.MesaID, c, 0).Err()
}

func (r *cuentaRepo) Delete(ctx context.Context, mesaID string) error {
	return r.rdb.Del(ctx, cuentaKeyPrefix+mesaID).Err()
}
