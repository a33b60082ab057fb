package repository

// cola_repo.go: durable offline settlement queue in Redis.
//
//	cola:liquidaciones:mesa:{mesa}  list, FIFO per mesa (RPUSH / head at index 0)
//	cola:liquidaciones:mesas        set of mesas with queued work
//	dlq:liquidaciones               list of fatal items awaiting an operator
//	lock:cola:mesa:{mesa}           drain lock, SET NX PX, renewed per item

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"restorant/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	colaMesaPrefix = "cola:liquidaciones:mesa:"
	colaMesasKey   = "cola:liquidaciones:mesas"
	DLQLiquidacion = "dlq:liquidaciones"
	colaLockPrefix = "lock:cola:mesa:"
)

// ErrItemNoEncontrado is returned when an item id is not in the expected list.
var ErrItemNoEncontrado = errors.New("item de cola no encontrado")

// ColaRepository is the storage of the offline reconciliation queue.
// Head operations assume the caller holds the mesa lock.
type ColaRepository interface {
	Encolar(ctx context.Context, item *model.ItemCola) error
	Mesas(ctx context.Context) ([]string, error)
	Cabeza(ctx context.Context, mesaID string) (*model.ItemCola, error)
	// ActualizarCabeza rewrites the head only if it is still item.ID.
	ActualizarCabeza(ctx context.Context, item *model.ItemCola) error
	// QuitarCabeza pops the head only if it is still item id.
	QuitarCabeza(ctx context.Context, mesaID string, id uuid.UUID) error
	// MoverAFallidos pops the head and appends item to the dead-letter list.
	MoverAFallidos(ctx context.Context, item *model.ItemCola) error
	Pendientes(ctx context.Context) ([]model.ItemCola, error)
	Fallidos(ctx context.Context) ([]model.ItemCola, error)
	// Reencolar moves a dead-lettered item back to the tail of its mesa.
	Reencolar(ctx context.Context, id uuid.UUID) (*model.ItemCola, error)

	// Bloquear takes the drain lock of a mesa. ok is false when another
	// drain holds it.
	Bloquear(ctx context.Context, mesaID string, ttl time.Duration) (c Candado, ok bool, err error)
}

// Candado is a held per-mesa drain lock.
type Candado interface {
	// Renovar extends the lock by its original ttl. false means it expired
	// and may belong to another drain now.
	Renovar(ctx context.Context) (bool, error)
	Liberar()
}

type colaRepo struct{ rdb *redis.Client }

func NewColaRepository(rdb *redis.Client) ColaRepository { return &colaRepo{rdb: rdb} }

var popCabezaScript = redis.NewScript(`
local head = redis.call('LINDEX', KEYS[1], 0)
if not head then return 0 end
if cjson.decode(head)['id'] ~= ARGV[1] then return 0 end
redis.call('LPOP', KEYS[1])
if ARGV[3] ~= '' then redis.call('RPUSH', KEYS[3], ARGV[3]) end
if redis.call('LLEN', KEYS[1]) == 0 then redis.call('SREM', KEYS[2], ARGV[2]) end
return 1
`)

var actualizarCabezaScript = redis.NewScript(`
local head = redis.call('LINDEX', KEYS[1], 0)
if not head then return 0 end
if cjson.decode(head)['id'] ~= ARGV[1] then return 0 end
redis.call('LSET', KEYS[1], 0, ARGV[2])
return 1
`)

var reencolarScript = redis.NewScript(`
if redis.call('LREM', KEYS[1], 1, ARGV[1]) == 0 then return 0 end
redis.call('RPUSH', KEYS[2], ARGV[2])
redis.call('SADD', KEYS[3], ARGV[3])
return 1
`)

var liberarScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then return redis.call('DEL', KEYS[1]) end
return 0
`)

var renovarScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then return redis.call('PEXPIRE', KEYS[1], ARGV[2]) end
return 0
`)

func (r *colaRepo) Encolar(ctx context.Context, item *model.ItemCola) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	mesa := item.Solicitud.MesaID
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, colaMesaPrefix+mesa, data)
		p.SAdd(ctx, colaMesasKey, mesa)
		return nil
	})
	return err
}

func (r *colaRepo) Mesas(ctx context.Context) ([]string, error) {
	return r.rdb.SMembers(ctx, colaMesasKey).Result()
}

// Cabeza returns nil, nil when the mesa has nothing queued.
func (r *colaRepo) Cabeza(ctx context.Context, mesaID string) (*model.ItemCola, error) {
	raw, err := r.rdb.LIndex(ctx, colaMesaPrefix+mesaID, 0).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var item model.ItemCola
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("cola: item corrupto en mesa %s: %w", mesaID, err)
	}
	return &item, nil
}

func (r *colaRepo) ActualizarCabeza(ctx context.Context, item *model.ItemCola) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	n, err := actualizarCabezaScript.Run(ctx, r.rdb,
		[]string{colaMesaPrefix + item.Solicitud.MesaID},
		item.ID.String(), string(data),
	).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrItemNoEncontrado
	}
	return nil
}

func (r *colaRepo) QuitarCabeza(ctx context.Context, mesaID string, id uuid.UUID) error {
	return r.pop(ctx, mesaID, id, "")
}

func (r *colaRepo) MoverAFallidos(ctx context.Context, item *model.ItemCola) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return r.pop(ctx, item.Solicitud.MesaID, item.ID, string(data))
}

func (r *colaRepo) pop(ctx context.Context, mesaID string, id uuid.UUID, dlqPayload string) error {
	n, err := popCabezaScript.Run(ctx, r.rdb,
		[]string{colaMesaPrefix + mesaID, colaMesasKey, DLQLiquidacion},
		id.String(), mesaID, dlqPayload,
	).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrItemNoEncontrado
	}
	return nil
}

func (r *colaRepo) Pendientes(ctx context.Context) ([]model.ItemCola, error) {
	mesas, err := r.Mesas(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.ItemCola
	for _, m := range mesas {
		items, err := r.listar(ctx, colaMesaPrefix+m)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

func (r *colaRepo) Fallidos(ctx context.Context) ([]model.ItemCola, error) {
	return r.listar(ctx, DLQLiquidacion)
}

func (r *colaRepo) listar(ctx context.Context, key string) ([]model.ItemCola, error) {
	raws, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.ItemCola, 0, len(raws))
	for _, raw := range raws {
		var item model.ItemCola
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("cola: item corrupto en %s: %w", key, err)
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *colaRepo) Reencolar(ctx context.Context, id uuid.UUID) (*model.ItemCola, error) {
	raws, err := r.rdb.LRange(ctx, DLQLiquidacion, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	for _, raw := range raws {
		var item model.ItemCola
		if err := json.Unmarshal([]byte(raw), &item); err != nil || item.ID != id {
			continue
		}
		if err := item.Pasar(model.ColaPendiente); err != nil {
			return nil, err
		}
		data, err := json.Marshal(&item)
		if err != nil {
			return nil, err
		}
		mesa := item.Solicitud.MesaID
		// a concurrent re-queue already removed raw: nothing is pushed twice
		n, err := reencolarScript.Run(ctx, r.rdb,
			[]string{DLQLiquidacion, colaMesaPrefix + mesa, colaMesasKey},
			raw, string(data), mesa,
		).Int()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrItemNoEncontrado
		}
		return &item, nil
	}
	return nil, ErrItemNoEncontrado
}

func (r *colaRepo) Bloquear(ctx context.Context, mesaID string, ttl time.Duration) (Candado, bool, error) {
	c := &candado{rdb: r.rdb, key: colaLockPrefix + mesaID, token: uuid.NewString(), ttl: ttl}
	ok, err := r.rdb.SetNX(ctx, c.key, c.token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return c, true, nil
}

// candado is a SET NX PX lock owned by token.
type candado struct {
	rdb   *redis.Client
	key   string
	token string
	ttl   time.Duration
}

func (c *candado) Renovar(ctx context.Context) (bool, error) {
	n, err := renovarScript.Run(ctx, c.rdb, []string{c.key}, c.token, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *candado) Liberar() {
	// the caller's ctx may already be cancelled at this point
	_ = liberarScript.Run(context.Background(), c.rdb, []string{c.key}, c.token).Err()
}
