package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"restorant/internal/infra"
	"restorant/internal/model"
	"restorant/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

// stubCuentaRepo is an in-memory CuentaRepository.
type stubCuentaRepo struct {
	mu      sync.Mutex
	cuentas map[string]*model.Cuenta
}

func newStubCuentaRepo() *stubCuentaRepo {
	return &stubCuentaRepo{cuentas: make(map[string]*model.Cuenta)}
}

func (r *stubCuentaRepo) Get(_ context.Context, mesaID string) (*model.Cuenta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cuentas[mesaID]
	if !ok {
		return model.NuevaCuenta(mesaID), nil
	}
	cp := &model.Cuenta{MesaID: c.MesaID, Lineas: c.Snapshot()}
	return cp, nil
}

func (r *stubCuentaRepo) Save(_ context.Context, c *model.Cuenta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.Vacia() {
		delete(r.cuentas, c.MesaID)
		return nil
	}
	r.cuentas[c.MesaID] = &model.Cuenta{MesaID: c.MesaID, Lineas: c.Snapshot()}
	return nil
}

func (r *stubCuentaRepo) Delete(_ context.Context, mesaID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cuentas, mesaID)
	return nil
}

func (r *stubCuentaRepo) existe(mesaID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cuentas[mesaID]
	return ok
}

var _ repository.CuentaRepository = (*stubCuentaRepo)(nil)

// stubColaRepo records enqueued items. Only Encolar is exercised by the
// settlement coordinator; the reconciler has its own fake in package worker.
type stubColaRepo struct {
	items []*model.ItemCola
	err   error
}

func (r *stubColaRepo) Encolar(_ context.Context, item *model.ItemCola) error {
	if r.err != nil {
		return r.err
	}
	r.items = append(r.items, item)
	return nil
}
func (r *stubColaRepo) Mesas(context.Context) ([]string, error) { return nil, nil }
func (r *stubColaRepo) Cabeza(context.Context, string) (*model.ItemCola, error) {
	return nil, nil
}
func (r *stubColaRepo) ActualizarCabeza(context.Context, *model.ItemCola) error { return nil }
func (r *stubColaRepo) QuitarCabeza(context.Context, string, uuid.UUID) error   { return nil }
func (r *stubColaRepo) MoverAFallidos(context.Context, *model.ItemCola) error   { return nil }
func (r *stubColaRepo) Pendientes(context.Context) ([]model.ItemCola, error)    { return nil, nil }
func (r *stubColaRepo) Fallidos(context.Context) ([]model.ItemCola, error)      { return nil, nil }
func (r *stubColaRepo) Reencolar(context.Context, uuid.UUID) (*model.ItemCola, error) {
	return nil, repository.ErrItemNoEncontrado
}
func (r *stubColaRepo) Bloquear(context.Context, string, time.Duration) (repository.Candado, bool, error) {
	return nil, false, nil
}

var _ repository.ColaRepository = (*stubColaRepo)(nil)

// stubCatalogo serves fixed prices; unknown refs are not found. err, when
// set, fails every price lookup.
type stubCatalogo struct {
	precios map[model.LineRef]decimal.Decimal
	nombres map[model.LineRef]string
	err     error
	lookups int
}

func newStubCatalogo() *stubCatalogo {
	return &stubCatalogo{
		precios: make(map[model.LineRef]decimal.Decimal),
		nombres: make(map[model.LineRef]string),
	}
}

func (c *stubCatalogo) con(ref model.LineRef, nombre string, precio int64) *stubCatalogo {
	c.precios[ref] = decimal.NewFromInt(precio)
	c.nombres[ref] = nombre
	return c
}

func (c *stubCatalogo) LookupPrice(_ context.Context, ref model.LineRef) (decimal.Decimal, error) {
	c.lookups++
	if c.err != nil {
		return decimal.Zero, c.err
	}
	p, ok := c.precios[ref]
	if !ok {
		return decimal.Zero, ErrProductoNoEncontrado
	}
	return p, nil
}

func (c *stubCatalogo) LookupDisplayName(_ context.Context, ref model.LineRef) (string, error) {
	n, ok := c.nombres[ref]
	if !ok {
		return "", ErrProductoNoEncontrado
	}
	return n, nil
}

func (c *stubCatalogo) IsSpecial(ref model.LineRef) bool { return ref.IsEspecial() }

var _ Catalogo = (*stubCatalogo)(nil)

// stubLedger answers RegistrarLiquidacion with a scripted error, or with a
// Venta built from the request.
type stubLedger struct {
	mu       sync.Mutex
	err      error
	block    bool // wait for ctx instead of answering
	llamadas []model.SolicitudLiquidacion
}

func (l *stubLedger) RegistrarLiquidacion(ctx context.Context, sol model.SolicitudLiquidacion) (*model.Venta, error) {
	l.mu.Lock()
	l.llamadas = append(l.llamadas, sol)
	err, block := l.err, l.block
	l.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &model.Venta{
		ID:           uuid.New(),
		PedidoID:     sol.PedidoID,
		MesaID:       sol.MesaID,
		NumeroPedido: "20260101-000001",
		Total:        sol.Total,
		MetodoPago:   sol.MetodoPago,
		LiquidadaAt:  time.Now().UTC(),
	}, nil
}

func (l *stubLedger) CrearPedido(context.Context, string, []model.LineaCuenta) (*model.Pedido, error) {
	return nil, errors.New("not implemented")
}
func (l *stubLedger) ObtenerPedido(context.Context, uuid.UUID) (*model.Pedido, error) {
	return nil, ErrPedidoNoEncontrado
}
func (l *stubLedger) AgregarDetalle(context.Context, uuid.UUID, model.LineaCuenta) (*model.DetallePedido, error) {
	return nil, errors.New("not implemented")
}
func (l *stubLedger) ActualizarCantidadDetalle(context.Context, uuid.UUID, int) error {
	return errors.New("not implemented")
}
func (l *stubLedger) EliminarDetalle(context.Context, uuid.UUID) error {
	return errors.New("not implemented")
}
func (l *stubLedger) CompletarPedido(context.Context, uuid.UUID, string) (uuid.UUID, error) {
	return uuid.Nil, errors.New("not implemented")
}

func (l *stubLedger) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.llamadas)
}

var _ LedgerService = (*stubLedger)(nil)

// stubPublicador captures published events.
type stubPublicador struct {
	mu      sync.Mutex
	eventos []any
}

func (p *stubPublicador) Publicar(_ context.Context, _ string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eventos = append(p.eventos, payload)
	return nil
}
func (p *stubPublicador) Close() error { return nil }

var _ infra.Publicador = (*stubPublicador)(nil)

// stubVentaRepo captures the read-model query.
type stubVentaRepo struct {
	ventas map[uuid.UUID]*model.Venta
	query  repository.VentaQuery
}

func (r *stubVentaRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Venta, error) {
	v, ok := r.ventas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return v, nil
}
func (r *stubVentaRepo) List(_ context.Context, q repository.VentaQuery) ([]model.Venta, int64, error) {
	r.query = q
	out := make([]model.Venta, 0, len(r.ventas))
	for _, v := range r.ventas {
		out = append(out, *v)
	}
	return out, int64(len(out)), nil
}
func (r *stubVentaRepo) FindByPedidoIDTx(*gorm.DB, uuid.UUID) (*model.Venta, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *stubVentaRepo) CreateTx(*gorm.DB, *model.Venta) error                 { return nil }
func (r *stubVentaRepo) CountDetallesTx(*gorm.DB, uuid.UUID) (int64, error)    { return 0, nil }
func (r *stubVentaRepo) CreateDetallesTx(*gorm.DB, []model.DetalleVenta) error { return nil }
func (r *stubVentaRepo) DerivarDetallesTx(*gorm.DB, uuid.UUID) ([]repository.DetalleDerivado, error) {
	return nil, nil
}
func (r *stubVentaRepo) DB() *gorm.DB { return nil }

var _ repository.VentaRepository = (*stubVentaRepo)(nil)
