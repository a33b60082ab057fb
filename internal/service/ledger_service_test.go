package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"restorant/internal/infra"
	"restorant/internal/model"
	"restorant/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── Fixture ──────────────────────────────────────────────────────────────────

type ledgerFixture struct {
	db       *gorm.DB
	ledger   LedgerService
	catalogo Catalogo
	milanesa model.Producto // 2500
	vino     model.Producto // 3500
	menu     model.Especial // 6000
}

// newLedgerFixture opens a private in-memory SQLite ledger seeded with a
// small catalog.
func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := infra.NewDatabase("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	f := &ledgerFixture{
		db:       db,
		milanesa: model.Producto{Nombre: "Milanesa", Categoria: "principal", PrecioVenta: decimal.NewFromInt(2500), Activo: true},
		vino:     model.Producto{Nombre: "Vino de la casa", Categoria: "bebida", PrecioVenta: decimal.NewFromInt(3500), Activo: true},
		menu:     model.Especial{Nombre: "Menú del día", Precio: decimal.NewFromInt(6000), Disponible: true},
	}
	require.NoError(t, db.Create(&f.milanesa).Error)
	require.NoError(t, db.Create(&f.vino).Error)
	require.NoError(t, db.Create(&f.menu).Error)

	pedidos := repository.NewPedidoRepository(db)
	f.catalogo = NewCatalogo(repository.NewCatalogoRepository(db), nil, 0)
	f.ledger = NewLedgerService(pedidos, repository.NewVentaRepository(db), NewGeneradorNumeroPedido(pedidos), f.catalogo)
	return f
}

func linea(ref model.LineRef, cantidad int, precio int64) model.LineaCuenta {
	return model.LineaCuenta{Ref: ref, Cantidad: cantidad, PrecioUnitario: decimal.NewFromInt(precio)}
}

// assertTotalInvariant checks pedido.total == Σ detalle.subtotal in storage.
func (f *ledgerFixture) assertTotalInvariant(t *testing.T, pedidoID uuid.UUID, want int64) {
	t.Helper()
	p, err := f.ledger.ObtenerPedido(context.Background(), pedidoID)
	require.NoError(t, err)
	suma := decimal.Zero
	for _, d := range p.Detalles {
		suma = suma.Add(d.Subtotal)
	}
	assert.True(t, p.Total.Equal(suma), "total %s != Σ %s", p.Total, suma)
	assert.True(t, p.Subtotal.Equal(p.Total))
	assert.True(t, p.Total.Equal(decimal.NewFromInt(want)), "total %s, want %d", p.Total, want)
}

func (f *ledgerFixture) countVentas(t *testing.T, pedidoID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.Venta{}).Where("pedido_id = ?", pedidoID).Count(&n).Error)
	return n
}

// ── Pedidos ──────────────────────────────────────────────────────────────────

func TestCrearPedido_TotalMatchesDetails(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	p, err := f.ledger.CrearPedido(ctx, "7", []model.LineaCuenta{
		linea(model.Catalogo(f.milanesa.ID), 2, 2500),
		linea(model.Catalogo(f.vino.ID), 1, 3500),
	})
	require.NoError(t, err)
	assert.Equal(t, model.PedidoAbierto, p.Estado)
	assert.NotEmpty(t, p.NumeroPedido)
	assert.True(t, p.Total.Equal(decimal.NewFromInt(8500)))
	f.assertTotalInvariant(t, p.ID, 8500)
}

func TestCrearPedido_ResolvesMissingPrice(t *testing.T) {
	f := newLedgerFixture(t)

	p, err := f.ledger.CrearPedido(context.Background(), "7", []model.LineaCuenta{
		{Ref: model.RefEspecialDe(f.menu.ID), Cantidad: 1, SinPrecio: true},
		linea(model.Catalogo(f.milanesa.ID), 1, 0),
	})
	require.NoError(t, err)
	// the explicit 0 is a free item, not a missing price
	f.assertTotalInvariant(t, p.ID, 6000)
}

func TestCrearPedido_InvalidLineCreatesNothing(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.ledger.CrearPedido(context.Background(), "7", []model.LineaCuenta{
		linea(model.Catalogo(f.milanesa.ID), 1, 2500),
		linea(model.Catalogo(f.vino.ID), 0, 3500),
	})
	assert.ErrorIs(t, err, ErrLineaInvalida)

	var n int64
	require.NoError(t, f.db.Model(&model.Pedido{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestDetalleMutations_KeepTotalInvariant(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	p, err := f.ledger.CrearPedido(ctx, "3", []model.LineaCuenta{linea(model.Catalogo(f.milanesa.ID), 1, 2500)})
	require.NoError(t, err)
	f.assertTotalInvariant(t, p.ID, 2500)

	d, err := f.ledger.AgregarDetalle(ctx, p.ID, linea(model.Catalogo(f.vino.ID), 2, 3500))
	require.NoError(t, err)
	f.assertTotalInvariant(t, p.ID, 9500)

	require.NoError(t, f.ledger.ActualizarCantidadDetalle(ctx, d.ID, 1))
	f.assertTotalInvariant(t, p.ID, 6000)

	require.NoError(t, f.ledger.EliminarDetalle(ctx, d.ID))
	f.assertTotalInvariant(t, p.ID, 2500)

	actual, err := f.ledger.ObtenerPedido(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, actual.Detalles, 1)
	require.NoError(t, f.ledger.EliminarDetalle(ctx, actual.Detalles[0].ID))
	f.assertTotalInvariant(t, p.ID, 0)
}

func TestActualizarCantidadDetalle_RejectsNonPositive(t *testing.T) {
	f := newLedgerFixture(t)
	err := f.ledger.ActualizarCantidadDetalle(context.Background(), uuid.New(), 0)
	assert.ErrorIs(t, err, ErrLineaInvalida)
}

func TestDetalleMutations_UnknownDetalle(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	err := f.ledger.EliminarDetalle(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrDetalleNoEncontrado)
	assert.NotErrorIs(t, err, ErrPedidoNoEncontrado)

	err = f.ledger.ActualizarCantidadDetalle(ctx, uuid.New(), 2)
	assert.ErrorIs(t, err, ErrDetalleNoEncontrado)
	assert.NotErrorIs(t, err, ErrPedidoNoEncontrado)
}

func TestObtenerPedido_NotFound(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.ledger.ObtenerPedido(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrPedidoNoEncontrado)
}

// ── Completar ────────────────────────────────────────────────────────────────

func TestCompletarPedido_SingleProduct(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	lomo := model.Producto{Nombre: "Lomo", Categoria: "principal", PrecioVenta: decimal.NewFromInt(1500), Activo: true}
	require.NoError(t, f.db.Create(&lomo).Error)

	p, err := f.ledger.CrearPedido(ctx, "1", []model.LineaCuenta{linea(model.Catalogo(lomo.ID), 3, 1500)})
	require.NoError(t, err)

	ventaID, err := f.ledger.CompletarPedido(ctx, p.ID, "efectivo")
	require.NoError(t, err)

	var v model.Venta
	require.NoError(t, f.db.Preload("Detalles").Where("id = ?", ventaID).First(&v).Error)
	assert.True(t, v.Total.Equal(decimal.NewFromInt(4500)))
	assert.Equal(t, 3, v.CantidadItems)
	assert.Equal(t, p.NumeroPedido, v.NumeroPedido)
	require.Len(t, v.Detalles, 1)
	assert.Equal(t, "Lomo", v.Detalles[0].Nombre)
	assert.Equal(t, "principal", v.Detalles[0].Categoria)
	assert.Equal(t, 3, v.Detalles[0].Cantidad)
	assert.True(t, v.Detalles[0].PrecioUnitario.Equal(decimal.NewFromInt(1500)))
	assert.True(t, v.Detalles[0].Subtotal.Equal(decimal.NewFromInt(4500)))

	actual, err := f.ledger.ObtenerPedido(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PedidoCompletado, actual.Estado)
	assert.NotNil(t, actual.CompletadoAt)
}

func TestCompletarPedido_Idempotent(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	p, err := f.ledger.CrearPedido(ctx, "2", []model.LineaCuenta{
		linea(model.Catalogo(f.milanesa.ID), 2, 2500),
		linea(model.RefEspecialDe(f.menu.ID), 1, 6000),
	})
	require.NoError(t, err)

	first, err := f.ledger.CompletarPedido(ctx, p.ID, "debito")
	require.NoError(t, err)
	second, err := f.ledger.CompletarPedido(ctx, p.ID, "debito")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, f.countVentas(t, p.ID))

	var detalles []model.DetalleVenta
	require.NoError(t, f.db.Where("venta_id = ?", first).Find(&detalles).Error)
	require.Len(t, detalles, 2)
	categorias := []string{detalles[0].Categoria, detalles[1].Categoria}
	assert.ElementsMatch(t, []string{"principal", model.CategoriaEspecial}, categorias)
}

func TestCompletarPedido_ConcurrentCallsSingleVenta(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	p, err := f.ledger.CrearPedido(ctx, "3", []model.LineaCuenta{
		linea(model.Catalogo(f.milanesa.ID), 2, 2500),
		linea(model.Catalogo(f.vino.ID), 1, 3500),
	})
	require.NoError(t, err)

	const n = 8
	ids := make([]uuid.UUID, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i], errs[i] = f.ledger.CompletarPedido(ctx, p.ID, "efectivo")
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i], "call %d returned another venta", i)
	}
	assert.EqualValues(t, 1, f.countVentas(t, p.ID))

	var detalles int64
	require.NoError(t, f.db.Model(&model.DetalleVenta{}).Where("venta_id = ?", ids[0]).Count(&detalles).Error)
	assert.EqualValues(t, 2, detalles)
}

func TestCompletarPedido_ClosedRejectsMutations(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	p, err := f.ledger.CrearPedido(ctx, "2", []model.LineaCuenta{linea(model.Catalogo(f.milanesa.ID), 1, 2500)})
	require.NoError(t, err)
	_, err = f.ledger.CompletarPedido(ctx, p.ID, "efectivo")
	require.NoError(t, err)

	_, err = f.ledger.AgregarDetalle(ctx, p.ID, linea(model.Catalogo(f.vino.ID), 1, 3500))
	assert.ErrorIs(t, err, ErrPedidoCerrado)
	f.assertTotalInvariant(t, p.ID, 2500)
}

func TestCompletarPedido_NotFound(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.ledger.CompletarPedido(context.Background(), uuid.New(), "efectivo")
	assert.ErrorIs(t, err, ErrPedidoNoEncontrado)
}

func TestCompletarPedido_InvalidPaymentMethod(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.ledger.CompletarPedido(context.Background(), uuid.New(), "bitcoin")
	assert.ErrorIs(t, err, ErrMetodoPagoInvalido)
}

func TestCompletarPedido_EmptyPedidoIsCorrupt(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	p, err := f.ledger.CrearPedido(ctx, "9", nil)
	require.NoError(t, err)

	_, err = f.ledger.CompletarPedido(ctx, p.ID, "efectivo")
	assert.ErrorIs(t, err, ErrLiquidacionCorrupta)
	assert.Zero(t, f.countVentas(t, p.ID))

	// the rollback also undoes the estado change
	actual, err := f.ledger.ObtenerPedido(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PedidoAbierto, actual.Estado)
}

func TestCompletarPedido_TotalMismatchIsCorrupt(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	p, err := f.ledger.CrearPedido(ctx, "9", []model.LineaCuenta{linea(model.Catalogo(f.milanesa.ID), 1, 2500)})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&model.Pedido{}).Where("id = ?", p.ID).Update("total", decimal.NewFromInt(1)).Error)

	_, err = f.ledger.CompletarPedido(ctx, p.ID, "efectivo")
	assert.ErrorIs(t, err, ErrLiquidacionCorrupta)
	assert.False(t, EsTransitorio(err))
	assert.Zero(t, f.countVentas(t, p.ID))
}

// ── RegistrarLiquidacion ─────────────────────────────────────────────────────

func TestRegistrarLiquidacion_ReplayReturnsSameVenta(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	sol := model.SolicitudLiquidacion{
		PedidoID:   uuid.New(),
		MesaID:     "5",
		MetodoPago: "credito",
		Lineas: []model.LineaCuenta{
			linea(model.Catalogo(f.milanesa.ID), 2, 2500),
			linea(model.Catalogo(f.vino.ID), 1, 3500),
		},
		Total: decimal.NewFromInt(8500),
	}

	v1, err := f.ledger.RegistrarLiquidacion(ctx, sol)
	require.NoError(t, err)
	v2, err := f.ledger.RegistrarLiquidacion(ctx, sol)
	require.NoError(t, err)

	assert.Equal(t, v1.ID, v2.ID)
	assert.Equal(t, sol.PedidoID, v1.PedidoID)
	assert.True(t, v1.Total.Equal(decimal.NewFromInt(8500)))
	assert.EqualValues(t, 1, f.countVentas(t, sol.PedidoID))

	var n int64
	require.NoError(t, f.db.Model(&model.DetalleVenta{}).Where("venta_id = ?", v1.ID).Count(&n).Error)
	assert.EqualValues(t, 2, n)
}

func TestRegistrarLiquidacion_InvalidLineIsNotTransient(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.ledger.RegistrarLiquidacion(context.Background(), model.SolicitudLiquidacion{
		PedidoID:   uuid.New(),
		MesaID:     "5",
		MetodoPago: "efectivo",
		Lineas:     []model.LineaCuenta{{Ref: model.LineRef{}, Cantidad: 1}},
	})
	assert.ErrorIs(t, err, ErrLineaInvalida)
	assert.False(t, EsTransitorio(err))
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func TestDetalleVenta_FallbackName(t *testing.T) {
	id := uuid.New()
	d := detalleVenta(uuid.New(), repository.DetalleDerivado{
		ProductoID: &id,
		Cantidad:   3,
		Subtotal:   decimal.NewFromInt(1000),
	})
	assert.Equal(t, model.Catalogo(id).String(), d.Nombre)
	assert.True(t, d.PrecioUnitario.Equal(decimal.RequireFromString("333.33")))
}

func TestClasificar(t *testing.T) {
	assert.Nil(t, clasificar(nil))
	assert.ErrorIs(t, clasificar(gorm.ErrRecordNotFound), ErrPedidoNoEncontrado)
	assert.ErrorIs(t, clasificar(context.DeadlineExceeded), ErrTransitorio)
	assert.ErrorIs(t, clasificar(ErrLiquidacionCorrupta), ErrLiquidacionCorrupta)
	assert.False(t, EsTransitorio(clasificar(ErrLiquidacionCorrupta)))
}
