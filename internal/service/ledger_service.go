package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"restorant/internal/model"
	"restorant/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrPedidoCerrado = errors.New("el pedido ya fue completado")

// LedgerService is the durable order ledger. Every detail mutation and its
// totals recomputation share one transaction; completion is idempotent per
// pedido.
type LedgerService interface {
	CrearPedido(ctx context.Context, mesaID string, lineas []model.LineaCuenta) (*model.Pedido, error)
	ObtenerPedido(ctx context.Context, id uuid.UUID) (*model.Pedido, error)
	AgregarDetalle(ctx context.Context, pedidoID uuid.UUID, linea model.LineaCuenta) (*model.DetallePedido, error)
	ActualizarCantidadDetalle(ctx context.Context, detalleID uuid.UUID, cantidad int) error
	EliminarDetalle(ctx context.Context, detalleID uuid.UUID) error

	// CompletarPedido converts the pedido into its single Venta. Calling it
	// again returns the same venta id without writing.
	CompletarPedido(ctx context.Context, pedidoID uuid.UUID, metodoPago string) (uuid.UUID, error)
	// RegistrarLiquidacion creates the pedido for s.PedidoID when absent and
	// completes it. Replays of the same request return the same Venta.
	RegistrarLiquidacion(ctx context.Context, s model.SolicitudLiquidacion) (*model.Venta, error)
}

type ledgerService struct {
	pedidos  repository.PedidoRepository
	ventas   repository.VentaRepository
	numeros  *GeneradorNumeroPedido
	catalogo Catalogo
}

func NewLedgerService(
	pedidos repository.PedidoRepository,
	ventas repository.VentaRepository,
	numeros *GeneradorNumeroPedido,
	catalogo Catalogo,
) LedgerService {
	return &ledgerService{pedidos: pedidos, ventas: ventas, numeros: numeros, catalogo: catalogo}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// detach keeps ctx's deadline but drops its cancellation: once a ledger
// transaction starts it commits or rolls back on its own.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	d := context.WithoutCancel(ctx)
	if dl, ok := ctx.Deadline(); ok {
		return context.WithDeadline(d, dl)
	}
	return d, func() {}
}

// ── Pedidos y detalles ───────────────────────────────────────────────────────

func (s *ledgerService) CrearPedido(ctx context.Context, mesaID string, lineas []model.LineaCuenta) (*model.Pedido, error) {
	if mesaID == "" {
		return nil, fmt.Errorf("mesa requerida: %w", ErrLineaInvalida)
	}
	lineas, err := s.resolverPrecios(ctx, lineas)
	if err != nil {
		return nil, err
	}
	numero, err := s.numeros.Generar(ctx)
	if err != nil {
		return nil, err
	}
	p := &model.Pedido{ID: uuid.New(), MesaID: mesaID, NumeroPedido: numero, Estado: model.PedidoAbierto}

	err = runTx(ctx, s.pedidos.DB(), func(tx *gorm.DB) error {
		return s.crearPedidoTx(tx, p, lineas)
	})
	if err != nil {
		return nil, clasificar(err)
	}
	return p, nil
}

func (s *ledgerService) crearPedidoTx(tx *gorm.DB, p *model.Pedido, lineas []model.LineaCuenta) error {
	if err := s.pedidos.CreateTx(tx, p); err != nil {
		return err
	}
	for _, l := range lineas {
		d, err := nuevoDetalle(p.ID, l)
		if err != nil {
			return err
		}
		if err := s.pedidos.CreateDetalleTx(tx, d); err != nil {
			return err
		}
	}
	total, err := s.pedidos.RecalcularTotalesTx(tx, p.ID)
	if err != nil {
		return err
	}
	p.Subtotal, p.Total = total, total
	return nil
}

func nuevoDetalle(pedidoID uuid.UUID, l model.LineaCuenta) (*model.DetallePedido, error) {
	if !l.Ref.Valid() || l.Cantidad <= 0 || l.PrecioUnitario.IsNegative() || l.SinPrecio {
		return nil, fmt.Errorf("%s x%d: %w", l.Ref, l.Cantidad, ErrLineaInvalida)
	}
	d := &model.DetallePedido{
		PedidoID:       pedidoID,
		Cantidad:       l.Cantidad,
		PrecioUnitario: l.PrecioUnitario.Round(2),
		Notas:          l.Notas,
	}
	d.SetRef(l.Ref)
	d.CalcularSubtotal()
	return d, nil
}

// resolverPrecios prices SinPrecio lines from the catalog. Captured prices,
// including 0, are kept. Runs before any tx.
func (s *ledgerService) resolverPrecios(ctx context.Context, lineas []model.LineaCuenta) ([]model.LineaCuenta, error) {
	out := make([]model.LineaCuenta, len(lineas))
	copy(out, lineas)
	for i := range out {
		if !out[i].SinPrecio || s.catalogo == nil || !out[i].Ref.Valid() {
			continue
		}
		precio, err := s.catalogo.LookupPrice(ctx, out[i].Ref)
		if err != nil {
			return nil, clasificarCatalogo(err)
		}
		out[i].PrecioUnitario = precio
		out[i].SinPrecio = false
	}
	return out, nil
}

func (s *ledgerService) ObtenerPedido(ctx context.Context, id uuid.UUID) (*model.Pedido, error) {
	p, err := s.pedidos.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPedidoNoEncontrado
	}
	if err != nil {
		return nil, clasificar(err)
	}
	return p, nil
}

// AgregarDetalle resolves the price from the catalog when the line carries none.
func (s *ledgerService) AgregarDetalle(ctx context.Context, pedidoID uuid.UUID, linea model.LineaCuenta) (*model.DetallePedido, error) {
	resueltas, err := s.resolverPrecios(ctx, []model.LineaCuenta{linea})
	if err != nil {
		return nil, err
	}
	linea = resueltas[0]
	d, err := nuevoDetalle(pedidoID, linea)
	if err != nil {
		return nil, err
	}

	err = runTx(ctx, s.pedidos.DB(), func(tx *gorm.DB) error {
		if err := s.pedidoAbiertoTx(tx, pedidoID); err != nil {
			return err
		}
		if err := s.pedidos.CreateDetalleTx(tx, d); err != nil {
			return err
		}
		_, err := s.pedidos.RecalcularTotalesTx(tx, pedidoID)
		return err
	})
	if err != nil {
		return nil, clasificar(err)
	}
	return d, nil
}

func (s *ledgerService) ActualizarCantidadDetalle(ctx context.Context, detalleID uuid.UUID, cantidad int) error {
	if cantidad <= 0 {
		return fmt.Errorf("cantidad %d: %w", cantidad, ErrLineaInvalida)
	}
	err := runTx(ctx, s.pedidos.DB(), func(tx *gorm.DB) error {
		d, err := s.detalleTx(tx, detalleID)
		if err != nil {
			return err
		}
		if err := s.pedidoAbiertoTx(tx, d.PedidoID); err != nil {
			return err
		}
		d.Cantidad = cantidad
		d.CalcularSubtotal()
		if err := s.pedidos.UpdateDetalleCantidadTx(tx, d); err != nil {
			return err
		}
		_, err = s.pedidos.RecalcularTotalesTx(tx, d.PedidoID)
		return err
	})
	return clasificar(err)
}

// EliminarDetalle removes the row; deleting the last one leaves total 0.
func (s *ledgerService) EliminarDetalle(ctx context.Context, detalleID uuid.UUID) error {
	err := runTx(ctx, s.pedidos.DB(), func(tx *gorm.DB) error {
		d, err := s.detalleTx(tx, detalleID)
		if err != nil {
			return err
		}
		if err := s.pedidoAbiertoTx(tx, d.PedidoID); err != nil {
			return err
		}
		if err := s.pedidos.DeleteDetalleTx(tx, detalleID); err != nil {
			return err
		}
		_, err = s.pedidos.RecalcularTotalesTx(tx, d.PedidoID)
		return err
	})
	return clasificar(err)
}

func (s *ledgerService) detalleTx(tx *gorm.DB, detalleID uuid.UUID) (*model.DetallePedido, error) {
	d, err := s.pedidos.FindDetalleTx(tx, detalleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", detalleID, ErrDetalleNoEncontrado)
	}
	return d, err
}

func (s *ledgerService) pedidoAbiertoTx(tx *gorm.DB, pedidoID uuid.UUID) error {
	p, err := s.pedidos.FindForUpdateTx(tx, pedidoID)
	if err != nil {
		return err
	}
	if p.Estado == model.PedidoCompletado {
		return ErrPedidoCerrado
	}
	return nil
}

// ── Liquidación ──────────────────────────────────────────────────────────────
// Single transaction:
//   1. Lock pedido (FOR UPDATE on Postgres); missing → ErrPedidoNoEncontrado
//   2. Mark completado, stamping completado_at on first completion only
//   3. Guarded insert of Venta (existence check + unique index backstop)
//   4. Guarded insert of DetalleVenta, derived by joining with the catalog
// Any error rolls everything back.

func (s *ledgerService) CompletarPedido(ctx context.Context, pedidoID uuid.UUID, metodoPago string) (uuid.UUID, error) {
	if !MetodosPago[metodoPago] {
		return uuid.Nil, ErrMetodoPagoInvalido
	}
	ctx, cancel := detach(ctx)
	defer cancel()

	var venta *model.Venta
	err := runTx(ctx, s.pedidos.DB(), func(tx *gorm.DB) error {
		var err error
		venta, err = s.completarTx(tx, pedidoID, metodoPago)
		return err
	})
	if err != nil {
		return uuid.Nil, clasificar(err)
	}
	return venta.ID, nil
}

func (s *ledgerService) RegistrarLiquidacion(ctx context.Context, sol model.SolicitudLiquidacion) (*model.Venta, error) {
	if !MetodosPago[sol.MetodoPago] {
		return nil, ErrMetodoPagoInvalido
	}
	ctx, cancel := detach(ctx)
	defer cancel()

	// The number is generated before the tx: the generator reads through its
	// own connection and SQLite runs with a single one.
	existe, err := s.existePedido(ctx, sol.PedidoID)
	if err != nil {
		return nil, clasificar(err)
	}
	var numero string
	if !existe {
		if numero, err = s.numeros.Generar(ctx); err != nil {
			return nil, clasificar(err)
		}
	}

	var venta *model.Venta
	err = runTx(ctx, s.pedidos.DB(), func(tx *gorm.DB) error {
		ok, err := s.pedidos.ExistsTx(tx, sol.PedidoID)
		if err != nil {
			return err
		}
		if !ok {
			if numero == "" {
				// created and deleted between the two checks; let the queue retry
				return transitorio(fmt.Errorf("pedido %s cambió durante la liquidación", sol.PedidoID))
			}
			p := &model.Pedido{
				ID:           sol.PedidoID,
				MesaID:       sol.MesaID,
				NumeroPedido: numero,
				Estado:       model.PedidoAbierto,
			}
			if err := s.crearPedidoTx(tx, p, sol.Lineas); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					// lost a race for the pedido id or the number; a replay resolves it
					return transitorio(err)
				}
				return err
			}
			if !p.Total.Equal(sol.Total) {
				log.Warn().
					Str("pedido_id", p.ID.String()).
					Str("total_pedido", p.Total.StringFixed(2)).
					Str("total_solicitud", sol.Total.StringFixed(2)).
					Msg("liquidacion: total del ledger difiere de la solicitud")
			}
		}
		venta, err = s.completarTx(tx, sol.PedidoID, sol.MetodoPago)
		return err
	})
	if err != nil {
		return nil, clasificar(err)
	}
	return venta, nil
}

func (s *ledgerService) existePedido(ctx context.Context, id uuid.UUID) (bool, error) {
	db := s.pedidos.DB()
	if db == nil {
		return false, nil
	}
	return s.pedidos.ExistsTx(db.WithContext(ctx), id)
}

func (s *ledgerService) completarTx(tx *gorm.DB, pedidoID uuid.UUID, metodoPago string) (*model.Venta, error) {
	p, err := s.pedidos.FindForUpdateTx(tx, pedidoID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", pedidoID, ErrPedidoNoEncontrado)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if p.Estado != model.PedidoCompletado {
		if err := s.pedidos.MarcarCompletadoTx(tx, p.ID, now); err != nil {
			return nil, err
		}
	}

	// guarded insert: Venta
	venta, err := s.ventas.FindByPedidoIDTx(tx, p.ID)
	switch {
	case err == nil:
		log.Debug().Str("pedido_id", p.ID.String()).Msg("liquidacion: venta existente, sin duplicar")
	case errors.Is(err, gorm.ErrRecordNotFound):
		venta = nil
	default:
		return nil, err
	}

	var derivados []repository.DetalleDerivado
	needDetalles := venta == nil
	if venta != nil {
		n, err := s.ventas.CountDetallesTx(tx, venta.ID)
		if err != nil {
			return nil, err
		}
		needDetalles = n == 0
	}
	if needDetalles {
		if derivados, err = s.derivarTx(tx, p); err != nil {
			return nil, err
		}
	}

	if venta == nil {
		venta = &model.Venta{
			PedidoID:      p.ID,
			MesaID:        p.MesaID,
			NumeroPedido:  p.NumeroPedido,
			Total:         p.Total.Round(2),
			CantidadItems: cantidadItems(derivados),
			MetodoPago:    metodoPago,
			LiquidadaAt:   now,
		}
		if err := s.ventas.CreateTx(tx, venta); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, fmt.Errorf("venta duplicada para pedido %s: %w", p.ID, ErrLiquidacionCorrupta)
			}
			return nil, err
		}
	}

	// guarded insert: DetalleVenta
	if needDetalles {
		detalles := make([]model.DetalleVenta, 0, len(derivados))
		for _, d := range derivados {
			detalles = append(detalles, detalleVenta(venta.ID, d))
		}
		if err := s.ventas.CreateDetallesTx(tx, detalles); err != nil {
			return nil, err
		}
		venta.Detalles = detalles
	}
	return venta, nil
}

// derivarTx validates the pedido's rows and returns one entry per product.
func (s *ledgerService) derivarTx(tx *gorm.DB, p *model.Pedido) ([]repository.DetalleDerivado, error) {
	detalles, err := s.pedidos.ListDetallesTx(tx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(detalles) == 0 {
		return nil, fmt.Errorf("pedido %s sin detalles: %w", p.ID, ErrLiquidacionCorrupta)
	}
	suma := decimal.Zero
	for _, d := range detalles {
		if _, ok := d.Ref(); !ok {
			return nil, fmt.Errorf("detalle %s sin referencia única: %w", d.ID, ErrLiquidacionCorrupta)
		}
		if d.Cantidad <= 0 {
			return nil, fmt.Errorf("detalle %s con cantidad %d: %w", d.ID, d.Cantidad, ErrLiquidacionCorrupta)
		}
		suma = suma.Add(d.Subtotal)
	}
	if !suma.Round(2).Equal(p.Total.Round(2)) {
		return nil, fmt.Errorf("pedido %s: total %s ≠ Σ detalles %s: %w",
			p.ID, p.Total.StringFixed(2), suma.StringFixed(2), ErrLiquidacionCorrupta)
	}

	derivados, err := s.ventas.DerivarDetallesTx(tx, p.ID)
	if err != nil {
		return nil, err
	}
	sumaDerivada := decimal.Zero
	for _, d := range derivados {
		sumaDerivada = sumaDerivada.Add(d.Subtotal)
	}
	if !sumaDerivada.Equal(p.Total.Round(2)) {
		return nil, fmt.Errorf("pedido %s: detalle de venta %s ≠ total %s: %w",
			p.ID, sumaDerivada.StringFixed(2), p.Total.StringFixed(2), ErrLiquidacionCorrupta)
	}
	return derivados, nil
}

func detalleVenta(ventaID uuid.UUID, d repository.DetalleDerivado) model.DetalleVenta {
	nombre := d.Nombre
	if nombre == "" {
		if ref, ok := model.RefFromColumns(d.ProductoID, d.EspecialID); ok {
			nombre = ref.String()
		}
	}
	precio := decimal.Zero
	if d.Cantidad > 0 {
		precio = d.Subtotal.Div(decimal.NewFromInt(d.Cantidad)).Round(2)
	}
	return model.DetalleVenta{
		VentaID:        ventaID,
		ProductoID:     d.ProductoID,
		EspecialID:     d.EspecialID,
		Nombre:         nombre,
		Categoria:      d.Categoria,
		Cantidad:       int(d.Cantidad),
		PrecioUnitario: precio,
		Subtotal:       d.Subtotal,
	}
}

func cantidadItems(derivados []repository.DetalleDerivado) int {
	n := 0
	for _, d := range derivados {
		n += int(d.Cantidad)
	}
	return n
}

// clasificarCatalogo keeps catalog not-found errors as they are and marks
// availability failures transient.
func clasificarCatalogo(err error) error {
	if errors.Is(err, ErrProductoNoEncontrado) || errors.Is(err, ErrLineaInvalida) {
		return err
	}
	if EsTransitorio(err) {
		return transitorio(err)
	}
	return err
}

// clasificar maps storage errors onto the service taxonomy.
func clasificar(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPedidoNoEncontrado),
		errors.Is(err, ErrDetalleNoEncontrado),
		errors.Is(err, ErrLiquidacionCorrupta),
		errors.Is(err, ErrPedidoCerrado),
		errors.Is(err, ErrLineaInvalida),
		errors.Is(err, ErrNumeroNoUnico):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrPedidoNoEncontrado, err)
	case EsTransitorio(err):
		return transitorio(err)
	}
	return err
}
