package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"restorant/internal/infra"
	"restorant/internal/model"
	"restorant/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Estado values of ResultadoLiquidacion.
const (
	EstadoLiquidada = "liquidada"
	EstadoEnCola    = "en_cola"
)

// ResultadoLiquidacion is either Liquidada (VentaID set) or EnCola.
type ResultadoLiquidacion struct {
	Estado       string
	PedidoID     uuid.UUID
	VentaID      *uuid.UUID
	NumeroPedido string
	Total        decimal.Decimal
}

// EventoVentaLiquidada is published on venta.liquidada.
type EventoVentaLiquidada struct {
	VentaID      string          `json:"venta_id"`
	PedidoID     string          `json:"pedido_id"`
	MesaID       string          `json:"mesa_id"`
	NumeroPedido string          `json:"numero_pedido"`
	Total        decimal.Decimal `json:"total"`
	MetodoPago   string          `json:"metodo_pago"`
	LiquidadaAt  time.Time       `json:"liquidada_at"`
}

// LiquidacionService converts a tab into a durable Venta, falling back to the
// offline queue when the ledger is unreachable.
type LiquidacionService interface {
	Liquidar(ctx context.Context, mesaID string, lineas []model.LineaCuenta, metodoPago string) (*ResultadoLiquidacion, error)
	LiquidarCuenta(ctx context.Context, mesaID, metodoPago string) (*ResultadoLiquidacion, error)
	// Reproducir submits a queued request again. Used by the reconciler.
	Reproducir(ctx context.Context, sol model.SolicitudLiquidacion) (*model.Venta, error)
}

type liquidacionService struct {
	ledger     LedgerService
	catalogo   Catalogo
	cuentas    repository.CuentaRepository
	cola       repository.ColaRepository
	cb         *infra.CircuitBreaker
	publicador infra.Publicador
	timeout    time.Duration
}

func NewLiquidacionService(
	ledger LedgerService,
	catalogo Catalogo,
	cuentas repository.CuentaRepository,
	cola repository.ColaRepository,
	cb *infra.CircuitBreaker,
	publicador infra.Publicador,
	timeout time.Duration,
) LiquidacionService {
	if publicador == nil {
		publicador = infra.NopPublicador{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &liquidacionService{
		ledger:     ledger,
		catalogo:   catalogo,
		cuentas:    cuentas,
		cola:       cola,
		cb:         cb,
		publicador: publicador,
		timeout:    timeout,
	}
}

func (s *liquidacionService) LiquidarCuenta(ctx context.Context, mesaID, metodoPago string) (*ResultadoLiquidacion, error) {
	c, err := s.cuentas.Get(ctx, mesaID)
	if err != nil {
		return nil, err
	}
	return s.Liquidar(ctx, mesaID, c.Snapshot(), metodoPago)
}

// ── Liquidar ──────────────────────────────────────────────────────────────────
//   1. Validate lines (dropping bad ones) and the payment label; no writes yet
//   2. total = Σ precio × cantidad, 2 decimals half-up
//   3. Submit to the ledger under SETTLE_TIMEOUT through the circuit breaker
//   4. Transient failure → queue the request verbatim
//   5. Clear the tab only once the ledger or the queue accepted it

func (s *liquidacionService) Liquidar(ctx context.Context, mesaID string, lineas []model.LineaCuenta, metodoPago string) (*ResultadoLiquidacion, error) {
	if !MetodosPago[metodoPago] {
		return nil, ErrMetodoPagoInvalido
	}
	validas, err := s.validarLineas(ctx, mesaID, lineas)
	if err != nil {
		// nothing is queued with a price that could not be read
		log.Warn().Err(err).Str("mesa_id", mesaID).Msg("liquidacion: catálogo no disponible, cuenta conservada")
		return nil, err
	}
	if len(validas) == 0 {
		return nil, ErrSinLineasValidas
	}

	total := decimal.Zero
	for _, l := range validas {
		total = total.Add(l.Subtotal())
	}
	sol := model.SolicitudLiquidacion{
		PedidoID:   uuid.New(),
		MesaID:     mesaID,
		Lineas:     validas,
		MetodoPago: metodoPago,
		// decimal.Round is half away from zero; totals are never negative
		Total:    total.Round(2),
		CreadaAt: time.Now().UTC(),
	}

	venta, err := s.Reproducir(ctx, sol)
	if err == nil {
		s.limpiarCuenta(ctx, mesaID)
		log.Info().
			Str("mesa_id", mesaID).
			Str("venta_id", venta.ID.String()).
			Str("numero_pedido", venta.NumeroPedido).
			Str("total", venta.Total.StringFixed(2)).
			Msg("liquidacion: venta registrada")
		id := venta.ID
		return &ResultadoLiquidacion{
			Estado:       EstadoLiquidada,
			PedidoID:     sol.PedidoID,
			VentaID:      &id,
			NumeroPedido: venta.NumeroPedido,
			Total:        venta.Total,
		}, nil
	}

	if !EsTransitorio(err) {
		log.Error().Err(err).Str("mesa_id", mesaID).Str("pedido_id", sol.PedidoID.String()).
			Msg("liquidacion: error del ledger, cuenta sin cambios")
		return nil, err
	}

	item := model.NuevoItemCola(sol)
	if qerr := s.cola.Encolar(context.WithoutCancel(ctx), item); qerr != nil {
		log.Error().Err(qerr).AnErr("ledger_err", err).Str("mesa_id", mesaID).
			Msg("liquidacion: no se pudo encolar, cuenta sin cambios")
		return nil, fmt.Errorf("encolar liquidación: %w", errors.Join(qerr, err))
	}
	s.limpiarCuenta(ctx, mesaID)
	log.Warn().Err(err).
		Str("mesa_id", mesaID).
		Str("pedido_id", sol.PedidoID.String()).
		Str("total", sol.Total.StringFixed(2)).
		Msg("liquidacion: ledger no disponible, encolada para sincronizar")

	return &ResultadoLiquidacion{
		Estado:   EstadoEnCola,
		PedidoID: sol.PedidoID,
		Total:    sol.Total,
	}, nil
}

func (s *liquidacionService) Reproducir(ctx context.Context, sol model.SolicitudLiquidacion) (*model.Venta, error) {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var venta *model.Venta
	call := func() error {
		var err error
		venta, err = s.ledger.RegistrarLiquidacion(sctx, sol)
		return err
	}
	var err error
	if s.cb != nil {
		err = s.cb.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		if errors.Is(err, infra.ErrCircuitOpen) {
			return nil, transitorio(err)
		}
		return nil, err
	}
	s.publicar(ctx, venta)
	return venta, nil
}

// validarLineas drops invalid lines with a warning. Captured prices are
// trusted as they are, 0 included; only SinPrecio lines are priced from the
// catalog. A transient catalog failure aborts the whole settlement.
func (s *liquidacionService) validarLineas(ctx context.Context, mesaID string, lineas []model.LineaCuenta) ([]model.LineaCuenta, error) {
	out := make([]model.LineaCuenta, 0, len(lineas))
	for _, l := range lineas {
		motivo := ""
		switch {
		case !l.Ref.Valid():
			motivo = "referencia inválida"
		case l.Cantidad <= 0:
			motivo = "cantidad no positiva"
		case l.PrecioUnitario.IsNegative():
			motivo = "precio negativo"
		case l.SinPrecio:
			precio, err := s.catalogo.LookupPrice(ctx, l.Ref)
			if err != nil {
				if err = clasificarCatalogo(err); EsTransitorio(err) {
					return nil, err
				}
				motivo = "precio no resoluble: " + err.Error()
				break
			}
			l.PrecioUnitario = precio
			l.SinPrecio = false
		}
		if motivo != "" {
			log.Warn().
				Str("mesa_id", mesaID).
				Str("ref", l.Ref.String()).
				Int("cantidad", l.Cantidad).
				Str("motivo", motivo).
				Msg("liquidacion: línea descartada")
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *liquidacionService) limpiarCuenta(ctx context.Context, mesaID string) {
	if err := s.cuentas.Delete(context.WithoutCancel(ctx), mesaID); err != nil {
		// the settlement already happened; a stale tab is visible and removable
		log.Error().Err(err).Str("mesa_id", mesaID).Msg("liquidacion: no se pudo limpiar la cuenta")
	}
}

func (s *liquidacionService) publicar(ctx context.Context, v *model.Venta) {
	ev := EventoVentaLiquidada{
		VentaID:      v.ID.String(),
		PedidoID:     v.PedidoID.String(),
		MesaID:       v.MesaID,
		NumeroPedido: v.NumeroPedido,
		Total:        v.Total,
		MetodoPago:   v.MetodoPago,
		LiquidadaAt:  v.LiquidadaAt,
	}
	if err := s.publicador.Publicar(context.WithoutCancel(ctx), infra.RoutingLiquidada, ev); err != nil {
		log.Warn().Err(err).Str("venta_id", ev.VentaID).Msg("liquidacion: evento venta.liquidada no publicado")
	}
}
