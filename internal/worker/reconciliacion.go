package worker

// reconciliacion.go: replays the offline settlement queue.
// Per mesa, items are processed strictly in FIFO order under a Redis lock
// that is renewed before every item; different mesas drain in parallel. A
// transient failure leaves the head pendiente and stops that mesa until the
// next drain (no attempt cap). A fatal failure dead-letters the item, alerts
// the operator and continues with the next item of the same mesa.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"restorant/internal/model"
	"restorant/internal/repository"
	"restorant/internal/service"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const defaultLockTTL = 2 * time.Minute

// Reproductor re-submits a queued settlement. Satisfied by service.LiquidacionService.
type Reproductor interface {
	Reproducir(ctx context.Context, sol model.SolicitudLiquidacion) (*model.Venta, error)
}

// Alertador raises an operator alert. Satisfied by *Dispatcher.
type Alertador interface {
	EnqueueAlerta(ctx context.Context, payload AlertaJobPayload) error
}

// Resumen counts what one Drenar pass did. Pendientes counts transient
// failures, i.e. mesas left waiting for the next pass.
type Resumen struct {
	Mesas      int
	Liquidados int
	Pendientes int
	Fallidos   int
}

type Reconciliador struct {
	cola         repository.ColaRepository
	reproductor  Reproductor
	alertas      Alertador
	concurrencia int
	lockTTL      time.Duration
}

func NewReconciliador(cola repository.ColaRepository, rep Reproductor, alertas Alertador, concurrencia int) *Reconciliador {
	if concurrencia <= 0 {
		concurrencia = 4
	}
	return &Reconciliador{
		cola:         cola,
		reproductor:  rep,
		alertas:      alertas,
		concurrencia: concurrencia,
		lockTTL:      defaultLockTTL,
	}
}

// Drenar runs one reconciliation pass over every mesa with queued work.
func (r *Reconciliador) Drenar(ctx context.Context) (Resumen, error) {
	mesas, err := r.cola.Mesas(ctx)
	if err != nil {
		return Resumen{}, fmt.Errorf("reconciliador: listar mesas: %w", err)
	}
	res := Resumen{Mesas: len(mesas)}
	if len(mesas) == 0 {
		return res, nil
	}

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(r.concurrencia)
	for _, mesa := range mesas {
		g.Go(func() error {
			parcial, err := r.drenarMesa(ctx, mesa)
			mu.Lock()
			defer mu.Unlock()
			res.Liquidados += parcial.Liquidados
			res.Pendientes += parcial.Pendientes
			res.Fallidos += parcial.Fallidos
			if err != nil {
				// one broken mesa must not stop the others
				log.Error().Err(err).Str("mesa_id", mesa).Msg("reconciliador: error drenando mesa")
				errs = append(errs, fmt.Errorf("mesa %s: %w", mesa, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if res.Liquidados+res.Fallidos > 0 {
		log.Info().
			Int("mesas", res.Mesas).
			Int("liquidados", res.Liquidados).
			Int("pendientes", res.Pendientes).
			Int("fallidos", res.Fallidos).
			Msg("reconciliador: drenaje completado")
	}
	return res, errors.Join(errs...)
}

func (r *Reconciliador) drenarMesa(ctx context.Context, mesa string) (Resumen, error) {
	var res Resumen
	candado, ok, err := r.cola.Bloquear(ctx, mesa, r.lockTTL)
	if err != nil {
		return res, err
	}
	if !ok {
		log.Debug().Str("mesa_id", mesa).Msg("reconciliador: mesa bloqueada por otro drenaje")
		return res, nil
	}
	defer candado.Liberar()

	for ctx.Err() == nil {
		vigente, err := candado.Renovar(ctx)
		if err != nil {
			return res, err
		}
		if !vigente {
			log.Warn().Str("mesa_id", mesa).Msg("reconciliador: bloqueo vencido, se abandona la mesa")
			return res, nil
		}

		item, err := r.cola.Cabeza(ctx, mesa)
		if err != nil {
			return res, err
		}
		if item == nil {
			return res, nil
		}
		if item.Estado == model.ColaReproduciendo {
			// a previous drain died mid-replay; replay is idempotent
			_ = item.Pasar(model.ColaPendiente)
		}
		if err := item.Pasar(model.ColaReproduciendo); err != nil {
			return res, err
		}
		item.Intentos++
		if err := r.cola.ActualizarCabeza(ctx, item); err != nil {
			return res, cabezaMovida(mesa, err)
		}

		venta, err := r.reproductor.Reproducir(ctx, item.Solicitud)
		switch {
		case err == nil:
			_ = item.Pasar(model.ColaLiquidado)
			item.VentaID = &venta.ID
			if err := r.cola.QuitarCabeza(ctx, mesa, item.ID); err != nil {
				return res, cabezaMovida(mesa, err)
			}
			res.Liquidados++
			log.Info().
				Str("mesa_id", mesa).
				Str("pedido_id", item.Solicitud.PedidoID.String()).
				Str("venta_id", venta.ID.String()).
				Int("intentos", item.Intentos).
				Msg("reconciliador: liquidación sincronizada")

		case service.EsTransitorio(err):
			item.UltimoError = err.Error()
			_ = item.Pasar(model.ColaPendiente)
			if uerr := r.cola.ActualizarCabeza(ctx, item); uerr != nil {
				return res, cabezaMovida(mesa, uerr)
			}
			res.Pendientes++
			log.Debug().Err(err).Str("mesa_id", mesa).Int("intentos", item.Intentos).
				Msg("reconciliador: ledger no disponible, se reintenta en el próximo drenaje")
			return res, nil

		default:
			item.UltimoError = err.Error()
			_ = item.Pasar(model.ColaFallido)
			if merr := r.cola.MoverAFallidos(ctx, item); merr != nil {
				return res, cabezaMovida(mesa, merr)
			}
			res.Fallidos++
			log.Error().Err(err).
				Str("mesa_id", mesa).
				Str("item_id", item.ID.String()).
				Str("pedido_id", item.Solicitud.PedidoID.String()).
				Msg("reconciliador: liquidación fallida, movida a dead-letter")
			r.alertar(ctx, item)
		}
	}
	return res, nil
}

// cabezaMovida swallows ErrItemNoEncontrado: another drain advanced the mesa
// and owns what is left of it.
func cabezaMovida(mesa string, err error) error {
	if errors.Is(err, repository.ErrItemNoEncontrado) {
		log.Warn().Str("mesa_id", mesa).Msg("reconciliador: la cabeza cambió durante el drenaje, se abandona la mesa")
		return nil
	}
	return err
}

func (r *Reconciliador) alertar(ctx context.Context, item *model.ItemCola) {
	if r.alertas == nil {
		return
	}
	s := item.Solicitud
	payload := AlertaJobPayload{
		Asunto: fmt.Sprintf("Liquidación fallida - mesa %s", s.MesaID),
		Cuerpo: fmt.Sprintf(
			"La liquidación encolada no pudo registrarse y requiere intervención.\n\n"+
				"Item: %s\nPedido: %s\nMesa: %s\nTotal: %s\nMétodo de pago: %s\nEncolada: %s\nIntentos: %d\nError: %s\n",
			item.ID, s.PedidoID, s.MesaID, s.Total.StringFixed(2), s.MetodoPago,
			item.EncoladoAt.Format(time.RFC3339), item.Intentos, item.UltimoError),
	}
	if err := r.alertas.EnqueueAlerta(context.WithoutCancel(ctx), payload); err != nil {
		log.Error().Err(err).Str("item_id", item.ID.String()).Msg("reconciliador: no se pudo encolar la alerta")
	}
}
