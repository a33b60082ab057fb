package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"restorant/internal/infra"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// Validation
var (
	ErrLineaInvalida      = errors.New("línea de cuenta inválida")
	ErrMetodoPagoInvalido = errors.New("método de pago inválido")
	ErrSinLineasValidas   = errors.New("la cuenta no tiene líneas válidas para liquidar")
	ErrFiltroInvalido     = errors.New("filtro inválido")
)

// NotFound
var (
	ErrPedidoNoEncontrado   = errors.New("pedido no encontrado")
	ErrDetalleNoEncontrado  = errors.New("detalle de pedido no encontrado")
	ErrProductoNoEncontrado = errors.New("producto no encontrado")
	ErrVentaNoEncontrada    = errors.New("venta no encontrada")
)

var (
	// ErrTransitorio marks failures that the offline queue may retry.
	ErrTransitorio = errors.New("ledger no disponible")
	// ErrLiquidacionCorrupta is never retried and never yields a second Venta.
	ErrLiquidacionCorrupta = errors.New("liquidación corrupta")
	ErrNumeroNoUnico       = errors.New("no se pudo generar un número de pedido único")
)

// MetodosPago are the accepted payment labels. Payment is not processed.
var MetodosPago = map[string]bool{
	"efectivo":      true,
	"debito":        true,
	"credito":       true,
	"transferencia": true,
}

// EsTransitorio reports whether err is a timeout or availability failure
// of the ledger, as opposed to a logic or not-found error.
func EsTransitorio(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransitorio) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, infra.ErrCircuitOpen) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, redis.ErrClosed) {
		return true
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08 connection exception, 57P0x admin/crash shutdown, 40001 serialization, 40P01 deadlock
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08",
			pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03",
			pgErr.Code == "40001", pgErr.Code == "40P01":
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// transitorio wraps err so that EsTransitorio recognises it upstream.
func transitorio(err error) error {
	if err == nil || errors.Is(err, ErrTransitorio) {
		return err
	}
	return errors.Join(ErrTransitorio, err)
}
