//go:build integration

package router

// End-to-end tests against real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v
//
//   1. Tab → settle online → venta + ticket
//   2. Queued settlement drained by the operator endpoint
//   3. Concurrent completion of one pedido yields one venta

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"restorant/internal/config"
	"restorant/internal/dto"
	"restorant/internal/infra"
	"restorant/internal/middleware"
	"restorant/internal/model"
	"restorant/internal/repository"
	"restorant/internal/service"
	"restorant/internal/worker"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key"

// ── Helpers ──────────────────────────────────────────────────────────────────

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(t *testing.T, srv *httptest.Server, method, path string, body *bytes.Buffer, token string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, srv.URL+path, body)
	} else {
		req, err = http.NewRequest(method, srv.URL+path, nil)
	}
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func token(t *testing.T, rol string) string {
	t.Helper()
	claims := middleware.JWTClaims{
		UserID:   uuid.NewString(),
		Username: "e2e-" + rol,
		Rol:      rol,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

// ── Suite setup ──────────────────────────────────────────────────────────────

type testEnv struct {
	server   *httptest.Server
	db       *gorm.DB
	rdb      *redis.Client
	mesero   string
	cajero   string
	milanesa model.Producto
	vino     model.Producto
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.Run(ctx, "postgres:15-alpine",
		tcPostgres.WithDatabase("restorant_test"),
		tcPostgres.WithUsername("restorant"),
		tcPostgres.WithPassword("restorant"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:                    "test",
		JWTSecret:              testSecret,
		DatabaseDriver:         "postgres",
		DatabaseURL:            pgURL,
		RedisURL:               rdURL,
		WorkerPoolSize:         1,
		SettleTimeoutSeconds:   5,
		ReconcileConcurrency:   2,
		CatalogCacheTTLSeconds: 60,
		PDFStoragePath:         t.TempDir(),
		NombreLocal:            "Cantina E2E",
	}

	db, err := infra.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)

	env := &testEnv{
		db:       db,
		rdb:      rdb,
		mesero:   token(t, middleware.RolMesero),
		cajero:   token(t, middleware.RolCajero),
		milanesa: model.Producto{Nombre: "Milanesa", Categoria: "principal", PrecioVenta: decimal.NewFromInt(2500), Activo: true},
		vino:     model.Producto{Nombre: "Vino de la casa", Categoria: "bebida", PrecioVenta: decimal.NewFromInt(3500), Activo: true},
	}
	require.NoError(t, db.Create(&env.milanesa).Error)
	require.NoError(t, db.Create(&env.vino).Error)

	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
		FailureThreshold: 5,
		OpenTimeout:      time.Second,
		CountsAsFailure:  service.EsTransitorio,
	})
	engine, _ := New(cfg, db, rdb, cb, infra.NopPublicador{}, worker.NewDispatcher(rdb))
	env.server = httptest.NewServer(engine)
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) agregar(t *testing.T, mesa string, p model.Producto, cantidad int) {
	t.Helper()
	resp := do(t, e.server, http.MethodPost, "/v1/mesas/"+mesa+"/cuenta/lineas", jsonBody(t, dto.AgregarLineaRequest{
		Ref:      dto.LineRefRequest{Tipo: "catalogo", ID: p.ID.String()},
		Cantidad: cantidad,
	}), e.mesero)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestE2E_TabSettlesOnline(t *testing.T) {
	env := setupTestEnv(t)

	env.agregar(t, "12", env.milanesa, 2)
	env.agregar(t, "12", env.vino, 1)
	env.agregar(t, "12", env.milanesa, 1)

	resp := do(t, env.server, http.MethodGet, "/v1/mesas/12/cuenta", nil, env.mesero)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cuenta dto.CuentaResponse
	decodeJSON(t, resp, &cuenta)
	require.Len(t, cuenta.Lineas, 2)
	assert.True(t, cuenta.Total.Equal(decimal.NewFromInt(11000)))

	resp = do(t, env.server, http.MethodPost, "/v1/mesas/12/cuenta/liquidar",
		jsonBody(t, dto.LiquidarRequest{MetodoPago: "debito"}), env.mesero)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var liq dto.LiquidacionResponse
	decodeJSON(t, resp, &liq)
	assert.Equal(t, "liquidada", liq.Estado)
	require.NotNil(t, liq.VentaID)

	// tab is gone
	resp = do(t, env.server, http.MethodGet, "/v1/mesas/12/cuenta", nil, env.mesero)
	decodeJSON(t, resp, &cuenta)
	assert.Empty(t, cuenta.Lineas)

	// mesero cannot read the ledger
	resp = do(t, env.server, http.MethodGet, "/v1/ventas/"+*liq.VentaID, nil, env.mesero)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, env.server, http.MethodGet, "/v1/ventas/"+*liq.VentaID, nil, env.cajero)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var venta dto.VentaResponse
	decodeJSON(t, resp, &venta)
	assert.True(t, venta.Total.Equal(decimal.NewFromInt(11000)))
	assert.Equal(t, 4, venta.CantidadItems)
	assert.Equal(t, "debito", venta.MetodoPago)

	resp = do(t, env.server, http.MethodGet, "/v1/ventas/"+*liq.VentaID+"/ticket", nil, env.cajero)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
}

func TestE2E_QueuedSettlementDrained(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	cola := repository.NewColaRepository(env.rdb)
	item := model.NuevoItemCola(model.SolicitudLiquidacion{
		PedidoID: uuid.New(),
		MesaID:   "8",
		Lineas: []model.LineaCuenta{
			{Ref: model.Catalogo(env.vino.ID), Cantidad: 2, PrecioUnitario: decimal.NewFromInt(3500)},
		},
		MetodoPago: "efectivo",
		Total:      decimal.NewFromInt(7000),
		CreadaAt:   time.Now(),
	})
	require.NoError(t, cola.Encolar(ctx, item))

	resp := do(t, env.server, http.MethodGet, "/v1/cola", nil, env.cajero)
	var pend dto.ColaResponse
	decodeJSON(t, resp, &pend)
	assert.Equal(t, 1, pend.Total)

	resp = do(t, env.server, http.MethodPost, "/v1/cola/drenar", nil, env.cajero)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res dto.DrenajeResponse
	decodeJSON(t, resp, &res)
	assert.Equal(t, 1, res.Liquidados)
	assert.Zero(t, res.Pendientes)

	var n int64
	require.NoError(t, env.db.Model(&model.Venta{}).Where("pedido_id = ?", item.Solicitud.PedidoID).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	// a second drain finds nothing
	resp = do(t, env.server, http.MethodPost, "/v1/cola/drenar", nil, env.cajero)
	decodeJSON(t, resp, &res)
	assert.Zero(t, res.Liquidados)
}

func TestE2E_ConcurrentCompletionSingleVenta(t *testing.T) {
	env := setupTestEnv(t)

	resp := do(t, env.server, http.MethodPost, "/v1/pedidos", jsonBody(t, dto.CrearPedidoRequest{
		MesaID: "3",
		Lineas: []dto.LineaPedidoRequest{
			{Ref: dto.LineRefRequest{Tipo: "catalogo", ID: env.milanesa.ID.String()}, Cantidad: 2},
		},
	}), env.cajero)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var pedido dto.PedidoResponse
	decodeJSON(t, resp, &pedido)

	const n = 8
	body, err := json.Marshal(dto.CompletarPedidoRequest{MetodoPago: "credito"})
	require.NoError(t, err)

	ventas := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, env.server.URL+"/v1/pedidos/"+pedido.ID+"/completar", bytes.NewReader(body))
			if err != nil {
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+env.cajero)
			resp, err := env.server.Client().Do(req)
			if err != nil {
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return
			}
			var out dto.CompletarPedidoResponse
			if json.NewDecoder(resp.Body).Decode(&out) == nil {
				ventas[i] = out.VentaID
			}
		}(i)
	}
	wg.Wait()

	var count int64
	require.NoError(t, env.db.Model(&model.Venta{}).Where("pedido_id = ?", pedido.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var ok string
	for _, v := range ventas {
		if v == "" {
			continue
		}
		if ok == "" {
			ok = v
		}
		assert.Equal(t, ok, v, "every successful completion reports the same venta")
	}
	assert.NotEmpty(t, ok)
}
