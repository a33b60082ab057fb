package router

import (
	"time"

	"restorant/internal/config"
	"restorant/internal/handler"
	"restorant/internal/infra"
	"restorant/internal/middleware"
	"restorant/internal/repository"
	"restorant/internal/service"
	"restorant/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine together
// with the reconciler, which the caller schedules.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(
	cfg *config.Config,
	db *gorm.DB,
	rdb *redis.Client,
	ledgerCB *infra.CircuitBreaker,
	publicador infra.Publicador,
	dispatcher *worker.Dispatcher,
) (*gin.Engine, *worker.Reconciliador) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	catalogoRepo := repository.NewCatalogoRepository(db)
	pedidoRepo := repository.NewPedidoRepository(db)
	ventaRepo := repository.NewVentaRepository(db)
	cuentaRepo := repository.NewCuentaRepository(rdb)
	colaRepo := repository.NewColaRepository(rdb)

	// ── Services ─────────────────────────────────────────────────────────────
	catalogo := service.NewCatalogo(catalogoRepo, rdb, cfg.CatalogCacheTTL())
	numeros := service.NewGeneradorNumeroPedido(pedidoRepo)
	ledgerSvc := service.NewLedgerService(pedidoRepo, ventaRepo, numeros, catalogo)
	cuentaSvc := service.NewCuentaService(cuentaRepo, catalogo)
	liquidacionSvc := service.NewLiquidacionService(
		ledgerSvc, catalogo, cuentaRepo, colaRepo, ledgerCB, publicador, cfg.SettleTimeout(),
	)
	ventaSvc := service.NewVentaService(ventaRepo)

	reconciliador := worker.NewReconciliador(colaRepo, liquidacionSvc, dispatcher, cfg.ReconcileConcurrency)

	// ── Handlers ─────────────────────────────────────────────────────────────
	cuentasH := handler.NewCuentasHandler(cuentaSvc, liquidacionSvc)
	pedidosH := handler.NewPedidosHandler(ledgerSvc)
	ventasH := handler.NewVentasHandler(ventaSvc, cfg.NombreLocal, cfg.PDFStoragePath)
	colaH := handler.NewColaHandler(colaRepo, reconciliador)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, ledgerCB))

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		todos := middleware.RequireRole(middleware.RolMesero, middleware.RolCajero, middleware.RolAdministrador)
		caja := middleware.RequireRole(middleware.RolCajero, middleware.RolAdministrador)
		admin := middleware.RequireRole(middleware.RolAdministrador)

		// Tabs: any floor role
		mesa := v1.Group("/mesas/:mesa/cuenta", todos, middleware.RequireMesaAsignada())
		{
			mesa.GET("", cuentasH.ObtenerCuenta)
			mesa.POST("/lineas", cuentasH.AgregarLinea)
			mesa.DELETE("/lineas", cuentasH.QuitarLinea)
			mesa.PATCH("/lineas/decrementar", cuentasH.DecrementarLinea)
			// 60 settlements/min per IP on top of the global limit
			mesa.POST("/liquidar", middleware.RateLimiter(60, time.Minute), cuentasH.Liquidar)
		}

		// Ledger: cashier side
		pedidos := v1.Group("/pedidos", caja)
		{
			pedidos.POST("", pedidosH.CrearPedido)
			pedidos.GET("/:id", pedidosH.ObtenerPedido)
			pedidos.POST("/:id/detalles", pedidosH.AgregarDetalle)
			pedidos.PATCH("/:id/detalles/:detalle", pedidosH.ActualizarDetalle)
			pedidos.DELETE("/:id/detalles/:detalle", pedidosH.EliminarDetalle)
			pedidos.POST("/:id/completar", pedidosH.CompletarPedido)
		}

		// Sales read model
		ventas := v1.Group("/ventas", caja)
		{
			ventas.GET("", ventasH.ListarVentas)
			ventas.GET("/:id", ventasH.ObtenerVenta)
			ventas.GET("/:id/ticket", ventasH.Ticket)
		}

		// Offline queue: operator
		cola := v1.Group("/cola")
		{
			cola.GET("", caja, colaH.ListarPendientes)
			cola.POST("/drenar", caja, colaH.Drenar)
			cola.GET("/fallidos", admin, colaH.ListarFallidos)
			cola.POST("/fallidos/:id/reintentar", admin, colaH.Reintentar)
		}
	}

	// Swagger UI: only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r, reconciliador
}
