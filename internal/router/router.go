package router

import (
	"time"

	"almacenpos/internal/config"
	"almacenpos/internal/handler"
	"almacenpos/internal/middleware"
	"almacenpos/internal/model"
	"almacenpos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the already-built collaborators the HTTP layer needs. DB and RDB
// may be nil (memory store, no Redis); they are only used for /health.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	RDB    *redis.Client

	Auth    service.AuthService
	Credito service.CreditoService
	Stock   service.StockService
	Turnos  service.TurnoService
	Ventas  service.VentaService
}

// New returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(d Deps) *gin.Engine {
	cfg := d.Config
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(d.Auth)
	usuariosH := handler.NewUsuariosHandler(d.Auth)
	ventasH := handler.NewVentasHandler(d.Ventas)
	turnosH := handler.NewTurnosHandler(d.Turnos, d.Ventas)
	clientesH := handler.NewClientesHandler(d.Credito, cfg.StoreName)
	productosH := handler.NewProductosHandler(d.Stock)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(d.DB, d.RDB))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes. Every authenticated user is a seller; administrators
	// additionally manage credit and users.
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	todos := middleware.RequireRole(model.RolCajero, model.RolAdministrador)
	admin := middleware.RequireRole(model.RolAdministrador)

	ventas := v1.Group("/ventas", todos)
	{
		ventas.POST("", ventasH.Procesar)
		ventas.GET("/:id", ventasH.Obtener)
		ventas.POST("/:id/devolucion", ventasH.Devolver)
	}

	turnos := v1.Group("/turnos", todos)
	{
		turnos.POST("", turnosH.Abrir)
		turnos.GET("/activo", turnosH.Activo)
		turnos.GET("/historial", admin, turnosH.Historial)
		turnos.GET("/:id", turnosH.Obtener)
		turnos.GET("/:id/ventas", turnosH.Ventas)
		turnos.POST("/:id/gastos", turnosH.RegistrarGasto)
		turnos.POST("/:id/cierre", turnosH.Cerrar)
		turnos.GET("/:id/verificacion", admin, turnosH.Verificar)
	}

	clientes := v1.Group("/clientes", todos)
	{
		clientes.GET("", clientesH.Listar)
		clientes.GET("/:id", clientesH.Obtener)
		clientes.GET("/:id/movimientos", clientesH.Movimientos)
		clientes.POST("/:id/movimientos", admin, clientesH.RegistrarMovimiento)
		clientes.GET("/:id/autorizacion", clientesH.Autorizacion)
		clientes.PATCH("/:id/autorizacion", admin, clientesH.SetAutorizado)
		clientes.GET("/:id/conciliacion", admin, clientesH.Conciliacion)
		clientes.GET("/:id/estado-cuenta", clientesH.EstadoCuenta)
	}

	productos := v1.Group("/productos", todos)
	{
		productos.GET("", productosH.Listar)
		productos.GET("/alertas", productosH.Alertas)
		productos.GET("/:id/stock-bajo", productosH.StockBajo)
	}

	v1.POST("/usuarios", admin, usuariosH.Crear)

	return r
}
