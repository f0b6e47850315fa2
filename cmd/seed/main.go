// cmd/seed/main.go: loads demo users, products and credit clients.
// Uso: go run ./cmd/seed
// Re-running is safe: rows that already exist are skipped.
package main

import (
	"context"
	"os"
	"time"

	"almacenpos/internal/apperr"
	"almacenpos/internal/config"
	"almacenpos/internal/dto"
	"almacenpos/internal/infra"
	"almacenpos/internal/model"
	"almacenpos/internal/money"
	"almacenpos/internal/repository"
	"almacenpos/internal/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var usuarios = []dto.CrearUsuarioRequest{
	{Username: "admin", Nombre: "Administrador", Password: "almacen2024", Rol: model.RolAdministrador},
	{Username: "caja1", Nombre: "Cajero Mañana", Password: "caja12345", Rol: model.RolCajero},
	{Username: "caja2", Nombre: "Cajero Noche", Password: "caja12345", Rol: model.RolCajero},
}

var productos = []model.Producto{
	{CodigoBarras: ptr("7790387000017"), Nombre: "Yerba Mate 1kg", Categoria: "almacen", PrecioVenta: money.New(3500), StockActual: 40, StockMinimo: 8},
	{CodigoBarras: ptr("7790070411808"), Nombre: "Fideos Spaghetti 500g", Categoria: "almacen", PrecioVenta: money.New(1200), StockActual: 60, StockMinimo: 10},
	{CodigoBarras: ptr("7791813420019"), Nombre: "Leche Entera 1L", Categoria: "lacteos", PrecioVenta: money.New(1100), StockActual: 24, StockMinimo: 12},
	{CodigoBarras: ptr("7790040613607"), Nombre: "Galletitas Surtidas", Categoria: "almacen", PrecioVenta: money.New(950), StockActual: 3, StockMinimo: 5},
	{CodigoBarras: ptr("7790895000782"), Nombre: "Gaseosa Cola 2.25L", Categoria: "bebidas", PrecioVenta: money.New(2800), StockActual: 18, StockMinimo: 6},
	{Nombre: "Pan Francés (kg)", Categoria: "panaderia", PrecioVenta: money.New(2200), StockActual: 15, StockMinimo: 5},
}

var clientes = []model.Cliente{
	{Nombre: "Doña Rosa", Telefono: ptr("11-4567-8901"), Autorizado: true, LimiteCredito: money.New(50000), PlanPago: model.PlanMensual},
	{Nombre: "Don Carlos", Autorizado: true, LimiteCredito: money.New(20000), PlanPago: model.PlanQuincenal},
	{Nombre: "Marta (vecina)", Autorizado: false, LimiteCredito: money.New(10000), PlanPago: model.PlanInmediato},
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	auth := service.NewAuthService(repos.Usuarios, cfg)
	for _, u := range usuarios {
		if _, err := auth.CrearUsuario(ctx, u); err != nil {
			skipOrFail(err, "usuario", u.Username)
			continue
		}
		log.Info().Str("username", u.Username).Str("rol", u.Rol).Msg("usuario creado")
	}

	for i := range productos {
		p := productos[i]
		p.Activo = true
		if err := repos.Productos.Create(ctx, &p); err != nil {
			skipOrFail(err, "producto", p.Nombre)
			continue
		}
		log.Info().Str("producto", p.Nombre).Int("stock", p.StockActual).Msg("producto creado")
	}

	existentes, err := repos.Clientes.List(ctx, repository.ClienteFiltro{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list clientes")
	}
	nombres := make(map[string]bool, len(existentes))
	for _, c := range existentes {
		nombres[c.Nombre] = true
	}
	for i := range clientes {
		c := clientes[i]
		if nombres[c.Nombre] {
			log.Info().Str("cliente", c.Nombre).Msg("cliente ya existe, se omite")
			continue
		}
		if err := repos.Clientes.Create(ctx, &c); err != nil {
			log.Fatal().Err(err).Str("cliente", c.Nombre).Msg("failed to create cliente")
		}
		log.Info().Str("cliente", c.Nombre).Str("limite", c.LimiteCredito.Format()).Msg("cliente creado")
	}

	log.Info().Msg("seed completo")
}

func skipOrFail(err error, entidad, nombre string) {
	if apperr.KindOf(err) == apperr.KindDuplicate {
		log.Info().Str(entidad, nombre).Msg(entidad + " ya existe, se omite")
		return
	}
	log.Fatal().Err(err).Str(entidad, nombre).Msg("seed failed")
}

func ptr[T any](v T) *T { return &v }
