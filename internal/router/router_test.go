package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"almacenpos/internal/config"
	"almacenpos/internal/dto"
	"almacenpos/internal/lock"
	"almacenpos/internal/model"
	"almacenpos/internal/money"
	"almacenpos/internal/repository"
	"almacenpos/internal/repository/memory"
	"almacenpos/internal/router"
	"almacenpos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type app struct {
	t      *testing.T
	engine *gin.Engine
	repos  repository.Repositories
}

func newApp(t *testing.T) *app {
	t.Helper()
	cfg := &config.Config{
		Env:                "test",
		StoreName:          "Almacén de prueba",
		JWTSecret:          "secreto-de-prueba",
		JWTExpirationHours: 1,
		JWTRefreshHours:    2,
	}
	store := memory.New()
	repos := store.Repositories()
	locker := lock.NewLocal(2 * time.Second)

	auth := service.NewAuthService(repos.Usuarios, cfg)
	for _, u := range []dto.CrearUsuarioRequest{
		{Username: "caja1", Nombre: "Cajero Uno", Password: "caja1234", Rol: model.RolCajero},
		{Username: "admin", Nombre: "Administrador", Password: "admin1234", Rol: model.RolAdministrador},
	} {
		_, err := auth.CrearUsuario(context.Background(), u)
		require.NoError(t, err)
	}

	engine := router.New(router.Deps{
		Config:  cfg,
		Auth:    auth,
		Credito: service.NewCreditoService(store, repos, locker, time.Now),
		Stock:   service.NewStockService(store, repos, locker),
		Turnos:  service.NewTurnoService(store, repos, locker, nil, time.Now),
		Ventas:  service.NewVentaService(store, repos, locker, nil, time.Now),
	})
	return &app{t: t, engine: engine, repos: repos}
}

func (a *app) do(method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *app) login(username, password string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{Username: username, Password: password})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.LoginResponse
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken
}

func (a *app) producto(nombre string, precio int64, stock int) *model.Producto {
	a.t.Helper()
	p := &model.Producto{Nombre: nombre, Categoria: "almacen", PrecioVenta: money.New(precio), StockActual: stock, StockMinimo: 2, Activo: true}
	require.NoError(a.t, a.repos.Productos.Create(context.Background(), p))
	return p
}

func (a *app) cliente(limite int64) *model.Cliente {
	a.t.Helper()
	c := &model.Cliente{Nombre: "Doña Rosa", Autorizado: true, LimiteCredito: money.New(limite), PlanPago: model.PlanMensual}
	require.NoError(a.t, a.repos.Clientes.Create(context.Background(), c))
	return c
}

func (a *app) abrirTurno(token string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/v1/turnos", token, dto.AbrirTurnoRequest{Tipo: "dia", MontoInicial: money.New(10000)})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var resp dto.TurnoResponse
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Detail string            `json:"detail"`
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields"`
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestHealth_WithoutBackends(t *testing.T) {
	a := newApp(t)
	w := a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"db":"disabled"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAuth_LoginFailsAndProtectedRoutesNeedToken(t *testing.T) {
	a := newApp(t)
	w := a.do(http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{Username: "caja1", Password: "incorrecta"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(http.MethodGet, "/v1/productos", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVentas_FlujoCompletoDeTurno(t *testing.T) {
	a := newApp(t)
	token := a.login("caja1", "caja1234")
	yerba := a.producto("Yerba 1kg", 3500, 10)
	turnoID := a.abrirTurno(token)

	venta := dto.ProcesarVentaRequest{
		TurnoID:       turnoID,
		Items:         []dto.ItemVentaRequest{{ProductoID: yerba.ID.String(), Cantidad: 2}},
		MetodoPago:    "efectivo",
		MontoRecibido: ptr(money.New(10000)),
	}
	w := a.do(http.MethodPost, "/v1/ventas", token, venta, "Idempotency-Key", "caja1-0001")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	primera := decode[dto.VentaResponse](t, w)
	assert.Equal(t, money.New(7000), primera.Total)
	require.NotNil(t, primera.Vuelto)
	assert.Equal(t, money.New(3000), *primera.Vuelto)

	// A retried request with the same key returns the original sale.
	w = a.do(http.MethodPost, "/v1/ventas", token, venta, "Idempotency-Key", "caja1-0001")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, primera.ID, decode[dto.VentaResponse](t, w).ID)

	// The sale's key cannot be reused for a return.
	w = a.do(http.MethodPost, "/v1/ventas/"+primera.ID+"/devolucion", token, dto.DevolverVentaRequest{
		Items: []dto.ItemVentaRequest{{ProductoID: yerba.ID.String(), Cantidad: 1}},
	}, "Idempotency-Key", "caja1-0001")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "duplicate", decode[errorBody](t, w).Kind)

	p, err := a.repos.Productos.FindByID(context.Background(), yerba.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, p.StockActual)

	w = a.do(http.MethodGet, "/v1/ventas/"+primera.ID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodGet, "/v1/turnos/"+turnoID+"/ventas", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]dto.VentaResponse](t, w), 1)

	w = a.do(http.MethodPost, "/v1/turnos/"+turnoID+"/cierre", token, dto.CerrarTurnoRequest{EfectivoContado: ptr(money.New(17000))})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cerrado := decode[dto.TurnoResponse](t, w)
	require.NotNil(t, cerrado.Arqueo)
	assert.Equal(t, money.New(17000), cerrado.Arqueo.EfectivoEsperado)
	assert.True(t, cerrado.Arqueo.Diferencia.IsZero())

	venta.MontoRecibido = nil
	w = a.do(http.MethodPost, "/v1/ventas", token, venta)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "shift_closed", decode[errorBody](t, w).Kind)
}

func TestVentas_ErroresDeDominio(t *testing.T) {
	a := newApp(t)
	token := a.login("caja1", "caja1234")
	fideos := a.producto("Fideos", 1200, 1)
	cliente := a.cliente(1000)
	turnoID := a.abrirTurno(token)

	t.Run("stock insuficiente", func(t *testing.T) {
		w := a.do(http.MethodPost, "/v1/ventas", token, dto.ProcesarVentaRequest{
			TurnoID:    turnoID,
			Items:      []dto.ItemVentaRequest{{ProductoID: fideos.ID.String(), Cantidad: 5}},
			MetodoPago: "tarjeta",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "insufficient_stock", decode[errorBody](t, w).Kind)
	})

	t.Run("credito denegado", func(t *testing.T) {
		cid := cliente.ID.String()
		w := a.do(http.MethodPost, "/v1/ventas", token, dto.ProcesarVentaRequest{
			TurnoID:    turnoID,
			Items:      []dto.ItemVentaRequest{{ProductoID: fideos.ID.String(), Cantidad: 1}},
			MetodoPago: "fiado",
			ClienteID:  &cid,
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "credit_denied", decode[errorBody](t, w).Kind)
	})

	t.Run("validacion", func(t *testing.T) {
		w := a.do(http.MethodPost, "/v1/ventas", token, dto.ProcesarVentaRequest{TurnoID: turnoID, MetodoPago: "trueque"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := decode[errorBody](t, w)
		assert.Contains(t, body.Fields, "Items")
		assert.Contains(t, body.Fields, "MetodoPago")
	})

	t.Run("venta inexistente", func(t *testing.T) {
		w := a.do(http.MethodGet, "/v1/ventas/"+cliente.ID.String(), token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("id invalido", func(t *testing.T) {
		w := a.do(http.MethodGet, "/v1/ventas/no-es-uuid", token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	// Nothing above touched the stock.
	p, err := a.repos.Productos.FindByID(context.Background(), fideos.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.StockActual)
}

func TestClientes_MovimientosSoloAdministrador(t *testing.T) {
	a := newApp(t)
	cajero := a.login("caja1", "caja1234")
	admin := a.login("admin", "admin1234")
	cliente := a.cliente(50000)
	path := "/v1/clientes/" + cliente.ID.String()

	fiado := dto.RegistrarMovimientoRequest{Tipo: "fiado", Monto: money.New(8000), Descripcion: "Compra de la semana"}
	w := a.do(http.MethodPost, path+"/movimientos", cajero, fiado)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPost, path+"/movimientos", admin, fiado)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodPost, path+"/movimientos", admin, dto.RegistrarMovimientoRequest{Tipo: "abono", Monto: money.New(9000)})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "invalid_movement", decode[errorBody](t, w).Kind)

	w = a.do(http.MethodGet, path+"/autorizacion?monto=$50.000", cajero, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	aut := decode[dto.AutorizacionResponse](t, w)
	assert.False(t, aut.Autorizado)
	assert.Equal(t, money.New(42000), aut.Disponible)

	w = a.do(http.MethodGet, path+"/autorizacion?monto=0", cajero, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decode[errorBody](t, w).Kind)

	w = a.do(http.MethodGet, path, cajero, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, money.New(8000), decode[dto.ClienteResponse](t, w).Saldo)

	w = a.do(http.MethodGet, path+"/conciliacion", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[dto.ConciliacionClienteResponse](t, w).Consistente)
}

func TestClientes_EstadoCuentaPDF(t *testing.T) {
	a := newApp(t)
	admin := a.login("admin", "admin1234")
	cliente := a.cliente(50000)
	path := fmt.Sprintf("/v1/clientes/%s", cliente.ID)

	w := a.do(http.MethodPost, path+"/movimientos", admin, dto.RegistrarMovimientoRequest{Tipo: "fiado", Monto: money.New(1500)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	hoy := time.Now().UTC().Format(time.DateOnly)
	w = a.do(http.MethodGet, path+"/estado-cuenta?desde="+hoy+"&hasta="+hoy, admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestTurnos_SegundaAperturaYVerificacion(t *testing.T) {
	a := newApp(t)
	cajero := a.login("caja1", "caja1234")
	admin := a.login("admin", "admin1234")
	turnoID := a.abrirTurno(cajero)

	w := a.do(http.MethodPost, "/v1/turnos", cajero, dto.AbrirTurnoRequest{Tipo: "noche"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(http.MethodPost, "/v1/turnos/"+turnoID+"/gastos", cajero, dto.RegistrarGastoRequest{Tipo: "flete", Monto: money.New(2000)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/v1/turnos/activo", cajero, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, money.New(2000), decode[dto.TurnoResponse](t, w).Resumen.GastosEfectivo)

	w = a.do(http.MethodGet, "/v1/turnos/"+turnoID+"/verificacion", cajero, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = a.do(http.MethodGet, "/v1/turnos/"+turnoID+"/verificacion", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[dto.VerificacionTurnoResponse](t, w).Consistente)

	w = a.do(http.MethodPost, "/v1/turnos/"+turnoID+"/cierre", cajero, map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func ptr[T any](v T) *T { return &v }
