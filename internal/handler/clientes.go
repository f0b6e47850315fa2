package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"almacenpos/internal/apierror"
	"almacenpos/internal/dto"
	"almacenpos/internal/infra"
	"almacenpos/internal/model"
	"almacenpos/internal/money"
	"almacenpos/internal/repository"
	"almacenpos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type ClientesHandler struct {
	svc    service.CreditoService
	tienda string
}

func NewClientesHandler(svc service.CreditoService, tienda string) *ClientesHandler {
	return &ClientesHandler{svc: svc, tienda: tienda}
}

// Listar godoc
// @Summary      Saldos de clientes
// @Tags         clientes
// @Produce      json
// @Security     BearerAuth
// @Param        con_saldo query bool   false "Solo clientes con deuda"
// @Param        nombre    query string false "Filtro por nombre"
// @Success      200  {object} dto.ClienteListResponse
// @Router       /v1/clientes [get]
func (h *ClientesHandler) Listar(c *gin.Context) {
	var f dto.ClienteFilter
	if !bindQuery(c, &f) {
		return
	}
	resp, err := h.svc.ListarSaldos(c.Request.Context(), repository.ClienteFiltro{SoloConSaldo: f.ConSaldo, Nombre: f.Nombre})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ClientesHandler) Obtener(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerCliente(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ClientesHandler) Movimientos(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var r dto.RangoFechas
	if !bindQuery(c, &r) {
		return
	}
	desde, hasta := rango(r)
	resp, err := h.svc.Historial(c.Request.Context(), id, desde, hasta)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RegistrarMovimiento godoc
// @Summary      Registrar movimiento de cuenta corriente
// @Description  Abono, pago total o fiado manual. pago_total ignora el monto y salda la deuda.
// @Tags         clientes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                         true "UUID del cliente"
// @Param        body body dto.RegistrarMovimientoRequest true "Movimiento"
// @Success      201  {object} dto.MovimientoResponse
// @Failure      422  {object} apierror.APIError
// @Router       /v1/clientes/{id}/movimientos [post]
func (h *ClientesHandler) RegistrarMovimiento(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.RegistrarMovimientoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegistrarMovimiento(c.Request.Context(), service.RegistrarMovimientoInput{
		ClienteID:      id,
		Tipo:           model.TipoMovimiento(req.Tipo),
		Monto:          req.Monto,
		Descripcion:    req.Descripcion,
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *ClientesHandler) Autorizacion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	monto, err := money.Parse(c.Query("monto"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("monto invalido"))
		return
	}
	resp, err := h.svc.Autorizar(c.Request.Context(), id, monto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ClientesHandler) SetAutorizado(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.SetAutorizadoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SetAutorizado(c.Request.Context(), id, *req.Autorizado)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ClientesHandler) Conciliacion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Conciliar(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// EstadoCuenta renders the client's history for the period as a PDF.
func (h *ClientesHandler) EstadoCuenta(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var r dto.RangoFechas
	if !bindQuery(c, &r) {
		return
	}
	desde, hasta := rango(r)
	hist, err := h.svc.Historial(c.Request.Context(), id, desde, hasta)
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	// The PDF labels the inclusive day the user asked for, not the exclusive bound.
	hastaLabel := hasta
	if hasta != nil {
		d := hasta.AddDate(0, 0, -1)
		hastaLabel = &d
	}
	if err := infra.GenerarEstadoCuentaPDF(&buf, h.tienda, hist, desde, hastaLabel); err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("cliente_id", id.String()).Msg("estado de cuenta: render failed")
		c.JSON(http.StatusInternalServerError, apierror.New("No se pudo generar el estado de cuenta"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="estado_cuenta_%s.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
