package handler

import (
	"net/http"

	"almacenpos/internal/dto"
	"almacenpos/internal/model"
	"almacenpos/internal/service"

	"github.com/gin-gonic/gin"
)

type TurnosHandler struct {
	svc    service.TurnoService
	ventas service.VentaService
}

func NewTurnosHandler(svc service.TurnoService, ventas service.VentaService) *TurnosHandler {
	return &TurnosHandler{svc: svc, ventas: ventas}
}

// Abrir godoc
// @Summary      Abrir turno
// @Description  Abre un turno para el vendedor autenticado. Un vendedor tiene a lo sumo un turno abierto.
// @Tags         turnos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.AbrirTurnoRequest true "Tipo y monto inicial"
// @Success      201  {object} dto.TurnoResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/turnos [post]
func (h *TurnosHandler) Abrir(c *gin.Context) {
	var req dto.AbrirTurnoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Abrir(c.Request.Context(), vendedorID(c), model.TipoTurno(req.Tipo), req.MontoInicial)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *TurnosHandler) Activo(c *gin.Context) {
	resp, err := h.svc.TurnoActivo(c.Request.Context(), vendedorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TurnosHandler) Historial(c *gin.Context) {
	var f dto.TurnoFilter
	if !bindQuery(c, &f) {
		return
	}
	resp, err := h.svc.Historial(c.Request.Context(), f.Page, f.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TurnosHandler) Obtener(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerResumen(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TurnosHandler) Ventas(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.ventas.ListarVentasTurno(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TurnosHandler) RegistrarGasto(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.RegistrarGastoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	efectivo := true
	if req.PagadoConEfectivo != nil {
		efectivo = *req.PagadoConEfectivo
	}
	resp, err := h.svc.RegistrarGasto(c.Request.Context(), id, service.RegistrarGastoInput{
		Tipo:              model.TipoGasto(req.Tipo),
		Monto:             req.Monto,
		Proveedor:         req.Proveedor,
		Descripcion:       req.Descripcion,
		PagadoConEfectivo: efectivo,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Cerrar godoc
// @Summary      Cerrar turno
// @Description  Arqueo de caja: compara el efectivo contado con el esperado y cierra el turno. Un turno cerrado no se reabre.
// @Tags         turnos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                 true "UUID del turno"
// @Param        body body dto.CerrarTurnoRequest true "Conteo de efectivo"
// @Success      200  {object} dto.TurnoResponse
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.APIError
// @Router       /v1/turnos/{id}/cierre [post]
func (h *TurnosHandler) Cerrar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.CerrarTurnoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Cerrar(c.Request.Context(), id, *req.EfectivoContado, req.Observaciones)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TurnosHandler) Verificar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Verificar(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
