package handler

import (
	"net/http"

	"almacenpos/internal/apierror"
	"almacenpos/internal/dto"
	"almacenpos/internal/model"
	"almacenpos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type VentasHandler struct{ svc service.VentaService }

func NewVentasHandler(svc service.VentaService) *VentasHandler { return &VentasHandler{svc: svc} }

func lineas(items []dto.ItemVentaRequest) ([]service.Linea, error) {
	out := make([]service.Linea, len(items))
	for i, it := range items {
		id, err := uuid.Parse(it.ProductoID)
		if err != nil {
			return nil, err
		}
		out[i] = service.Linea{ProductoID: id, Cantidad: it.Cantidad}
	}
	return out, nil
}

// Procesar godoc
// @Summary      Procesar una venta
// @Description  Venta atómica: descuenta stock, registra el fiado si corresponde y acumula en el turno.
// @Tags         ventas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key header string false "Clave de idempotencia"
// @Param        body body dto.ProcesarVentaRequest true "Detalle de la venta"
// @Success      201  {object} dto.VentaResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/ventas [post]
func (h *VentasHandler) Procesar(c *gin.Context) {
	var req dto.ProcesarVentaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	ls, err := lineas(req.Items)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("producto_id invalido"))
		return
	}
	turnoID, err := uuid.Parse(req.TurnoID)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("turno_id invalido"))
		return
	}
	in := service.ProcesarVentaInput{
		VendedorID:     vendedorID(c),
		TurnoID:        turnoID,
		Lineas:         ls,
		MetodoPago:     model.MetodoPago(req.MetodoPago),
		MontoRecibido:  req.MontoRecibido,
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
	}
	if req.ClienteID != nil {
		cid, err := uuid.Parse(*req.ClienteID)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("cliente_id invalido"))
			return
		}
		in.ClienteID = &cid
	}

	resp, err := h.svc.Procesar(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Devolver godoc
// @Summary      Devolver productos de una venta
// @Tags         ventas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string                   true "UUID de la venta original"
// @Param        body body     dto.DevolverVentaRequest true "Ítems devueltos"
// @Success      201  {object} dto.VentaResponse
// @Router       /v1/ventas/{id}/devolucion [post]
func (h *VentasHandler) Devolver(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.DevolverVentaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	ls, err := lineas(req.Items)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("producto_id invalido"))
		return
	}

	resp, err := h.svc.Devolver(c.Request.Context(), service.DevolverVentaInput{
		VendedorID:      vendedorID(c),
		VentaOriginalID: id,
		Lineas:          ls,
		Motivo:          req.Motivo,
		IdempotencyKey:  idempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *VentasHandler) Obtener(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerVenta(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
