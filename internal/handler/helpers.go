package handler

import (
	"errors"
	"net/http"
	"reflect"
	"time"

	"almacenpos/internal/apierror"
	"almacenpos/internal/dto"
	"almacenpos/internal/middleware"
	"almacenpos/internal/money"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

func init() {
	// Money is an int64 underneath; expose it as one so numeric tags
	// (min=0, gt=0) apply.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(money.Money); ok {
			return v.Int64()
		}
		return nil
	}, money.Money(0))
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	return validateStruct(c, req)
}

// bindQuery is bindAndValidate for query-string filters.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Parametros invalidos: "+err.Error()))
		return false
	}
	return validateStruct(c, req)
}

func validateStruct(c *gin.Context, req interface{}) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return false
	}
	fields := make(map[string]string)
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
	return false
}

// respondError writes the status and envelope for a service error.
func respondError(c *gin.Context, err error) {
	status, body := apierror.FromError(err)
	c.JSON(status, body)
}

func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return uuid.Nil, false
	}
	return id, true
}

// vendedorID is the authenticated seller. JWTAuth already rejected tokens
// whose user id is not a uuid.
func vendedorID(c *gin.Context) uuid.UUID {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return uuid.Nil
	}
	id, _ := claims.VendedorID()
	return id
}

// idempotencyKey prefers the Idempotency-Key header over the body field.
func idempotencyKey(c *gin.Context, body *string) *string {
	if h := c.GetHeader("Idempotency-Key"); h != "" {
		return &h
	}
	if body != nil && *body != "" {
		return body
	}
	return nil
}

// rango converts inclusive YYYY-MM-DD bounds into [desde, hasta+1d).
func rango(r dto.RangoFechas) (desde, hasta *time.Time) {
	if r.Desde != "" {
		d, _ := time.Parse(time.DateOnly, r.Desde)
		desde = &d
	}
	if r.Hasta != "" {
		h, _ := time.Parse(time.DateOnly, r.Hasta)
		h = h.AddDate(0, 0, 1)
		hasta = &h
	}
	return desde, hasta
}
