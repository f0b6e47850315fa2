package service_test

import (
	"testing"

	"almacenpos/internal/config"
	"almacenpos/internal/dto"
	"almacenpos/internal/model"
	"almacenpos/internal/repository/memory"
	"almacenpos/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuth(t *testing.T) service.AuthService {
	t.Helper()
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpirationHours: 1, JWTRefreshHours: 2}
	return service.NewAuthService(memory.New().Repositories().Usuarios, cfg)
}

func TestAuth_LoginAndRefresh(t *testing.T) {
	svc := newAuth(t)
	f := newFixture(t)

	_, err := svc.CrearUsuario(f.ctx, dto.CrearUsuarioRequest{Username: "ana", Nombre: "Ana", Password: "segura123", Rol: model.RolCajero})
	require.NoError(t, err)

	resp, err := svc.Login(f.ctx, dto.LoginRequest{Username: "ana", Password: "segura123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, 3600, resp.ExpiresIn)
	assert.Equal(t, model.RolCajero, resp.User.Rol)

	again, err := svc.Refresh(f.ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, again.User.ID)
}

func TestAuth_BadCredentials(t *testing.T) {
	svc := newAuth(t)
	f := newFixture(t)
	_, err := svc.CrearUsuario(f.ctx, dto.CrearUsuarioRequest{Username: "ana", Nombre: "Ana", Password: "segura123", Rol: model.RolCajero})
	require.NoError(t, err)

	_, err = svc.Login(f.ctx, dto.LoginRequest{Username: "ana", Password: "otra-clave"})
	assert.ErrorIs(t, err, service.ErrCredencialesInvalidas)
	_, err = svc.Login(f.ctx, dto.LoginRequest{Username: "nadie", Password: "segura123"})
	assert.ErrorIs(t, err, service.ErrCredencialesInvalidas)
	_, err = svc.Refresh(f.ctx, "no-es-un-token")
	assert.ErrorIs(t, err, service.ErrCredencialesInvalidas)
}
