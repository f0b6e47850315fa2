package infra

import (
	"net/smtp"
	"testing"

	"almacenpos/internal/config"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailer_EnviarBuildsMessage(t *testing.T) {
	m := NewMailer(&config.Config{SMTPHost: "smtp.local", SMTPPort: 2525, SMTPUser: "caja@almacen.test"})
	var got *email.Email
	var gotAddr string
	m.send = func(e *email.Email, addr string, _ smtp.Auth) error {
		got, gotAddr = e, addr
		return nil
	}

	err := m.Enviar([]string{"dueno@almacen.test"}, "Cierre", "adjunto", Adjunto{Nombre: "turno.pdf", ContentType: "application/pdf", Datos: []byte("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, "smtp.local:2525", gotAddr)
	assert.Equal(t, "caja@almacen.test", got.From)
	assert.Equal(t, []string{"dueno@almacen.test"}, got.To)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "turno.pdf", got.Attachments[0].Filename)
}

func TestMailer_RequiresHost(t *testing.T) {
	m := NewMailer(&config.Config{})
	assert.False(t, m.Configurado())
	assert.Error(t, m.Enviar([]string{"x@y.z"}, "s", "b"))
}
