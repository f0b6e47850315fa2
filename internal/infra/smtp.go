package infra

import (
	"bytes"
	"fmt"
	"net/smtp"

	"almacenpos/internal/config"

	"github.com/jordan-wright/email"
)

// Adjunto is an in-memory attachment.
type Adjunto struct {
	Nombre      string
	ContentType string
	Datos       []byte
}

// Mailer wraps SMTP configuration for sending reports with PDF attachments.
type Mailer struct {
	from     string
	host     string
	user     string
	password string
	addr     string
	send     func(e *email.Email, addr string, a smtp.Auth) error
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		from:     cfg.SMTPUser,
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		send:     func(e *email.Email, addr string, a smtp.Auth) error { return e.Send(addr, a) },
	}
}

// Configurado reports whether an SMTP host was provided.
func (m *Mailer) Configurado() bool { return m.host != "" }

// Enviar sends a plain-text message with optional attachments.
func (m *Mailer) Enviar(to []string, subject, body string, adjuntos ...Adjunto) error {
	if !m.Configurado() {
		return fmt.Errorf("mailer: SMTP_HOST no configurado")
	}
	e := email.NewEmail()
	e.From = m.from
	e.To = to
	e.Subject = subject
	e.Text = []byte(body)

	for _, a := range adjuntos {
		if _, err := e.Attach(bytes.NewReader(a.Datos), a.Nombre, a.ContentType); err != nil {
			return fmt.Errorf("mailer: attach %s: %w", a.Nombre, err)
		}
	}

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	return m.send(e, m.addr, auth)
}
