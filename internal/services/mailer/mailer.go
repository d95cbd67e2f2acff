// Package mailer sends ticket notifications over SMTP with the rendered
// PDF attached. Every message is cc'd to the fixed internal address.
package mailer

import (
	"context"
	"fmt"
	"io"

	"github.com/repuestoselcholo/devolucionesbot/internal/config"
	"github.com/repuestoselcholo/devolucionesbot/internal/models"
	gomail "gopkg.in/gomail.v2"
)

// Mailer delivers tickets by email.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	cc     string
}

// New creates a mailer from SMTP configuration.
func New(cfg config.MailConfig) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		cc:     cfg.InternalCC,
	}
}

// SendTicket emails the rendered ticket to the recipient. The context is
// honored up front; gomail itself has no cancellation hook.
func (m *Mailer) SendTicket(ctx context.Context, to string, t models.Ticket, pdf []byte, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, "Repuestos El Cholo")
	msg.SetHeader("To", to)
	if m.cc != "" {
		msg.SetHeader("Cc", m.cc)
	}
	msg.SetHeader("Subject", fmt.Sprintf("Nueva devolución registrada - %s", t.Draft.Supplier))
	msg.SetBody("text/html", htmlBody(t))
	msg.Attach(filename, gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(pdf)
		return err
	}))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send ticket mail to %s: %w", to, err)
	}
	return nil
}

func htmlBody(t models.Ticket) string {
	return fmt.Sprintf(`<h2>Nuevo Ticket de Devolución</h2>
<p>Ticket: <b>%s</b></p>
<p>Remitente: <b>%s</b></p>
<p>Proveedor: <b>%s</b></p>
<p>Motivo: %s</p>
<p>Se adjunta el ticket en PDF.</p>`,
		t.Number, t.Sender.Display, t.Draft.Supplier, t.Draft.Reason)
}
