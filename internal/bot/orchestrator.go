package bot

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/repuestoselcholo/devolucionesbot/internal/models"
	"github.com/repuestoselcholo/devolucionesbot/internal/storage"
)

// RowAppender appends committed rows to the spreadsheet system of record.
type RowAppender interface {
	AppendRow(ctx context.Context, tab string, values []string) error
	Available() bool
}

// Renderer produces the receipt document for a committed ticket.
type Renderer interface {
	Render(t models.Ticket) ([]byte, error)
}

// LocalStore persists rendered receipts on local disk.
type LocalStore interface {
	Save(senderKey, filename string, data []byte) error
}

// CloudStore uploads receipts and returns a shareable link.
type CloudStore interface {
	Upload(ctx context.Context, folderName, filename string, data []byte) (string, error)
}

// Mailer delivers the receipt by email.
type Mailer interface {
	SendTicket(ctx context.Context, to string, t models.Ticket, pdf []byte, filename string) error
}

// Orchestrator executes the commit sequence: persist the row, render the
// receipt, store and distribute it, notify by email. Each stage's failure
// is independent and non-fatal to later stages, with two exceptions: a
// failed row write skips everything downstream (no receipt exists for an
// unrecorded return), and a failed render skips storage and mail.
type Orchestrator struct {
	sheet  RowAppender
	render Renderer
	local  LocalStore
	cloud  CloudStore
	mail   Mailer

	// NotifyOwner, when set, receives a one-line notice per commit attempt
	// for the operator chat.
	NotifyOwner func(text string)
}

// NewOrchestrator wires the commit pipeline. local, cloud and mail may be
// nil when the corresponding channel is not configured.
func NewOrchestrator(sheet RowAppender, render Renderer, local LocalStore, cloud CloudStore, mail Mailer) *Orchestrator {
	return &Orchestrator{
		sheet:  sheet,
		render: render,
		local:  local,
		cloud:  cloud,
		mail:   mail,
	}
}

// Commit runs the full pipeline for a confirmed ticket and builds the
// user-facing outcome summary. The caller resets the session afterwards
// regardless of the outcome.
func (o *Orchestrator) Commit(ctx context.Context, t models.Ticket) (Outcome, []Reply) {
	var out Outcome
	var replies []Reply

	// Stage 1: the spreadsheet row is the source of truth. Without it no
	// downstream artifact is produced.
	if !o.sheet.Available() {
		log.Printf("❌ Commit %s: sheet service unavailable", t.Number)
		o.ownerNotice(fmt.Sprintf("❌ Devolución %s NO registrada: planilla no disponible", t.Number))
		replies = append(replies, Reply{Text: "❌ La devolución NO pudo registrarse: la planilla no está disponible. Intentá más tarde."})
		return out, replies
	}
	if err := o.sheet.AppendRow(ctx, t.Sender.Key, t.Row()); err != nil {
		log.Printf("❌ Commit %s: append row failed: %v", t.Number, err)
		o.ownerNotice(fmt.Sprintf("❌ Devolución %s NO registrada: %v", t.Number, err))
		replies = append(replies, Reply{Text: "❌ La devolución NO pudo registrarse en la planilla. Intentá más tarde."})
		return out, replies
	}
	out.SheetWritten = true
	log.Printf("✅ Commit %s: row appended to %s", t.Number, t.Sender.Key)

	// Stage 2: render the receipt.
	pdf, err := o.render.Render(t)
	if err != nil {
		log.Printf("❌ Commit %s: render failed: %v", t.Number, err)
		replies = append(replies,
			Reply{Text: "✅ Devolución registrada en la planilla."},
			Reply{Text: "⚠️ No se pudo generar el ticket PDF."})
		o.ownerNotice(fmt.Sprintf("⚠️ Devolución %s registrada sin ticket PDF", t.Number))
		return out, replies
	}
	out.Rendered = true
	filename := ticketFilename(t)

	// Stage 3: store and distribute; sub-failures are independent.
	var notices []string
	if o.local != nil {
		if err := o.local.Save(t.Sender.Key, filename, pdf); err != nil {
			log.Printf("⚠️  Commit %s: local save failed: %v", t.Number, err)
			notices = append(notices, "⚠️ No se pudo guardar el ticket localmente.")
		} else {
			out.StoredLocally = true
		}
	}
	if o.cloud != nil {
		url, err := o.cloud.Upload(ctx, t.Sender.Key, filename, pdf)
		if err != nil {
			log.Printf("⚠️  Commit %s: cloud upload failed: %v", t.Number, err)
			notices = append(notices, "⚠️ Devolución registrada, pero no se pudo subir el ticket a la nube.")
		} else {
			out.CloudURL = url
		}
	}

	// Stage 4: notify by email when requested.
	if t.Draft.NotifyEmail != "" && o.mail != nil {
		if err := o.mail.SendTicket(ctx, t.Draft.NotifyEmail, t, pdf, filename); err != nil {
			log.Printf("⚠️  Commit %s: mail to %s failed: %v", t.Number, t.Draft.NotifyEmail, err)
			notices = append(notices, fmt.Sprintf("⚠️ No se pudo enviar el correo a %s.", t.Draft.NotifyEmail))
		} else {
			out.EmailSent = true
		}
	}

	replies = append(replies, Reply{
		Text:      summaryText(t, out),
		Documents: []storage.File{{Name: filename, Data: pdf}},
	})
	for _, n := range notices {
		replies = append(replies, Reply{Text: n})
	}
	o.ownerNotice(fmt.Sprintf("📦 Devolución %s registrada (%s → %s)", t.Number, t.Sender.Display, t.Draft.Supplier))
	return out, replies
}

func (o *Orchestrator) ownerNotice(text string) {
	if o.NotifyOwner != nil {
		o.NotifyOwner(text)
	}
}

func summaryText(t models.Ticket, out Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Devolución %s registrada.\n", t.Number)
	if out.CloudURL != "" {
		fmt.Fprintf(&b, "\n🔗 Ticket en la nube: %s", out.CloudURL)
	}
	if out.EmailSent {
		fmt.Fprintf(&b, "\n📧 Correo enviado a %s.", t.Draft.NotifyEmail)
	}
	return b.String()
}

var filenameSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func ticketFilename(t models.Ticket) string {
	supplier := filenameSanitizer.ReplaceAllString(t.Draft.Supplier, "_")
	return fmt.Sprintf("%s_%s_%s.pdf", t.Number, supplier, t.CreatedAt.Format("20060102_150405"))
}
