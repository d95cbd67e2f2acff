package bot

import (
	"fmt"
	"strings"

	"github.com/repuestoselcholo/devolucionesbot/internal/models"
)

// Skip token for optional fields in the add-supplier flow.
const skipToken = "-"

// Preset return reasons offered at the reason step; free text is accepted
// there as well.
var reasonPresets = []string{
	"Producto defectuoso",
	"Producto equivocado",
	"Sobrante de pedido",
}

// supplierPageSize is the directory page size for selection menus.
const supplierPageSize = 10

func mainMenu(text string) Reply {
	return Reply{
		Text: text,
		Options: []Option{
			{ID: "registro", Label: "📦 Registrar devolución"},
			{ID: "ver_tickets", Label: "🎟️ Ver tickets"},
			{ID: "consultar", Label: "🔍 Consultar devoluciones"},
			{ID: "ver_proveedores", Label: "🏢 Ver proveedores"},
			{ID: "agregar_proveedor", Label: "➕ Agregar proveedor"},
		},
	}
}

func senderMenu(text string) Reply {
	r := Reply{Text: text}
	for i, s := range models.Senders() {
		r.Options = append(r.Options, Option{
			ID:    "remitente_" + s.Key,
			Label: fmt.Sprintf("%d️⃣ %s (CUIT: %s)", i+1, s.Display, s.CUIT),
		})
	}
	r.Options = append(r.Options, Option{ID: "cancelar", Label: "❌ Cancelar"})
	return r
}

func supplierMenu(list []models.Supplier, page int, text string) Reply {
	r := Reply{Text: text}
	// Callback data is user-controlled; out-of-range pages fall back to
	// the first page instead of indexing past the list.
	if page < 0 || page*supplierPageSize >= len(list) {
		page = 0
	}
	start := page * supplierPageSize
	end := start + supplierPageSize
	if end > len(list) {
		end = len(list)
	}
	for _, p := range list[start:end] {
		r.Options = append(r.Options, Option{
			ID:    fmt.Sprintf("prov_%d", p.RowIndex),
			Label: p.Name,
		})
	}
	if end < len(list) {
		r.Options = append(r.Options, Option{
			ID:    fmt.Sprintf("provpage_%d", page+1),
			Label: "▶️ Ver más",
		})
	}
	r.Options = append(r.Options,
		Option{ID: "prov_manual", Label: "✍️ Escribir manualmente"},
		Option{ID: "cancelar", Label: "❌ Cancelar"},
	)
	return r
}

func reasonMenu(text string) Reply {
	r := Reply{Text: text}
	for i, preset := range reasonPresets {
		r.Options = append(r.Options, Option{
			ID:    fmt.Sprintf("motivo_%d", i),
			Label: preset,
		})
	}
	r.Options = append(r.Options,
		Option{ID: "motivo_otro", Label: "Otro"},
		Option{ID: "cancelar", Label: "❌ Cancelar"},
	)
	return r
}

func emailChoiceMenu() Reply {
	return Reply{
		Text: "¿Querés enviar el ticket por correo al proveedor?",
		Options: []Option{
			{ID: "email_si", Label: "📧 Sí"},
			{ID: "email_no", Label: "🚫 No"},
			{ID: "cancelar", Label: "❌ Cancelar"},
		},
	}
}

func emailSavedMenu(saved string) Reply {
	return Reply{
		Text: fmt.Sprintf("El proveedor tiene un correo guardado: %s", saved),
		Options: []Option{
			{ID: "email_guardado", Label: "✅ Usar el guardado"},
			{ID: "email_otro", Label: "✍️ Ingresar otro"},
			{ID: "cancelar", Label: "❌ Cancelar"},
		},
	}
}

func confirmationMenu(d models.ReturnDraft) Reply {
	sender, _ := models.SenderByKey(d.Sender)
	email := d.NotifyEmail
	if email == "" {
		email = "(no se envía)"
	}

	var b strings.Builder
	b.WriteString("📋 Resumen de la devolución:\n\n")
	fmt.Fprintf(&b, "Remitente: %s\n", sender.Display)
	fmt.Fprintf(&b, "Proveedor: %s\n", d.Supplier)
	fmt.Fprintf(&b, "Código: %s\n", d.ProductCode)
	fmt.Fprintf(&b, "Descripción: %s\n", d.Description)
	fmt.Fprintf(&b, "Cantidad: %d\n", d.Quantity)
	fmt.Fprintf(&b, "Motivo: %s\n", d.Reason)
	fmt.Fprintf(&b, "N° Remito/Factura: %s\n", d.InvoiceNumber)
	fmt.Fprintf(&b, "Fecha factura: %s\n", d.InvoiceDate)
	fmt.Fprintf(&b, "Correo: %s\n", email)
	b.WriteString("\n¿Confirmás el registro?")

	return Reply{
		Text: b.String(),
		Options: []Option{
			{ID: "confirmar", Label: "✅ Confirmar"},
			{ID: "cancelar", Label: "❌ Cancelar"},
		},
	}
}

func senderPickMenu(prefix, text string) Reply {
	r := Reply{Text: text}
	for _, s := range models.Senders() {
		r.Options = append(r.Options, Option{ID: prefix + s.Key, Label: s.Display})
	}
	r.Options = append(r.Options, Option{ID: "main", Label: "↩️ Volver"})
	return r
}

const helpText = `Comandos disponibles:
/start - Mostrar menú principal
/help - Mostrar esta ayuda
/cancelar - Cancelar la operación en curso`
