package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/repuestoselcholo/devolucionesbot/internal/models"
	"github.com/repuestoselcholo/devolucionesbot/internal/session"
)

// Engine dispatches inbound events to the handler registered for the
// session's (flow, step) pair, persisting state after every turn.
type Engine struct {
	sessions  SessionStore
	directory Directory
	committer Committer
	records   RecordReader
	shelf     TicketShelf
	routes    map[routeKey]handlerFunc
}

type routeKey struct {
	flow string
	step string
}

type handlerFunc func(ctx context.Context, st *session.State, ev Event) ([]Reply, error)

// NewEngine wires the conversation engine with its collaborators.
func NewEngine(sessions SessionStore, dir Directory, committer Committer, records RecordReader, shelf TicketShelf) *Engine {
	e := &Engine{
		sessions:  sessions,
		directory: dir,
		committer: committer,
		records:   records,
		shelf:     shelf,
	}
	e.routes = map[routeKey]handlerFunc{
		{FlowNone, StepIdle}: e.handleIdle,

		{FlowRegistration, StepAwaitingSender}:            e.handleSender,
		{FlowRegistration, StepAwaitingSupplier}:          e.handleSupplier,
		{FlowRegistration, StepAwaitingSupplierManual}:    e.handleSupplierManual,
		{FlowRegistration, StepAwaitingProductCode}:       e.handleProductCode,
		{FlowRegistration, StepAwaitingDescription}:       e.handleDescription,
		{FlowRegistration, StepAwaitingQuantity}:          e.handleQuantity,
		{FlowRegistration, StepAwaitingReason}:            e.handleReason,
		{FlowRegistration, StepAwaitingReasonOther}:       e.handleReasonOther,
		{FlowRegistration, StepAwaitingInvoiceNumber}:     e.handleInvoiceNumber,
		{FlowRegistration, StepAwaitingInvoiceDate}:       e.handleInvoiceDate,
		{FlowRegistration, StepAwaitingEmailChoice}:       e.handleEmailChoice,
		{FlowRegistration, StepAwaitingEmailSavedChoice}:  e.handleEmailSavedChoice,
		{FlowRegistration, StepAwaitingEmailInput}:        e.handleEmailInput,
		{FlowRegistration, StepAwaitingFinalConfirmation}: e.handleFinalConfirmation,

		{FlowAddSupplier, StepAwaitingSupplierName}:    e.handleNewSupplierName,
		{FlowAddSupplier, StepAwaitingSupplierEmail}:   e.handleNewSupplierEmail,
		{FlowAddSupplier, StepAwaitingSupplierAddress}: e.handleNewSupplierAddress,
	}
	return e
}

// Handle processes one inbound event to completion. Errors returned here
// are unexpected system failures; the transport resets the session and
// reports a generic message.
func (e *Engine) Handle(ctx context.Context, ev Event) ([]Reply, error) {
	st, err := e.sessions.Get(ev.ChatID)
	if err != nil {
		return nil, err
	}

	// Cancel wins over everything and never has side effects.
	if isCancel(ev) {
		st.Reset()
		if err := e.sessions.Save(st); err != nil {
			return nil, err
		}
		return []Reply{mainMenu("Operación cancelada. ¿Qué querés hacer?")}, nil
	}

	switch ev.Text {
	case "/start":
		st.Reset()
		if err := e.sessions.Save(st); err != nil {
			return nil, err
		}
		return []Reply{mainMenu("👋 ¡Hola! Soy el Bot de Devoluciones. ¿Qué querés hacer?")}, nil
	case "/help":
		return []Reply{{Text: helpText}}, nil
	}

	h, ok := e.routes[routeKey{st.Flow, st.Step}]
	if !ok {
		// A session persisted by an older build may carry an unknown step.
		log.Printf("⚠️  Session %d at unknown state %s/%s, resetting", st.ChatID, st.Flow, st.Step)
		st.Reset()
		if err := e.sessions.Save(st); err != nil {
			return nil, err
		}
		return []Reply{mainMenu("Retomemos desde el menú principal:")}, nil
	}

	replies, err := h(ctx, st, ev)
	if err != nil {
		return nil, err
	}
	if err := e.sessions.Save(st); err != nil {
		return nil, err
	}
	return replies, nil
}

func isCancel(ev Event) bool {
	return ev.Choice == "cancelar" || ev.Text == "/cancelar" || ev.Text == "/cancel"
}

// --- idle menu ---

func (e *Engine) handleIdle(ctx context.Context, st *session.State, ev Event) ([]Reply, error) {
	switch {
	case ev.Choice == "registro":
		st.Flow = FlowRegistration
		st.Step = StepAwaitingSender
		st.Return = models.ReturnDraft{}
		return []Reply{senderMenu("¿Quién es el remitente de la devolución?")}, nil

	case ev.Choice == "ver_tickets":
		return []Reply{senderPickMenu("tickets_", "Seleccioná el remitente para ver sus tickets:")}, nil

	case strings.HasPrefix(ev.Choice, "tickets_"):
		return e.listTickets(strings.TrimPrefix(ev.Choice, "tickets_"))

	case ev.Choice == "consultar":
		return []Reply{senderPickMenu("consultar_", "Seleccioná el remitente para consultar sus devoluciones:")}, nil

	case strings.HasPrefix(ev.Choice, "consultar_"):
		return e.listReturns(ctx, strings.TrimPrefix(ev.Choice, "consultar_"))

	case ev.Choice == "ver_proveedores":
		return e.listSuppliers(ctx, 0)

	case strings.HasPrefix(ev.Choice, "provlist_"):
		page, _ := strconv.Atoi(strings.TrimPrefix(ev.Choice, "provlist_"))
		return e.listSuppliers(ctx, page)

	case ev.Choice == "agregar_proveedor":
		st.Flow = FlowAddSupplier
		st.Step = StepAwaitingSupplierName
		st.Supplier = models.SupplierDraft{}
		return []Reply{{Text: "Nombre del nuevo proveedor: (/cancelar para cancelar)"}}, nil

	case ev.Choice == "main":
		return []Reply{mainMenu("Menú principal:")}, nil

	default:
		return []Reply{mainMenu("👋 ¡Hola! Soy el Bot de Devoluciones. ¿Qué querés hacer?")}, nil
	}
}

func (e *Engine) listTickets(senderKey string) ([]Reply, error) {
	sender, ok := models.SenderByKey(senderKey)
	if !ok {
		return []Reply{mainMenu("Remitente desconocido. Menú principal:")}, nil
	}
	if e.shelf == nil {
		return []Reply{mainMenu("No hay tickets disponibles.")}, nil
	}
	files, err := e.shelf.ListRecent(sender.Key, 5)
	if err != nil {
		log.Printf("⚠️  Could not list tickets for %s: %v", sender.Key, err)
		return []Reply{mainMenu("⚠️ No se pudieron leer los tickets guardados.")}, nil
	}
	if len(files) == 0 {
		return []Reply{mainMenu("No hay tickets disponibles.")}, nil
	}
	return []Reply{
		{Text: fmt.Sprintf("Últimos tickets de %s:", sender.Display), Documents: files},
		mainMenu("Menú principal:"),
	}, nil
}

func (e *Engine) listReturns(ctx context.Context, senderKey string) ([]Reply, error) {
	sender, ok := models.SenderByKey(senderKey)
	if !ok {
		return []Reply{mainMenu("Remitente desconocido. Menú principal:")}, nil
	}
	if e.records == nil || !e.records.Available() {
		return []Reply{mainMenu("⚠️ La planilla no está disponible en este momento.")}, nil
	}
	rows, err := e.records.ReadReturns(ctx, sender.Key, 5)
	if err != nil {
		return []Reply{mainMenu("⚠️ No se pudieron leer las devoluciones.")}, nil
	}
	if len(rows) == 0 {
		return []Reply{mainMenu(fmt.Sprintf("No hay devoluciones registradas para %s.", sender.Display))}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Últimas devoluciones de %s:\n", sender.Display)
	for _, row := range rows {
		b.WriteString("\n• ")
		b.WriteString(strings.Join(row, " | "))
	}
	return []Reply{{Text: b.String()}, mainMenu("Menú principal:")}, nil
}

func (e *Engine) listSuppliers(ctx context.Context, page int) ([]Reply, error) {
	list, err := e.directory.ListAll(ctx)
	if err != nil {
		return []Reply{mainMenu("⚠️ El listado de proveedores no está disponible en este momento.")}, nil
	}
	if len(list) == 0 {
		return []Reply{mainMenu("No hay proveedores cargados.")}, nil
	}

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

	var b strings.Builder
	fmt.Fprintf(&b, "🏢 Proveedores (%d-%d de %d):\n", start+1, end, len(list))
	for _, p := range list[start:end] {
		b.WriteString("\n• " + p.Name)
		if p.Email != "" {
			b.WriteString(" — " + p.Email)
		}
	}
	r := Reply{Text: b.String()}
	if end < len(list) {
		r.Options = append(r.Options, Option{
			ID:    fmt.Sprintf("provlist_%d", page+1),
			Label: "▶️ Ver más",
		})
	}
	r.Options = append(r.Options, Option{ID: "main", Label: "↩️ Volver"})
	return []Reply{r}, nil
}

// --- registration flow ---

func (e *Engine) handleSender(ctx context.Context, st *session.State, ev Event) ([]Reply, error) {
	// Button selection only; free text never advances this step.
	key := strings.TrimPrefix(ev.Choice, "remitente_")
	sender, ok := models.SenderByKey(key)
	if ev.Choice == "" || !strings.HasPrefix(ev.Choice, "remitente_") || !ok {
		return []Reply{senderMenu("Elegí un remitente con los botones:")}, nil
	}

	st.Return.Sender = sender.Key
	list, err := e.directory.ListAll(ctx)
	if err != nil {
		// Directory down degrades to manual entry, not a crash.
		st.Step = StepAwaitingSupplierManual
		return []Reply{{Text: "⚠️ El listado de proveedores no está disponible.\nEscribí el nombre del proveedor:"}}, nil
	}
	if len(list) == 0 {
		st.Step = StepAwaitingSupplierManual
		return []Reply{{Text: "Todavía no hay proveedores cargados.\nEscribí el nombre del proveedor:"}}, nil
	}
	st.Step = StepAwaitingSupplier
	return []Reply{supplierMenu(list, 0, "Seleccioná el proveedor:")}, nil
}

func (e *Engine) handleSupplier(ctx context.Context, st *session.State, ev Event) ([]Reply, error) {
	switch {
	case ev.Choice == "prov_manual":
		st.Step = StepAwaitingSupplierManual
		return []Reply{{Text: "Escribí el nombre del proveedor: (/cancelar para cancelar)"}}, nil

	case strings.HasPrefix(ev.Choice, "provpage_"):
		page, _ := strconv.Atoi(strings.TrimPrefix(ev.Choice, "provpage_"))
		list, err := e.directory.ListAll(ctx)
		if err != nil {
			st.Step = StepAwaitingSupplierManual
			return []Reply{{Text: "⚠️ El listado de proveedores no está disponible.\nEscribí el nombre del proveedor:"}}, nil
		}
		return []Reply{supplierMenu(list, page, "Seleccioná el proveedor:")}, nil

	case strings.HasPrefix(ev.Choice, "prov_"):
		row, err := strconv.Atoi(strings.TrimPrefix(ev.Choice, "prov_"))
		if err != nil {
			break
		}
		list, lerr := e.directory.ListAll(ctx)
		if lerr != nil {
			st.Step = StepAwaitingSupplierManual
			return []Reply{{Text: "⚠️ El listado de proveedores no está disponible.\nEscribí el nombre del proveedor:"}}, nil
		}
		for _, p := range list {
			if p.RowIndex == row {
				st.Return.Supplier = p.Name
				st.Return.SupplierRow = p.RowIndex
				st.Return.SupplierEmail = p.Email
				st.Step = StepAwaitingProductCode
				return []Reply{{Text: fmt.Sprintf("Proveedor: %s\n\nIngresá el código del producto:", p.Name)}}, nil
			}
		}
	}

	list, err := e.directory.ListAll(ctx)
	if err != nil {
		st.Step = StepAwaitingSupplierManual
		return []Reply{{Text: "⚠️ El listado de proveedores no está disponible.\nEscribí el nombre del proveedor:"}}, nil
	}
	return []Reply{supplierMenu(list, 0, "Elegí un proveedor de la lista o escribilo manualmente:")}, nil
}

func (e *Engine) handleSupplierManual(ctx context.Context, st *session.State, ev Event) ([]Reply, error) {
	name, err := nonEmpty(ev.Text, "El nombre del proveedor no puede estar vacío. Escribilo de nuevo:")
	if err != nil {
		return []Reply{{Text: err.Error()}}, nil
	}

	st.Return.Supplier = name
	st.Return.SupplierRow = 0
	st.Return.SupplierEmail = ""
	// Best-effort back-reference so a saved email can be offered later.
	if match, derr := e.directory.FindByName(ctx, name); derr == nil && match != nil {
		st.Return.SupplierRow = match.RowIndex
		st.Return.SupplierEmail = match.Email
	}
	st.Step = StepAwaitingProductCode
	return []Reply{{Text: "Ingresá el código del producto:"}}, nil
}

func (e *Engine) handleProductCode(_ context.Context, st *session.State, ev Event) ([]Reply, error) {
	code, err := nonEmpty(ev.Text, "El código no puede estar vacío. Ingresá el código del producto:")
	if err != nil {
		return []Reply{{Text: err.Error()}}, nil
	}
	st.Return.ProductCode = code
	st.Step = StepAwaitingDescription
	return []Reply{{Text: "Ingresá la descripción del producto:"}}, nil
}

func (e *Engine) handleDescription(_ context.Context, st *session.State, ev Event) ([]Reply, error) {
	desc, err := nonEmpty(ev.Text, "La descripción no puede estar vacía. Ingresá la descripción:")
	if err != nil {
		return []Reply{{Text: err.Error()}}, nil
	}
	st.Return.Description = desc
	st.Step = StepAwaitingQuantity
	return []Reply{{Text: "Ingresá la cantidad a devolver:"}}, nil
}

func (e *Engine) handleQuantity(_ context.Context, st *session.State, ev Event) ([]Reply, error) {
	qty, err := parseQuantity(ev.Text)
	if err != nil {
		return []Reply{{Text: err.Error()}}, nil
	}
	st.Return.Quantity = qty
	st.Step = StepAwaitingReason
	return []Reply{reasonMenu("¿Cuál es el motivo de la devolución? Elegí una opción o escribilo:")}, nil
}

func (e *Engine) handleReason(_ context.Context, st *session.State, ev Event) ([]Reply, error) {
	switch {
	case ev.Choice == "motivo_otro":
		st.Step = StepAwaitingReasonOther
		return []Reply{{Text: "Escribí el motivo de la devolución:"}}, nil

	case strings.HasPrefix(ev.Choice, "motivo_"):
		idx, err := strconv.Atoi(strings.TrimPrefix(ev.Choice, "motivo_"))
		if err != nil || idx < 0 || idx >= len(reasonPresets) {
			return []Reply{reasonMenu("Elegí un motivo de la lista o escribilo:")}, nil
		}
		st.Return.Reason = reasonPresets[idx]

	default:
		reason, err := nonEmpty(ev.Text, "El motivo no puede estar vacío. Escribí el motivo:")
		if err != nil {
			return []Reply{reasonMenu("Elegí un motivo de la lista o escribilo:")}, nil
		}
		st.Return.Reason = reason
	}
	st.Step = StepAwaitingInvoiceNumber
	return []Reply{{Text: "Ingresá el N° de remito/factura:"}}, nil
}

func (e *Engine) handleReasonOther(_ context.Context, st *session.State, ev Event) ([]Reply, error) {
	reason, err := nonEmpty(ev.Text, "El motivo no puede estar vacío. Escribí el motivo:")
	if err != nil {
		return []Reply{{Text: err.Error()}}, nil
	}
	st.Return.Reason = reason
	st.Step = StepAwaitingInvoiceNumber
	return []Reply{{Text: "Ingresá el N° de remito/factura:"}}, nil
}

func (e *Engine) handleInvoiceNumber(_ context.Context, st *session.State, ev Event) ([]Reply, error) {
	num, err := parseInvoiceNumber(ev.Text)
	if err != nil {
		return []Reply{{Text: err.Error()}}, nil
	}
	st.Return.InvoiceNumber = num
	st.Step = StepAwaitingInvoiceDate
	return []Reply{{Text: "Ingresá la fecha de la factura (dd/mm/aaaa):"}}, nil
}

func (e *Engine) handleInvoiceDate(_ context.Context, st *session.State, ev Event) ([]Reply, error) {
	date, err := parseDate(ev.Text)
	if err != nil {
		return []Reply{{Text: err.Error()}}, nil
	}
	st.Return.InvoiceDate = date
	st.Step = StepAwaitingEmailChoice
	return []Reply{emailChoiceMenu()}, nil
}

func (e *Engine) handleEmailChoice(_ context.Context, st *session.State, ev Event) ([]Reply, error) {
	switch ev.Choice {
	case "email_no":
		st.Return.NotifyEmail = ""
		st.Step = StepAwaitingFinalConfirmation
		return []Reply{confirmationMenu(st.Return)}, nil
	case "email_si":
		if st.Return.SupplierEmail != "" {
			st.Step = StepAwaitingEmailSavedChoice
			return []Reply{emailSavedMenu(st.Return.SupplierEmail)}, nil
		}
		st.Step = StepAwaitingEmailInput
		return []Reply{{Text: "Ingresá el correo del proveedor:"}}, nil
	}
	return []Reply{emailChoiceMenu()}, nil
}

func (e *Engine) handleEmailSavedChoice(_ context.Context, st *session.State, ev Event) ([]Reply, error) {
	switch ev.Choice {
	case "email_guardado":
		st.Return.NotifyEmail = st.Return.SupplierEmail
		st.Step = StepAwaitingFinalConfirmation
		return []Reply{confirmationMenu(st.Return)}, nil
	case "email_otro":
		st.Step = StepAwaitingEmailInput
		return []Reply{{Text: "Ingresá el correo del proveedor:"}}, nil
	}
	return []Reply{emailSavedMenu(st.Return.SupplierEmail)}, nil
}

func (e *Engine) handleEmailInput(ctx context.Context, st *session.State, ev Event) ([]Reply, error) {
	email, err := parseEmail(ev.Text)
	if err != nil {
		return []Reply{{Text: err.Error()}}, nil
	}
	st.Return.NotifyEmail = email

	var notices []Reply
	switch {
	case st.Return.SupplierRow > 0 && st.Return.SupplierEmail == "":
		// Known supplier without an email on file: save the fresh one.
		if uerr := e.directory.UpdateEmail(ctx, st.Return.SupplierRow, email); uerr != nil {
			log.Printf("⚠️  Could not update supplier email (row %d): %v", st.Return.SupplierRow, uerr)
			notices = append(notices, Reply{Text: "⚠️ No se pudo guardar el correo en el directorio de proveedores."})
		}
	case st.Return.SupplierRow == 0:
		// Freehand supplier unknown to the directory: register it.
		if ierr := e.directory.Insert(ctx, models.Supplier{Name: st.Return.Supplier, Email: email}); ierr != nil {
			log.Printf("⚠️  Could not insert supplier %q: %v", st.Return.Supplier, ierr)
			notices = append(notices, Reply{Text: "⚠️ No se pudo agregar el proveedor al directorio."})
		}
	}

	st.Step = StepAwaitingFinalConfirmation
	return append(notices, confirmationMenu(st.Return)), nil
}

func (e *Engine) handleFinalConfirmation(ctx context.Context, st *session.State, ev Event) ([]Reply, error) {
	if ev.Choice != "confirmar" {
		replies := []Reply{{Text: "Usá los botones para confirmar o cancelar."}}
		return append(replies, confirmationMenu(st.Return)), nil
	}

	sender, ok := models.SenderByKey(st.Return.Sender)
	if !ok {
		// Unreachable through normal transitions; treat as corrupt state.
		st.Reset()
		return []Reply{mainMenu("⚠️ La sesión quedó en un estado inválido. Empecemos de nuevo:")}, nil
	}

	ticket := models.Ticket{
		Number:    "DEV-" + uuid.New().String()[:8],
		Sender:    sender,
		Draft:     st.Return,
		UserID:    ev.UserID,
		CreatedAt: time.Now(),
	}

	_, replies := e.committer.Commit(ctx, ticket)

	// The session is always reset after a commit attempt, no matter how
	// many stages failed.
	st.Reset()
	return append(replies, mainMenu("Menú principal:")), nil
}

// --- add-supplier flow ---

func (e *Engine) handleNewSupplierName(_ context.Context, st *session.State, ev Event) ([]Reply, error) {
	name, err := nonEmpty(ev.Text, "El nombre no puede estar vacío. Nombre del nuevo proveedor:")
	if err != nil {
		return []Reply{{Text: err.Error()}}, nil
	}
	st.Supplier.Name = name
	st.Step = StepAwaitingSupplierEmail
	return []Reply{{Text: "Correo del proveedor (o \"-\" para omitir):"}}, nil
}

func (e *Engine) handleNewSupplierEmail(_ context.Context, st *session.State, ev Event) ([]Reply, error) {
	if strings.TrimSpace(ev.Text) != skipToken {
		email, err := parseEmail(ev.Text)
		if err != nil {
			return []Reply{{Text: err.Error()}}, nil
		}
		st.Supplier.Email = email
	}
	st.Step = StepAwaitingSupplierAddress
	return []Reply{{Text: "Dirección del proveedor (o \"-\" para omitir):"}}, nil
}

func (e *Engine) handleNewSupplierAddress(ctx context.Context, st *session.State, ev Event) ([]Reply, error) {
	if strings.TrimSpace(ev.Text) != skipToken {
		addr, err := nonEmpty(ev.Text, "Ingresá la dirección o \"-\" para omitir:")
		if err != nil {
			return []Reply{{Text: err.Error()}}, nil
		}
		st.Supplier.Address = addr
	}

	entry := models.Supplier{
		Name:    st.Supplier.Name,
		Email:   st.Supplier.Email,
		Address: st.Supplier.Address,
	}
	st.Reset()
	if err := e.directory.Insert(ctx, entry); err != nil {
		log.Printf("⚠️  Could not insert supplier %q: %v", entry.Name, err)
		return []Reply{mainMenu("⚠️ No se pudo guardar el proveedor. Probá de nuevo más tarde.")}, nil
	}
	return []Reply{mainMenu(fmt.Sprintf("✅ Proveedor %s agregado.", entry.Name))}, nil
}
