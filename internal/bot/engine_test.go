package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/repuestoselcholo/devolucionesbot/internal/models"
	"github.com/repuestoselcholo/devolucionesbot/internal/session"
	"github.com/repuestoselcholo/devolucionesbot/internal/storage"
)

// --- fakes ---

type memStore struct {
	states map[int64]*session.State
}

func newMemStore() *memStore {
	return &memStore{states: map[int64]*session.State{}}
}

func (s *memStore) Get(chatID int64) (*session.State, error) {
	if st, ok := s.states[chatID]; ok {
		cp := *st
		return &cp, nil
	}
	return &session.State{ChatID: chatID, Flow: FlowNone, Step: StepIdle}, nil
}

func (s *memStore) Save(st *session.State) error {
	cp := *st
	s.states[st.ChatID] = &cp
	return nil
}

func (s *memStore) Clear(chatID int64) error {
	return s.Save(&session.State{ChatID: chatID, Flow: FlowNone, Step: StepIdle})
}

type fakeDirectory struct {
	suppliers []models.Supplier
	err       error
	inserted  []models.Supplier
	updated   map[int]string
}

func (d *fakeDirectory) ListAll(context.Context) ([]models.Supplier, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.suppliers, nil
}

func (d *fakeDirectory) FindByName(_ context.Context, name string) (*models.Supplier, error) {
	if d.err != nil {
		return nil, d.err
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	for i := range d.suppliers {
		if strings.ToLower(d.suppliers[i].Name) == needle {
			return &d.suppliers[i], nil
		}
	}
	for i := range d.suppliers {
		if strings.Contains(strings.ToLower(d.suppliers[i].Name), needle) {
			return &d.suppliers[i], nil
		}
	}
	return nil, nil
}

func (d *fakeDirectory) Insert(_ context.Context, s models.Supplier) error {
	if d.err != nil {
		return d.err
	}
	d.inserted = append(d.inserted, s)
	return nil
}

func (d *fakeDirectory) UpdateEmail(_ context.Context, rowIndex int, email string) error {
	if d.err != nil {
		return d.err
	}
	if d.updated == nil {
		d.updated = map[int]string{}
	}
	d.updated[rowIndex] = email
	return nil
}

type fakeCommitter struct {
	tickets []models.Ticket
}

func (c *fakeCommitter) Commit(_ context.Context, t models.Ticket) (Outcome, []Reply) {
	c.tickets = append(c.tickets, t)
	return Outcome{SheetWritten: true}, []Reply{{Text: "✅ Devolución registrada."}}
}

type fakeShelf struct {
	files map[string][]storage.File
	err   error
}

func (s *fakeShelf) ListRecent(senderKey string, n int) ([]storage.File, error) {
	if s.err != nil {
		return nil, s.err
	}
	files := s.files[senderKey]
	if len(files) > n {
		files = files[:n]
	}
	return files, nil
}

type fakeRecords struct {
	rows      map[string][][]string
	available bool
}

func (r *fakeRecords) ReadReturns(_ context.Context, tab string, limit int) ([][]string, error) {
	rows := r.rows[tab]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *fakeRecords) Available() bool { return r.available }

type fixture struct {
	engine    *Engine
	store     *memStore
	directory *fakeDirectory
	committer *fakeCommitter
}

func newFixture(dir *fakeDirectory) *fixture {
	store := newMemStore()
	committer := &fakeCommitter{}
	engine := NewEngine(store, dir, committer,
		&fakeRecords{available: true},
		&fakeShelf{files: map[string][]storage.File{}})
	return &fixture{engine: engine, store: store, directory: dir, committer: committer}
}

const chatID = int64(777)

func (f *fixture) text(t *testing.T, s string) []Reply {
	t.Helper()
	replies, err := f.engine.Handle(context.Background(), Event{ChatID: chatID, UserID: 42, Text: s})
	if err != nil {
		t.Fatalf("Handle(text %q) failed: %v", s, err)
	}
	return replies
}

func (f *fixture) choose(t *testing.T, id string) []Reply {
	t.Helper()
	replies, err := f.engine.Handle(context.Background(), Event{ChatID: chatID, UserID: 42, Choice: id})
	if err != nil {
		t.Fatalf("Handle(choice %q) failed: %v", id, err)
	}
	return replies
}

func (f *fixture) state(t *testing.T) *session.State {
	t.Helper()
	st, err := f.store.Get(chatID)
	if err != nil {
		t.Fatalf("Get state failed: %v", err)
	}
	return st
}

// startRegistration drives the flow up to the quantity step with a manual
// supplier, for tests that only care about later steps.
func (f *fixture) startRegistration(t *testing.T) {
	t.Helper()
	f.choose(t, "registro")
	f.choose(t, "remitente_ElCholo")
	if st := f.state(t); st.Step == StepAwaitingSupplier {
		f.choose(t, "prov_manual")
	}
	f.text(t, "Bolts Inc")
	f.text(t, "X1")
	f.text(t, "broken")
}

// --- tests ---

func TestRegistrationHappyPath(t *testing.T) {
	f := newFixture(&fakeDirectory{})

	f.choose(t, "registro")
	if st := f.state(t); st.Flow != FlowRegistration || st.Step != StepAwaitingSender {
		t.Fatalf("after registro: %s/%s", st.Flow, st.Step)
	}

	// Empty directory degrades straight to manual supplier entry.
	f.choose(t, "remitente_ElCholo")
	if st := f.state(t); st.Step != StepAwaitingSupplierManual {
		t.Fatalf("after sender: step %s", st.Step)
	}

	f.text(t, "Bolts Inc")
	f.text(t, "X1")
	f.text(t, "broken")
	f.text(t, "3")
	f.text(t, "Defective")
	f.text(t, "INV-001")
	f.text(t, "15/03/2024")
	f.choose(t, "email_no")

	st := f.state(t)
	if st.Step != StepAwaitingFinalConfirmation {
		t.Fatalf("before confirm: step %s", st.Step)
	}

	f.choose(t, "confirmar")

	if len(f.committer.tickets) != 1 {
		t.Fatalf("expected 1 committed ticket, got %d", len(f.committer.tickets))
	}
	ticket := f.committer.tickets[0]
	row := ticket.Row()
	want := []string{"Bolts Inc", "X1", "broken", "3", "Defective", "INV-001", "15/03/2024", "42"}
	if len(row) != 9 {
		t.Fatalf("row has %d columns, want 9", len(row))
	}
	for i, v := range want {
		if row[i+1] != v {
			t.Errorf("row[%d] = %q, want %q", i+1, row[i+1], v)
		}
	}
	if ticket.Sender.Key != "ElCholo" {
		t.Errorf("sender = %s, want ElCholo", ticket.Sender.Key)
	}
	if ticket.Draft.NotifyEmail != "" {
		t.Errorf("notify email should be unset, got %q", ticket.Draft.NotifyEmail)
	}

	// Commit always returns the session to idle.
	if st := f.state(t); st.Flow != FlowNone || st.Step != StepIdle {
		t.Errorf("after commit: %s/%s, want idle", st.Flow, st.Step)
	}
}

func TestQuantityReprompt(t *testing.T) {
	f := newFixture(&fakeDirectory{})
	f.startRegistration(t)

	before := f.state(t)
	for _, input := range []string{"abc", "0", "-4", "3.5", ""} {
		replies := f.text(t, input)
		if len(replies) == 0 {
			t.Fatalf("quantity %q: expected a corrective reply", input)
		}
		st := f.state(t)
		if st.Step != StepAwaitingQuantity {
			t.Errorf("quantity %q advanced to %s", input, st.Step)
		}
		if st.Return != before.Return {
			t.Errorf("quantity %q mutated the draft: %+v", input, st.Return)
		}
	}

	f.text(t, "3")
	if st := f.state(t); st.Step != StepAwaitingReason {
		t.Errorf("valid quantity did not advance: %s", st.Step)
	}
}

func TestSenderRequiresButton(t *testing.T) {
	f := newFixture(&fakeDirectory{})
	f.choose(t, "registro")

	// Free text must never advance the sender step.
	f.text(t, "El Cholo Repuestos")
	if st := f.state(t); st.Step != StepAwaitingSender {
		t.Errorf("free text advanced sender step to %s", st.Step)
	}
	f.choose(t, "remitente_Nadie")
	if st := f.state(t); st.Step != StepAwaitingSender {
		t.Errorf("unknown sender advanced step to %s", st.Step)
	}
}

func TestSupplierSelectionFromDirectory(t *testing.T) {
	dir := &fakeDirectory{suppliers: []models.Supplier{
		{Name: "Acme", Email: "ventas@acme.com", RowIndex: 2},
		{Name: "Bulonera Sur", RowIndex: 3},
	}}
	f := newFixture(dir)

	f.choose(t, "registro")
	f.choose(t, "remitente_Ramirez")
	if st := f.state(t); st.Step != StepAwaitingSupplier {
		t.Fatalf("step = %s, want %s", st.Step, StepAwaitingSupplier)
	}

	f.choose(t, "prov_2")
	st := f.state(t)
	if st.Return.Supplier != "Acme" || st.Return.SupplierRow != 2 || st.Return.SupplierEmail != "ventas@acme.com" {
		t.Errorf("supplier selection: %+v", st.Return)
	}
	if st.Step != StepAwaitingProductCode {
		t.Errorf("step = %s, want %s", st.Step, StepAwaitingProductCode)
	}
}

func TestSavedEmailFlow(t *testing.T) {
	dir := &fakeDirectory{suppliers: []models.Supplier{
		{Name: "Acme", Email: "ventas@acme.com", RowIndex: 2},
	}}
	f := newFixture(dir)

	f.choose(t, "registro")
	f.choose(t, "remitente_ElCholo")
	f.choose(t, "prov_2")
	f.text(t, "X1")
	f.text(t, "roto")
	f.text(t, "1")
	f.choose(t, "motivo_0")
	f.text(t, "R-9")
	f.text(t, "01/08/2025")

	f.choose(t, "email_si")
	if st := f.state(t); st.Step != StepAwaitingEmailSavedChoice {
		t.Fatalf("step = %s, want saved-email choice", st.Step)
	}
	f.choose(t, "email_guardado")

	st := f.state(t)
	if st.Return.NotifyEmail != "ventas@acme.com" {
		t.Errorf("notify email = %q", st.Return.NotifyEmail)
	}
	if st.Step != StepAwaitingFinalConfirmation {
		t.Errorf("step = %s", st.Step)
	}
	if len(dir.updated) != 0 || len(dir.inserted) != 0 {
		t.Errorf("saved email must not touch the directory: %v %v", dir.updated, dir.inserted)
	}
}

func TestFreshEmailUpdatesDirectory(t *testing.T) {
	dir := &fakeDirectory{suppliers: []models.Supplier{
		{Name: "Bulonera Sur", RowIndex: 3}, // no email on file
	}}
	f := newFixture(dir)

	f.choose(t, "registro")
	f.choose(t, "remitente_ElCholo")
	f.choose(t, "prov_3")
	f.text(t, "X1")
	f.text(t, "roto")
	f.text(t, "1")
	f.choose(t, "motivo_0")
	f.text(t, "R-9")
	f.text(t, "01/08/2025")
	f.choose(t, "email_si")

	if st := f.state(t); st.Step != StepAwaitingEmailInput {
		t.Fatalf("step = %s, want email input", st.Step)
	}
	f.text(t, "no-es-un-correo")
	if st := f.state(t); st.Step != StepAwaitingEmailInput {
		t.Fatalf("invalid email advanced to %s", st.Step)
	}
	f.text(t, "compras@bulonera.com.ar")

	if got := dir.updated[3]; got != "compras@bulonera.com.ar" {
		t.Errorf("directory email update = %q", got)
	}
}

func TestFreshEmailInsertsUnknownSupplier(t *testing.T) {
	f := newFixture(&fakeDirectory{})
	f.startRegistration(t)
	f.text(t, "2")
	f.choose(t, "motivo_1")
	f.text(t, "R-1")
	f.text(t, "02/02/2024")
	f.choose(t, "email_si")
	f.text(t, "ventas@boltsinc.com")

	dir := f.directory
	if len(dir.inserted) != 1 || dir.inserted[0].Name != "Bolts Inc" || dir.inserted[0].Email != "ventas@boltsinc.com" {
		t.Errorf("expected freehand supplier insertion, got %+v", dir.inserted)
	}
}

func TestCancelIsIdempotentAtEveryDepth(t *testing.T) {
	steps := []func(f *fixture){
		func(f *fixture) {},
		func(f *fixture) { f.choose(t, "registro") },
		func(f *fixture) {
			f.choose(t, "registro")
			f.choose(t, "remitente_Tejada")
		},
		func(f *fixture) {
			f.startRegistration(t)
			f.text(t, "5")
			f.choose(t, "motivo_0")
			f.text(t, "R-77")
			f.text(t, "10/10/2024")
			f.choose(t, "email_no")
		},
	}

	for i, fill := range steps {
		f := newFixture(&fakeDirectory{})
		fill(f)
		f.choose(t, "cancelar")

		st := f.state(t)
		if st.Flow != FlowNone || st.Step != StepIdle {
			t.Errorf("case %d: after cancel state is %s/%s", i, st.Flow, st.Step)
		}
		if st.Return != (models.ReturnDraft{}) {
			t.Errorf("case %d: draft not emptied: %+v", i, st.Return)
		}
		if len(f.committer.tickets) != 0 {
			t.Errorf("case %d: cancel committed a ticket", i)
		}
	}
}

func TestDirectoryDownDegradesToManualEntry(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("proveedores sheet down")}
	f := newFixture(dir)

	f.choose(t, "registro")
	replies := f.choose(t, "remitente_ElCholo")

	if st := f.state(t); st.Step != StepAwaitingSupplierManual {
		t.Fatalf("step = %s, want manual entry", st.Step)
	}
	if len(replies) == 0 || !strings.Contains(replies[0].Text, "no está disponible") {
		t.Errorf("expected a feature-disabled notice, got %+v", replies)
	}

	// The flow continues normally after the degradation.
	f.text(t, "Bulonera Sur")
	if st := f.state(t); st.Step != StepAwaitingProductCode {
		t.Errorf("step = %s", st.Step)
	}
}

func TestAddSupplierFlowWithSkips(t *testing.T) {
	dir := &fakeDirectory{}
	f := newFixture(dir)

	f.choose(t, "agregar_proveedor")
	f.text(t, "Frenos Norte")
	f.text(t, "-")
	f.text(t, "-")

	if len(dir.inserted) != 1 {
		t.Fatalf("expected 1 insertion, got %d", len(dir.inserted))
	}
	got := dir.inserted[0]
	if got.Name != "Frenos Norte" || got.Email != "" || got.Address != "" {
		t.Errorf("inserted = %+v", got)
	}
	if st := f.state(t); st.Flow != FlowNone || st.Step != StepIdle {
		t.Errorf("after add supplier: %s/%s", st.Flow, st.Step)
	}
}

func TestAddSupplierFlowFull(t *testing.T) {
	dir := &fakeDirectory{}
	f := newFixture(dir)

	f.choose(t, "agregar_proveedor")
	f.text(t, "Frenos Norte")
	f.text(t, "ventas@frenosnorte.com")
	f.text(t, "Av. Siempreviva 742")

	if len(dir.inserted) != 1 {
		t.Fatalf("expected 1 insertion, got %d", len(dir.inserted))
	}
	got := dir.inserted[0]
	if got.Email != "ventas@frenosnorte.com" || got.Address != "Av. Siempreviva 742" {
		t.Errorf("inserted = %+v", got)
	}
}

func TestSupplierPagingRejectsCraftedPageNumbers(t *testing.T) {
	suppliers := make([]models.Supplier, 0, 12)
	for i := 0; i < 12; i++ {
		suppliers = append(suppliers, models.Supplier{
			Name:     fmt.Sprintf("Proveedor %02d", i),
			RowIndex: i + 2,
		})
	}
	f := newFixture(&fakeDirectory{suppliers: suppliers})

	f.choose(t, "registro")
	f.choose(t, "remitente_ElCholo")

	// Stale or spoofed callback data must never crash the turn.
	for _, page := range []string{"provpage_-1", "provpage_-999", "provpage_99", "provpage_x"} {
		replies := f.choose(t, page)
		if len(replies) == 0 || len(replies[0].Options) == 0 {
			t.Errorf("%s: expected the supplier menu again, got %+v", page, replies)
		}
		if st := f.state(t); st.Step != StepAwaitingSupplier {
			t.Errorf("%s: step = %s", page, st.Step)
		}
	}

	// Valid paging still works after the bad inputs.
	f.choose(t, "prov_13")
	if st := f.state(t); st.Return.Supplier != "Proveedor 11" {
		t.Errorf("supplier = %q", st.Return.Supplier)
	}
}

func TestSupplierListingRejectsCraftedPageNumbers(t *testing.T) {
	suppliers := make([]models.Supplier, 0, 12)
	for i := 0; i < 12; i++ {
		suppliers = append(suppliers, models.Supplier{
			Name:     fmt.Sprintf("Proveedor %02d", i),
			RowIndex: i + 2,
		})
	}
	f := newFixture(&fakeDirectory{suppliers: suppliers})

	for _, page := range []string{"provlist_-1", "provlist_-999", "provlist_99"} {
		replies := f.choose(t, page)
		if len(replies) == 0 || !strings.Contains(replies[0].Text, "Proveedor 00") {
			t.Errorf("%s: expected the first supplier page, got %+v", page, replies)
		}
	}
}

func TestListTicketsDistinguishesErrorsFromEmpty(t *testing.T) {
	shelf := &fakeShelf{err: errors.New("disk gone")}
	engine := NewEngine(newMemStore(), &fakeDirectory{}, &fakeCommitter{},
		&fakeRecords{available: true}, shelf)
	ev := Event{ChatID: chatID, UserID: 42, Choice: "tickets_ElCholo"}

	replies, err := engine.Handle(context.Background(), ev)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(replies) == 0 || !strings.Contains(replies[0].Text, "No se pudieron leer") {
		t.Errorf("shelf error reply = %+v", replies)
	}

	shelf.err = nil
	replies, err = engine.Handle(context.Background(), ev)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(replies) == 0 || !strings.Contains(replies[0].Text, "No hay tickets disponibles") {
		t.Errorf("empty shelf reply = %+v", replies)
	}

	shelf.files = map[string][]storage.File{
		"ElCholo": {{Name: "t.pdf", Data: []byte("%PDF")}},
	}
	replies, err = engine.Handle(context.Background(), ev)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(replies) == 0 || len(replies[0].Documents) != 1 {
		t.Errorf("stocked shelf reply = %+v", replies)
	}
}

func TestUnknownPersistedStateResets(t *testing.T) {
	f := newFixture(&fakeDirectory{})
	// Simulate a row written by an older build.
	f.store.Save(&session.State{ChatID: chatID, Flow: "registration", Step: "awaiting_fax_number"})

	f.text(t, "hola")
	if st := f.state(t); st.Flow != FlowNone || st.Step != StepIdle {
		t.Errorf("unknown state not reset: %s/%s", st.Flow, st.Step)
	}
}
