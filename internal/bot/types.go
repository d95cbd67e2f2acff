// Package bot implements the conversation state machine that drives the
// return-registration dialogue and the commit of finished drafts.
package bot

import (
	"context"

	"github.com/repuestoselcholo/devolucionesbot/internal/models"
	"github.com/repuestoselcholo/devolucionesbot/internal/session"
	"github.com/repuestoselcholo/devolucionesbot/internal/storage"
)

// Flows. FlowNone marks an idle chat sitting at the main menu.
const (
	FlowNone         = session.FlowNone
	FlowRegistration = "registration"
	FlowAddSupplier  = "add_supplier"
)

// Steps of the registration flow, in collection order, plus the
// add-supplier sub-flow steps.
const (
	StepIdle                      = session.StepIdle
	StepAwaitingSender            = "awaiting_sender"
	StepAwaitingSupplier          = "awaiting_supplier"
	StepAwaitingSupplierManual    = "awaiting_supplier_manual"
	StepAwaitingProductCode       = "awaiting_product_code"
	StepAwaitingDescription       = "awaiting_description"
	StepAwaitingQuantity          = "awaiting_quantity"
	StepAwaitingReason            = "awaiting_reason"
	StepAwaitingReasonOther       = "awaiting_reason_other"
	StepAwaitingInvoiceNumber     = "awaiting_invoice_number"
	StepAwaitingInvoiceDate       = "awaiting_invoice_date"
	StepAwaitingEmailChoice       = "awaiting_email_choice"
	StepAwaitingEmailSavedChoice  = "awaiting_email_saved_choice"
	StepAwaitingEmailInput        = "awaiting_email_input"
	StepAwaitingFinalConfirmation = "awaiting_final_confirmation"

	StepAwaitingSupplierName    = "awaiting_new_supplier_name"
	StepAwaitingSupplierEmail   = "awaiting_new_supplier_email"
	StepAwaitingSupplierAddress = "awaiting_new_supplier_address"
)

// Event is one inbound user action, either free text or a selected option.
type Event struct {
	ChatID   int64
	UserID   int64
	Username string
	Text     string // free text, empty for option selections
	Choice   string // selected option id, empty for free text
}

// Option is one selectable menu entry.
type Option struct {
	ID    string
	Label string
}

// Reply is one outbound message: text, an optional option menu and any
// documents to deliver inline.
type Reply struct {
	Text      string
	Options   []Option
	Documents []storage.File
}

// SessionStore is the durable conversation state contract.
type SessionStore interface {
	Get(chatID int64) (*session.State, error)
	Save(st *session.State) error
	Clear(chatID int64) error
}

// Directory is the supplier directory contract.
type Directory interface {
	ListAll(ctx context.Context) ([]models.Supplier, error)
	FindByName(ctx context.Context, name string) (*models.Supplier, error)
	Insert(ctx context.Context, s models.Supplier) error
	UpdateEmail(ctx context.Context, rowIndex int, email string) error
}

// Committer finalizes a confirmed draft. It reports the per-stage outcome
// and the user-facing summary replies.
type Committer interface {
	Commit(ctx context.Context, t models.Ticket) (Outcome, []Reply)
}

// RecordReader reads committed return rows for the query menu.
type RecordReader interface {
	ReadReturns(ctx context.Context, tab string, limit int) ([][]string, error)
	Available() bool
}

// TicketShelf lists recently generated receipt files for a sender.
type TicketShelf interface {
	ListRecent(senderKey string, n int) ([]storage.File, error)
}

// Outcome records the independent results of one commit attempt. It is
// only used to build the user-facing summary and is never persisted.
type Outcome struct {
	SheetWritten  bool
	Rendered      bool
	StoredLocally bool
	CloudURL      string
	EmailSent     bool
}
