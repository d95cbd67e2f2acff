package models

import (
	"strconv"
	"time"
)

// ReturnHeader is the fixed header row of each sender tab.
var ReturnHeader = []string{
	"Fecha", "Proveedor", "Código Producto", "Descripción", "Cantidad",
	"Motivo", "N° Remito/Factura", "Fecha Factura", "UsuarioID",
}

// ReturnDraft is the in-progress return ticket assembled across
// conversation turns. Fields are zero until their step has been passed.
type ReturnDraft struct {
	Sender        string `json:"sender,omitempty"`      // Sender.Key
	Supplier      string `json:"supplier,omitempty"`    // chosen or typed freehand
	SupplierRow   int    `json:"supplierRow,omitempty"` // directory row, 0 when freehand/unknown
	SupplierEmail string `json:"supplierEmail,omitempty"`
	ProductCode   string `json:"productCode,omitempty"`
	Description   string `json:"description,omitempty"`
	Quantity      int    `json:"quantity,omitempty"`
	Reason        string `json:"reason,omitempty"`
	InvoiceNumber string `json:"invoiceNumber,omitempty"`
	InvoiceDate   string `json:"invoiceDate,omitempty"` // canonical dd/mm/yyyy
	NotifyEmail   string `json:"notifyEmail,omitempty"`
}

// SupplierDraft is the in-progress entry of the add-supplier flow.
type SupplierDraft struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// Ticket is a committed return: the immutable draft plus the commit-time
// metadata that appears on the receipt and the spreadsheet row.
type Ticket struct {
	Number    string // e.g. DEV-3f9a21c4
	Sender    Sender
	Draft     ReturnDraft
	UserID    int64
	CreatedAt time.Time
}

// Row flattens the ticket into the fixed 9-column sheet order.
func (t Ticket) Row() []string {
	return []string{
		t.CreatedAt.Format("02/01/2006 15:04"),
		t.Draft.Supplier,
		t.Draft.ProductCode,
		t.Draft.Description,
		strconv.Itoa(t.Draft.Quantity),
		t.Draft.Reason,
		t.Draft.InvoiceNumber,
		t.Draft.InvoiceDate,
		strconv.FormatInt(t.UserID, 10),
	}
}
