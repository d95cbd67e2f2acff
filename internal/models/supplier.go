package models

// SupplierTab is the spreadsheet tab holding the supplier directory.
const SupplierTab = "Proveedores"

// SupplierHeader is the fixed header row of the directory tab.
var SupplierHeader = []string{"Nombre", "Correo", "Direccion"}

// Supplier is one directory entry. RowIndex is the 1-based spreadsheet row
// (data starts at row 2) and is used for targeted email updates; it carries
// no ownership of the remote row, which may move if the sheet is edited by
// hand.
type Supplier struct {
	Name     string
	Email    string
	Address  string
	RowIndex int
}
