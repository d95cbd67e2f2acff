// Package printer renders return-ticket PDFs.
package printer

import (
	"bytes"
	"fmt"
	"os"

	"github.com/jung-kurt/gofpdf"
	"github.com/repuestoselcholo/devolucionesbot/internal/models"
	"github.com/skip2/go-qrcode"
)

// Brand colors of the printed ticket.
var (
	brandRed  = [3]int{200, 16, 46}
	brandBlue = [3]int{11, 59, 112}
)

// Generator renders tickets. It is pure apart from reading the static logo
// asset; a missing logo degrades to a text placeholder.
type Generator struct {
	logoPath string
}

// NewGenerator creates a ticket renderer using the logo at logoPath.
func NewGenerator(logoPath string) *Generator {
	return &Generator{logoPath: logoPath}
}

// Render produces the A4 ticket document for a committed return.
func (g *Generator) Render(t models.Ticket) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Logo top-left, placeholder text when the asset is missing.
	if logo, err := os.ReadFile(g.logoPath); err == nil {
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
		pdf.RegisterImageOptionsReader("logo", opts, bytes.NewReader(logo))
		pdf.ImageOptions("logo", 15, 15, 45, 0, false, opts, 0, "")
	} else {
		pdf.SetTextColor(brandRed[0], brandRed[1], brandRed[2])
		pdf.SetFont("Arial", "B", 10)
		pdf.SetXY(15, 15)
		pdf.CellFormat(60, 5, "REPUESTOS EL CHOLO", "", 0, "L", false, 0, "")
	}

	pdf.SetTextColor(brandBlue[0], brandBlue[1], brandBlue[2])
	pdf.SetFont("Arial", "B", 20)
	pdf.SetXY(15, 20)
	pdf.CellFormat(180, 10, tr("Ticket de Devolución"), "", 1, "R", false, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "", 12)
	pdf.SetY(45)

	lines := []string{
		fmt.Sprintf("Ticket: %s", t.Number),
		fmt.Sprintf("Fecha: %s", t.CreatedAt.Format("02/01/2006 15:04")),
		fmt.Sprintf("Remitente: %s (CUIT: %s)", t.Sender.Display, t.Sender.CUIT),
		fmt.Sprintf("Proveedor: %s", t.Draft.Supplier),
		fmt.Sprintf("Código: %s", t.Draft.ProductCode),
		fmt.Sprintf("Descripción: %s", t.Draft.Description),
		fmt.Sprintf("Cantidad: %d", t.Draft.Quantity),
		fmt.Sprintf("Motivo: %s", t.Draft.Reason),
		fmt.Sprintf("N° Remito/Factura: %s", t.Draft.InvoiceNumber),
		fmt.Sprintf("Fecha factura: %s", t.Draft.InvoiceDate),
	}
	for _, line := range lines {
		pdf.CellFormat(180, 8, tr(line), "", 1, "L", false, 0, "")
	}

	// QR with the ticket number so the warehouse can look it up by scan.
	if qr, err := qrcode.Encode(t.Number, qrcode.Medium, 256); err == nil {
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
		pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qr))
		pdf.ImageOptions("qr", 160, 240, 35, 35, false, opts, 0, "")
		pdf.SetFont("Arial", "", 8)
		pdf.SetXY(160, 275)
		pdf.CellFormat(35, 4, t.Number, "", 0, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render ticket %s: %w", t.Number, err)
	}
	return buf.Bytes(), nil
}
