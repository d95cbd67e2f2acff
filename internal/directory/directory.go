// Package directory implements the supplier directory over the spreadsheet
// Proveedores tab. It never caches: every turn re-reads the tab, accepting
// staleness as a tradeoff for simplicity.
package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/repuestoselcholo/devolucionesbot/internal/models"
)

// SheetClient is the slice of the spreadsheet adapter the directory needs.
type SheetClient interface {
	ReadRange(ctx context.Context, rangeSpec string) ([][]string, error)
	AppendRow(ctx context.Context, tab string, values []string) error
	WriteCell(ctx context.Context, tab, cellRef, value string) error
	Available() bool
}

// ErrUnavailable is returned when the spreadsheet service is down or was
// never initialized. Callers degrade to manual entry.
var ErrUnavailable = fmt.Errorf("supplier directory unavailable")

// Directory reads and writes supplier rows.
type Directory struct {
	sheet SheetClient
}

// New creates a directory over the given spreadsheet client.
func New(sheet SheetClient) *Directory {
	return &Directory{sheet: sheet}
}

// ListAll returns every supplier in insertion (row) order. Row indexes are
// 1-based spreadsheet rows; data starts at row 2 below the header.
func (d *Directory) ListAll(ctx context.Context) ([]models.Supplier, error) {
	if !d.sheet.Available() {
		return nil, ErrUnavailable
	}
	rows, err := d.sheet.ReadRange(ctx, models.SupplierTab+"!A2:C")
	if err != nil {
		return nil, fmt.Errorf("read suppliers: %w", err)
	}

	out := make([]models.Supplier, 0, len(rows))
	for i, row := range rows {
		s := models.Supplier{RowIndex: i + 2}
		if len(row) > 0 {
			s.Name = strings.TrimSpace(row[0])
		}
		if len(row) > 1 {
			s.Email = strings.TrimSpace(row[1])
		}
		if len(row) > 2 {
			s.Address = strings.TrimSpace(row[2])
		}
		if s.Name == "" {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// FindByName resolves a supplier by name: an exact case-insensitive match
// always wins; otherwise the first case-insensitive substring match is
// returned. nil with no error means no match.
func (d *Directory) FindByName(ctx context.Context, name string) (*models.Supplier, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	list, err := d.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(name)
	for i := range list {
		if strings.ToLower(list[i].Name) == needle {
			return &list[i], nil
		}
	}
	for i := range list {
		if strings.Contains(strings.ToLower(list[i].Name), needle) {
			return &list[i], nil
		}
	}
	return nil, nil
}

// Insert appends a new supplier row.
func (d *Directory) Insert(ctx context.Context, s models.Supplier) error {
	if !d.sheet.Available() {
		return ErrUnavailable
	}
	if err := d.sheet.AppendRow(ctx, models.SupplierTab, []string{s.Name, s.Email, s.Address}); err != nil {
		return fmt.Errorf("insert supplier %q: %w", s.Name, err)
	}
	return nil
}

// UpdateEmail writes the email cell of an existing supplier row. Two
// sessions updating the same row concurrently is an accepted race.
func (d *Directory) UpdateEmail(ctx context.Context, rowIndex int, email string) error {
	if !d.sheet.Available() {
		return ErrUnavailable
	}
	if rowIndex < 2 {
		return fmt.Errorf("invalid supplier row %d", rowIndex)
	}
	cell := fmt.Sprintf("B%d", rowIndex)
	if err := d.sheet.WriteCell(ctx, models.SupplierTab, cell, email); err != nil {
		return fmt.Errorf("update supplier email (row %d): %w", rowIndex, err)
	}
	return nil
}
