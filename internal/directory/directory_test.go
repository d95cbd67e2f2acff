package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/repuestoselcholo/devolucionesbot/internal/models"
)

type fakeSheet struct {
	rows      [][]string
	readErr   error
	available bool

	appendedTab string
	appendedRow []string
	writtenTab  string
	writtenCell string
	writtenVal  string
}

func (f *fakeSheet) ReadRange(_ context.Context, rangeSpec string) ([][]string, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	if rangeSpec != models.SupplierTab+"!A2:C" {
		return nil, errors.New("unexpected range " + rangeSpec)
	}
	return f.rows, nil
}

func (f *fakeSheet) AppendRow(_ context.Context, tab string, values []string) error {
	f.appendedTab = tab
	f.appendedRow = values
	return nil
}

func (f *fakeSheet) WriteCell(_ context.Context, tab, cellRef, value string) error {
	f.writtenTab = tab
	f.writtenCell = cellRef
	f.writtenVal = value
	return nil
}

func (f *fakeSheet) Available() bool { return f.available }

func TestListAll(t *testing.T) {
	d := New(&fakeSheet{available: true, rows: [][]string{
		{"Acme", "ventas@acme.com", "Av. Rivadavia 100"},
		{"Bulonera Sur"},
		{"   "}, // blank name rows are skipped but keep their row number
		{"Frenos Norte", "", "Ruta 3 km 45"},
	}})

	list, err := d.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d suppliers, want 3", len(list))
	}
	if list[0].RowIndex != 2 || list[1].RowIndex != 3 || list[2].RowIndex != 5 {
		t.Errorf("row indexes = %d, %d, %d", list[0].RowIndex, list[1].RowIndex, list[2].RowIndex)
	}
	if list[0].Email != "ventas@acme.com" || list[0].Address != "Av. Rivadavia 100" {
		t.Errorf("first supplier = %+v", list[0])
	}
	if list[1].Email != "" || list[1].Address != "" {
		t.Errorf("short row not zero-filled: %+v", list[1])
	}
}

func TestListAllUnavailable(t *testing.T) {
	d := New(&fakeSheet{available: false})
	if _, err := d.ListAll(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestFindByNameExactBeatsSubstring(t *testing.T) {
	d := New(&fakeSheet{available: true, rows: [][]string{
		{"Acme Parts"},
		{"Acme"},
	}})

	got, err := d.FindByName(context.Background(), "acme")
	if err != nil {
		t.Fatalf("FindByName failed: %v", err)
	}
	if got == nil || got.Name != "Acme" || got.RowIndex != 3 {
		t.Errorf("got %+v, want exact match Acme at row 3", got)
	}
}

func TestFindByNameSubstring(t *testing.T) {
	d := New(&fakeSheet{available: true, rows: [][]string{
		{"Bulonera Sur"},
		{"Frenos Norte"},
	}})

	got, err := d.FindByName(context.Background(), "  frenos ")
	if err != nil {
		t.Fatalf("FindByName failed: %v", err)
	}
	if got == nil || got.Name != "Frenos Norte" {
		t.Errorf("got %+v", got)
	}

	got, err = d.FindByName(context.Background(), "inexistente")
	if err != nil || got != nil {
		t.Errorf("no-match lookup = %v, %v; want nil, nil", got, err)
	}

	got, err = d.FindByName(context.Background(), "")
	if err != nil || got != nil {
		t.Errorf("empty lookup = %v, %v; want nil, nil", got, err)
	}
}

func TestInsert(t *testing.T) {
	sheet := &fakeSheet{available: true}
	d := New(sheet)

	err := d.Insert(context.Background(), models.Supplier{
		Name:    "Frenos Norte",
		Email:   "ventas@frenosnorte.com",
		Address: "Ruta 3 km 45",
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if sheet.appendedTab != models.SupplierTab {
		t.Errorf("appended to tab %q", sheet.appendedTab)
	}
	want := []string{"Frenos Norte", "ventas@frenosnorte.com", "Ruta 3 km 45"}
	if len(sheet.appendedRow) != len(want) {
		t.Fatalf("appended row = %v", sheet.appendedRow)
	}
	for i := range want {
		if sheet.appendedRow[i] != want[i] {
			t.Errorf("appendedRow[%d] = %q, want %q", i, sheet.appendedRow[i], want[i])
		}
	}
}

func TestUpdateEmail(t *testing.T) {
	sheet := &fakeSheet{available: true}
	d := New(sheet)

	if err := d.UpdateEmail(context.Background(), 7, "nuevo@correo.com"); err != nil {
		t.Fatalf("UpdateEmail failed: %v", err)
	}
	if sheet.writtenTab != models.SupplierTab || sheet.writtenCell != "B7" || sheet.writtenVal != "nuevo@correo.com" {
		t.Errorf("wrote %q %q = %q", sheet.writtenTab, sheet.writtenCell, sheet.writtenVal)
	}

	// Row 1 is the header and row 0 does not exist.
	for _, row := range []int{0, 1, -3} {
		if err := d.UpdateEmail(context.Background(), row, "x@y.com"); err == nil {
			t.Errorf("UpdateEmail(%d) accepted an invalid row", row)
		}
	}
}
