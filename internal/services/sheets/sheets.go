// Package sheets wraps the Google Sheets API for the return registry.
// The spreadsheet holds one tab per sender identity plus the supplier
// directory tab; it is the system of record for committed returns.
package sheets

import (
	"context"
	"fmt"
	"log"

	"github.com/repuestoselcholo/devolucionesbot/internal/models"
	gsheets "google.golang.org/api/sheets/v4"
	"google.golang.org/api/option"
)

// Client is the spreadsheet adapter. A client constructed via Disabled
// reports unavailable and all writers fail fast; the bot keeps running in
// degraded mode.
type Client struct {
	svc           *gsheets.Service
	spreadsheetID string
	available     bool
}

// New authenticates with a service-account credentials file and returns a
// ready client.
func New(ctx context.Context, credentialsFile, spreadsheetID string) (*Client, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is empty")
	}
	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("init sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, available: true}, nil
}

// Disabled returns a client in degraded mode.
func Disabled() *Client {
	return &Client{}
}

// Available reports whether the spreadsheet service can be used.
func (c *Client) Available() bool {
	return c != nil && c.available
}

// AppendRow appends one row of values to a tab.
func (c *Client) AppendRow(ctx context.Context, tab string, values []string) error {
	if !c.Available() {
		return fmt.Errorf("sheets service not initialized")
	}
	vr := &gsheets.ValueRange{Values: [][]interface{}{toCells(values)}}
	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, tab+"!A:I", vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", tab, err)
	}
	return nil
}

// ReadRange reads a range and flattens the cells to strings.
func (c *Client) ReadRange(ctx context.Context, rangeSpec string) ([][]string, error) {
	if !c.Available() {
		return nil, fmt.Errorf("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.
		Get(c.spreadsheetID, rangeSpec).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rangeSpec, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadReturns reads the newest `limit` committed rows of a sender tab,
// newest first.
func (c *Client) ReadReturns(ctx context.Context, tab string, limit int) ([][]string, error) {
	rows, err := c.ReadRange(ctx, tab+"!A2:I")
	if err != nil {
		return nil, err
	}
	if len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	// Reverse in place so the latest return comes first.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// WriteCell updates a single cell, e.g. WriteCell(ctx, "Proveedores", "B7", v).
func (c *Client) WriteCell(ctx context.Context, tab, cellRef, value string) error {
	if !c.Available() {
		return fmt.Errorf("sheets service not initialized")
	}
	vr := &gsheets.ValueRange{Values: [][]interface{}{{value}}}
	_, err := c.svc.Spreadsheets.Values.
		Update(c.spreadsheetID, fmt.Sprintf("%s!%s", tab, cellRef), vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s!%s: %w", tab, cellRef, err)
	}
	return nil
}

// EnsureTabs creates any missing tabs and writes their header rows. Header
// rows are only written when the first row is empty.
func (c *Client) EnsureTabs(ctx context.Context, names []string) error {
	if !c.Available() {
		return fmt.Errorf("sheets service not initialized")
	}

	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	existing := map[string]bool{}
	for _, sh := range meta.Sheets {
		if sh.Properties != nil {
			existing[sh.Properties.Title] = true
		}
	}

	var requests []*gsheets.Request
	for _, name := range names {
		if !existing[name] {
			requests = append(requests, &gsheets.Request{
				AddSheet: &gsheets.AddSheetRequest{
					Properties: &gsheets.SheetProperties{Title: name},
				},
			})
		}
	}
	if len(requests) > 0 {
		_, err := c.svc.Spreadsheets.
			BatchUpdate(c.spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{Requests: requests}).
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("create missing tabs: %w", err)
		}
		log.Printf("✅ Created %d missing spreadsheet tab(s)", len(requests))
	}

	for _, name := range names {
		header := models.ReturnHeader
		if name == models.SupplierTab {
			header = models.SupplierHeader
		}
		if err := c.ensureHeader(ctx, name, header); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) ensureHeader(ctx context.Context, tab string, header []string) error {
	endCol := string(rune('A' + len(header) - 1))
	rangeSpec := fmt.Sprintf("%s!A1:%s1", tab, endCol)

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rangeSpec).Context(ctx).Do()
	if err == nil && len(resp.Values) > 0 {
		return nil
	}

	vr := &gsheets.ValueRange{Values: [][]interface{}{toCells(header)}}
	_, err = c.svc.Spreadsheets.Values.
		Update(c.spreadsheetID, rangeSpec, vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header of %s: %w", tab, err)
	}
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
