package export

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/ucsindex/engine/internal/domain"
)

const (
	boardSheet   = "UCS_BOARD"
	historySheet = "UCS_HISTORY"
)

// historyAssets are the columns of the history sheet, after the date.
var historyAssets = []string{"ucs_ase", "ucs", "pdm", "valor_uso_solo", "vus", "vmad", "crs_total"}

// SheetsWriter implements BoardWriter using the Google Sheets API.
type SheetsWriter struct {
	spreadsheetID string
	svc           *sheets.Service
}

// NewSheetsWriter creates a SheetsWriter authenticated with a service account JSON.
func NewSheetsWriter(ctx context.Context, spreadsheetID, credentialsJSON string) (*SheetsWriter, error) {
	creds, err := google.CredentialsFromJSON(
		ctx,
		[]byte(credentialsJSON),
		sheets.SpreadsheetsScope,
	)
	if err != nil {
		return nil, fmt.Errorf("parsing google credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &SheetsWriter{spreadsheetID: spreadsheetID, svc: svc}, nil
}

// WriteBoard ensures the board sheet exists, then clears and rewrites it.
func (w *SheetsWriter) WriteBoard(ctx context.Context, date time.Time, rows []BoardRow) error {
	if err := w.ensureSheets(ctx, boardSheet); err != nil {
		return err
	}

	_, err := w.svc.Spreadsheets.Values.Clear(
		w.spreadsheetID, boardSheet+"!A:J", &sheets.ClearValuesRequest{},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clearing %s: %w", boardSheet, err)
	}

	_, err = w.svc.Spreadsheets.Values.Update(
		w.spreadsheetID,
		boardSheet+"!A1",
		&sheets.ValueRange{Values: buildBoard(date, rows)},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing %s: %w", boardSheet, err)
	}
	return nil
}

// UpsertHistory ensures the history sheet exists, writes its header when the sheet is
// empty, then writes the row for date: in place when the date already has one, appended otherwise.
func (w *SheetsWriter) UpsertHistory(ctx context.Context, date time.Time, rows []BoardRow) error {
	if err := w.ensureSheets(ctx, historySheet); err != nil {
		return err
	}

	dates, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, historySheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("reading %s dates: %w", historySheet, err)
	}
	if len(dates.Values) == 0 {
		_, err = w.svc.Spreadsheets.Values.Update(
			w.spreadsheetID,
			historySheet+"!A1",
			&sheets.ValueRange{Values: [][]any{historyHeader()}},
		).ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("writing %s header: %w", historySheet, err)
		}
	}

	row := &sheets.ValueRange{Values: [][]any{buildHistoryRow(date, rows)}}
	if n := historyRowFor(dates.Values, domain.FormatLegacyDate(date)); n > 0 {
		_, err = w.svc.Spreadsheets.Values.Update(
			w.spreadsheetID, fmt.Sprintf("%s!A%d", historySheet, n), row,
		).ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("updating %s row %d: %w", historySheet, n, err)
		}
		return nil
	}

	_, err = w.svc.Spreadsheets.Values.Append(
		w.spreadsheetID, historySheet+"!A:H", row,
	).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("appending %s row: %w", historySheet, err)
	}
	return nil
}

// historyRowFor returns the 1-based sheet row whose first cell is day, skipping the
// header, or 0 when day has no row yet.
func historyRowFor(column [][]any, day string) int {
	for i, cells := range column {
		if i == 0 || len(cells) == 0 {
			continue
		}
		if fmt.Sprint(cells[0]) == day {
			return i + 1
		}
	}
	return 0
}

// buildBoard builds the UCS_BOARD sheet data.
// Columns: Date | Asset | Name | Kind | Unit | Value | Status | Change | USD | EUR
func buildBoard(date time.Time, rows []BoardRow) [][]any {
	data := make([][]any, 0, len(rows)+1)
	data = append(data, []any{
		"Date", "Asset", "Name", "Kind", "Unit",
		"Value", "Status", "Change", "USD", "EUR",
	})

	day := domain.FormatLegacyDate(date)
	for _, row := range rows {
		data = append(data, []any{
			day,
			row.Asset.ID,
			row.Asset.Name,
			string(row.Asset.Kind),
			row.Asset.Unit,
			toFloat(row.Value),
			string(row.Status),
			ptrFloat(row.Change),
			mapFloat(row.Conversions, "usd"),
			mapFloat(row.Conversions, "eur"),
		})
	}
	return data
}

func historyHeader() []any {
	header := []any{"Date"}
	for _, id := range historyAssets {
		header = append(header, id)
	}
	return header
}

// buildHistoryRow builds one UCS_HISTORY row. Missing assets are left blank.
func buildHistoryRow(date time.Time, rows []BoardRow) []any {
	byID := lo.KeyBy(rows, func(r BoardRow) string { return r.Asset.ID })

	data := []any{domain.FormatLegacyDate(date)}
	for _, id := range historyAssets {
		if row, ok := byID[id]; ok {
			data = append(data, toFloat(row.Value))
		} else {
			data = append(data, nil)
		}
	}
	return data
}

// ensureSheets creates any of the named sheets that do not already exist.
func (w *SheetsWriter) ensureSheets(ctx context.Context, names ...string) error {
	spreadsheet, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("getting spreadsheet metadata: %w", err)
	}

	existing := make(map[string]bool, len(spreadsheet.Sheets))
	for _, s := range spreadsheet.Sheets {
		existing[s.Properties.Title] = true
	}

	var requests []*sheets.Request
	for _, name := range names {
		if !existing[name] {
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: name},
				},
			})
		}
	}

	if len(requests) == 0 {
		return nil
	}

	_, err = w.svc.Spreadsheets.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: requests},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("creating sheets: %w", err)
	}

	return nil
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func ptrFloat(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	f, _ := d.Float64()
	return f
}

func mapFloat(m map[string]decimal.Decimal, key string) any {
	v, ok := m[key]
	if !ok {
		return nil
	}
	return toFloat(v)
}
