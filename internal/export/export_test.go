package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ucsindex/engine/internal/dependency"
	"github.com/ucsindex/engine/internal/domain"
	"github.com/ucsindex/engine/internal/quote"
	"github.com/ucsindex/engine/internal/recalc"
)

var (
	today     = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	yesterday = time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)
)

func put(repo *quote.MemoryRepository, id string, date time.Time, v string) {
	q := domain.NewSeedQuote(id, date, date)
	q.SetValue(decimal.RequireFromString(v))
	repo.Put(q)
}

type mockBoardWriter struct {
	board   []BoardRow
	history []BoardRow
	err     error
}

func (m *mockBoardWriter) WriteBoard(_ context.Context, _ time.Time, rows []BoardRow) error {
	m.board = rows
	return m.err
}

func (m *mockBoardWriter) UpsertHistory(_ context.Context, _ time.Time, rows []BoardRow) error {
	m.history = rows
	return nil
}

func newService(t *testing.T, writer BoardWriter) (*Service, *quote.MemoryRepository) {
	t.Helper()
	reg, err := dependency.Default()
	if err != nil {
		t.Fatalf("loading registry: %v", err)
	}
	repo := quote.NewMemoryRepository()
	return NewService(reg, repo, writer), repo
}

func TestRowsFollowRegistryOrderWithChange(t *testing.T) {
	svc, repo := newService(t, &mockBoardWriter{})
	put(repo, "ucs", today, "4.40")
	put(repo, "usd", today, "5.00")
	put(repo, "ucs", yesterday, "4.00")
	put(repo, "usd", yesterday, "0")

	rows, err := svc.Rows(context.Background(), today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Asset.ID != "usd" || rows[1].Asset.ID != "ucs" {
		t.Errorf("order = [%s %s], want [usd ucs]", rows[0].Asset.ID, rows[1].Asset.ID)
	}
	if rows[0].Change != nil {
		t.Errorf("usd change = %v, want nil for a zero previous value", rows[0].Change)
	}
	if rows[1].Change == nil || !rows[1].Change.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("ucs change = %v, want 0.1", rows[1].Change)
	}
}

func TestAfterRecalculationPublishes(t *testing.T) {
	writer := &mockBoardWriter{}
	svc, repo := newService(t, writer)
	put(repo, "ucs_ase", today, "8.8")

	var _ recalc.Hook = svc
	if err := svc.AfterRecalculation(context.Background(), today, recalc.Result{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.board) != 1 || len(writer.history) != 1 {
		t.Errorf("board=%d history=%d, want 1 and 1", len(writer.board), len(writer.history))
	}
}

func TestPublishStopsOnBoardError(t *testing.T) {
	boom := errors.New("quota exceeded")
	writer := &mockBoardWriter{err: boom}
	svc, _ := newService(t, writer)

	if err := svc.Publish(context.Background(), today); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	if writer.history != nil {
		t.Error("history must not be appended after a failed board write")
	}
}

func TestBuildBoard(t *testing.T) {
	change := decimal.RequireFromString("0.05")
	rows := []BoardRow{{
		Asset:       domain.AssetDependency{ID: "ucs_ase", Name: "UCS ASE", Unit: "BRL", Kind: domain.KindIndex},
		Value:       decimal.RequireFromString("8.5"),
		Status:      domain.QuoteStatusAutoCalculated,
		Change:      &change,
		Conversions: map[string]decimal.Decimal{"usd": decimal.RequireFromString("1.7")},
	}}

	data := buildBoard(today, rows)
	if len(data) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(data))
	}
	if len(data[0]) != 10 || len(data[1]) != 10 {
		t.Fatalf("columns = %d/%d, want 10", len(data[0]), len(data[1]))
	}
	row := data[1]
	if row[0] != "10/03/2025" {
		t.Errorf("date = %v", row[0])
	}
	if row[3] != "index" {
		t.Errorf("kind = %v", row[3])
	}
	if row[5] != 8.5 {
		t.Errorf("value = %v", row[5])
	}
	if row[7] != 0.05 {
		t.Errorf("change = %v", row[7])
	}
	if row[8] != 1.7 {
		t.Errorf("usd = %v", row[8])
	}
	if row[9] != nil {
		t.Errorf("eur = %v, want nil", row[9])
	}
}

func TestBuildHistoryRow(t *testing.T) {
	rows := []BoardRow{
		{Asset: domain.AssetDependency{ID: "ucs"}, Value: decimal.RequireFromString("4.25")},
		{Asset: domain.AssetDependency{ID: "pdm"}, Value: decimal.RequireFromString("3825")},
	}

	row := buildHistoryRow(today, rows)
	if len(row) != 1+len(historyAssets) {
		t.Fatalf("columns = %d, want %d", len(row), 1+len(historyAssets))
	}
	if row[0] != "10/03/2025" {
		t.Errorf("date = %v", row[0])
	}
	if row[1] != nil {
		t.Errorf("ucs_ase = %v, want blank", row[1])
	}
	if row[2] != 4.25 {
		t.Errorf("ucs = %v, want 4.25", row[2])
	}
	if row[3] != 3825.0 {
		t.Errorf("pdm = %v, want 3825", row[3])
	}
	if got := historyHeader(); len(got) != len(row) {
		t.Errorf("header has %d columns, row has %d", len(got), len(row))
	}
}

func TestHistoryRowForRecalculatedDate(t *testing.T) {
	column := [][]any{{"Date"}, {"07/03/2025"}, {}, {"10/03/2025"}}

	if got := historyRowFor(column, "10/03/2025"); got != 4 {
		t.Errorf("row = %d, want 4", got)
	}
	if got := historyRowFor(column, "11/03/2025"); got != 0 {
		t.Errorf("row for new date = %d, want 0", got)
	}
	if got := historyRowFor([][]any{{"10/03/2025"}}, "10/03/2025"); got != 0 {
		t.Errorf("header row matched: %d", got)
	}
	if got := historyRowFor(nil, "10/03/2025"); got != 0 {
		t.Errorf("empty sheet row = %d, want 0", got)
	}
}
