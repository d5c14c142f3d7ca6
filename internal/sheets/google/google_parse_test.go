package google

import (
	"testing"
	"time"

	"paisable/internal/core"
)

func TestTransactionRow(t *testing.T) {
	tx := core.Transaction{
		ID:         "tx-1",
		Name:       "Rent",
		Category:   "Bills",
		Cost:       core.MustMoney("900"),
		OccurredOn: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2024, 3, 2, 10, 30, 0, 0, time.UTC),
	}

	tests := []struct {
		name      string
		tx        core.Transaction
		event     core.EventType
		wantKind  string
		wantState string
	}{
		{"created expense", tx, core.EventCreated, "expense", "active"},
		{"deleted by event", tx, core.EventDeleted, "expense", "deleted"},
		{"income", func() core.Transaction { c := tx; c.IsIncome = true; return c }(), core.EventUpdated, "income", "active"},
		{"deleted record", func() core.Transaction { c := tx; c.IsDeleted = true; return c }(), core.EventUpdated, "expense", "deleted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := transactionRow(tt.tx, tt.event)
			if len(row) != len(headerRow()) {
				t.Fatalf("row has %d columns, header has %d", len(row), len(headerRow()))
			}
			if row[1] != "2024-03-01" || row[4] != "900.00" {
				t.Errorf("date/cost = %v/%v", row[1], row[4])
			}
			if row[5] != tt.wantKind || row[6] != tt.wantState {
				t.Errorf("type/state = %v/%v, want %s/%s", row[5], row[6], tt.wantKind, tt.wantState)
			}
			if row[7] != "2024-03-02T10:30:00Z" {
				t.Errorf("updated = %v", row[7])
			}
		})
	}
}

func TestFindRow(t *testing.T) {
	values := [][]any{{"ID"}, {"tx-1"}, {}, {" tx-3 "}}

	tests := []struct {
		id   string
		want int
	}{
		{"tx-1", 2},
		{"tx-3", 4},
		{"tx-9", 0},
	}
	for _, tt := range tests {
		if got := findRow(values, tt.id); got != tt.want {
			t.Errorf("findRow(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestParseRows(t *testing.T) {
	values := [][]any{
		headerRow(),
		{"tx-1", "2024-03-01", "Rent", "Bills", "900.00", "expense", "active", "2024-03-02T10:30:00Z"},
		{"tx-2", "2024-03-05", "Pay", "Salary", "2500,50", "income", "deleted"},
		{"tx-3", "2024-03-05", "Broken", "Food", "n/a", "expense", "active"},
		{"short"},
	}

	rows := parseRows(values)
	if len(rows) != 2 {
		t.Fatalf("parseRows() = %d rows, want 2", len(rows))
	}
	if rows[0].ID != "tx-1" || rows[0].Cost.Cents != 90000 || rows[0].Deleted {
		t.Errorf("rows[0] = %+v", rows[0])
	}
	if !rows[1].IsIncome || !rows[1].Deleted || rows[1].Cost.Cents != 250050 || rows[1].UpdatedAt != "" {
		t.Errorf("rows[1] = %+v", rows[1])
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(t.Context(), " ", "Transactions")
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("New() error = %v, want missing GOOGLE_SPREADSHEET_ID", err)
	}
}

func TestMirrorTransaction_Uninitialized(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetName: "Transactions"}
	if err := c.MirrorTransaction(t.Context(), core.Transaction{ID: "tx-1"}, core.EventCreated); err == nil {
		t.Error("MirrorTransaction() with nil service should fail")
	}
}
