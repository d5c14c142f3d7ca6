package google

import (
	"fmt"
	"strings"
	"time"

	"paisable/internal/core"
)

const lastColumn = "H"

const (
	stateActive  = "active"
	stateDeleted = "deleted"
)

// Row is one mirrored transaction as read back from the sheet.
type Row struct {
	ID        string
	Date      string
	Name      string
	Category  string
	Cost      core.Money
	IsIncome  bool
	Deleted   bool
	UpdatedAt string
}

func headerRow() []any {
	return []any{"ID", "Date", "Name", "Category", "Cost", "Type", "State", "Updated"}
}

func transactionRow(t core.Transaction, event core.EventType) []any {
	kind := "expense"
	if t.IsIncome {
		kind = "income"
	}
	state := stateActive
	if t.IsDeleted || event == core.EventDeleted {
		state = stateDeleted
	}
	return []any{
		t.ID,
		core.DayKey(t.OccurredOn),
		t.Name,
		t.Category,
		t.Cost.String(),
		kind,
		state,
		t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// findRow returns the 1-based sheet row holding id, or 0.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

func parseRows(values [][]any) []Row {
	var out []Row
	for i, raw := range values {
		cols := toStrings(raw)
		if len(cols) < 7 {
			continue
		}
		if i == 0 && strings.EqualFold(cols[0], "ID") {
			continue
		}
		cost, err := core.ParseMoney(cols[4])
		if err != nil {
			continue
		}
		out = append(out, Row{
			ID:        cols[0],
			Date:      cols[1],
			Name:      cols[2],
			Category:  cols[3],
			Cost:      cost,
			IsIncome:  strings.EqualFold(cols[5], "income"),
			Deleted:   strings.EqualFold(cols[6], stateDeleted),
			UpdatedAt: safeGet(cols, 7),
		})
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
