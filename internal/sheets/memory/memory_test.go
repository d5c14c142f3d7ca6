package memory

import (
	"context"
	"testing"

	"paisable/internal/core"
	"paisable/internal/ports"
)

var _ ports.LedgerMirror = (*Mirror)(nil)

func TestMirrorUpsertKeepsOrder(t *testing.T) {
	ctx := context.Background()
	m := New()

	_ = m.MirrorTransaction(ctx, core.Transaction{ID: "a", Name: "Rent"}, core.EventCreated)
	_ = m.MirrorTransaction(ctx, core.Transaction{ID: "b", Name: "Pay"}, core.EventCreated)
	_ = m.MirrorTransaction(ctx, core.Transaction{ID: "a", Name: "Rent", IsDeleted: true}, core.EventDeleted)

	rows := m.Rows()
	if len(rows) != 2 {
		t.Fatalf("Rows() = %d, want 2", len(rows))
	}
	if rows[0].Transaction.ID != "a" || rows[0].Event != core.EventDeleted || !rows[0].Transaction.IsDeleted {
		t.Errorf("rows[0] = %+v, want deleted a", rows[0])
	}
	if rows[1].Transaction.ID != "b" {
		t.Errorf("rows[1] = %+v, want b", rows[1])
	}
}
