// Package ports declares the outbound interfaces of the ledger. Storage
// backends, the event bus and the receipt extractor implement them.
package ports

import (
	"context"
	"time"

	"paisable/internal/core"
)

type (
	// TransactionStore persists ledger records. Every read except
	// GetTransaction excludes soft-deleted records.
	TransactionStore interface {
		// CreateTransaction inserts t. It fails with core.ErrConflict when the
		// id is already taken.
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		// GetTransaction returns the record by id, deleted or not.
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		// UpdateTransaction replaces the mutable fields of an active record.
		// It fails with core.ErrNotFound if the record is missing or deleted.
		UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		// SoftDeleteTransaction sets the deleted flag; it never clears it.
		SoftDeleteTransaction(ctx context.Context, id string) error
		ListTransactions(ctx context.Context, ownerID string, f core.TransactionFilter, p core.Page) ([]core.Transaction, int, error)
		ActiveTransactions(ctx context.Context, ownerID string, f core.TransactionFilter) ([]core.Transaction, error)
		// DistinctCategories includes categories of deleted records.
		DistinctCategories(ctx context.Context, ownerID string) ([]string, error)
		// ReassignCategory moves every record of the owner in category from to
		// category to and returns how many records changed.
		ReassignCategory(ctx context.Context, ownerID, from, to string) (int64, error)
		// LedgerVersion changes whenever any record of the owner is created or
		// changed, by this process or another one sharing the store.
		LedgerVersion(ctx context.Context, ownerID string) (string, error)
	}

	ReceiptStore interface {
		CreateReceipt(ctx context.Context, r core.Receipt) (core.Receipt, error)
		GetReceipt(ctx context.Context, id string) (core.Receipt, error)
		UpdateReceipt(ctx context.Context, r core.Receipt) (core.Receipt, error)
		ListReceipts(ctx context.Context, ownerID string) ([]core.Receipt, error)
	}

	RecurringStore interface {
		CreateRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error)
		GetRule(ctx context.Context, id string) (core.RecurringRule, error)
		UpdateRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error)
		ListRules(ctx context.Context, ownerID string) ([]core.RecurringRule, error)
		// DueRules returns active rules whose next due date is not after now.
		DueRules(ctx context.Context, now time.Time) ([]core.RecurringRule, error)
	}

	UserStore interface {
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		GetUser(ctx context.Context, id string) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
		// UpdateUser stores the setup fields of an existing user.
		UpdateUser(ctx context.Context, u core.User) (core.User, error)
	}

	// BudgetStore keeps per-category monthly limits. CreateBudget fails with
	// core.ErrConflict when the owner already budgets the category.
	BudgetStore interface {
		CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		GetBudget(ctx context.Context, id string) (core.Budget, error)
		UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		DeleteBudget(ctx context.Context, id string) error
		ListBudgets(ctx context.Context, ownerID string) ([]core.Budget, error)
	}

	// Ledger bundles every store a backend provides.
	Ledger interface {
		TransactionStore
		ReceiptStore
		RecurringStore
		UserStore
		BudgetStore
	}

	// EventPublisher fans ledger mutations out to other processes.
	EventPublisher interface {
		PublishTransactionEvent(ctx context.Context, ev core.TransactionEvent) error
	}

	// ReceiptExtractor turns a receipt image into a best-effort draft.
	ReceiptExtractor interface {
		ExtractReceipt(ctx context.Context, image []byte, mimeType string) (core.ReceiptDraft, error)
	}

	// BlobStore keeps uploaded receipt images.
	BlobStore interface {
		Put(ctx context.Context, name, contentType string, data []byte) (url string, err error)
	}

	// SyncTracker records whether a transaction reached the mirror.
	SyncTracker interface {
		GetPendingSync(ctx context.Context, limit int) ([]string, error)
		// MarkSynced marks id as mirrored only while its updated_at still equals
		// version, so a change landing during the mirror write stays pending.
		MarkSynced(ctx context.Context, id string, version time.Time) error
		MarkSyncError(ctx context.Context, id string) error
	}

	// LedgerMirror receives a copy of every ledger change.
	LedgerMirror interface {
		MirrorTransaction(ctx context.Context, t core.Transaction, event core.EventType) error
	}
)
