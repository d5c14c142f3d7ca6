package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"paisable/internal/core"
	"paisable/internal/ports"
)

// MaxReceiptSize bounds an uploaded receipt image.
const MaxReceiptSize = 10 << 20

// receiptNamespace derives the transaction id of a confirmed receipt, so a
// retried confirmation finds the record it created the first time.
var receiptNamespace = uuid.MustParse("6f1c7a52-3d0e-4b8f-9a51-2c4d8e7b9f10")

var receiptExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// ReceiptConfirmation is the outcome of confirming a receipt into the ledger.
type ReceiptConfirmation struct {
	Transaction core.Transaction `json:"transaction"`
	Receipt     core.Receipt     `json:"receipt"`
}

// ReceiptService runs the propose and confirm steps of receipt capture.
type ReceiptService struct {
	store        ports.ReceiptStore
	transactions *TransactionService
	extractor    ports.ReceiptExtractor
	blobs        ports.BlobStore
	now          func() time.Time
	newID        func() string
}

func NewReceiptService(store ports.ReceiptStore, transactions *TransactionService, extractor ports.ReceiptExtractor, blobs ports.BlobStore) *ReceiptService {
	return &ReceiptService{
		store:        store,
		transactions: transactions,
		extractor:    extractor,
		blobs:        blobs,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
}

// TransactionIDFor is the ledger id a confirmed receipt maps to.
func TransactionIDFor(receiptID string) string {
	return uuid.NewSHA1(receiptNamespace, []byte(receiptID)).String()
}

// Upload extracts a draft from the image and stores it as a receipt. The
// ledger is never touched here.
func (s *ReceiptService) Upload(ctx context.Context, ownerID, mimeType string, image []byte) (core.Receipt, error) {
	if len(image) == 0 {
		return core.Receipt{}, core.MissingParameter("receipt")
	}
	if len(image) > MaxReceiptSize {
		return core.Receipt{}, core.NewValidationError("receipt", "image too large (max 10MB)")
	}
	mimeType = strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	ext, ok := receiptExtensions[mimeType]
	if !ok {
		return core.Receipt{}, core.NewValidationError("receipt", "unsupported image type "+mimeType)
	}
	if s.extractor == nil {
		return core.Receipt{}, &core.UpstreamError{Op: "extract receipt", Err: errors.New("no extractor configured")}
	}

	draft, err := s.extractor.ExtractReceipt(ctx, image, mimeType)
	if err != nil {
		if !core.IsUpstream(err) {
			err = &core.UpstreamError{Op: "extract receipt", Err: err}
		}
		slog.WarnContext(ctx, "Receipt extraction failed", "owner_id", ownerID, "error", err)
		return core.Receipt{}, err
	}

	now := s.now()
	id := s.newID()
	fileURL := ""
	if s.blobs != nil {
		fileURL, err = s.blobs.Put(ctx, path.Join(ownerID, id+ext), mimeType, image)
		if err != nil {
			return core.Receipt{}, fmt.Errorf("store receipt image: %w", err)
		}
	}

	rc := core.Receipt{
		ID:        id,
		OwnerID:   ownerID,
		FileURL:   fileURL,
		Extracted: draft.Normalize(now),
		CreatedAt: now,
		UpdatedAt: now,
	}
	stored, err := s.store.CreateReceipt(ctx, rc)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("save receipt: %w", core.WrapStore("create receipt", err))
	}

	slog.InfoContext(ctx, "Receipt uploaded",
		"owner_id", ownerID,
		"receipt_id", stored.ID,
		"merchant", stored.Extracted.Merchant,
		"amount_cents", stored.Extracted.Amount.Cents)
	return stored, nil
}

func (s *ReceiptService) owned(ctx context.Context, ownerID, receiptID string) (core.Receipt, error) {
	if strings.TrimSpace(receiptID) == "" {
		return core.Receipt{}, core.MissingParameter("receiptId")
	}
	rc, err := s.store.GetReceipt(ctx, receiptID)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("get receipt %s: %w", receiptID, core.WrapStore("get receipt", err))
	}
	if rc.OwnerID != ownerID {
		return core.Receipt{}, core.ErrForbidden
	}
	return rc, nil
}

func (s *ReceiptService) Get(ctx context.Context, ownerID, receiptID string) (core.Receipt, error) {
	return s.owned(ctx, ownerID, receiptID)
}

func (s *ReceiptService) List(ctx context.Context, ownerID string) ([]core.Receipt, error) {
	out, err := s.store.ListReceipts(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", core.WrapStore("list receipts", err))
	}
	return out, nil
}

// Confirm turns a receipt into a ledger record using the owner's final
// values. The receipt id is the idempotency key: repeating the call returns
// the record created the first time. If the record is stored but the receipt
// cannot be updated, the confirmation is returned together with a
// *core.ReconciliationError and the record is kept.
func (s *ReceiptService) Confirm(ctx context.Context, ownerID, receiptID string, in core.NewTransaction) (ReceiptConfirmation, error) {
	rc, err := s.owned(ctx, ownerID, receiptID)
	if err != nil {
		return ReceiptConfirmation{}, err
	}

	txID := TransactionIDFor(rc.ID)
	if rc.TransactionID != "" {
		tx, err := s.transactions.Get(ctx, ownerID, rc.TransactionID)
		if err != nil {
			return ReceiptConfirmation{}, err
		}
		return ReceiptConfirmation{Transaction: tx, Receipt: rc}, nil
	}

	tx, err := s.transactions.Get(ctx, ownerID, txID)
	switch {
	case err == nil:
		slog.InfoContext(ctx, "Resuming receipt reconciliation", "receipt_id", rc.ID, "transaction_id", txID)
	case errors.Is(err, core.ErrNotFound):
		tx, err = s.transactions.create(ctx, ownerID, txID, in)
		if errors.Is(err, core.ErrConflict) {
			tx, err = s.transactions.Get(ctx, ownerID, txID)
		}
		if err != nil {
			return ReceiptConfirmation{}, err
		}
	default:
		return ReceiptConfirmation{}, err
	}

	updated := rc
	updated.Extracted = core.ConfirmedData(tx)
	updated.TransactionID = tx.ID
	updated.UpdatedAt = s.now()
	if _, err := s.store.UpdateReceipt(ctx, updated); err != nil {
		slog.ErrorContext(ctx, "Receipt reconciliation failed",
			"receipt_id", rc.ID, "transaction_id", tx.ID, "error", err)
		return ReceiptConfirmation{Transaction: tx, Receipt: rc},
			&core.ReconciliationError{TransactionID: tx.ID, ReceiptID: rc.ID, Err: err}
	}

	slog.InfoContext(ctx, "Receipt confirmed", "owner_id", ownerID, "receipt_id", rc.ID, "transaction_id", tx.ID)
	return ReceiptConfirmation{Transaction: tx, Receipt: updated}, nil
}
