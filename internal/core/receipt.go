package core

import (
	"strings"
	"time"
)

const unknownMerchant = "Unknown Merchant"

type (
	// ReceiptDraft is the best-effort output of the extraction service.
	// Any field may be missing; Normalize fills the gaps.
	ReceiptDraft struct {
		Merchant string     `json:"merchant"`
		Amount   Money      `json:"amount"`
		Category string     `json:"category"`
		Date     *time.Time `json:"date,omitempty"`
	}

	// ReceiptData is the extraction stored on a receipt, first as proposed
	// by the extractor and later as confirmed by the owner.
	ReceiptData struct {
		Merchant string    `json:"merchant"`
		Amount   Money     `json:"amount"`
		Category string    `json:"category"`
		Date     time.Time `json:"date"`
		IsIncome bool      `json:"isIncome"`
	}

	// Receipt is an uploaded image and its extraction. TransactionID is set
	// once the owner confirmed it into the ledger.
	Receipt struct {
		ID            string      `json:"id"`
		OwnerID       string      `json:"user"`
		FileURL       string      `json:"fileUrl"`
		Extracted     ReceiptData `json:"extractedData"`
		TransactionID string      `json:"transactionId,omitempty"`
		CreatedAt     time.Time   `json:"createdAt"`
		UpdatedAt     time.Time   `json:"updatedAt"`
	}

	// User is an account owning a ledger.
	User struct {
		ID              string    `json:"id"`
		Name            string    `json:"name"`
		Email           string    `json:"email"`
		PasswordHash    string    `json:"-"`
		// DefaultCurrency is empty until the owner completes setup.
		DefaultCurrency string    `json:"defaultCurrency"`
		IsSetupComplete bool      `json:"isSetupComplete"`
		CreatedAt       time.Time `json:"createdAt"`
	}
)

// Normalize turns a draft into stored extraction data, defaulting every
// missing field.
func (d ReceiptDraft) Normalize(now time.Time) ReceiptData {
	out := ReceiptData{
		Merchant: strings.TrimSpace(d.Merchant),
		Amount:   d.Amount,
		Category: strings.TrimSpace(d.Category),
		Date:     now.UTC(),
	}
	if out.Merchant == "" {
		out.Merchant = unknownMerchant
	}
	if out.Category == "" {
		out.Category = FallbackCategory
	}
	if d.Date != nil && !d.Date.IsZero() {
		out.Date = d.Date.UTC()
	}
	if out.Amount.Validate() != nil {
		out.Amount = Money{}
	}
	return out
}

// ConfirmedData is the extraction that mirrors a confirmed transaction.
func ConfirmedData(t Transaction) ReceiptData {
	return ReceiptData{
		Merchant: t.Name,
		Amount:   t.Cost,
		Category: t.Category,
		Date:     t.OccurredOn,
		IsIncome: t.IsIncome,
	}
}

// NormalizeEmail lowercases and trims an address for lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
