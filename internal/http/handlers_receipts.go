package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"paisable/internal/core"
	"paisable/internal/services"
)

const receiptFormField = "receipt"

func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxReceiptSize+(1<<20))
	if err := r.ParseMultipartForm(services.MaxReceiptSize); err != nil {
		BadRequestError("Expected a multipart form with a receipt image").Write(w)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(receiptFormField)
	if err != nil {
		BadRequestError("No file uploaded").Write(w)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		BadRequestError("Could not read uploaded file").Write(w)
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	rc, err := s.svc.Receipts.Upload(r.Context(), ownerID(r), mimeType, data)
	if err != nil {
		writeServiceError(w, r, "upload receipt", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(rc).Write(w)
}

type saveReceiptRequest struct {
	ReceiptID       string           `json:"receiptId"`
	TransactionData transactionInput `json:"transactionData"`
}

type saveReceiptResponse struct {
	services.ReceiptConfirmation
	ReconciliationError string `json:"reconciliationError,omitempty"`
}

// handleSaveReceiptTransaction confirms a receipt. A reconciliation failure
// still answers 201 since the transaction exists.
func (s *Server) handleSaveReceiptTransaction(w http.ResponseWriter, r *http.Request) {
	var req saveReceiptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, "save receipt transaction", err)
		return
	}
	if req.ReceiptID == "" {
		writeServiceError(w, r, "save receipt transaction", core.MissingParameter("receiptId"))
		return
	}
	nt, err := req.TransactionData.toNew(time.Now().UTC())
	if err != nil {
		writeServiceError(w, r, "save receipt transaction", err)
		return
	}

	conf, err := s.svc.Receipts.Confirm(r.Context(), ownerID(r), req.ReceiptID, nt)
	var recErr *core.ReconciliationError
	switch {
	case err == nil:
		NewJSONResponse().Status(http.StatusCreated).Body(saveReceiptResponse{ReceiptConfirmation: conf}).Write(w)
	case errors.As(err, &recErr):
		s.logger.WarnContext(r.Context(), "Receipt saved without reconciliation",
			"receipt_id", recErr.ReceiptID, "transaction_id", recErr.TransactionID, "error", recErr.Err)
		NewJSONResponse().Status(http.StatusCreated).Body(saveReceiptResponse{
			ReceiptConfirmation: conf,
			ReconciliationError: "receipt could not be updated; retry to reconcile",
		}).Write(w)
	default:
		writeServiceError(w, r, "save receipt transaction", err)
	}
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.svc.Receipts.List(r.Context(), ownerID(r))
	if err != nil {
		writeServiceError(w, r, "list receipts", err)
		return
	}
	if receipts == nil {
		receipts = []core.Receipt{}
	}
	NewJSONResponse().Body(receipts).Write(w)
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	rc, err := s.svc.Receipts.Get(r.Context(), ownerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "get receipt", err)
		return
	}
	NewJSONResponse().Body(rc).Write(w)
}
