package http

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"paisable/internal/core"
)

const exportFilename = "paisable_transactions.csv"

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in transactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "create transaction", err)
		return
	}
	nt, err := in.toNew(time.Now().UTC())
	if err != nil {
		writeServiceError(w, r, "create transaction", err)
		return
	}
	t, err := s.svc.Transactions.Create(r.Context(), ownerID(r), nt)
	if err != nil {
		writeServiceError(w, r, "create transaction", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(t).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, p, err := ParseListParams(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, "list transactions", err)
		return
	}
	page, err := s.svc.Transactions.List(r.Context(), ownerID(r), f, p)
	if err != nil {
		writeServiceError(w, r, "list transactions", err)
		return
	}
	if page.Transactions == nil {
		page.Transactions = []core.Transaction{}
	}
	NewJSONResponse().Body(page).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Transactions.Get(r.Context(), ownerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "get transaction", err)
		return
	}
	NewJSONResponse().Body(t).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var in transactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "update transaction", err)
		return
	}
	patch, err := in.toPatch()
	if err != nil {
		writeServiceError(w, r, "update transaction", err)
		return
	}
	t, err := s.svc.Transactions.Update(r.Context(), ownerID(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeServiceError(w, r, "update transaction", err)
		return
	}
	NewJSONResponse().Body(t).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Transactions.Delete(r.Context(), ownerID(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, "delete transaction", err)
		return
	}
	NewJSONResponse().Message("Transaction removed successfully").Write(w)
}

// handleExport buffers the CSV so a store failure still yields a clean 500.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.svc.Transactions.Export(r.Context(), ownerID(r), &buf); err != nil {
		writeServiceError(w, r, "export transactions", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Insights.Summary(r.Context(), ownerID(r))
	if err != nil {
		writeServiceError(w, r, "summary", err)
		return
	}
	if summary.RecentTransactions == nil {
		summary.RecentTransactions = []core.Transaction{}
	}
	NewJSONResponse().Body(summary).Write(w)
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	days, err := ParseWindowDays(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, "chart data", err)
		return
	}
	data, err := s.svc.Insights.ChartData(r.Context(), ownerID(r), days)
	if err != nil {
		writeServiceError(w, r, "chart data", err)
		return
	}
	if data.ExpensesByCategory == nil {
		data.ExpensesByCategory = []core.CategoryTotal{}
	}
	if data.ExpensesOverTime == nil {
		data.ExpensesOverTime = []core.DailyTotal{}
	}
	if data.IncomeOverTime == nil {
		data.IncomeOverTime = []core.DailyTotal{}
	}
	NewJSONResponse().Body(data).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Categories.List(r.Context(), ownerID(r))
	if err != nil {
		writeServiceError(w, r, "list categories", err)
		return
	}
	NewJSONResponse().Body(cats).Write(w)
}

type deleteCategoryRequest struct {
	CategoryToDelete string `json:"categoryToDelete"`
}

type deleteCategoryResponse struct {
	Message    string `json:"message"`
	Reassigned int64  `json:"reassigned"`
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	var req deleteCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, "delete category", err)
		return
	}
	name := sanitizeInput(req.CategoryToDelete)
	if name == "" {
		BadRequestError("Category name is required").Write(w)
		return
	}
	n, err := s.svc.Categories.Delete(r.Context(), ownerID(r), name)
	if err != nil {
		writeServiceError(w, r, "delete category", err)
		return
	}
	NewJSONResponse().Body(deleteCategoryResponse{
		Message: "Category '" + name + "' deleted successfully. Associated transactions moved to '" +
			core.FallbackCategory + "'.",
		Reassigned: n,
	}).Write(w)
}
