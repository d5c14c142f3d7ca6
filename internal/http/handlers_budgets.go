package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"paisable/internal/core"
)

type budgetInput struct {
	Category *string     `json:"category"`
	Limit    *core.Money `json:"limit"`
}

// handleListBudgets reports every budget against the month named by the
// month query parameter (YYYY-MM), defaulting to the current month.
func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	var month time.Time
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := core.ParseMonth(v)
		if err != nil {
			writeServiceError(w, r, "list budgets", err)
			return
		}
		month = m
	}
	report, err := s.svc.Budgets.Report(r.Context(), ownerID(r), month)
	if err != nil {
		writeServiceError(w, r, "list budgets", err)
		return
	}
	NewJSONResponse().Body(report).Write(w)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var in budgetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "create budget", err)
		return
	}
	if in.Limit == nil {
		writeServiceError(w, r, "create budget", core.ErrInvalidLimit)
		return
	}
	created, err := s.svc.Budgets.Create(r.Context(), ownerID(r), sanitizeInput(derefString(in.Category)), *in.Limit)
	if err != nil {
		writeServiceError(w, r, "create budget", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var in budgetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "update budget", err)
		return
	}
	patch := core.BudgetPatch{Limit: in.Limit}
	if in.Category != nil {
		v := sanitizeInput(*in.Category)
		patch.Category = &v
	}
	updated, err := s.svc.Budgets.Update(r.Context(), ownerID(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeServiceError(w, r, "update budget", err)
		return
	}
	NewJSONResponse().Body(updated).Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Budgets.Delete(r.Context(), ownerID(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, "delete budget", err)
		return
	}
	NewJSONResponse().Message("Budget removed").Write(w)
}
