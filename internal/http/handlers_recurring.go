package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"paisable/internal/core"
	"paisable/internal/services"
)

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	rules, err := s.svc.Recurring.List(r.Context(), ownerID(r))
	if err != nil {
		writeServiceError(w, r, "list recurring", err)
		return
	}
	if rules == nil {
		rules = []core.RecurringRule{}
	}
	NewJSONResponse().Body(rules).Write(w)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var in recurringInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "create recurring", err)
		return
	}
	freq, err := in.frequency()
	if err != nil {
		writeServiceError(w, r, "create recurring", err)
		return
	}
	start, err := in.startDate()
	if err != nil {
		writeServiceError(w, r, "create recurring", err)
		return
	}

	rule := services.NewRecurringRule{
		Name:     derefString(in.Name),
		Category: derefString(in.Category),
	}
	if in.Cost != nil {
		rule.Cost = *in.Cost
	}
	if in.IsIncome != nil {
		rule.IsIncome = *in.IsIncome
	}
	if freq != nil {
		rule.Frequency = *freq
	}
	if start != nil {
		rule.StartDate = *start
	}

	created, err := s.svc.Recurring.Create(r.Context(), ownerID(r), rule)
	if err != nil {
		writeServiceError(w, r, "create recurring", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w)
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	var in recurringInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "update recurring", err)
		return
	}
	freq, err := in.frequency()
	if err != nil {
		writeServiceError(w, r, "update recurring", err)
		return
	}
	start, err := in.startDate()
	if err != nil {
		writeServiceError(w, r, "update recurring", err)
		return
	}

	patch := core.RecurringPatch{
		Cost:      in.Cost,
		IsIncome:  in.IsIncome,
		Frequency: freq,
		StartDate: start,
	}
	if in.Name != nil {
		v := sanitizeInput(*in.Name)
		patch.Name = &v
	}
	if in.Category != nil {
		v := sanitizeInput(*in.Category)
		patch.Category = &v
	}

	updated, err := s.svc.Recurring.Update(r.Context(), ownerID(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeServiceError(w, r, "update recurring", err)
		return
	}
	NewJSONResponse().Body(updated).Write(w)
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Recurring.Delete(r.Context(), ownerID(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, "delete recurring", err)
		return
	}
	NewJSONResponse().Message("Recurring transaction deactivated").Write(w)
}
