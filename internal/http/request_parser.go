// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating HTTP request data.
// Bodies decode into pointer fields so an omitted field is distinguishable
// from an explicit zero or false.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"paisable/internal/core"
)

const maxJSONBody = 1 << 20

// transactionInput is the JSON shape of a create or update.
type transactionInput struct {
	Name     *string     `json:"name"`
	Category *string     `json:"category"`
	Cost     *core.Money `json:"cost"`
	AddedOn  *string     `json:"addedOn"`
	IsIncome *bool       `json:"isIncome"`
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return core.NewValidationError("body", "is required")
		}
		if core.IsValidation(err) {
			return err
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return core.NewValidationError("body", "too large")
		}
		return core.NewValidationError("body", "is not valid JSON")
	}
	return nil
}

// parseDateField parses an optional date; nil or blank means absent.
func parseDateField(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := core.ParseDate(*s)
	if err != nil {
		return nil, core.NewValidationError(field, "must be a valid date (YYYY-MM-DD or RFC3339)")
	}
	return &t, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return sanitizeInput(*s)
}

// toNew builds a create request. A missing date means today.
func (in transactionInput) toNew(now time.Time) (core.NewTransaction, error) {
	out := core.NewTransaction{
		Name:       derefString(in.Name),
		Category:   derefString(in.Category),
		OccurredOn: now,
	}
	if in.Cost != nil {
		out.Cost = *in.Cost
	}
	if in.IsIncome != nil {
		out.IsIncome = *in.IsIncome
	}
	d, err := parseDateField("addedOn", in.AddedOn)
	if err != nil {
		return core.NewTransaction{}, err
	}
	if d != nil {
		out.OccurredOn = *d
	}
	return out, nil
}

// toPatch keeps every omitted field nil.
func (in transactionInput) toPatch() (core.TransactionPatch, error) {
	var p core.TransactionPatch
	if in.Name != nil {
		v := sanitizeInput(*in.Name)
		p.Name = &v
	}
	if in.Category != nil {
		v := sanitizeInput(*in.Category)
		p.Category = &v
	}
	p.Cost = in.Cost
	p.IsIncome = in.IsIncome
	d, err := parseDateField("addedOn", in.AddedOn)
	if err != nil {
		return core.TransactionPatch{}, err
	}
	p.OccurredOn = d
	return p, nil
}

// recurringInput is the JSON shape of a recurring rule create or update.
type recurringInput struct {
	Name      *string     `json:"name"`
	Category  *string     `json:"category"`
	Cost      *core.Money `json:"cost"`
	IsIncome  *bool       `json:"isIncome"`
	Frequency *string     `json:"frequency"`
	StartDate *string     `json:"startDate"`
}

func (in recurringInput) frequency() (*core.Frequency, error) {
	if in.Frequency == nil {
		return nil, nil
	}
	f, err := core.ParseFrequency(*in.Frequency)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (in recurringInput) startDate() (*time.Time, error) {
	if in.StartDate == nil {
		return nil, nil
	}
	t, err := core.ParseDate(*in.StartDate)
	if err != nil {
		return nil, core.ErrInvalidDate
	}
	return &t, nil
}

// ParseListParams reads the listing filters and pagination from the query.
// Malformed values are rejected rather than silently ignored.
func ParseListParams(q url.Values) (core.TransactionFilter, core.Page, error) {
	var f core.TransactionFilter

	if v := strings.TrimSpace(q.Get("isIncome")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, core.Page{}, core.NewValidationError("isIncome", "must be true or false")
		}
		f.IsIncome = &b
	}
	f.Category = sanitizeInput(q.Get("category"))

	if v := strings.TrimSpace(q.Get("startDate")); v != "" {
		t, err := core.ParseDate(v)
		if err != nil {
			return f, core.Page{}, core.NewValidationError("startDate", "must be a valid date")
		}
		f.Start = t
	}
	if v := strings.TrimSpace(q.Get("endDate")); v != "" {
		t, err := core.ParseDate(v)
		if err != nil {
			return f, core.Page{}, core.NewValidationError("endDate", "must be a valid date")
		}
		f.End = core.EndOfDay(t)
	}

	page := core.Page{Number: 1, Size: core.DefaultPageSize}
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, core.Page{}, core.NewValidationError("page", "must be a positive integer")
		}
		if n > core.MaxPageNumber {
			return f, core.Page{}, core.NewValidationError("page", "is out of range")
		}
		page.Number = n
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, core.Page{}, core.NewValidationError("limit", "must be a positive integer")
		}
		page.Size = n
	}
	return f, page.Normalize(), nil
}

// ParseWindowDays reads ?days=N; absent means the service default.
func ParseWindowDays(q url.Values) (int, error) {
	v := strings.TrimSpace(q.Get("days"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 3660 {
		return 0, core.NewValidationError("days", "must be between 1 and 3660")
	}
	return n, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
