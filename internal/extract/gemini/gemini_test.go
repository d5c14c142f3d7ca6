package gemini

import (
	"strings"
	"testing"

	"paisable/internal/core"
)

func TestParseDraft(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantMerchant string
		wantCents    int64
		wantDate     string
		wantCategory string
		wantErr      bool
	}{
		{
			name:         "minified object",
			raw:          `{"merchant":"Walmart","amount":42.97,"date":"2025-09-13","category":"Groceries"}`,
			wantMerchant: "Walmart", wantCents: 4297, wantDate: "2025-09-13", wantCategory: "Groceries",
		},
		{
			name:         "fenced with prose",
			raw:          "Here you go:\n```json\n{\"merchant\":\"Cafe\",\"amount\":\"3.50\"}\n```",
			wantMerchant: "Cafe", wantCents: 350,
		},
		{
			name:      "bad fields left empty",
			raw:       `{"merchant":null,"amount":"about ten","date":"yesterday"}`,
			wantCents: 0,
		},
		{
			name:      "negative amount dropped",
			raw:       `{"amount":-5}`,
			wantCents: 0,
		},
		{name: "not json", raw: "I cannot read this receipt.", wantErr: true},
		{name: "array", raw: `[1,2]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDraft(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDraft() = %+v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDraft() error: %v", err)
			}
			if got.Merchant != tt.wantMerchant || got.Amount.Cents != tt.wantCents || got.Category != tt.wantCategory {
				t.Errorf("ParseDraft() = %+v", got)
			}
			if tt.wantDate == "" && got.Date != nil {
				t.Errorf("Date = %v, want nil", got.Date)
			}
			if tt.wantDate != "" && (got.Date == nil || core.DayKey(*got.Date) != tt.wantDate) {
				t.Errorf("Date = %v, want %s", got.Date, tt.wantDate)
			}
		})
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}```", `{"a":1}`},
		{`  {"a":1}  `, `{"a":1}`},
		{`result: {"a":{"b":2}} done`, `{"a":{"b":2}}`},
	}
	for _, tt := range tests {
		if got := cleanModelJSON(tt.in); got != tt.want {
			t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPromptListsCategories(t *testing.T) {
	p := prompt()
	for _, c := range core.DefaultCategories {
		if !strings.Contains(p, c) {
			t.Errorf("prompt missing category %q", c)
		}
	}
}

func TestNew_MissingKey(t *testing.T) {
	if _, err := New(t.Context(), "", ""); err == nil {
		t.Error("New() without key should fail")
	}
}
