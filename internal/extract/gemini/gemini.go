// Package gemini extracts receipt fields from an image with a Gemini model.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"paisable/internal/core"
	"paisable/internal/ports"
)

const DefaultModel = "gemini-2.5-flash"

var _ ports.ReceiptExtractor = (*Extractor)(nil)

type Extractor struct {
	client *genai.Client
	model  string
}

// New creates an extractor against the Gemini API.
func New(ctx context.Context, apiKey, model string) (*Extractor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing GEMINI_API_KEY")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Extractor{client: client, model: model}, nil
}

func prompt() string {
	return "Analyze this receipt image. Extract the following details:\n" +
		"- merchant: the name of the store or merchant.\n" +
		"- amount: the final total amount paid, as a number.\n" +
		"- date: the date of the transaction in YYYY-MM-DD format.\n" +
		"- category: a likely category from this list: " + strings.Join(core.DefaultCategories, ", ") + ".\n\n" +
		"Return ONLY a single minified JSON object, no Markdown, no code fences. Example:\n" +
		`{"merchant":"Walmart","amount":42.97,"date":"2025-09-13","category":"Groceries"}`
}

// ExtractReceipt sends the image to the model and parses its reply.
func (e *Extractor) ExtractReceipt(ctx context.Context, image []byte, mimeType string) (core.ReceiptDraft, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt()},
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
			},
		},
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return core.ReceiptDraft{}, fmt.Errorf("generate content: %w", err)
	}
	raw := resp.Text()
	if raw == "" {
		return core.ReceiptDraft{}, errors.New("empty response from model")
	}
	return ParseDraft(raw)
}

// ParseDraft decodes the model reply. Fields that are missing or malformed are left
// empty for later defaulting; only a reply that is not a JSON object is an error.
func ParseDraft(raw string) (core.ReceiptDraft, error) {
	clean := cleanModelJSON(raw)

	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return core.ReceiptDraft{}, fmt.Errorf("unmarshal model JSON: %w", err)
	}

	draft := core.ReceiptDraft{
		Merchant: stringField(m, "merchant"),
		Category: stringField(m, "category"),
	}
	if amt, ok := m["amount"]; ok {
		if money, err := core.ParseMoney(strings.TrimPrefix(fmt.Sprint(amt), "$")); err == nil {
			draft.Amount = money
		}
	}
	if d, err := core.ParseDate(stringField(m, "date")); err == nil {
		draft.Date = &d
	}
	return draft, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// cleanModelJSON strips code fences and any prose around the outermost object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}
