package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"paisable/internal/core"
	"paisable/internal/ports"
)

// maxCatchUp bounds how many missed periods one run books for a single rule.
const maxCatchUp = 400

// RecurringProcessor books the records of every due recurring rule
type RecurringProcessor struct {
	rules        ports.RecurringStore
	transactions *TransactionService
}

func NewRecurringProcessor(rules ports.RecurringStore, transactions *TransactionService) *RecurringProcessor {
	return &RecurringProcessor{
		rules:        rules,
		transactions: transactions,
	}
}

// occurrenceID makes a booking idempotent: a rerun after a crash between
// create and reschedule finds the record already there.
func occurrenceID(ruleID string, due time.Time) string {
	return TransactionIDFor("recurring:" + ruleID + ":" + due.UTC().Format(time.RFC3339))
}

// ProcessDue creates one record per elapsed period of every active rule whose
// next due date is not after now, dated on the due date, and moves the rule
// forward until its next due date is in the future.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.rules == nil || p.transactions == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	due, err := p.rules.DueRules(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to get due recurring rules: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring rules",
		"due", len(due),
		"processing_date", core.DayKey(now))

	processedCount := 0
	for _, rule := range due {
		n, err := p.processRule(ctx, rule, now)
		processedCount += n
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring rule",
				"rule_id", rule.ID,
				"owner_id", rule.OwnerID,
				"error", err)
		}
	}

	slog.InfoContext(ctx, "Recurring rule processing complete",
		"created", processedCount,
		"rules_checked", len(due))

	return processedCount, nil
}

func (p *RecurringProcessor) processRule(ctx context.Context, rule core.RecurringRule, now time.Time) (int, error) {
	created := 0
	for i := 0; i < maxCatchUp && !rule.NextDueDate.After(now); i++ {
		_, err := p.transactions.create(ctx, rule.OwnerID, occurrenceID(rule.ID, rule.NextDueDate), core.NewTransaction{
			Name:       rule.Name,
			Category:   rule.Category,
			Cost:       rule.Cost,
			OccurredOn: rule.NextDueDate,
			IsIncome:   rule.IsIncome,
		})
		switch {
		case err == nil:
			created++
		case errors.Is(err, core.ErrConflict):
			slog.DebugContext(ctx, "Occurrence already booked", "rule_id", rule.ID, "due", core.DayKey(rule.NextDueDate))
		default:
			return created, fmt.Errorf("create occurrence: %w", err)
		}

		next, err := rule.Frequency.Advance(rule.NextDueDate)
		if err != nil {
			return created, err
		}
		rule.NextDueDate = next
		if _, err := p.rules.UpdateRule(ctx, rule); err != nil {
			return created, fmt.Errorf("advance next due date: %w", err)
		}
	}

	slog.InfoContext(ctx, "Created transactions from recurring rule",
		"rule_id", rule.ID,
		"created", created,
		"next_due_date", core.DayKey(rule.NextDueDate))
	return created, nil
}
