package services

import (
	"context"
	"fmt"
	"log"
)

// BackfillAccrualFields fills default accrual columns on legacy investments
// and returns how many rows it updated. Present columns are never touched, so
// a second run updates nothing.
func (l *Ledger) BackfillAccrualFields(ctx context.Context, caller Identity) (int, error) {
	if err := l.requireAdmin(caller); err != nil {
		return 0, err
	}

	invs, err := l.store.ListInvestmentsMissingAccrualFields(ctx)
	if err != nil {
		return 0, fmt.Errorf("backfill: failed to list investments: %w", err)
	}

	now := l.clock()
	updated := 0
	for i := range invs {
		fill := invs[i].MissingAccrualFields(now)
		if fill.Empty() {
			continue
		}
		if err := l.store.BackfillInvestment(ctx, invs[i].ID, fill); err != nil {
			return updated, fmt.Errorf("backfill investment %s: %w", invs[i].ID, err)
		}
		updated++
	}
	log.Printf("✅ Accrual backfill updated %d of %d investments", updated, len(invs))
	return updated, nil
}
