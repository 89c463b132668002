package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yieldnest/invest_api/models"
)

// AccrualRun summarizes one periodic accrual sweep.
type AccrualRun struct {
	Candidates int             `json:"candidates"`
	Credited   int             `json:"credited"`
	Skipped    int             `json:"skipped"`
	Failed     int             `json:"failed"`
	Amount     decimal.Decimal `json:"amount"`
}

// RunPeriodicAccrual credits one period to every Active investment that is due.
// A failing investment is logged and skipped; the sweep carries on.
func (l *Ledger) RunPeriodicAccrual(ctx context.Context) (AccrualRun, error) {
	due, err := l.store.ListAccruableInvestments(ctx)
	if err != nil {
		return AccrualRun{}, fmt.Errorf("run accrual: failed to list investments: %w", err)
	}

	run := AccrualRun{Candidates: len(due), Amount: decimal.Zero}
	for i := range due {
		inv := &due[i]
		plan, applied, err := l.accrueOne(ctx, inv)
		switch {
		case err != nil:
			run.Failed++
			log.Printf("🔥 Accrual failed for investment %s: %v", inv.ID, err)
		case applied:
			run.Credited++
			run.Amount = run.Amount.Add(plan.Amount)
		default:
			run.Skipped++
		}
	}
	return run, nil
}

func (l *Ledger) accrueOne(ctx context.Context, inv *models.Investment) (plan AccrualPlan, applied bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while accruing: %v", r)
		}
	}()

	now := l.clock()
	plan = PlanAccrual(inv, now, SinglePeriod)
	if !plan.Due() {
		return plan, false, nil
	}

	release, ok := l.acquireLease(ctx, inv.ID)
	if !ok {
		return plan, false, nil
	}
	defer release()

	err = l.store.Transaction(ctx, func(tx LedgerStore) error {
		credited, err := l.creditInvestment(ctx, tx, inv, plan, now, true)
		if err != nil || !credited {
			return err
		}
		applied = true
		return tx.IncrementUserTotals(ctx, inv.UserID, models.UserDelta{
			Balance:       plan.Amount,
			TotalEarnings: plan.Amount,
		})
	})
	if err != nil {
		return plan, false, err
	}
	if applied {
		l.events.Publish(inv.UserID, LedgerEvent{Type: EventAccrual, ReferenceID: inv.ID, Amount: plan.Amount, At: now})
	}
	return plan, applied, nil
}

// AccrueForUser catches up every Active investment of one user and credits the
// total to the user in a single update. It returns the amount credited.
func (l *Ledger) AccrueForUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	invs, err := l.store.ListUserInvestments(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("accrue for user: failed to list investments: %w", err)
	}

	now := l.clock()
	var releases []func()
	defer func() {
		for _, release := range releases {
			release()
		}
	}()

	total := decimal.Zero
	err = l.store.Transaction(ctx, func(tx LedgerStore) error {
		total = decimal.Zero
		for i := range invs {
			inv := &invs[i]
			plan := PlanAccrual(inv, now, CatchUp)
			if !plan.Due() {
				continue
			}
			release, ok := l.acquireLease(ctx, inv.ID)
			if !ok {
				continue
			}
			releases = append(releases, release)

			credited, err := l.creditInvestment(ctx, tx, inv, plan, now, false)
			if err != nil {
				return fmt.Errorf("investment %s: %w", inv.ID, err)
			}
			if credited {
				total = total.Add(plan.Amount)
			}
		}
		if total.IsZero() {
			return nil
		}
		return tx.IncrementUserTotals(ctx, userID, models.UserDelta{Balance: total, TotalEarnings: total})
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("accrue for user %s: %w", userID, err)
	}
	if total.IsPositive() {
		l.events.Publish(userID, LedgerEvent{Type: EventAccrual, ReferenceID: userID, Amount: total, At: now})
	}
	return total, nil
}

// creditInvestment applies plan to inv and writes the earnings log. It reports
// false without error when another run already moved the investment on.
func (l *Ledger) creditInvestment(ctx context.Context, tx LedgerStore, inv *models.Investment, plan AccrualPlan, now time.Time, logFirstPayout bool) (bool, error) {
	ok, err := tx.ApplyAccrual(ctx, inv.ID, inv.Cursor(), models.AccrualCredit{
		Days:        plan.Periods,
		Amount:      plan.Amount,
		At:          now,
		FirstPayout: plan.FirstPayout,
	})
	if err != nil {
		return false, fmt.Errorf("failed to apply accrual: %w", err)
	}
	if !ok {
		return false, nil
	}

	entries := make([]*models.EarningLog, 0, 2)
	if plan.FirstPayout && logFirstPayout {
		entries = append(entries, earningEntry(inv, plan, models.EarningTypeFirstROI, now))
	}
	entries = append(entries, earningEntry(inv, plan, models.EarningTypeROI, now))
	if err := tx.AppendEarnings(ctx, entries...); err != nil {
		return false, fmt.Errorf("failed to write earnings log: %w", err)
	}
	return true, nil
}

func earningEntry(inv *models.Investment, plan AccrualPlan, kind string, now time.Time) *models.EarningLog {
	return &models.EarningLog{
		ID:           uuid.New(),
		UserID:       inv.UserID,
		InvestmentID: inv.ID,
		Amount:       plan.Amount,
		Days:         plan.Periods,
		DailyPercent: plan.DailyPercent,
		Type:         kind,
		PlanName:     inv.PlanName,
		CreatedAt:    now,
	}
}

// acquireLease takes the per-investment accrual lease. A lock backend error is
// logged and the credit proceeds; ApplyAccrual's cursor check still holds.
func (l *Ledger) acquireLease(ctx context.Context, id uuid.UUID) (func(), bool) {
	release, ok, err := l.locker.Acquire(ctx, "accrual:"+id.String(), accrualLeaseTTL)
	if err != nil {
		log.Printf("⚠️ Accrual lease unavailable for investment %s: %v", id, err)
		return func() {}, true
	}
	if !ok {
		return nil, false
	}
	return release, true
}
