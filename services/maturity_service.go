package services

import (
	"context"
	"fmt"
	"log"
)

// NotifyMaturedInvestments emails the owner of every investment that reached
// its full term and has not been announced yet. It returns the number sent.
func (l *Ledger) NotifyMaturedInvestments(ctx context.Context) (int, error) {
	invs, err := l.store.ListMaturedUnnotified(ctx)
	if err != nil {
		return 0, fmt.Errorf("maturity notices: failed to list investments: %w", err)
	}

	sent := 0
	for i := range invs {
		inv := &invs[i]
		user, err := l.store.GetUser(ctx, inv.UserID)
		if err != nil {
			log.Printf("🔥 Maturity notice skipped for investment %s: %v", inv.ID, err)
			continue
		}
		state := inv.AccrualState()
		err = l.notifier.SendInvestmentMatured(ctx, MaturityEmail{
			ToEmail:  user.Email,
			ToName:   user.FullName,
			PlanName: inv.PlanName,
			Amount:   inv.Amount,
			Earnings: state.Earnings,
		})
		if err != nil {
			log.Printf("🔥 Failed to send maturity notice for investment %s: %v", inv.ID, err)
			continue
		}
		if err := l.store.MarkMaturityNotified(ctx, inv.ID, l.clock()); err != nil {
			log.Printf("⚠️ Maturity notice sent but not recorded for investment %s: %v", inv.ID, err)
			continue
		}
		sent++
	}
	return sent, nil
}
