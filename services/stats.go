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

type UserStats struct {
	Balance                decimal.Decimal `json:"balance"`
	TotalInvested          decimal.Decimal `json:"total_invested"`
	ActiveInvestmentsCount int             `json:"active_investments_count"`
	TotalEarnings          decimal.Decimal `json:"total_earnings"`
	EarningsToday          decimal.Decimal `json:"earnings_today"`
	ReferralEarnings       decimal.Decimal `json:"referral_earnings"`
	ReferralCount          int64           `json:"referral_count"`
}

// GetUserStats brings the user's investments up to date and returns the
// dashboard totals. A failed catch-up is logged and the stored totals served.
func (l *Ledger) GetUserStats(ctx context.Context, userID uuid.UUID) (*UserStats, error) {
	if _, err := l.AccrueForUser(ctx, userID); err != nil {
		log.Printf("⚠️ On-demand accrual failed for user %s: %v", userID, err)
	}

	user, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	invs, err := l.store.ListUserInvestments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user stats: failed to list investments: %w", err)
	}

	stats := &UserStats{
		Balance:       user.Balance,
		TotalInvested: user.TotalInvested,
		TotalEarnings: user.TotalEarnings,
	}
	for i := range invs {
		if invs[i].Status == models.InvestmentStatusActive {
			stats.ActiveInvestmentsCount++
		}
	}

	// Accounts created before totals were tracked fall back to the sum of principal.
	if stats.TotalInvested.IsZero() && len(invs) > 0 {
		sum, err := l.store.SumUserInvestments(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("user stats: failed to sum investments: %w", err)
		}
		stats.TotalInvested = sum
	}

	now := l.clock()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if stats.EarningsToday, err = l.store.SumEarnings(ctx, userID, startOfDay, models.EarningTypeROI); err != nil {
		return nil, fmt.Errorf("user stats: failed to sum earnings: %w", err)
	}
	if stats.ReferralEarnings, err = l.store.SumReferralPayouts(ctx, userID); err != nil {
		return nil, fmt.Errorf("user stats: failed to sum referral payouts: %w", err)
	}
	if stats.ReferralCount, err = l.store.CountReferredUsers(ctx, userID); err != nil {
		return nil, fmt.Errorf("user stats: failed to count referrals: %w", err)
	}
	return stats, nil
}
