package services

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/yieldnest/invest_api/models"
)

// AccrualPeriod is one earning period.
const AccrualPeriod = 24 * time.Hour

type AccrualMode int

const (
	// SinglePeriod credits at most one period per run, once a full period has
	// passed since both approval and the previous credit.
	SinglePeriod AccrualMode = iota
	// CatchUp credits every whole period elapsed since the previous credit.
	CatchUp
)

func (m AccrualMode) String() string {
	if m == CatchUp {
		return "catch-up"
	}
	return "single-period"
}

// AccrualPlan is what one run would credit to an investment. Periods is never
// more than the days left in the investment's term.
type AccrualPlan struct {
	Periods      int
	Amount       decimal.Decimal
	DailyPercent decimal.Decimal
	FirstPayout  bool
}

func (p AccrualPlan) Due() bool {
	return p.Periods > 0
}

// PlanAccrual decides how many periods to credit to inv at now.
func PlanAccrual(inv *models.Investment, now time.Time, mode AccrualMode) AccrualPlan {
	if inv.Status != models.InvestmentStatusActive {
		return AccrualPlan{}
	}
	state := inv.AccrualState()
	remaining := state.Remaining()
	if remaining == 0 {
		return AccrualPlan{}
	}

	var periods int
	switch mode {
	case SinglePeriod:
		if now.Sub(inv.ApprovedAt) < AccrualPeriod || now.Sub(state.LastAccruedAt) < AccrualPeriod {
			return AccrualPlan{}
		}
		periods = 1
	case CatchUp:
		periods = int(now.Sub(state.LastAccruedAt) / AccrualPeriod)
		if periods <= 0 {
			return AccrualPlan{}
		}
	}
	if periods > remaining {
		periods = remaining
	}

	return AccrualPlan{
		Periods:      periods,
		Amount:       inv.Amount.Mul(state.DailyPercent).Mul(decimal.NewFromInt(int64(periods))),
		DailyPercent: state.DailyPercent,
		FirstPayout:  !inv.CanWithdraw,
	}
}
