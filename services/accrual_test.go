package services_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/yieldnest/invest_api/models"
	"github.com/yieldnest/invest_api/services"
)

func investmentAt(approvedAt time.Time, daysAccrued int, lastAccruedAt time.Time) *models.Investment {
	inv := models.NewActiveInvestment(&models.Payment{ID: uuid.New(), UserID: uuid.New(), Amount: dec("1000")}, approvedAt)
	inv.DaysAccrued = &daysAccrued
	inv.LastAccruedAt = &lastAccruedAt
	inv.CanWithdraw = daysAccrued > 0
	return inv
}

func TestPlanAccrual(t *testing.T) {
	tests := []struct {
		name        string
		inv         *models.Investment
		mode        services.AccrualMode
		wantPeriods int
		wantAmount  string
		wantFirst   bool
	}{
		{
			name:        "single period after 25h",
			inv:         investmentAt(t0.Add(-25*time.Hour), 0, t0.Add(-25*time.Hour)),
			mode:        services.SinglePeriod,
			wantPeriods: 1,
			wantAmount:  "100",
			wantFirst:   true,
		},
		{
			name: "single period waits for 24h since approval",
			inv:  investmentAt(t0.Add(-23*time.Hour), 0, t0.Add(-23*time.Hour)),
			mode: services.SinglePeriod,
		},
		{
			name: "single period waits for 24h since last credit",
			inv:  investmentAt(t0.Add(-72*time.Hour), 2, t0.Add(-10*time.Minute)),
			mode: services.SinglePeriod,
		},
		{
			name:        "single period credits one day even when several elapsed",
			inv:         investmentAt(t0.Add(-100*time.Hour), 1, t0.Add(-76*time.Hour)),
			mode:        services.SinglePeriod,
			wantPeriods: 1,
			wantAmount:  "100",
		},
		{
			name:        "catch up credits whole elapsed days",
			inv:         investmentAt(t0.Add(-100*time.Hour), 1, t0.Add(-76*time.Hour)),
			mode:        services.CatchUp,
			wantPeriods: 3,
			wantAmount:  "300",
		},
		{
			name:        "catch up is capped at remaining days",
			inv:         investmentAt(t0.Add(-40*24*time.Hour), 28, t0.Add(-5*24*time.Hour)),
			mode:        services.CatchUp,
			wantPeriods: 2,
			wantAmount:  "200",
		},
		{
			name: "nothing once fully accrued",
			inv:  investmentAt(t0.Add(-40*24*time.Hour), 30, t0.Add(-5*24*time.Hour)),
			mode: services.CatchUp,
		},
		{
			name: "catch up below one period",
			inv:  investmentAt(t0.Add(-30*time.Hour), 1, t0.Add(-6*time.Hour)),
			mode: services.CatchUp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := services.PlanAccrual(tt.inv, t0, tt.mode)
			assert.Equal(t, tt.wantPeriods, plan.Periods)
			assert.Equal(t, tt.wantPeriods > 0, plan.Due())
			if tt.wantPeriods > 0 {
				assert.True(t, dec(tt.wantAmount).Equal(plan.Amount), "amount %s", plan.Amount)
				assert.Equal(t, tt.wantFirst, plan.FirstPayout)
			}
		})
	}
}

func TestPlanAccrualSkipsInactive(t *testing.T) {
	inv := investmentAt(t0.Add(-48*time.Hour), 0, t0.Add(-48*time.Hour))
	inv.Status = models.InvestmentStatusCompleted
	assert.False(t, services.PlanAccrual(inv, t0, services.CatchUp).Due())
}

func TestPlanAccrualAppliesLegacyDefaults(t *testing.T) {
	inv := &models.Investment{
		ID:         uuid.New(),
		Amount:     dec("500"),
		Status:     models.InvestmentStatusActive,
		ApprovedAt: t0.Add(-49 * time.Hour),
	}
	plan := services.PlanAccrual(inv, t0, services.CatchUp)
	assert.Equal(t, 2, plan.Periods)
	assert.True(t, dec("100").Equal(plan.Amount))
	assert.True(t, models.DefaultDailyPercent.Equal(plan.DailyPercent))

	custom := investmentAt(t0.Add(-25*time.Hour), 0, t0.Add(-25*time.Hour))
	custom.DailyPercent = decimal.NewNullDecimal(dec("0.015"))
	plan = services.PlanAccrual(custom, t0, services.SinglePeriod)
	assert.True(t, dec("15").Equal(plan.Amount))
}
