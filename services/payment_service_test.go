package services_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yieldnest/invest_api/models"
	"github.com/yieldnest/invest_api/services"
)

func (f *fixture) submit(t *testing.T, userID uuid.UUID, amount string) *models.Payment {
	t.Helper()
	p, err := f.ledger.SubmitPayment(ctx, userID, services.PaymentRequest{Amount: dec(amount), Crypto: "USDT", TxHash: "0xfeed"})
	require.NoError(t, err)
	return p
}

func TestSubmitPayment(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "0")

	p := f.submit(t, u.ID, "250")
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.Equal(t, models.DefaultPlanName, p.Plan)
	require.NotNil(t, p.TxHash)

	_, err := f.ledger.SubmitPayment(ctx, u.ID, services.PaymentRequest{Amount: dec("0"), Crypto: "USDT"})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
	_, err = f.ledger.SubmitPayment(ctx, u.ID, services.PaymentRequest{Amount: dec("10"), Crypto: " "})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	blocked := f.addUser(t, "0")
	require.NoError(t, f.store.UpdateUserStatus(ctx, blocked.ID, models.UserStatusBlocked))
	_, err = f.ledger.SubmitPayment(ctx, blocked.ID, services.PaymentRequest{Amount: dec("10"), Crypto: "BTC"})
	assert.ErrorIs(t, err, services.ErrUserBlocked)
}

func TestApprovePaymentActivatesInvestment(t *testing.T) {
	events := &recordedEvents{}
	f := newFixture(t, services.WithEvents(events))
	u := f.addUser(t, "10")
	p := f.submit(t, u.ID, "1000")

	res, err := f.ledger.SetPaymentStatus(ctx, boss, p.ID, models.PaymentStatusApproved)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	require.NotNil(t, res.Investment)
	assert.Nil(t, res.Referral)

	inv := f.investment(t, res.Investment.ID)
	assert.Equal(t, models.InvestmentStatusActive, inv.Status)
	assert.True(t, dec("1000").Equal(inv.Amount))
	assert.Equal(t, 30, *inv.DurationDays)
	assert.True(t, dec("0.10").Equal(inv.DailyPercent.Decimal))
	assert.Equal(t, 0, *inv.DaysAccrued)
	assert.True(t, inv.Earnings.Decimal.IsZero())
	assert.False(t, inv.CanWithdraw)
	assert.True(t, t0.Equal(*inv.LastAccruedAt))
	assert.True(t, t0.Equal(inv.ApprovedAt))

	stored, err := f.store.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, stored.Status)
	require.NotNil(t, stored.PaidAt)
	assert.True(t, t0.Equal(*stored.PaidAt))
	assert.Equal(t, inv.ID, *stored.InvestmentID)

	user := f.user(t, u.ID)
	assert.True(t, dec("1010").Equal(user.Balance))
	assert.True(t, dec("1000").Equal(user.TotalInvested))

	require.Len(t, events.events[u.ID], 1)
	assert.Equal(t, services.EventPaymentApproved, events.events[u.ID][0].Type)

	t.Run("approving again is a no-op", func(t *testing.T) {
		res, err := f.ledger.SetPaymentStatus(ctx, boss, p.ID, models.PaymentStatusApproved)
		require.NoError(t, err)
		assert.False(t, res.Changed)
		assert.True(t, dec("1010").Equal(f.user(t, u.ID).Balance))
		invs, _ := f.store.ListUserInvestments(ctx, u.ID)
		assert.Len(t, invs, 1)
	})

	t.Run("approved payments cannot move", func(t *testing.T) {
		_, err := f.ledger.SetPaymentStatus(ctx, boss, p.ID, models.PaymentStatusRejected)
		assert.ErrorIs(t, err, services.ErrInvalidTransition)
	})
}

func TestReferralBonus(t *testing.T) {
	f := newFixture(t)
	referrer := f.addUser(t, "0")
	investor := f.addUser(t, "0")
	investor.ReferredBy = &referrer.ID
	f.store.PutUser(investor)

	small := f.submit(t, investor.ID, "99.99")
	res, err := f.ledger.SetPaymentStatus(ctx, boss, small.ID, models.PaymentStatusApproved)
	require.NoError(t, err)
	assert.Nil(t, res.Referral, "below the qualifying amount")

	first := f.submit(t, investor.ID, "150")
	res, err = f.ledger.SetPaymentStatus(ctx, boss, first.ID, models.PaymentStatusApproved)
	require.NoError(t, err)
	require.NotNil(t, res.Referral)
	assert.True(t, dec("10").Equal(res.Referral.Amount))
	assert.Equal(t, referrer.ID, res.Referral.ReferrerID)
	assert.Equal(t, first.ID, res.Referral.PaymentID)

	r := f.user(t, referrer.ID)
	assert.True(t, dec("10").Equal(r.Balance))
	assert.True(t, dec("10").Equal(r.TotalEarnings))

	second := f.submit(t, investor.ID, "5000")
	res, err = f.ledger.SetPaymentStatus(ctx, boss, second.ID, models.PaymentStatusApproved)
	require.NoError(t, err)
	assert.Nil(t, res.Referral)
	assert.Len(t, f.store.ReferralPayouts(), 1)
	assert.True(t, dec("10").Equal(f.user(t, referrer.ID).Balance))
}

func TestReferralBonusSkipsMissingReferrer(t *testing.T) {
	f := newFixture(t)
	investor := f.addUser(t, "0")
	gone := uuid.New()
	investor.ReferredBy = &gone
	f.store.PutUser(investor)

	p := f.submit(t, investor.ID, "500")
	res, err := f.ledger.SetPaymentStatus(ctx, boss, p.ID, models.PaymentStatusApproved)
	require.NoError(t, err, "a dangling referrer must not block the investor")
	assert.True(t, res.Changed)
	assert.Nil(t, res.Referral)
	assert.Empty(t, f.store.ReferralPayouts())
	assert.True(t, dec("500").Equal(f.user(t, investor.ID).Balance))
}

func TestSetPaymentStatusGuards(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "0")
	p := f.submit(t, u.ID, "100")

	t.Run("non admin", func(t *testing.T) {
		caller := services.Identity{UserID: u.ID, Email: u.Email, Role: models.RoleUser}
		_, err := f.ledger.SetPaymentStatus(ctx, caller, p.ID, models.PaymentStatusApproved)
		assert.ErrorIs(t, err, services.ErrForbidden)
	})

	t.Run("admin by configured email", func(t *testing.T) {
		g := newFixture(t, services.WithAdminPolicy(services.AdminPolicy("Owner@Example.com")))
		owner := g.addUser(t, "0")
		pay := g.submit(t, owner.ID, "100")
		caller := services.Identity{UserID: uuid.New(), Email: "owner@example.com", Role: models.RoleUser}
		_, err := g.ledger.SetPaymentStatus(ctx, caller, pay.ID, models.PaymentStatusRejected)
		assert.NoError(t, err)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := f.ledger.SetPaymentStatus(ctx, boss, p.ID, "Paid")
		assert.ErrorIs(t, err, services.ErrInvalidInput)
	})

	t.Run("unknown payment", func(t *testing.T) {
		_, err := f.ledger.SetPaymentStatus(ctx, boss, uuid.New(), models.PaymentStatusApproved)
		assert.ErrorIs(t, err, services.ErrNotFound)
	})

	t.Run("rejected then approved", func(t *testing.T) {
		res, err := f.ledger.SetPaymentStatus(ctx, boss, p.ID, models.PaymentStatusRejected)
		require.NoError(t, err)
		assert.Nil(t, res.Investment)
		assert.True(t, f.user(t, u.ID).Balance.IsZero())

		res, err = f.ledger.SetPaymentStatus(ctx, boss, p.ID, models.PaymentStatusApproved)
		require.NoError(t, err)
		assert.NotNil(t, res.Investment)
		assert.True(t, dec("100").Equal(f.user(t, u.ID).Balance))
	})
}

func TestApprovePaymentRollsBack(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "0")
	p := f.submit(t, u.ID, "500")
	f.store.FailOn("IncrementUserTotals", errors.New("write failed"))

	_, err := f.ledger.SetPaymentStatus(ctx, boss, p.ID, models.PaymentStatusApproved)
	require.Error(t, err)

	stored, _ := f.store.GetPayment(ctx, p.ID)
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
	assert.Nil(t, stored.InvestmentID)
	invs, _ := f.store.ListUserInvestments(ctx, u.ID)
	assert.Empty(t, invs)

	f.store.FailOn("IncrementUserTotals", nil)
	f.clock.Advance(time.Minute)
	res, err := f.ledger.SetPaymentStatus(ctx, boss, p.ID, models.PaymentStatusApproved)
	require.NoError(t, err, "a retried approval converges")
	assert.NotNil(t, res.Investment)
}
