package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yieldnest/invest_api/models"
)

type PaymentRequest struct {
	Amount decimal.Decimal
	Crypto string
	TxHash string
	Plan   string
}

// SubmitPayment records a Pending payment for admin review.
func (l *Ledger) SubmitPayment(ctx context.Context, userID uuid.UUID, req PaymentRequest) (*models.Payment, error) {
	req.Crypto = strings.TrimSpace(req.Crypto)
	if !req.Amount.IsPositive() || req.Crypto == "" {
		return nil, ErrInvalidInput
	}

	user, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("submit payment: %w", err)
	}
	if user.IsBlocked() {
		return nil, ErrUserBlocked
	}

	p := &models.Payment{
		ID:     uuid.New(),
		UserID: userID,
		Amount: req.Amount,
		Crypto: req.Crypto,
		Plan:   strings.TrimSpace(req.Plan),
		Status: models.PaymentStatusPending,
	}
	if p.Plan == "" {
		p.Plan = models.DefaultPlanName
	}
	if hash := strings.TrimSpace(req.TxHash); hash != "" {
		p.TxHash = &hash
	}
	if err := l.store.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("submit payment: %w", err)
	}
	return p, nil
}

// PaymentResult is the outcome of SetPaymentStatus. Investment and Referral are
// set only when the call approved the payment.
type PaymentResult struct {
	Payment    *models.Payment
	Changed    bool
	Investment *models.Investment
	Referral   *models.ReferralPayout
}

// SetPaymentStatus moves a payment to status. Approval activates an investment,
// credits the owner and pays the referrer bonus, all in one transaction. An
// Approved payment cannot be moved again.
func (l *Ledger) SetPaymentStatus(ctx context.Context, caller Identity, id uuid.UUID, status string) (*PaymentResult, error) {
	if err := l.requireAdmin(caller); err != nil {
		return nil, err
	}
	if !models.ValidPaymentStatus(status) {
		return nil, ErrInvalidInput
	}

	p, err := l.store.GetPayment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("set payment status: %w", err)
	}
	if p.Status == status {
		return &PaymentResult{Payment: p}, nil
	}
	if p.Status == models.PaymentStatusApproved {
		return nil, ErrInvalidTransition
	}

	now := l.clock()
	res := &PaymentResult{Payment: p, Changed: true}
	from := p.Status

	err = l.store.Transaction(ctx, func(tx LedgerStore) error {
		res.Investment, res.Referral = nil, nil
		if status != models.PaymentStatusApproved {
			ok, err := tx.TransitionPaymentStatus(ctx, id, from, status, nil, nil)
			if err != nil {
				return fmt.Errorf("failed to update payment: %w", err)
			}
			if !ok {
				return ErrConflict
			}
			return nil
		}

		inv := models.NewActiveInvestment(p, now)
		ok, err := tx.TransitionPaymentStatus(ctx, id, from, status, &now, &inv.ID)
		if err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		if !ok {
			return ErrConflict
		}
		if err := tx.CreateInvestment(ctx, inv); err != nil {
			return fmt.Errorf("failed to create investment: %w", err)
		}
		if err := tx.IncrementUserTotals(ctx, p.UserID, models.UserDelta{
			Balance:       p.Amount,
			TotalInvested: p.Amount,
		}); err != nil {
			return fmt.Errorf("failed to credit user: %w", err)
		}
		res.Investment = inv

		payout, err := l.payReferralBonus(ctx, tx, p, now)
		if err != nil {
			return err
		}
		res.Referral = payout
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("set payment status: %w", err)
	}

	p.Status = status
	if res.Investment != nil {
		p.PaidAt = &now
		p.InvestmentID = &res.Investment.ID
		log.Printf("✅ Payment %s approved, investment %s activated for user %s", p.ID, res.Investment.ID, p.UserID)
		l.events.Publish(p.UserID, LedgerEvent{Type: EventPaymentApproved, ReferenceID: p.ID, Amount: p.Amount, Status: status, At: now})
	} else {
		l.events.Publish(p.UserID, LedgerEvent{Type: EventPaymentStatus, ReferenceID: p.ID, Amount: p.Amount, Status: status, At: now})
	}
	if res.Referral != nil {
		l.events.Publish(res.Referral.ReferrerID, LedgerEvent{Type: EventReferralBonus, ReferenceID: res.Referral.ID, Amount: res.Referral.Amount, At: now})
	}
	return res, nil
}

// payReferralBonus credits the referrer of p's owner once per referred user,
// when the payment reaches the qualifying amount.
func (l *Ledger) payReferralBonus(ctx context.Context, tx LedgerStore, p *models.Payment, now time.Time) (*models.ReferralPayout, error) {
	if p.Amount.LessThan(referralMinInvestment) {
		return nil, nil
	}
	user, err := tx.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load investor: %w", err)
	}
	if user.ReferredBy == nil || *user.ReferredBy == user.ID {
		return nil, nil
	}

	paid, err := tx.HasReferralPayout(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check referral payout: %w", err)
	}
	if paid {
		return nil, nil
	}
	if _, err := tx.GetUser(ctx, *user.ReferredBy); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Printf("⚠️ Referrer %s of user %s no longer exists, skipping referral bonus", *user.ReferredBy, user.ID)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load referrer: %w", err)
	}

	payout := &models.ReferralPayout{
		ID:             uuid.New(),
		ReferrerID:     *user.ReferredBy,
		ReferredUserID: user.ID,
		PaymentID:      p.ID,
		Amount:         referralBonus,
		CreatedAt:      now,
	}
	if err := tx.CreateReferralPayout(ctx, payout); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to record referral payout: %w", err)
	}
	if err := tx.IncrementUserTotals(ctx, payout.ReferrerID, models.UserDelta{
		Balance:       referralBonus,
		TotalEarnings: referralBonus,
	}); err != nil {
		return nil, fmt.Errorf("failed to credit referrer: %w", err)
	}
	return payout, nil
}

func (l *Ledger) ListUserPayments(ctx context.Context, userID uuid.UUID, f ListFilter) ([]models.Payment, int64, error) {
	return l.store.ListPayments(ctx, &userID, f)
}

func (l *Ledger) ListPayments(ctx context.Context, caller Identity, f ListFilter) ([]models.Payment, int64, error) {
	if err := l.requireAdmin(caller); err != nil {
		return nil, 0, err
	}
	return l.store.ListPayments(ctx, nil, f)
}
