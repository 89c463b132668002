package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yieldnest/invest_api/models"
)

type WithdrawalEligibility struct {
	Eligible           bool            `json:"eligible"`
	MaturedInvestments int             `json:"matured_investments"`
	Balance            decimal.Decimal `json:"balance"`
	MinimumWithdrawal  decimal.Decimal `json:"minimum_withdrawal"`
}

// CheckWithdrawalEligibility reports eligibility from the first-payout flag:
// any Active investment with CanWithdraw set qualifies. Creating a withdrawal
// applies the stricter full-maturity rule.
func (l *Ledger) CheckWithdrawalEligibility(ctx context.Context, userID uuid.UUID) (*WithdrawalEligibility, error) {
	user, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("withdrawal eligibility: %w", err)
	}
	invs, err := l.store.ListUserInvestments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("withdrawal eligibility: failed to list investments: %w", err)
	}

	res := &WithdrawalEligibility{Balance: user.Balance, MinimumWithdrawal: minimumWithdrawal}
	for i := range invs {
		if invs[i].Status == models.InvestmentStatusActive && invs[i].CanWithdraw {
			res.MaturedInvestments++
		}
	}
	res.Eligible = res.MaturedInvestments > 0
	return res, nil
}

type WithdrawalRequest struct {
	Amount        decimal.Decimal
	WalletAddress string
	Crypto        string
}

// CreateWithdrawal records a Pending withdrawal. The user needs a fully
// matured investment and a balance covering the amount.
func (l *Ledger) CreateWithdrawal(ctx context.Context, userID uuid.UUID, req WithdrawalRequest) (*models.Withdrawal, error) {
	req.WalletAddress = strings.TrimSpace(req.WalletAddress)
	req.Crypto = strings.TrimSpace(req.Crypto)
	if !req.Amount.IsPositive() || req.WalletAddress == "" || req.Crypto == "" {
		return nil, ErrInvalidInput
	}
	if req.Amount.LessThan(minimumWithdrawal) {
		return nil, ErrBelowMinimum
	}

	user, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("create withdrawal: %w", err)
	}
	if user.IsBlocked() {
		return nil, ErrUserBlocked
	}

	invs, err := l.store.ListUserInvestments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("create withdrawal: failed to list investments: %w", err)
	}
	var matured *models.Investment
	for i := range invs {
		if invs[i].IsFullyMatured() {
			matured = &invs[i]
			break
		}
	}
	if matured == nil {
		return nil, ErrNoMaturedInvestment
	}
	if req.Amount.GreaterThan(user.Balance) {
		return nil, ErrInsufficientFunds
	}

	investmentID := matured.ID
	w := &models.Withdrawal{
		ID:            uuid.New(),
		UserID:        userID,
		InvestmentID:  &investmentID,
		Amount:        req.Amount,
		WalletAddress: req.WalletAddress,
		Crypto:        req.Crypto,
		Status:        models.WithdrawalStatusPending,
		RequestedAt:   l.clock(),
	}
	if err := l.store.CreateWithdrawal(ctx, w); err != nil {
		return nil, fmt.Errorf("create withdrawal: %w", err)
	}
	return w, nil
}

// WithdrawalUpdate is the admin input to SetWithdrawalStatus.
type WithdrawalUpdate struct {
	Status string
	TxHash *string
	Note   *string
}

// WithdrawalResult is the settled withdrawal. NotificationErr is set when the
// status email could not be delivered; the settlement stands regardless.
type WithdrawalResult struct {
	Withdrawal      *models.Withdrawal
	Changed         bool
	NotificationErr error
}

// SetWithdrawalStatus settles a Pending withdrawal. Approval debits the user's
// balance only while it still covers the amount; both outcomes notify the user.
func (l *Ledger) SetWithdrawalStatus(ctx context.Context, caller Identity, id uuid.UUID, upd WithdrawalUpdate) (*WithdrawalResult, error) {
	if err := l.requireAdmin(caller); err != nil {
		return nil, err
	}
	if !models.ValidWithdrawalStatus(upd.Status) {
		return nil, ErrInvalidInput
	}

	w, err := l.store.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("set withdrawal status: %w", err)
	}
	if w.Status == upd.Status {
		return &WithdrawalResult{Withdrawal: w}, nil
	}
	if w.Status != models.WithdrawalStatusPending || upd.Status == models.WithdrawalStatusPending {
		return nil, ErrInvalidTransition
	}

	now := l.clock()
	settlement := models.WithdrawalSettlement{Status: upd.Status, TxHash: upd.TxHash, AdminNote: upd.Note}
	if upd.Status == models.WithdrawalStatusApproved {
		settlement.ApprovedAt = &now
	}

	err = l.store.Transaction(ctx, func(tx LedgerStore) error {
		ok, err := tx.TransitionWithdrawalStatus(ctx, id, models.WithdrawalStatusPending, settlement)
		if err != nil {
			return fmt.Errorf("failed to update withdrawal: %w", err)
		}
		if !ok {
			return ErrConflict
		}
		if upd.Status != models.WithdrawalStatusApproved {
			return nil
		}
		debited, err := tx.DebitUserBalance(ctx, w.UserID, w.Amount)
		if err != nil {
			return fmt.Errorf("failed to debit balance: %w", err)
		}
		if !debited {
			return ErrInsufficientFunds
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrInsufficientFunds) {
			return nil, err
		}
		return nil, fmt.Errorf("set withdrawal status: %w", err)
	}

	w.Status = upd.Status
	w.ApprovedAt = settlement.ApprovedAt
	if upd.TxHash != nil {
		w.TxHash = upd.TxHash
	}
	if upd.Note != nil {
		w.AdminNote = upd.Note
	}
	l.events.Publish(w.UserID, LedgerEvent{Type: EventWithdrawalSettled, ReferenceID: w.ID, Amount: w.Amount, Status: w.Status, At: now})

	res := &WithdrawalResult{Withdrawal: w, Changed: true}
	res.NotificationErr = l.notifyWithdrawal(ctx, w)
	return res, nil
}

func (l *Ledger) notifyWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	user, err := l.store.GetUser(ctx, w.UserID)
	if err != nil {
		log.Printf("🔥 Withdrawal %s settled but user lookup for notification failed: %v", w.ID, err)
		return err
	}
	err = l.notifier.SendWithdrawalStatusUpdate(ctx, WithdrawalStatusEmail{
		ToEmail: user.Email,
		ToName:  user.FullName,
		Amount:  w.Amount,
		Status:  w.Status,
		Note:    w.AdminNote,
		TxHash:  w.TxHash,
		Crypto:  w.Crypto,
	})
	if err != nil {
		log.Printf("🔥 Failed to send withdrawal %s status email to %s: %v", w.ID, user.Email, err)
	}
	return err
}

func (l *Ledger) ListUserWithdrawals(ctx context.Context, userID uuid.UUID, f ListFilter) ([]models.Withdrawal, int64, error) {
	return l.store.ListWithdrawals(ctx, &userID, f)
}

func (l *Ledger) ListWithdrawals(ctx context.Context, caller Identity, f ListFilter) ([]models.Withdrawal, int64, error) {
	if err := l.requireAdmin(caller); err != nil {
		return nil, 0, err
	}
	return l.store.ListWithdrawals(ctx, nil, f)
}
