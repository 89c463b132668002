package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yieldnest/invest_api/models"
)

// ListFilter pages admin and user listings. An empty Status matches all.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
	// SetReferralCode stores code only if the user has none yet.
	SetReferralCode(ctx context.Context, userID uuid.UUID, code string) (bool, error)
	IncrementUserTotals(ctx context.Context, userID uuid.UUID, delta models.UserDelta) error
	// DebitUserBalance subtracts amount only while balance >= amount.
	DebitUserBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error)
	UpdateUserRole(ctx context.Context, userID uuid.UUID, role string) error
	UpdateUserStatus(ctx context.Context, userID uuid.UUID, status string) error
	ListUsers(ctx context.Context, f ListFilter) ([]models.User, int64, error)
	CountReferredUsers(ctx context.Context, referrerID uuid.UUID) (int64, error)
}

type InvestmentStore interface {
	CreateInvestment(ctx context.Context, inv *models.Investment) error
	GetInvestment(ctx context.Context, id uuid.UUID) (*models.Investment, error)
	ListUserInvestments(ctx context.Context, userID uuid.UUID) ([]models.Investment, error)
	// ListAccruableInvestments returns Active investments with days left to accrue.
	ListAccruableInvestments(ctx context.Context) ([]models.Investment, error)
	// ApplyAccrual credits inv only if its accrual cursor still matches.
	ApplyAccrual(ctx context.Context, id uuid.UUID, cursor models.AccrualCursor, credit models.AccrualCredit) (bool, error)
	ListInvestmentsMissingAccrualFields(ctx context.Context) ([]models.Investment, error)
	BackfillInvestment(ctx context.Context, id uuid.UUID, fill models.AccrualBackfill) error
	SumUserInvestments(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	ListMaturedUnnotified(ctx context.Context) ([]models.Investment, error)
	MarkMaturityNotified(ctx context.Context, id uuid.UUID, at time.Time) error
	SetCertificateURL(ctx context.Context, id uuid.UUID, url string) error
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListPayments(ctx context.Context, userID *uuid.UUID, f ListFilter) ([]models.Payment, int64, error)
	// TransitionPaymentStatus moves a payment from -> to; false when the stored
	// status is no longer from.
	TransitionPaymentStatus(ctx context.Context, id uuid.UUID, from, to string, paidAt *time.Time, investmentID *uuid.UUID) (bool, error)
}

type WithdrawalStore interface {
	CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, userID *uuid.UUID, f ListFilter) ([]models.Withdrawal, int64, error)
	TransitionWithdrawalStatus(ctx context.Context, id uuid.UUID, from string, s models.WithdrawalSettlement) (bool, error)
}

type EarningsStore interface {
	AppendEarnings(ctx context.Context, entries ...*models.EarningLog) error
	ListEarnings(ctx context.Context, userID uuid.UUID, limit int) ([]models.EarningLog, error)
	SumEarnings(ctx context.Context, userID uuid.UUID, since time.Time, types ...string) (decimal.Decimal, error)
}

type ReferralStore interface {
	HasReferralPayout(ctx context.Context, referredUserID uuid.UUID) (bool, error)
	// CreateReferralPayout returns ErrDuplicate when the referred user was already paid for.
	CreateReferralPayout(ctx context.Context, r *models.ReferralPayout) error
	SumReferralPayouts(ctx context.Context, referrerID uuid.UUID) (decimal.Decimal, error)
}

// LedgerStore is the persistence the ledger runs on. Transaction runs fn
// against a store bound to one database transaction.
type LedgerStore interface {
	UserStore
	InvestmentStore
	PaymentStore
	WithdrawalStore
	EarningsStore
	ReferralStore

	Transaction(ctx context.Context, fn func(tx LedgerStore) error) error
}

// Locker grants short leases keyed by string. ok is false when the key is held.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// WithdrawalStatusEmail is the payload of a withdrawal status notification.
type WithdrawalStatusEmail struct {
	ToEmail string
	ToName  string
	Amount  decimal.Decimal
	Status  string
	Note    *string
	TxHash  *string
	Crypto  string
}

// MaturityEmail tells a user an investment finished its term.
type MaturityEmail struct {
	ToEmail  string
	ToName   string
	PlanName string
	Amount   decimal.Decimal
	Earnings decimal.Decimal
}

type Notifier interface {
	SendWithdrawalStatusUpdate(ctx context.Context, msg WithdrawalStatusEmail) error
	SendInvestmentMatured(ctx context.Context, msg MaturityEmail) error
}

// LedgerEvent is pushed to a connected user after a committed balance change.
type LedgerEvent struct {
	Type        string          `json:"type"`
	ReferenceID uuid.UUID       `json:"reference_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status,omitempty"`
	At          time.Time       `json:"at"`
}

const (
	EventAccrual           = "accrual_credited"
	EventPaymentApproved   = "payment_approved"
	EventPaymentStatus     = "payment_status"
	EventWithdrawalSettled = "withdrawal_settled"
	EventReferralBonus     = "referral_bonus"
)

type EventPublisher interface {
	Publish(userID uuid.UUID, event LedgerEvent)
}
