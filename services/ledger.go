package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	WelcomeBonus          = 10
	MinimumWithdrawal     = 50
	ReferralBonus         = 10
	ReferralMinInvestment = 100

	accrualLeaseTTL = 30 * time.Second
)

var (
	welcomeBonus          = decimal.NewFromInt(WelcomeBonus)
	minimumWithdrawal     = decimal.NewFromInt(MinimumWithdrawal)
	referralBonus         = decimal.NewFromInt(ReferralBonus)
	referralMinInvestment = decimal.NewFromInt(ReferralMinInvestment)
)

// Ledger implements the accrual engine, eligibility rules and the payment and
// withdrawal transitions over a LedgerStore.
type Ledger struct {
	store    LedgerStore
	locker   Locker
	notifier Notifier
	events   EventPublisher
	renderer PDFRenderer
	archive  FileArchive
	isAdmin  func(Identity) bool
	now      func() time.Time
}

type Option func(*Ledger)

func WithLocker(l Locker) Option { return func(s *Ledger) { s.locker = l } }

func WithNotifier(n Notifier) Option { return func(s *Ledger) { s.notifier = n } }

func WithEvents(p EventPublisher) Option { return func(s *Ledger) { s.events = p } }

// WithCertificates enables GenerateCertificate. archive may be nil.
func WithCertificates(r PDFRenderer, archive FileArchive) Option {
	return func(s *Ledger) { s.renderer, s.archive = r, archive }
}

func WithAdminPolicy(f func(Identity) bool) Option { return func(s *Ledger) { s.isAdmin = f } }

func WithClock(now func() time.Time) Option { return func(s *Ledger) { s.now = now } }

func NewLedger(store LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		locker:   noLocker{},
		notifier: noNotifier{},
		events:   noEvents{},
		isAdmin:  AdminPolicy(""),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsAdmin reports whether the caller passes the configured admin predicate.
func (l *Ledger) IsAdmin(id Identity) bool {
	return l.isAdmin(id)
}

// clock returns UTC time at the store's microsecond precision so cursors read
// back from the database compare equal to what was written.
func (l *Ledger) clock() time.Time {
	return l.now().UTC().Truncate(time.Microsecond)
}

func (l *Ledger) requireAdmin(caller Identity) error {
	if !l.isAdmin(caller) {
		return ErrForbidden
	}
	return nil
}

type noLocker struct{}

func (noLocker) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

type noNotifier struct{}

func (noNotifier) SendWithdrawalStatusUpdate(context.Context, WithdrawalStatusEmail) error {
	return nil
}

func (noNotifier) SendInvestmentMatured(context.Context, MaturityEmail) error { return nil }

type noEvents struct{}

func (noEvents) Publish(uuid.UUID, LedgerEvent) {}
