// Package storetest provides an in-memory LedgerStore for tests.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yieldnest/invest_api/models"
	"github.com/yieldnest/invest_api/services"
)

type data struct {
	users       map[uuid.UUID]models.User
	investments map[uuid.UUID]models.Investment
	payments    map[uuid.UUID]models.Payment
	withdrawals map[uuid.UUID]models.Withdrawal
	referrals   map[uuid.UUID]models.ReferralPayout
	earnings    []models.EarningLog
}

func newData() *data {
	return &data{
		users:       map[uuid.UUID]models.User{},
		investments: map[uuid.UUID]models.Investment{},
		payments:    map[uuid.UUID]models.Payment{},
		withdrawals: map[uuid.UUID]models.Withdrawal{},
		referrals:   map[uuid.UUID]models.ReferralPayout{},
	}
}

// clone copies the maps. Stored structs are replaced, never mutated through
// their pointer fields, so a shallow copy per record is enough.
func (d *data) clone() *data {
	c := newData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.investments {
		c.investments[k] = v
	}
	for k, v := range d.payments {
		c.payments[k] = v
	}
	for k, v := range d.withdrawals {
		c.withdrawals[k] = v
	}
	for k, v := range d.referrals {
		c.referrals[k] = v
	}
	c.earnings = append([]models.EarningLog(nil), d.earnings...)
	return c
}

// MemoryStore implements services.LedgerStore in memory. Transactions are
// serialized and roll back to a snapshot when fn fails.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	d    *data

	failures map[string]error
}

var _ services.LedgerStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{d: newData(), failures: map[string]error{}}
}

// FailOn makes the named method return err until cleared with a nil err.
func (s *MemoryStore) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

func (s *MemoryStore) fail(method string) error {
	return s.failures[method]
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx services.LedgerStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.d.clone()
	s.mu.Unlock()

	if err := fn(txStore{s}); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// txStore runs nested transactions inline on the outer one.
type txStore struct {
	*MemoryStore
}

func (t txStore) Transaction(ctx context.Context, fn func(tx services.LedgerStore) error) error {
	return fn(t)
}

func page[T any](items []T, f services.ListFilter) []T {
	if f.Offset > 0 {
		if f.Offset >= len(items) {
			return []T{}
		}
		items = items[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(items) {
		items = items[:f.Limit]
	}
	return items
}

// Seeding helpers

// PutUser stores u as is, replacing any user with the same ID.
func (s *MemoryStore) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.users[u.ID] = u
}

func (s *MemoryStore) PutInvestment(inv models.Investment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.investments[inv.ID] = inv
}

func (s *MemoryStore) PutPayment(p models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.payments[p.ID] = p
}

func (s *MemoryStore) PutWithdrawal(w models.Withdrawal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.withdrawals[w.ID] = w
}

// Earnings returns every log entry in insertion order.
func (s *MemoryStore) Earnings() []models.EarningLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.EarningLog(nil), s.d.earnings...)
}

func (s *MemoryStore) ReferralPayouts() []models.ReferralPayout {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ReferralPayout, 0, len(s.d.referrals))
	for _, r := range s.d.referrals {
		out = append(out, r)
	}
	return out
}

// Users

func (s *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateUser"); err != nil {
		return err
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	for _, existing := range s.d.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return services.ErrDuplicate
		}
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.d.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetUser"); err != nil {
		return nil, err
	}
	u, ok := s.d.users[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.d.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, services.ErrNotFound
}

func (s *MemoryStore) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.d.users {
		if u.ReferralCode != nil && *u.ReferralCode == code {
			return &u, nil
		}
	}
	return nil, services.ErrNotFound
}

func (s *MemoryStore) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	_, err := s.GetUserByReferralCode(ctx, code)
	if err == services.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (s *MemoryStore) SetReferralCode(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.d.users[userID]
	if !ok || u.ReferralCode != nil {
		return false, nil
	}
	for _, other := range s.d.users {
		if other.ReferralCode != nil && *other.ReferralCode == code {
			return false, services.ErrDuplicate
		}
	}
	u.ReferralCode = &code
	s.d.users[userID] = u
	return true, nil
}

func (s *MemoryStore) IncrementUserTotals(ctx context.Context, userID uuid.UUID, delta models.UserDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("IncrementUserTotals"); err != nil {
		return err
	}
	u, ok := s.d.users[userID]
	if !ok {
		return services.ErrNotFound
	}
	u.Balance = u.Balance.Add(delta.Balance)
	u.TotalInvested = u.TotalInvested.Add(delta.TotalInvested)
	u.TotalEarnings = u.TotalEarnings.Add(delta.TotalEarnings)
	s.d.users[userID] = u
	return nil
}

func (s *MemoryStore) DebitUserBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.d.users[userID]
	if !ok || u.Balance.LessThan(amount) {
		return false, nil
	}
	u.Balance = u.Balance.Sub(amount)
	s.d.users[userID] = u
	return true, nil
}

func (s *MemoryStore) UpdateUserRole(ctx context.Context, userID uuid.UUID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.d.users[userID]
	if !ok {
		return services.ErrNotFound
	}
	u.Role = role
	s.d.users[userID] = u
	return nil
}

func (s *MemoryStore) UpdateUserStatus(ctx context.Context, userID uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.d.users[userID]
	if !ok {
		return services.ErrNotFound
	}
	u.Status = status
	s.d.users[userID] = u
	return nil
}

func (s *MemoryStore) ListUsers(ctx context.Context, f services.ListFilter) ([]models.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.d.users {
		if f.Status == "" || u.Status == f.Status {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f), int64(len(out)), nil
}

func (s *MemoryStore) CountReferredUsers(ctx context.Context, referrerID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, u := range s.d.users {
		if u.ReferredBy != nil && *u.ReferredBy == referrerID {
			n++
		}
	}
	return n, nil
}

// Investments

func (s *MemoryStore) CreateInvestment(ctx context.Context, inv *models.Investment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateInvestment"); err != nil {
		return err
	}
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	s.d.investments[inv.ID] = *inv
	return nil
}

func (s *MemoryStore) GetInvestment(ctx context.Context, id uuid.UUID) (*models.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.d.investments[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &inv, nil
}

func (s *MemoryStore) ListUserInvestments(ctx context.Context, userID uuid.UUID) ([]models.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListUserInvestments"); err != nil {
		return nil, err
	}
	var out []models.Investment
	for _, inv := range s.d.investments {
		if inv.UserID == userID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ApprovedAt.After(out[j].ApprovedAt) })
	return out, nil
}

func accruable(inv models.Investment) bool {
	return inv.Status == models.InvestmentStatusActive && inv.AccrualState().Remaining() > 0
}

func (s *MemoryStore) ListAccruableInvestments(ctx context.Context) ([]models.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListAccruableInvestments"); err != nil {
		return nil, err
	}
	var out []models.Investment
	for _, inv := range s.d.investments {
		if accruable(inv) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ApprovedAt.Before(out[j].ApprovedAt) })
	return out, nil
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func (s *MemoryStore) ApplyAccrual(ctx context.Context, id uuid.UUID, cursor models.AccrualCursor, credit models.AccrualCredit) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ApplyAccrual"); err != nil {
		return false, err
	}
	inv, ok := s.d.investments[id]
	if !ok || !accruable(inv) {
		return false, nil
	}
	if !sameInt(inv.DaysAccrued, cursor.DaysAccrued) || !sameTime(inv.LastAccruedAt, cursor.LastAccruedAt) {
		return false, nil
	}
	state := inv.AccrualState()
	if state.DaysAccrued+credit.Days > state.DurationDays {
		return false, nil
	}

	days := state.DaysAccrued + credit.Days
	duration := state.DurationDays
	at := credit.At
	inv.DaysAccrued = &days
	inv.DurationDays = &duration
	inv.DailyPercent = decimal.NewNullDecimal(state.DailyPercent)
	inv.Earnings = decimal.NewNullDecimal(state.Earnings.Add(credit.Amount))
	inv.LastAccruedAt = &at
	if credit.FirstPayout {
		inv.CanWithdraw = true
		if inv.FirstPayoutDate == nil {
			inv.FirstPayoutDate = &at
		}
	}
	s.d.investments[id] = inv
	return true, nil
}

func (s *MemoryStore) ListInvestmentsMissingAccrualFields(ctx context.Context) ([]models.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Investment
	for _, inv := range s.d.investments {
		if inv.DurationDays == nil || !inv.DailyPercent.Valid || inv.DaysAccrued == nil ||
			inv.LastAccruedAt == nil || !inv.Earnings.Valid {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *MemoryStore) BackfillInvestment(ctx context.Context, id uuid.UUID, fill models.AccrualBackfill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.d.investments[id]
	if !ok {
		return services.ErrNotFound
	}
	if fill.DurationDays != nil && inv.DurationDays == nil {
		v := *fill.DurationDays
		inv.DurationDays = &v
	}
	if fill.DailyPercent != nil && !inv.DailyPercent.Valid {
		inv.DailyPercent = decimal.NewNullDecimal(*fill.DailyPercent)
	}
	if fill.DaysAccrued != nil && inv.DaysAccrued == nil {
		v := *fill.DaysAccrued
		inv.DaysAccrued = &v
	}
	if fill.LastAccruedAt != nil && inv.LastAccruedAt == nil {
		v := *fill.LastAccruedAt
		inv.LastAccruedAt = &v
	}
	if fill.Earnings != nil && !inv.Earnings.Valid {
		inv.Earnings = decimal.NewNullDecimal(*fill.Earnings)
	}
	s.d.investments[id] = inv
	return nil
}

func (s *MemoryStore) SumUserInvestments(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, inv := range s.d.investments {
		if inv.UserID == userID {
			total = total.Add(inv.Amount)
		}
	}
	return total, nil
}

func (s *MemoryStore) ListMaturedUnnotified(ctx context.Context) ([]models.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Investment
	for _, inv := range s.d.investments {
		if inv.MaturityNotifiedAt == nil && inv.DaysAccrued != nil && inv.IsFullyMatured() {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkMaturityNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.d.investments[id]
	if !ok {
		return services.ErrNotFound
	}
	if inv.MaturityNotifiedAt == nil {
		inv.MaturityNotifiedAt = &at
		s.d.investments[id] = inv
	}
	return nil
}

func (s *MemoryStore) SetCertificateURL(ctx context.Context, id uuid.UUID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.d.investments[id]
	if !ok {
		return services.ErrNotFound
	}
	inv.CertificateURL = &url
	s.d.investments[id] = inv
	return nil
}

// Payments

func (s *MemoryStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	s.d.payments[p.ID] = *p
	return nil
}

func (s *MemoryStore) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.d.payments[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListPayments(ctx context.Context, userID *uuid.UUID, f services.ListFilter) ([]models.Payment, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Payment
	for _, p := range s.d.payments {
		if userID != nil && p.UserID != *userID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f), int64(len(out)), nil
}

func (s *MemoryStore) TransitionPaymentStatus(ctx context.Context, id uuid.UUID, from, to string, paidAt *time.Time, investmentID *uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.d.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	if paidAt != nil {
		at := *paidAt
		p.PaidAt = &at
	}
	if investmentID != nil {
		invID := *investmentID
		p.InvestmentID = &invID
	}
	s.d.payments[id] = p
	return true, nil
}

// Withdrawals

func (s *MemoryStore) CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	s.d.withdrawals[w.ID] = *w
	return nil
}

func (s *MemoryStore) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.d.withdrawals[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &w, nil
}

func (s *MemoryStore) ListWithdrawals(ctx context.Context, userID *uuid.UUID, f services.ListFilter) ([]models.Withdrawal, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Withdrawal
	for _, w := range s.d.withdrawals {
		if userID != nil && w.UserID != *userID {
			continue
		}
		if f.Status != "" && w.Status != f.Status {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return page(out, f), int64(len(out)), nil
}

func (s *MemoryStore) TransitionWithdrawalStatus(ctx context.Context, id uuid.UUID, from string, st models.WithdrawalSettlement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.d.withdrawals[id]
	if !ok || w.Status != from {
		return false, nil
	}
	w.Status = st.Status
	if st.ApprovedAt != nil {
		at := *st.ApprovedAt
		w.ApprovedAt = &at
	}
	if st.TxHash != nil {
		h := *st.TxHash
		w.TxHash = &h
	}
	if st.AdminNote != nil {
		n := *st.AdminNote
		w.AdminNote = &n
	}
	s.d.withdrawals[id] = w
	return true, nil
}

// Earnings log

func (s *MemoryStore) AppendEarnings(ctx context.Context, entries ...*models.EarningLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("AppendEarnings"); err != nil {
		return err
	}
	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		s.d.earnings = append(s.d.earnings, *e)
	}
	return nil
}

func (s *MemoryStore) ListEarnings(ctx context.Context, userID uuid.UUID, limit int) ([]models.EarningLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EarningLog
	for i := len(s.d.earnings) - 1; i >= 0; i-- {
		if s.d.earnings[i].UserID == userID {
			out = append(out, s.d.earnings[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SumEarnings(ctx context.Context, userID uuid.UUID, since time.Time, types ...string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, e := range s.d.earnings {
		if e.UserID != userID || e.CreatedAt.Before(since) {
			continue
		}
		if len(types) > 0 && !contains(types, e.Type) {
			continue
		}
		total = total.Add(e.Amount)
	}
	return total, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Referral payouts

func (s *MemoryStore) HasReferralPayout(ctx context.Context, referredUserID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.d.referrals[referredUserID]
	return ok, nil
}

func (s *MemoryStore) CreateReferralPayout(ctx context.Context, r *models.ReferralPayout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.referrals[r.ReferredUserID]; ok {
		return services.ErrDuplicate
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	s.d.referrals[r.ReferredUserID] = *r
	return nil
}

func (s *MemoryStore) SumReferralPayouts(ctx context.Context, referrerID uuid.UUID) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, r := range s.d.referrals {
		if r.ReferrerID == referrerID {
			total = total.Add(r.Amount)
		}
	}
	return total, nil
}
