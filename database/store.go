package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yieldnest/invest_api/models"
	"github.com/yieldnest/invest_api/services"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Store is the Postgres LedgerStore. Balance and accrual columns change only
// through SQL increments and conditional updates, never by saving a loaded row.
type Store struct {
	db *gorm.DB
}

var _ services.LedgerStore = (*Store)(nil)

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Transaction(ctx context.Context, fn func(tx services.LedgerStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return services.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return services.ErrDuplicate
	}
	return err
}

func page(q *gorm.DB, f services.ListFilter) *gorm.DB {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	return q.Limit(limit).Offset(offset)
}

func sum(q *gorm.DB) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	if err := q.Select("COALESCE(SUM(amount), 0)").Row().Scan(&total); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return translate(s.conn(ctx).Create(u).Error)
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Where("LOWER(email) = LOWER(?)", email).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Where("referral_code = ?", code).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.User{}).Where("referral_code = ?", code).Count(&count).Error
	return count > 0, err
}

func (s *Store) SetReferralCode(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	res := s.conn(ctx).Model(&models.User{}).
		Where("id = ? AND referral_code IS NULL", userID).
		Update("referral_code", code)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) IncrementUserTotals(ctx context.Context, userID uuid.UUID, delta models.UserDelta) error {
	if delta.IsZero() {
		return nil
	}
	updates := map[string]interface{}{}
	if !delta.Balance.IsZero() {
		updates["balance"] = gorm.Expr("balance + ?", delta.Balance)
	}
	if !delta.TotalInvested.IsZero() {
		updates["total_invested"] = gorm.Expr("total_invested + ?", delta.TotalInvested)
	}
	if !delta.TotalEarnings.IsZero() {
		updates["total_earnings"] = gorm.Expr("total_earnings + ?", delta.TotalEarnings)
	}
	res := s.conn(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s *Store) DebitUserBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	res := s.conn(ctx).Model(&models.User{}).
		Where("id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) UpdateUserRole(ctx context.Context, userID uuid.UUID, role string) error {
	return s.updateUser(ctx, userID, "role", role)
}

func (s *Store) UpdateUserStatus(ctx context.Context, userID uuid.UUID, status string) error {
	return s.updateUser(ctx, userID, "status", status)
}

func (s *Store) updateUser(ctx context.Context, userID uuid.UUID, column string, value interface{}) error {
	res := s.conn(ctx).Model(&models.User{}).Where("id = ?", userID).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context, f services.ListFilter) ([]models.User, int64, error) {
	q := s.conn(ctx).Model(&models.User{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	if err := page(q.Order("created_at DESC"), f).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *Store) CountReferredUsers(ctx context.Context, referrerID uuid.UUID) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&models.User{}).Where("referred_by = ?", referrerID).Count(&count).Error
	return count, err
}

// Investments

const accruableClause = "status = ? AND COALESCE(days_accrued, 0) < COALESCE(duration_days, ?)"

func (s *Store) CreateInvestment(ctx context.Context, inv *models.Investment) error {
	return translate(s.conn(ctx).Create(inv).Error)
}

func (s *Store) GetInvestment(ctx context.Context, id uuid.UUID) (*models.Investment, error) {
	var inv models.Investment
	if err := s.conn(ctx).First(&inv, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (s *Store) ListUserInvestments(ctx context.Context, userID uuid.UUID) ([]models.Investment, error) {
	var invs []models.Investment
	err := s.conn(ctx).Where("user_id = ?", userID).Order("approved_at DESC").Find(&invs).Error
	return invs, err
}

func (s *Store) ListAccruableInvestments(ctx context.Context) ([]models.Investment, error) {
	var invs []models.Investment
	err := s.conn(ctx).
		Where(accruableClause, models.InvestmentStatusActive, models.DefaultDurationDays).
		Order("approved_at").
		Find(&invs).Error
	return invs, err
}

// ApplyAccrual matches on the cursor the caller read and on the duration cap.
// Missing legacy columns are written with their defaults on the first credit.
func (s *Store) ApplyAccrual(ctx context.Context, id uuid.UUID, cursor models.AccrualCursor, credit models.AccrualCredit) (bool, error) {
	q := s.conn(ctx).Model(&models.Investment{}).
		Where("id = ?", id).
		Where(accruableClause, models.InvestmentStatusActive, models.DefaultDurationDays).
		Where("COALESCE(days_accrued, 0) + ? <= COALESCE(duration_days, ?)", credit.Days, models.DefaultDurationDays)

	if cursor.DaysAccrued == nil {
		q = q.Where("days_accrued IS NULL")
	} else {
		q = q.Where("days_accrued = ?", *cursor.DaysAccrued)
	}
	if cursor.LastAccruedAt == nil {
		q = q.Where("last_accrued_at IS NULL")
	} else {
		q = q.Where("last_accrued_at = ?", *cursor.LastAccruedAt)
	}

	updates := map[string]interface{}{
		"days_accrued":    gorm.Expr("COALESCE(days_accrued, 0) + ?", credit.Days),
		"earnings":        gorm.Expr("COALESCE(earnings, 0) + ?", credit.Amount),
		"duration_days":   gorm.Expr("COALESCE(duration_days, ?)", models.DefaultDurationDays),
		"daily_percent":   gorm.Expr("COALESCE(daily_percent, ?)", models.DefaultDailyPercent),
		"last_accrued_at": credit.At,
	}
	if credit.FirstPayout {
		updates["can_withdraw"] = true
		updates["first_payout_date"] = gorm.Expr("COALESCE(first_payout_date, ?)", credit.At)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) ListInvestmentsMissingAccrualFields(ctx context.Context) ([]models.Investment, error) {
	var invs []models.Investment
	err := s.conn(ctx).
		Where("duration_days IS NULL OR daily_percent IS NULL OR days_accrued IS NULL OR last_accrued_at IS NULL OR earnings IS NULL").
		Find(&invs).Error
	return invs, err
}

// BackfillInvestment wraps every value in COALESCE so a column written since
// the caller's read is kept.
func (s *Store) BackfillInvestment(ctx context.Context, id uuid.UUID, fill models.AccrualBackfill) error {
	updates := map[string]interface{}{}
	if fill.DurationDays != nil {
		updates["duration_days"] = gorm.Expr("COALESCE(duration_days, ?)", *fill.DurationDays)
	}
	if fill.DailyPercent != nil {
		updates["daily_percent"] = gorm.Expr("COALESCE(daily_percent, ?)", *fill.DailyPercent)
	}
	if fill.DaysAccrued != nil {
		updates["days_accrued"] = gorm.Expr("COALESCE(days_accrued, ?)", *fill.DaysAccrued)
	}
	if fill.LastAccruedAt != nil {
		updates["last_accrued_at"] = gorm.Expr("COALESCE(last_accrued_at, ?)", *fill.LastAccruedAt)
	}
	if fill.Earnings != nil {
		updates["earnings"] = gorm.Expr("COALESCE(earnings, ?)", *fill.Earnings)
	}
	if len(updates) == 0 {
		return nil
	}
	return s.conn(ctx).Model(&models.Investment{}).Where("id = ?", id).Updates(updates).Error
}

func (s *Store) SumUserInvestments(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return sum(s.conn(ctx).Model(&models.Investment{}).Where("user_id = ?", userID))
}

func (s *Store) ListMaturedUnnotified(ctx context.Context) ([]models.Investment, error) {
	var invs []models.Investment
	err := s.conn(ctx).
		Where("maturity_notified_at IS NULL").
		Where("days_accrued IS NOT NULL AND days_accrued >= COALESCE(duration_days, ?)", models.DefaultDurationDays).
		Find(&invs).Error
	return invs, err
}

func (s *Store) MarkMaturityNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.conn(ctx).Model(&models.Investment{}).
		Where("id = ? AND maturity_notified_at IS NULL", id).
		Update("maturity_notified_at", at).Error
}

func (s *Store) SetCertificateURL(ctx context.Context, id uuid.UUID, url string) error {
	res := s.conn(ctx).Model(&models.Investment{}).Where("id = ?", id).Update("certificate_url", url)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

// Payments

func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	return translate(s.conn(ctx).Create(p).Error)
}

func (s *Store) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	if err := s.conn(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Store) ListPayments(ctx context.Context, userID *uuid.UUID, f services.ListFilter) ([]models.Payment, int64, error) {
	q := s.conn(ctx).Model(&models.Payment{})
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var payments []models.Payment
	if err := page(q.Order("created_at DESC"), f).Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

func (s *Store) TransitionPaymentStatus(ctx context.Context, id uuid.UUID, from, to string, paidAt *time.Time, investmentID *uuid.UUID) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}
	if investmentID != nil {
		updates["investment_id"] = *investmentID
	}
	res := s.conn(ctx).Model(&models.Payment{}).Where("id = ? AND status = ?", id, from).Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Withdrawals

func (s *Store) CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	return translate(s.conn(ctx).Create(w).Error)
}

func (s *Store) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := s.conn(ctx).First(&w, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

func (s *Store) ListWithdrawals(ctx context.Context, userID *uuid.UUID, f services.ListFilter) ([]models.Withdrawal, int64, error) {
	q := s.conn(ctx).Model(&models.Withdrawal{})
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var withdrawals []models.Withdrawal
	if err := page(q.Order("requested_at DESC"), f).Find(&withdrawals).Error; err != nil {
		return nil, 0, err
	}
	return withdrawals, total, nil
}

func (s *Store) TransitionWithdrawalStatus(ctx context.Context, id uuid.UUID, from string, st models.WithdrawalSettlement) (bool, error) {
	updates := map[string]interface{}{"status": st.Status}
	if st.ApprovedAt != nil {
		updates["approved_at"] = *st.ApprovedAt
	}
	if st.TxHash != nil {
		updates["tx_hash"] = *st.TxHash
	}
	if st.AdminNote != nil {
		updates["admin_note"] = *st.AdminNote
	}
	res := s.conn(ctx).Model(&models.Withdrawal{}).Where("id = ? AND status = ?", id, from).Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Earnings log

func (s *Store) AppendEarnings(ctx context.Context, entries ...*models.EarningLog) error {
	if len(entries) == 0 {
		return nil
	}
	return s.conn(ctx).Create(entries).Error
}

func (s *Store) ListEarnings(ctx context.Context, userID uuid.UUID, limit int) ([]models.EarningLog, error) {
	var entries []models.EarningLog
	err := s.conn(ctx).Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

func (s *Store) SumEarnings(ctx context.Context, userID uuid.UUID, since time.Time, types ...string) (decimal.Decimal, error) {
	q := s.conn(ctx).Model(&models.EarningLog{}).Where("user_id = ? AND created_at >= ?", userID, since)
	if len(types) > 0 {
		q = q.Where("type IN ?", types)
	}
	return sum(q)
}

// Referral payouts

func (s *Store) HasReferralPayout(ctx context.Context, referredUserID uuid.UUID) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.ReferralPayout{}).Where("referred_user_id = ?", referredUserID).Count(&count).Error
	return count > 0, err
}

// CreateReferralPayout leans on the unique referred_user_id index. ON CONFLICT
// keeps a surrounding transaction usable when the row already exists.
func (s *Store) CreateReferralPayout(ctx context.Context, r *models.ReferralPayout) error {
	res := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(r)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return services.ErrDuplicate
	}
	return nil
}

func (s *Store) SumReferralPayouts(ctx context.Context, referrerID uuid.UUID) (decimal.Decimal, error) {
	return sum(s.conn(ctx).Model(&models.ReferralPayout{}).Where("referrer_id = ?", referrerID))
}
