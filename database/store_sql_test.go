package database

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yieldnest/invest_api/models"
	"github.com/yieldnest/invest_api/services"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ctx = context.Background()

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewStore(db), mock
}

// sqlLike matches a statement containing the fragments in order.
func sqlLike(fragments ...string) string {
	quoted := make([]string, len(fragments))
	for i, f := range fragments {
		quoted[i] = regexp.QuoteMeta(f)
	}
	return strings.Join(quoted, ".*")
}

func TestApplyAccrualConditions(t *testing.T) {
	days := 3
	last := time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)
	credit := models.AccrualCredit{Days: 1, Amount: decimal.NewFromInt(100), At: last.Add(24 * time.Hour), FirstPayout: true}

	t.Run("credits when cursor and cap match", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(sqlLike(
			`UPDATE "investments" SET`,
			`"can_withdraw"=`,
			`"days_accrued"=COALESCE(days_accrued, 0) + $`,
			`"earnings"=COALESCE(earnings, 0) + $`,
			`"first_payout_date"=COALESCE(first_payout_date, $`,
			`"last_accrued_at"=$`,
			`WHERE id = $`,
			`status = $`, `COALESCE(days_accrued, 0) < COALESCE(duration_days, $`,
			`COALESCE(days_accrued, 0) + $`, `<= COALESCE(duration_days, $`,
			`days_accrued = $`,
			`last_accrued_at = $`,
		)).WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := store.ApplyAccrual(ctx, uuid.New(), models.AccrualCursor{DaysAccrued: &days, LastAccruedAt: &last}, credit)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale cursor or reached cap matches no row", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(sqlLike(`UPDATE "investments" SET`, `WHERE id = $`, `<= COALESCE(duration_days, $`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := store.ApplyAccrual(ctx, uuid.New(), models.AccrualCursor{DaysAccrued: &days, LastAccruedAt: &last}, credit)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("legacy rows match on NULL columns", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(sqlLike(
			`UPDATE "investments" SET`,
			`"daily_percent"=COALESCE(daily_percent, $`,
			`"duration_days"=COALESCE(duration_days, $`,
			`WHERE id = $`,
			`days_accrued IS NULL`,
			`last_accrued_at IS NULL`,
		)).WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := store.ApplyAccrual(ctx, uuid.New(), models.AccrualCursor{}, credit)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDebitUserBalanceIsGuarded(t *testing.T) {
	for _, tt := range []struct {
		name string
		rows int64
		want bool
	}{
		{"balance covers the amount", 1, true},
		{"balance too low", 0, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			mock.ExpectExec(sqlLike(`UPDATE "users" SET "balance"=balance - $`, `WHERE id = $`, `AND balance >= $`)).
				WillReturnResult(sqlmock.NewResult(0, tt.rows))

			ok, err := store.DebitUserBalance(ctx, uuid.New(), decimal.NewFromInt(200))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestIncrementUserTotals(t *testing.T) {
	t.Run("increments in SQL", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(sqlLike(`UPDATE "users" SET`, `"balance"=balance + $`, `"total_earnings"=total_earnings + $`, `WHERE id = $`)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.IncrementUserTotals(ctx, uuid.New(), models.UserDelta{Balance: decimal.NewFromInt(10), TotalEarnings: decimal.NewFromInt(10)})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(sqlLike(`UPDATE "users" SET`)).WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.IncrementUserTotals(ctx, uuid.New(), models.UserDelta{Balance: decimal.NewFromInt(10)})
		assert.ErrorIs(t, err, services.ErrNotFound)
	})

	t.Run("zero delta issues no statement", func(t *testing.T) {
		store, mock := newMockStore(t)
		require.NoError(t, store.IncrementUserTotals(ctx, uuid.New(), models.UserDelta{}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBackfillInvestmentKeepsPresentColumns(t *testing.T) {
	store, mock := newMockStore(t)
	legacy := models.Investment{ApprovedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	mock.ExpectExec(sqlLike(
		`UPDATE "investments" SET`,
		`"daily_percent"=COALESCE(daily_percent, $`,
		`"days_accrued"=COALESCE(days_accrued, $`,
		`"duration_days"=COALESCE(duration_days, $`,
		`"earnings"=COALESCE(earnings, $`,
		`"last_accrued_at"=COALESCE(last_accrued_at, $`,
		`WHERE id = $`,
	)).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.BackfillInvestment(ctx, uuid.New(), legacy.MissingAccrualFields(time.Now())))
	require.NoError(t, store.BackfillInvestment(ctx, uuid.New(), models.AccrualBackfill{}), "nothing to fill issues no statement")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusTransitionsCompareAndSwap(t *testing.T) {
	t.Run("payment", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(sqlLike(`UPDATE "payments" SET`, `"status"=$`, `WHERE id = $`, `AND status = $`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		now := time.Now().UTC()
		ok, err := store.TransitionPaymentStatus(ctx, uuid.New(), models.PaymentStatusPending, models.PaymentStatusApproved, &now, nil)
		require.NoError(t, err)
		assert.False(t, ok, "a payment that already moved is not updated")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("withdrawal", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(sqlLike(`UPDATE "withdrawals" SET`, `"status"=$`, `WHERE id = $`, `AND status = $`)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := store.TransitionWithdrawalStatus(ctx, uuid.New(), models.WithdrawalStatusPending, models.WithdrawalSettlement{Status: models.WithdrawalStatusRejected})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreateReferralPayoutOnConflict(t *testing.T) {
	payout := func() *models.ReferralPayout {
		return &models.ReferralPayout{
			ID: uuid.New(), ReferrerID: uuid.New(), ReferredUserID: uuid.New(), PaymentID: uuid.New(),
			Amount: decimal.NewFromInt(10),
		}
	}

	t.Run("first payout is inserted", func(t *testing.T) {
		store, mock := newMockStore(t)
		r := payout()
		mock.ExpectQuery(sqlLike(`INSERT INTO "referral_payouts"`, `ON CONFLICT DO NOTHING`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(r.ID.String()))

		require.NoError(t, store.CreateReferralPayout(ctx, r))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second payout for the same user is a duplicate", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(sqlLike(`INSERT INTO "referral_payouts"`, `ON CONFLICT DO NOTHING`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		err := store.CreateReferralPayout(ctx, payout())
		assert.ErrorIs(t, err, services.ErrDuplicate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(sqlLike(`INSERT INTO "users"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := store.CreateUser(ctx, &models.User{ID: uuid.New(), FullName: "A", Email: "a@example.com", Password: "x"})
	assert.ErrorIs(t, err, services.ErrDuplicate)
}

func TestWithdrawalApprovalRollsBackWhenBalanceIsShort(t *testing.T) {
	store, mock := newMockStore(t)
	ledger := services.NewLedger(store)
	admin := services.Identity{UserID: uuid.New(), Role: models.RoleAdmin}
	withdrawalID, userID := uuid.New(), uuid.New()

	mock.ExpectQuery(sqlLike(`SELECT * FROM "withdrawals" WHERE id = $`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount", "wallet_address", "crypto", "status"}).
			AddRow(withdrawalID.String(), userID.String(), "200", "TXwallet", "USDT", models.WithdrawalStatusPending))
	mock.ExpectBegin()
	mock.ExpectExec(sqlLike(`UPDATE "withdrawals" SET`, `WHERE id = $`, `AND status = $`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlLike(`UPDATE "users" SET "balance"=balance - $`, `AND balance >= $`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := ledger.SetWithdrawalStatus(ctx, admin, withdrawalID, services.WithdrawalUpdate{Status: models.WithdrawalStatusApproved})
	assert.ErrorIs(t, err, services.ErrInsufficientFunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}
