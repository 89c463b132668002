package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yieldnest/invest_api/models"
	"github.com/yieldnest/invest_api/services"
	"github.com/yieldnest/invest_api/storetest"
)

var (
	ctx  = context.Background()
	t0   = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	boss = services.Identity{UserID: uuid.New(), Email: "boss@example.com", Role: models.RoleAdmin}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// clock is a settable time source.
type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	store  *storetest.MemoryStore
	clock  *clock
	ledger *services.Ledger
}

func newFixture(t *testing.T, opts ...services.Option) *fixture {
	t.Helper()
	f := &fixture{store: storetest.NewMemoryStore(), clock: &clock{now: t0}}
	opts = append([]services.Option{services.WithClock(f.clock.Now)}, opts...)
	f.ledger = services.NewLedger(f.store, opts...)
	return f
}

func (f *fixture) addUser(t *testing.T, balance string) models.User {
	t.Helper()
	u := models.User{
		ID:            uuid.New(),
		FullName:      "Test User",
		Email:         uuid.NewString()[:8] + "@example.com",
		Role:          models.RoleUser,
		Status:        models.UserStatusActive,
		Balance:       dec(balance),
		TotalInvested: decimal.Zero,
		TotalEarnings: decimal.Zero,
		CreatedAt:     f.clock.now,
	}
	f.store.PutUser(u)
	return u
}

// addInvestment stores an active investment approved at approvedAt.
func (f *fixture) addInvestment(t *testing.T, userID uuid.UUID, amount string, approvedAt time.Time) models.Investment {
	t.Helper()
	inv := models.NewActiveInvestment(&models.Payment{ID: uuid.New(), UserID: userID, Amount: dec(amount)}, approvedAt)
	f.store.PutInvestment(*inv)
	return *inv
}

func (f *fixture) user(t *testing.T, id uuid.UUID) *models.User {
	t.Helper()
	u, err := f.store.GetUser(ctx, id)
	require.NoError(t, err)
	return u
}

func (f *fixture) investment(t *testing.T, id uuid.UUID) *models.Investment {
	t.Helper()
	inv, err := f.store.GetInvestment(ctx, id)
	require.NoError(t, err)
	return inv
}

func intPtr(v int) *int { return &v }

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendWithdrawalStatusUpdate(ctx context.Context, msg services.WithdrawalStatusEmail) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockNotifier) SendInvestmentMatured(ctx context.Context, msg services.MaturityEmail) error {
	return m.Called(ctx, msg).Error(0)
}

type recordedEvents struct {
	events map[uuid.UUID][]services.LedgerEvent
}

func (r *recordedEvents) Publish(userID uuid.UUID, e services.LedgerEvent) {
	if r.events == nil {
		r.events = map[uuid.UUID][]services.LedgerEvent{}
	}
	r.events[userID] = append(r.events[userID], e)
}
