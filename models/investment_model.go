package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	InvestmentStatusActive    = "Active"
	InvestmentStatusCompleted = "Completed"

	DefaultDurationDays = 30
	DefaultPlanName     = "Standard"
)

// DefaultDailyPercent is a fraction of principal: 0.10 credits 10% per day.
var DefaultDailyPercent = decimal.RequireFromString("0.10")

// Investment accrual columns are nullable because records created before the
// accrual engine existed carry none of them; BackfillAccrualFields fills them in.
type Investment struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	PaymentID *uuid.UUID      `gorm:"type:uuid;unique" json:"payment_id"`
	PlanName  string          `gorm:"size:50;not null;default:'Standard'" json:"plan_name"`
	Amount    decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	Status    string          `gorm:"size:20;not null;default:'Active';index" json:"status"`

	DurationDays  *int                `json:"duration_days"`
	DailyPercent  decimal.NullDecimal `gorm:"type:numeric(10,6)" json:"daily_percent"`
	DaysAccrued   *int                `json:"days_accrued"`
	Earnings      decimal.NullDecimal `gorm:"type:numeric(20,4)" json:"earnings"`
	LastAccruedAt *time.Time          `json:"last_accrued_at"`

	ApprovedAt      time.Time  `gorm:"not null" json:"approved_at"`
	CanWithdraw     bool       `gorm:"not null;default:false" json:"can_withdraw"`
	FirstPayoutDate *time.Time `json:"first_payout_date"`

	MaturityNotifiedAt *time.Time `json:"-"`
	CertificateURL     *string    `gorm:"size:512" json:"certificate_url"`

	User User `gorm:"foreignkey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (inv *Investment) BeforeCreate(tx *gorm.DB) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	return nil
}

// AccrualState is an investment's accrual columns with defaults applied.
type AccrualState struct {
	DurationDays  int
	DailyPercent  decimal.Decimal
	DaysAccrued   int
	Earnings      decimal.Decimal
	LastAccruedAt time.Time
}

func (s AccrualState) Remaining() int {
	if s.DaysAccrued >= s.DurationDays {
		return 0
	}
	return s.DurationDays - s.DaysAccrued
}

func (inv *Investment) AccrualState() AccrualState {
	s := AccrualState{
		DurationDays:  DefaultDurationDays,
		DailyPercent:  DefaultDailyPercent,
		Earnings:      decimal.Zero,
		LastAccruedAt: inv.ApprovedAt,
	}
	if inv.DurationDays != nil {
		s.DurationDays = *inv.DurationDays
	}
	if inv.DailyPercent.Valid {
		s.DailyPercent = inv.DailyPercent.Decimal
	}
	if inv.DaysAccrued != nil {
		s.DaysAccrued = *inv.DaysAccrued
	}
	if inv.Earnings.Valid {
		s.Earnings = inv.Earnings.Decimal
	}
	if inv.LastAccruedAt != nil {
		s.LastAccruedAt = *inv.LastAccruedAt
	}
	return s
}

func (inv *Investment) IsFullyMatured() bool {
	s := inv.AccrualState()
	return s.DaysAccrued >= s.DurationDays
}

// AccrualCursor is the pair a credit is conditioned on. A concurrent credit
// changes both, so a stale cursor matches no row.
type AccrualCursor struct {
	DaysAccrued   *int
	LastAccruedAt *time.Time
}

func (inv *Investment) Cursor() AccrualCursor {
	return AccrualCursor{DaysAccrued: inv.DaysAccrued, LastAccruedAt: inv.LastAccruedAt}
}

// AccrualCredit is one application of ROI to an investment.
type AccrualCredit struct {
	Days        int
	Amount      decimal.Decimal
	At          time.Time
	FirstPayout bool
}

// AccrualBackfill names the accrual columns to fill; nil fields are left alone.
type AccrualBackfill struct {
	DurationDays  *int
	DailyPercent  *decimal.Decimal
	DaysAccrued   *int
	LastAccruedAt *time.Time
	Earnings      *decimal.Decimal
}

func (b AccrualBackfill) Empty() bool {
	return b.DurationDays == nil && b.DailyPercent == nil && b.DaysAccrued == nil &&
		b.LastAccruedAt == nil && b.Earnings == nil
}

// MissingAccrualFields returns the defaults for every absent accrual column.
func (inv *Investment) MissingAccrualFields(now time.Time) AccrualBackfill {
	var b AccrualBackfill
	if inv.DurationDays == nil {
		d := DefaultDurationDays
		b.DurationDays = &d
	}
	if !inv.DailyPercent.Valid {
		p := DefaultDailyPercent
		b.DailyPercent = &p
	}
	if inv.DaysAccrued == nil {
		z := 0
		b.DaysAccrued = &z
	}
	if inv.LastAccruedAt == nil {
		at := inv.ApprovedAt
		if at.IsZero() {
			at = now
		}
		b.LastAccruedAt = &at
	}
	if !inv.Earnings.Valid {
		e := decimal.Zero
		b.Earnings = &e
	}
	return b
}

// NewActiveInvestment builds the investment created when a payment is approved.
func NewActiveInvestment(p *Payment, now time.Time) *Investment {
	duration := DefaultDurationDays
	accrued := 0
	plan := p.Plan
	if plan == "" {
		plan = DefaultPlanName
	}
	paymentID := p.ID
	return &Investment{
		ID:            uuid.New(),
		UserID:        p.UserID,
		PaymentID:     &paymentID,
		PlanName:      plan,
		Amount:        p.Amount,
		Status:        InvestmentStatusActive,
		DurationDays:  &duration,
		DailyPercent:  decimal.NewNullDecimal(DefaultDailyPercent),
		DaysAccrued:   &accrued,
		Earnings:      decimal.NewNullDecimal(decimal.Zero),
		LastAccruedAt: &now,
		ApprovedAt:    now,
		CanWithdraw:   false,
	}
}
