package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	UserStatusActive  = "active"
	UserStatusBlocked = "blocked"
)

// User.Balance holds invested principal and withdrawable funds together. It is
// credited by the welcome bonus, approved payments, ROI accrual and referral
// bonuses, and debited only by approved withdrawals.
type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	FullName string    `gorm:"size:255;not null" json:"full_name"`
	Email    string    `gorm:"size:255;not null;unique" json:"email"`
	Password string    `gorm:"not null" json:"-"`
	Role     string    `gorm:"size:20;not null;default:'user'" json:"role"`
	Status   string    `gorm:"size:20;not null;default:'active'" json:"status"`

	Balance       decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"balance"`
	TotalInvested decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"total_invested"`
	TotalEarnings decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"total_earnings"`

	ReferralCode *string    `gorm:"size:10;unique" json:"referral_code"`
	ReferredBy   *uuid.UUID `gorm:"type:uuid;index" json:"referred_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) IsBlocked() bool {
	return u.Status == UserStatusBlocked
}

// UserDelta is applied to a user row as atomic increments.
type UserDelta struct {
	Balance       decimal.Decimal
	TotalInvested decimal.Decimal
	TotalEarnings decimal.Decimal
}

func (d UserDelta) IsZero() bool {
	return d.Balance.IsZero() && d.TotalInvested.IsZero() && d.TotalEarnings.IsZero()
}
