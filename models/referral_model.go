package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReferralPayout is the one-time bonus paid to a referrer. The unique index on
// ReferredUserID enforces one payout per referred user.
type ReferralPayout struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ReferrerID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"referrer_id"`
	ReferredUserID uuid.UUID       `gorm:"type:uuid;not null;unique" json:"referred_user_id"`
	PaymentID      uuid.UUID       `gorm:"type:uuid;not null" json:"payment_id"`
	Amount         decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`

	Referrer     User `gorm:"foreignkey:ReferrerID" json:"-"`
	ReferredUser User `gorm:"foreignkey:ReferredUserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

func (r *ReferralPayout) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
