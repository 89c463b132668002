package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	PaymentStatusPending  = "Pending"
	PaymentStatusApproved = "Approved"
	PaymentStatusRejected = "Rejected"
)

type Payment struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount       decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	Crypto       string          `gorm:"size:20;not null" json:"crypto"`
	TxHash       *string         `gorm:"size:255" json:"tx_hash"`
	Plan         string          `gorm:"size:50;not null;default:'Standard'" json:"plan"`
	Status       string          `gorm:"size:20;not null;default:'Pending';index" json:"status"`
	PaidAt       *time.Time      `json:"paid_at"`
	InvestmentID *uuid.UUID      `gorm:"type:uuid" json:"investment_id"`

	User User `gorm:"foreignkey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func ValidPaymentStatus(s string) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusApproved, PaymentStatusRejected:
		return true
	}
	return false
}
