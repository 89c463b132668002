package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	WithdrawalStatusPending  = "Pending"
	WithdrawalStatusApproved = "Approved"
	WithdrawalStatusRejected = "Rejected"
)

// Withdrawal.InvestmentID names the matured investment that qualified the
// request. It is informational and is not debited.
type Withdrawal struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	InvestmentID  *uuid.UUID      `gorm:"type:uuid" json:"investment_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	WalletAddress string          `gorm:"size:255;not null" json:"wallet_address"`
	Crypto        string          `gorm:"size:20;not null" json:"crypto"`
	Status        string          `gorm:"size:20;not null;default:'Pending';index" json:"status"`
	RequestedAt   time.Time       `gorm:"not null" json:"requested_at"`
	ApprovedAt    *time.Time      `json:"approved_at"`
	TxHash        *string         `gorm:"size:255" json:"tx_hash"`
	AdminNote     *string         `gorm:"type:text" json:"admin_note"`

	User User `gorm:"foreignkey:UserID" json:"-"`
}

func (w *Withdrawal) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

func ValidWithdrawalStatus(s string) bool {
	switch s {
	case WithdrawalStatusPending, WithdrawalStatusApproved, WithdrawalStatusRejected:
		return true
	}
	return false
}

// WithdrawalSettlement carries the fields written alongside a status change.
type WithdrawalSettlement struct {
	Status     string
	ApprovedAt *time.Time
	TxHash     *string
	AdminNote  *string
}
