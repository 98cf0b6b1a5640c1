package model

import (
	"time"

	"github.com/google/uuid"
)

// CreditBalance is one row per user. The balance is only ever mutated through
// single atomic UPDATEs (conditional debit, unconditional credit), never
// read-modify-write.
type CreditBalance struct {
	OwnerID uuid.UUID `gorm:"type:uuid;primaryKey" json:"owner_id"`
	Balance int       `gorm:"not null;default:0;check:balance >= 0" json:"balance"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CreditBalance) TableName() string { return "credit_balances" }
