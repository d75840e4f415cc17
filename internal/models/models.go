package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return
}

type User struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;" json:"id"`
	Username     string          `gorm:"unique;not null" json:"username"`
	PasswordHash string          `gorm:"not null" json:"-"`
	Cash         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"cash"`
}

// LedgerEntry is one executed trade. Shares is positive for a buy and
// negative for a sell. Rows are never updated or deleted.
type LedgerEntry struct {
	ID           uint            `gorm:"primaryKey" json:"id" db:"id"`
	UserID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id" db:"user_id"`
	Symbol       string          `gorm:"not null" json:"symbol" db:"symbol"`
	Shares       int64           `gorm:"not null" json:"shares" db:"shares"`
	Price        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price" db:"price"`
	TransactedAt time.Time       `gorm:"not null" json:"transacted_at" db:"transacted_at"`
}

type Session struct {
	ID           uint
	UserID       uuid.UUID `gorm:"type:uuid"`
	User         User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;"`
	RefreshToken string    `gorm:"unique"`
	ExpiresAt    time.Time
}
