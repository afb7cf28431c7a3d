package domain

import (
	"time"
)

// OrderRecord journals every order the trader placed or canceled, for
// post-mortem review. Live state stays in memory; this table is write-only
// from the bot's point of view.
type OrderRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OrderID    int64     `gorm:"index" json:"order_id"`
	Instrument string    `gorm:"index" json:"instrument"`
	Side       string    `json:"side"`
	Price      string    `json:"price"`
	Quantity   string    `json:"quantity"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ActionRecord journals each decision the engine issued, with the reason
// class it fired on.
type ActionRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Instrument string    `gorm:"index" json:"instrument"`
	OrderID    int64     `json:"order_id"`
	Action     string    `json:"action"` // CANCEL, REPLACE, INSTANT_SELL
	Reason     string    `json:"reason"`
	Price      string    `json:"price"`
	CreatedAt  time.Time `json:"created_at"`
}
