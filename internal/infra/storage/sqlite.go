package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"queue_go/internal/domain"
)

// Storage is the SQLite order and action journal. Live state never lives
// here; the tables are a write-only audit trail for post-mortem review.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the journal database at the given path.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		path = filepath.Join("data", "journal.db")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Pure Go SQLite, no cgo.
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.OrderRecord{}, &domain.ActionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// RecordOrder journals one order lifecycle transition.
func (s *Storage) RecordOrder(instrument string, orderID int64, side string, price, qty decimal.Decimal, status string) error {
	record := domain.OrderRecord{
		OrderID:    orderID,
		Instrument: instrument,
		Side:       side,
		Price:      price.String(),
		Quantity:   qty.String(),
		Status:     status,
	}
	return s.db.Create(&record).Error
}

// RecordAction journals one decision the engine issued.
func (s *Storage) RecordAction(instrument string, orderID int64, action, reason string, price decimal.Decimal) error {
	record := domain.ActionRecord{
		Instrument: instrument,
		OrderID:    orderID,
		Action:     action,
		Reason:     reason,
		Price:      price.String(),
	}
	return s.db.Create(&record).Error
}

// OrderHistory returns the journaled transitions for one instrument, most
// recent first.
func (s *Storage) OrderHistory(instrument string, limit int) ([]domain.OrderRecord, error) {
	var records []domain.OrderRecord
	err := s.db.Where("instrument = ?", instrument).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// ActionHistory returns the journaled decisions for one instrument, most
// recent first.
func (s *Storage) ActionHistory(instrument string, limit int) ([]domain.ActionRecord, error) {
	var records []domain.ActionRecord
	err := s.db.Where("instrument = ?", instrument).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
