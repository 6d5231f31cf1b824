package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SnapshotRecord is one distinct market snapshot. Digest is the blake3 hash of
// the canonical JSON payload.
type SnapshotRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Market    string    `gorm:"size:64;index;not null"`
	Slot      uint64    `gorm:"index"`
	Digest    string    `gorm:"size:64;uniqueIndex;not null"`
	Source    string    `gorm:"size:32"`
	Subject   string    `gorm:"size:128"`
	Payload   []byte    `gorm:"not null"`
	CreatedAt time.Time
}

// StatsRecord is one evaluated obligation, kept as a history series.
type StatsRecord struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Market           string          `gorm:"size:64;index:idx_stats_obligation,priority:1" json:"market"`
	Obligation       string          `gorm:"size:64;index:idx_stats_obligation,priority:2" json:"obligation"`
	Slot             uint64          `gorm:"index:idx_stats_obligation,priority:3" json:"slot"`
	SnapshotDigest   string          `gorm:"size:64" json:"snapshotDigest"`
	ElevationGroup   uint32          `json:"elevationGroup"`
	TotalDeposit     decimal.Decimal `gorm:"type:text" json:"userTotalDeposit"`
	TotalBorrow      decimal.Decimal `gorm:"type:text" json:"userTotalBorrow"`
	BorrowLimit      decimal.Decimal `gorm:"type:text" json:"borrowLimit"`
	LiquidationLimit decimal.Decimal `gorm:"type:text" json:"borrowLiquidationLimit"`
	LoanToValue      decimal.Decimal `gorm:"type:text" json:"loanToValue"`
	Leverage         decimal.Decimal `gorm:"type:text" json:"leverage"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// AutoMigrate creates or updates the riskd tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&SnapshotRecord{}, &StatsRecord{})
}
