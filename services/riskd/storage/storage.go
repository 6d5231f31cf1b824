package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"klendrisk/native/lending"
	"klendrisk/native/lending/snapshot"
)

var ErrUnsupportedDriver = errors.New("storage: unsupported driver")

// Store persists snapshots and obligation stats history.
type Store struct {
	db *gorm.DB
}

// Open connects to driver ("postgres" or "sqlite") and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", driver, err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveSnapshot stores payload unless a snapshot with the same digest exists.
// The returned flag is false for duplicates.
func (s *Store) SaveSnapshot(ctx context.Context, market lending.Address, slot uint64, source, subject string, payload []byte) (SnapshotRecord, bool, error) {
	digest := snapshot.Hash(payload)
	var existing SnapshotRecord
	err := s.db.WithContext(ctx).Where("digest = ?", digest).First(&existing).Error
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return SnapshotRecord{}, false, fmt.Errorf("storage: lookup snapshot: %w", err)
	}
	record := SnapshotRecord{
		ID:      uuid.New(),
		Market:  market.String(),
		Slot:    slot,
		Digest:  digest,
		Source:  source,
		Subject: subject,
		Payload: payload,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return SnapshotRecord{}, false, fmt.Errorf("storage: insert snapshot: %w", err)
	}
	return record, true, nil
}

// LatestSnapshots returns the highest-slot snapshot of every market.
func (s *Store) LatestSnapshots(ctx context.Context) ([]SnapshotRecord, error) {
	var markets []string
	if err := s.db.WithContext(ctx).Model(&SnapshotRecord{}).Distinct("market").Order("market").Pluck("market", &markets).Error; err != nil {
		return nil, fmt.Errorf("storage: list markets: %w", err)
	}
	out := make([]SnapshotRecord, 0, len(markets))
	for _, market := range markets {
		var record SnapshotRecord
		err := s.db.WithContext(ctx).
			Where("market = ?", market).
			Order("slot DESC").Order("created_at DESC").
			First(&record).Error
		if err != nil {
			return nil, fmt.Errorf("storage: latest snapshot for %s: %w", market, err)
		}
		out = append(out, record)
	}
	return out, nil
}

// RecordStats appends an obligation evaluation to the history.
func (s *Store) RecordStats(ctx context.Context, market lending.Address, digest string, o *lending.Obligation) (StatsRecord, error) {
	stats := o.Stats()
	record := StatsRecord{
		ID:               uuid.New(),
		Market:           market.String(),
		Obligation:       o.Address().String(),
		Slot:             o.Slot(),
		SnapshotDigest:   digest,
		ElevationGroup:   o.ElevationGroup(),
		TotalDeposit:     stats.TotalDeposit,
		TotalBorrow:      stats.TotalBorrow,
		BorrowLimit:      stats.BorrowLimit,
		LiquidationLimit: stats.LiquidationLimit,
		LoanToValue:      stats.LoanToValue,
		Leverage:         stats.Leverage,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return StatsRecord{}, fmt.Errorf("storage: insert stats: %w", err)
	}
	return record, nil
}

// StatsHistory returns the most recent evaluations of an obligation, newest
// first. A non-positive limit defaults to 100.
func (s *Store) StatsHistory(ctx context.Context, market, obligation lending.Address, limit int) ([]StatsRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var records []StatsRecord
	err := s.db.WithContext(ctx).
		Where("market = ? AND obligation = ?", market.String(), obligation.String()).
		Order("slot DESC").Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("storage: stats history: %w", err)
	}
	return records, nil
}
