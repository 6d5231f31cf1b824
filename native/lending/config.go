package lending

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"klendrisk/native/lending/fixedpoint"
)

const (
	// DefaultProgramID is the mainnet lending program.
	DefaultProgramID = "KLend2g3cP87fffoy8q1mQqGKjrxjC8boSyAYavgmjD"
	// DefaultRecentSlotDurationMs is the slot cadence assumed when no
	// observation is configured.
	DefaultRecentSlotDurationMs = 450
)

var errInvalidSlotDuration = errors.New("lending: recent slot duration must be positive")

// Config captures the runtime configuration for the risk engine. It is passed
// explicitly to every market so that no computation depends on process-wide
// state.
type Config struct {
	ProgramID            string  `toml:"ProgramID" yaml:"programId" json:"programId"`
	RecentSlotDurationMs float64 `toml:"RecentSlotDurationMs" yaml:"recentSlotDurationMs" json:"recentSlotDurationMs"`
}

// DefaultConfig returns the mainnet defaults.
func DefaultConfig() Config {
	return Config{ProgramID: DefaultProgramID, RecentSlotDurationMs: DefaultRecentSlotDurationMs}
}

// EnsureDefaults populates unset fields.
func (c *Config) EnsureDefaults() {
	c.ProgramID = strings.TrimSpace(c.ProgramID)
	if c.ProgramID == "" {
		c.ProgramID = DefaultProgramID
	}
	if c.RecentSlotDurationMs == 0 {
		c.RecentSlotDurationMs = DefaultRecentSlotDurationMs
	}
}

// Validate rejects configurations that would make rate math undefined.
func (c Config) Validate() error {
	if c.RecentSlotDurationMs < 0 {
		return errInvalidSlotDuration
	}
	return nil
}

// SlotAdjustmentFactor converts the on-chain per-slot accrual cadence to the
// observed one: 1000 / SLOTS_PER_SECOND / recentSlotDurationMs.
func (c Config) SlotAdjustmentFactor() decimal.Decimal {
	ms := c.RecentSlotDurationMs
	if ms <= 0 {
		ms = DefaultRecentSlotDurationMs
	}
	denominator := decimal.NewFromInt(SlotsPerSecond).Mul(decimal.NewFromFloat(ms))
	return fixedpoint.Quo(decimal.NewFromInt(1000), denominator)
}
