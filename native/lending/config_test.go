package lending

import "testing"

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.EnsureDefaults()
	if cfg.ProgramID != DefaultProgramID {
		t.Fatalf("expected default program id, got %q", cfg.ProgramID)
	}
	if cfg.RecentSlotDurationMs != DefaultRecentSlotDurationMs {
		t.Fatalf("expected default slot duration, got %v", cfg.RecentSlotDurationMs)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate defaults: %v", err)
	}
}

func TestConfigRejectsNegativeSlotDuration(t *testing.T) {
	cfg := Config{RecentSlotDurationMs: -5}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected negative slot duration to be rejected")
	}
}

func TestSlotAdjustmentFactor(t *testing.T) {
	if got := (Config{RecentSlotDurationMs: 500}).SlotAdjustmentFactor(); !got.Equal(one) {
		t.Fatalf("expected nominal cadence to give 1, got %s", got)
	}
	got := DefaultConfig().SlotAdjustmentFactor()
	if !got.GreaterThan(one) {
		t.Fatalf("expected faster slots to scale rates up, got %s", got)
	}
}
