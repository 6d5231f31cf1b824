package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"klendrisk/native/lending"
	"klendrisk/native/lending/snapshot"
	"klendrisk/services/riskd/registry"
)

type rootOptions struct {
	snapshotPath string
	slot         uint64
}

// session is a snapshot loaded into a registry with an engine on top, the
// same arrangement riskd serves from.
type session struct {
	engine *lending.Engine
	entry  *registry.Entry
	slot   uint64
}

func (s *session) query(obligation lending.Address) lending.Query {
	return lending.Query{Market: s.entry.Market.Address(), Obligation: obligation, Slot: s.slot}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "riskctl",
		Short:        "Evaluate lending market snapshots offline",
		Long:         "riskctl loads a market snapshot (JSON, YAML or TOML) and answers the same risk queries riskd serves.",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.snapshotPath, "snapshot", "", "path to a market snapshot")
	cmd.PersistentFlags().Uint64Var(&opts.slot, "slot", 0, "slot to evaluate at (default: snapshot slot)")
	_ = cmd.MarkPersistentFlagRequired("snapshot")

	cmd.AddCommand(
		newStatsCmd(opts),
		newSimulateCmd(opts),
		newCapsCmd(opts),
		newExportCmd(opts),
	)
	return cmd
}

func (o *rootOptions) open() (*session, error) {
	snap, err := snapshot.Load(o.snapshotPath)
	if err != nil {
		return nil, err
	}
	reg := registry.New()
	entry, err := reg.Put(snap)
	if err != nil {
		return nil, fmt.Errorf("build market: %w", err)
	}
	engine := lending.NewEngine()
	engine.SetState(reg)
	slot := o.slot
	if slot == 0 {
		slot = entry.Slot
	}
	return &session{engine: engine, entry: entry, slot: slot}, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
