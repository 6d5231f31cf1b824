package main

import (
	"github.com/spf13/cobra"

	"klendrisk/native/lending"
)

type statsOutput struct {
	Obligation     lending.Address         `json:"obligation"`
	Slot           uint64                  `json:"slot"`
	ElevationGroup uint32                  `json:"elevationGroup"`
	Stats          lending.ObligationStats `json:"stats"`
	Deposits       lending.PositionMap     `json:"deposits"`
	Borrows        lending.PositionMap     `json:"borrows"`
}

func newStatsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <obligation>",
		Short: "Print refreshed obligation stats and positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.open()
			if err != nil {
				return err
			}
			_, o, err := s.engine.Obligation(s.query(lending.Address(args[0])))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), statsOutput{
				Obligation:     o.Address(),
				Slot:           o.Slot(),
				ElevationGroup: o.ElevationGroup(),
				Stats:          o.Stats(),
				Deposits:       o.Deposits(),
				Borrows:        o.Borrows(),
			})
		},
	}
}
