package main

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"klendrisk/native/lending"
)

type groupLiquidity struct {
	ElevationGroup uint32          `json:"elevationGroup"`
	Available      decimal.Decimal `json:"available"`
}

func newCapsCmd(root *rootOptions) *cobra.Command {
	var groups []uint
	cmd := &cobra.Command{
		Use:   "caps <reserve>",
		Short: "Print borrow caps and the liquidity available per elevation group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.open()
			if err != nil {
				return err
			}
			ids := make([]uint32, len(groups))
			for i, g := range groups {
				ids[i] = uint32(g)
			}
			caps, available, err := s.engine.ReserveCaps(s.entry.Market.Address(), lending.Address(args[0]), ids)
			if err != nil {
				return err
			}
			liquidity := make([]groupLiquidity, len(ids))
			for i, id := range ids {
				liquidity[i] = groupLiquidity{ElevationGroup: id, Available: available[i]}
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Reserve        lending.Address    `json:"reserve"`
				Caps           lending.BorrowCaps `json:"caps"`
				GroupLiquidity []groupLiquidity   `json:"groupLiquidity"`
			}{lending.Address(args[0]), caps, liquidity})
		},
	}
	cmd.Flags().UintSliceVar(&groups, "groups", []uint{0}, "elevation groups to report liquidity for")
	return cmd
}
