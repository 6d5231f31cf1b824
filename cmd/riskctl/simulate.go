package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"klendrisk/native/lending"
)

type simulateOptions struct {
	action     string
	amount     string
	mint       string
	debtAmount string
	debtMint   string
}

// request maps the flags onto the wire form. Single-leg debt actions take
// --amount and --mint; composite actions use them for the collateral leg and
// --debt-amount and --debt-mint for the debt leg.
func (o simulateOptions) request() (lending.ActionRequest, error) {
	req := lending.ActionRequest{Action: lending.ActionKind(o.action)}
	amount, err := parseAmount("amount", o.amount)
	if err != nil {
		return req, err
	}
	debtAmount, err := parseAmount("debt-amount", o.debtAmount)
	if err != nil {
		return req, err
	}
	switch req.Action {
	case lending.ActionBorrow, lending.ActionRepay:
		req.AmountDebt, req.MintDebt = amount, lending.Address(o.mint)
	case lending.ActionDepositAndBorrow, lending.ActionRepayAndWithdraw:
		req.AmountCollateral, req.MintCollateral = amount, lending.Address(o.mint)
		req.AmountDebt, req.MintDebt = debtAmount, lending.Address(o.debtMint)
	default:
		req.AmountCollateral, req.MintCollateral = amount, lending.Address(o.mint)
	}
	return req, nil
}

func parseAmount(flag, raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", flag, err)
	}
	return &value, nil
}

func newSimulateCmd(root *rootOptions) *cobra.Command {
	opts := simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate <obligation>",
		Short: "Project an obligation through a deposit, withdraw, borrow or repay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request()
			if err != nil {
				return err
			}
			action, err := req.Decode()
			if err != nil {
				return err
			}
			s, err := root.open()
			if err != nil {
				return err
			}
			result, err := s.engine.Simulate(s.query(lending.Address(args[0])), action)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Slot   uint64                   `json:"slot"`
				Action lending.ActionRequest    `json:"action"`
				Result lending.SimulationResult `json:"result"`
			}{s.slot, req, result})
		},
	}
	cmd.Flags().StringVar(&opts.action, "action", "", "deposit, withdraw, borrow, repay, depositAndBorrow or repayAndWithdraw")
	cmd.Flags().StringVar(&opts.amount, "amount", "", "amount in lamports")
	cmd.Flags().StringVar(&opts.mint, "mint", "", "mint of the amount")
	cmd.Flags().StringVar(&opts.debtAmount, "debt-amount", "", "debt leg amount for composite actions")
	cmd.Flags().StringVar(&opts.debtMint, "debt-mint", "", "debt leg mint for composite actions")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}
