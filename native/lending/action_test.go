package lending

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestActionRequestDecode(t *testing.T) {
	amount := dec("250")
	cases := []struct {
		name    string
		request ActionRequest
		want    Action
	}{
		{"deposit", ActionRequest{Action: ActionDeposit, AmountCollateral: &amount, MintCollateral: mintA}, Deposit{Amount: amount, Mint: mintA}},
		{"withdraw", ActionRequest{Action: ActionWithdraw, AmountCollateral: &amount, MintCollateral: mintA}, Withdraw{Amount: amount, Mint: mintA}},
		{"borrow", ActionRequest{Action: ActionBorrow, AmountDebt: &amount, MintDebt: mintB}, Borrow{Amount: amount, Mint: mintB}},
		{"repay", ActionRequest{Action: ActionRepay, AmountDebt: &amount, MintDebt: mintB}, Repay{Amount: amount, Mint: mintB}},
		{
			"depositAndBorrow",
			ActionRequest{Action: ActionDepositAndBorrow, AmountCollateral: &amount, MintCollateral: mintA, AmountDebt: &amount, MintDebt: mintB},
			DepositAndBorrow{DepositAmount: amount, DepositMint: mintA, BorrowAmount: amount, BorrowMint: mintB},
		},
		{
			"repayAndWithdraw",
			ActionRequest{Action: ActionRepayAndWithdraw, AmountCollateral: &amount, MintCollateral: mintA, AmountDebt: &amount, MintDebt: mintB},
			RepayAndWithdraw{RepayAmount: amount, RepayMint: mintB, WithdrawAmount: amount, WithdrawMint: mintA},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.request.Decode()
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
			require.Equal(t, tc.request, Request(got))
		})
	}
}

func TestActionRequestMissingFields(t *testing.T) {
	amount := dec("1")
	requests := []ActionRequest{
		{Action: ActionDeposit},
		{Action: ActionDeposit, AmountCollateral: &amount},
		{Action: ActionBorrow, MintDebt: mintB},
		{Action: ActionDepositAndBorrow, AmountCollateral: &amount, MintCollateral: mintA},
		{Action: ActionRepayAndWithdraw, AmountDebt: &amount, MintDebt: mintB},
		{Action: ActionMint, AmountCollateral: &amount, MintCollateral: mintA},
		{Action: "liquidate"},
	}
	for _, request := range requests {
		_, err := request.Decode()
		require.ErrorIs(t, err, ErrInvalidActionArguments, "action %s", request.Action)
	}
}

func TestActionRequestJSON(t *testing.T) {
	var request ActionRequest
	payload := `{"action":"depositAndBorrow","amountCollateral":"1000000","mintCollateral":"mintA","amountDebt":"500000","mintDebt":"mintB"}`
	require.NoError(t, json.Unmarshal([]byte(payload), &request))

	action, err := request.Decode()
	require.NoError(t, err)
	composite, ok := action.(DepositAndBorrow)
	require.True(t, ok)
	require.True(t, composite.DepositAmount.Equal(decimal.NewFromInt(1_000_000)))
	require.Equal(t, mintB, composite.BorrowMint)
	require.Equal(t, ActionDepositAndBorrow, action.Kind())
}
