package lending

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ActionKind names a user action.
type ActionKind string

const (
	ActionDeposit          ActionKind = "deposit"
	ActionWithdraw         ActionKind = "withdraw"
	ActionBorrow           ActionKind = "borrow"
	ActionRepay            ActionKind = "repay"
	ActionDepositAndBorrow ActionKind = "depositAndBorrow"
	ActionRepayAndWithdraw ActionKind = "repayAndWithdraw"
	// ActionMint and ActionRedeem move collateral tokens without touching an
	// obligation. They only apply to reserve rate simulations.
	ActionMint   ActionKind = "mint"
	ActionRedeem ActionKind = "redeem"
)

// Action is an obligation action that can be simulated. The set of
// implementations is closed; each variant carries exactly the fields it needs.
type Action interface {
	Kind() ActionKind
	action()
}

// Deposit adds Amount lamports of Mint as collateral.
type Deposit struct {
	Amount decimal.Decimal
	Mint   Address
}

// Withdraw removes Amount lamports of Mint from collateral.
type Withdraw struct {
	Amount decimal.Decimal
	Mint   Address
}

// Borrow draws Amount lamports of Mint.
type Borrow struct {
	Amount decimal.Decimal
	Mint   Address
}

// Repay returns Amount lamports of Mint.
type Repay struct {
	Amount decimal.Decimal
	Mint   Address
}

// DepositAndBorrow deposits collateral and then borrows against the updated
// position.
type DepositAndBorrow struct {
	DepositAmount decimal.Decimal
	DepositMint   Address
	BorrowAmount  decimal.Decimal
	BorrowMint    Address
}

// RepayAndWithdraw repays debt and then withdraws collateral.
type RepayAndWithdraw struct {
	RepayAmount    decimal.Decimal
	RepayMint      Address
	WithdrawAmount decimal.Decimal
	WithdrawMint   Address
}

func (Deposit) Kind() ActionKind          { return ActionDeposit }
func (Withdraw) Kind() ActionKind         { return ActionWithdraw }
func (Borrow) Kind() ActionKind           { return ActionBorrow }
func (Repay) Kind() ActionKind            { return ActionRepay }
func (DepositAndBorrow) Kind() ActionKind { return ActionDepositAndBorrow }
func (RepayAndWithdraw) Kind() ActionKind { return ActionRepayAndWithdraw }

func (Deposit) action()          {}
func (Withdraw) action()         {}
func (Borrow) action()           {}
func (Repay) action()            {}
func (DepositAndBorrow) action() {}
func (RepayAndWithdraw) action() {}

// ActionRequest is the wire form of an action. Collateral fields feed deposit
// and withdraw legs, debt fields feed borrow and repay legs.
type ActionRequest struct {
	Action           ActionKind       `json:"action"`
	AmountCollateral *decimal.Decimal `json:"amountCollateral,omitempty"`
	MintCollateral   Address          `json:"mintCollateral,omitempty"`
	AmountDebt       *decimal.Decimal `json:"amountDebt,omitempty"`
	MintDebt         Address          `json:"mintDebt,omitempty"`
}

// Decode validates the request and returns the typed action.
func (r ActionRequest) Decode() (Action, error) {
	collateral := func() (decimal.Decimal, Address, error) {
		if r.AmountCollateral == nil || r.MintCollateral.IsNull() {
			return decimal.Zero, "", fmt.Errorf("%w: amountCollateral and mintCollateral are required for %s", ErrInvalidActionArguments, r.Action)
		}
		return *r.AmountCollateral, r.MintCollateral, nil
	}
	debt := func() (decimal.Decimal, Address, error) {
		if r.AmountDebt == nil || r.MintDebt.IsNull() {
			return decimal.Zero, "", fmt.Errorf("%w: amountDebt and mintDebt are required for %s", ErrInvalidActionArguments, r.Action)
		}
		return *r.AmountDebt, r.MintDebt, nil
	}

	switch r.Action {
	case ActionDeposit:
		amount, mint, err := collateral()
		if err != nil {
			return nil, err
		}
		return Deposit{Amount: amount, Mint: mint}, nil
	case ActionWithdraw:
		amount, mint, err := collateral()
		if err != nil {
			return nil, err
		}
		return Withdraw{Amount: amount, Mint: mint}, nil
	case ActionBorrow:
		amount, mint, err := debt()
		if err != nil {
			return nil, err
		}
		return Borrow{Amount: amount, Mint: mint}, nil
	case ActionRepay:
		amount, mint, err := debt()
		if err != nil {
			return nil, err
		}
		return Repay{Amount: amount, Mint: mint}, nil
	case ActionDepositAndBorrow, ActionRepayAndWithdraw:
		collAmount, collMint, err := collateral()
		if err != nil {
			return nil, err
		}
		debtAmount, debtMint, err := debt()
		if err != nil {
			return nil, err
		}
		if r.Action == ActionDepositAndBorrow {
			return DepositAndBorrow{DepositAmount: collAmount, DepositMint: collMint, BorrowAmount: debtAmount, BorrowMint: debtMint}, nil
		}
		return RepayAndWithdraw{RepayAmount: debtAmount, RepayMint: debtMint, WithdrawAmount: collAmount, WithdrawMint: collMint}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported action %q", ErrInvalidActionArguments, r.Action)
	}
}

// Request converts an action back to its wire form.
func Request(a Action) ActionRequest {
	amount := func(d decimal.Decimal) *decimal.Decimal { return &d }
	switch v := a.(type) {
	case Deposit:
		return ActionRequest{Action: ActionDeposit, AmountCollateral: amount(v.Amount), MintCollateral: v.Mint}
	case Withdraw:
		return ActionRequest{Action: ActionWithdraw, AmountCollateral: amount(v.Amount), MintCollateral: v.Mint}
	case Borrow:
		return ActionRequest{Action: ActionBorrow, AmountDebt: amount(v.Amount), MintDebt: v.Mint}
	case Repay:
		return ActionRequest{Action: ActionRepay, AmountDebt: amount(v.Amount), MintDebt: v.Mint}
	case DepositAndBorrow:
		return ActionRequest{Action: ActionDepositAndBorrow, AmountCollateral: amount(v.DepositAmount), MintCollateral: v.DepositMint, AmountDebt: amount(v.BorrowAmount), MintDebt: v.BorrowMint}
	case RepayAndWithdraw:
		return ActionRequest{Action: ActionRepayAndWithdraw, AmountCollateral: amount(v.WithdrawAmount), MintCollateral: v.WithdrawMint, AmountDebt: amount(v.RepayAmount), MintDebt: v.RepayMint}
	}
	return ActionRequest{}
}
