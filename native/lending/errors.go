package lending

import "errors"

var (
	// ErrReferenceNotFound reports a reserve referenced by an obligation slot
	// or mint that is absent from the market snapshot.
	ErrReferenceNotFound = errors.New("lending: reserve reference not found")
	// ErrInvalidActionArguments reports a simulation request that lacks an
	// amount or mint required by its action.
	ErrInvalidActionArguments = errors.New("lending: invalid action arguments")
	// ErrElevationGroupIncompatible reports an action on a reserve that is not a
	// member of the obligation's active elevation group.
	ErrElevationGroupIncompatible = errors.New("lending: reserve not in obligation elevation group")
	ErrEmptyCollateralSet         = errors.New("lending: collateral reserve set is empty")
	ErrUnknownElevationGroup      = errors.New("lending: unknown elevation group")
	ErrPriceNotFound              = errors.New("lending: price not found")
	ErrDuplicateReserve           = errors.New("lending: duplicate reserve")

	errNilState  = errors.New("lending: state not configured")
	errNilMarket = errors.New("lending: market not initialised")
)
