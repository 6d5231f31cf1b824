package rpc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"klendrisk/native/lending"
	"klendrisk/services/riskd/registry"
)

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, registry.ErrMarketNotFound),
		errors.Is(err, registry.ErrObligationNotFound),
		errors.Is(err, lending.ErrReferenceNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, lending.ErrElevationGroupIncompatible):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, lending.ErrInvalidActionArguments),
		errors.Is(err, lending.ErrEmptyCollateralSet),
		errors.Is(err, lending.ErrUnknownElevationGroup),
		errors.Is(err, lending.ErrPriceNotFound):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Errorf(codes.Internal, "internal error")
	}
}
