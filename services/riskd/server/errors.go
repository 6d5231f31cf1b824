package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"klendrisk/native/lending"
	"klendrisk/native/lending/snapshot"
	"klendrisk/services/riskd/middleware"
	"klendrisk/services/riskd/registry"
)

var (
	errBadRequest          = errors.New("bad request")
	errPersistenceDisabled = errors.New("stats history requires storage to be configured")
)

// statusFor maps engine and registry errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, registry.ErrMarketNotFound),
		errors.Is(err, registry.ErrObligationNotFound),
		errors.Is(err, lending.ErrReferenceNotFound):
		return http.StatusNotFound
	case errors.Is(err, lending.ErrElevationGroupIncompatible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, snapshot.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, errPersistenceDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, errBadRequest),
		errors.Is(err, lending.ErrInvalidActionArguments),
		errors.Is(err, lending.ErrEmptyCollateralSet),
		errors.Is(err, lending.ErrUnknownElevationGroup),
		errors.Is(err, lending.ErrPriceNotFound),
		errors.Is(err, lending.ErrDuplicateReserve),
		errors.Is(err, snapshot.ErrMissingMarket),
		errors.Is(err, registry.ErrInvalidSnapshot):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError renders err with its mapped status. Internal errors are logged
// and replaced by a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logError(r.Context(), "request failed", err)
		message = http.StatusText(status)
	}
	middleware.WriteError(w, status, message)
}
