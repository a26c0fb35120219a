// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/authsentry/internal/detection"
	"github.com/tomtom215/authsentry/internal/logging"
	"github.com/tomtom215/authsentry/internal/validation"
)

// writeEngineError maps detection errors onto the error envelope. Internal
// error text is logged and never returned to the client.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)

	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		rw.ValidationError("login attempt failed validation", verr.Details())
	case errors.Is(err, detection.ErrInvalidAttempt):
		rw.ValidationError(err.Error(), nil)
	case errors.Is(err, detection.ErrDetectorNotFound):
		rw.NotFound(err.Error())
	case errors.Is(err, detection.ErrInvalidConfig):
		rw.ValidationError(err.Error(), nil)
	case errors.Is(err, detection.ErrAnalysisFailed):
		logging.Ctx(r.Context()).Error().Err(err).Msg("analysis failed")
		rw.Error(http.StatusInternalServerError, ErrCodeAnalysisFailed, "login attempt analysis failed, retry is safe")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("unexpected engine error")
		rw.InternalError("internal error")
	}
}
