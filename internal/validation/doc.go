// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Package validation wraps go-playground/validator v10 with a shared,
// lazily built validator and readable error messages.
//
//	type analyzeRequest struct {
//	    UserID   string `json:"userId" validate:"required,max=256"`
//	    SourceIP string `json:"sourceIp" validate:"omitempty,ip"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    // verr.Error() -> "userId is required"
//	}
//
// Field names in messages come from json tags.
package validation
