// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Package services adapts AuthSentry components to suture.Service.
//
// Each wrapper depends on a small interface rather than the concrete type,
// so the package imports neither detection nor eventprocessor and tests run
// against fakes.
package services
