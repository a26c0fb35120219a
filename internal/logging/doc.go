// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Package logging provides zerolog-based structured logging for AuthSentry.
//
// The package exposes a global logger configured once at startup, plus
// adapters that route the logs of slog-based libraries (sutureslog) and
// Watermill through the same zerolog pipeline.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("addr", ":8080").Msg("HTTP server listening")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Notifier failed")
//
// # Personal Data
//
// Login attempts carry emails, IP addresses and user agents. Never log them
// raw; use SanitizeEmail, MaskIP and SanitizeUserAgent:
//
//	logging.Info().
//	    Str("email", logging.SanitizeEmail(a.Email)).
//	    Str("ip", logging.MaskIP(a.SourceIP)).
//	    Msg("Anomaly detected")
//
// # Best Practices
//
// Always terminate log chains with .Msg() or .Send(). Prefer structured
// fields over Msgf.
package logging
