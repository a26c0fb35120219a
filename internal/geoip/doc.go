// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Package geoip resolves source IP addresses of login attempts to locations
// using a MaxMind city database.
//
// The engine calls the resolver only for attempts that carry a source IP
// but no location. Lookups are cached in an LRU keyed by the normalized
// address, negative results included, and are reported through the
// authsentry_geo_lookups_total metric.
package geoip
