// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Package config loads AuthSentry configuration with Koanf v2.
//
// Sources are layered, later ones overriding earlier ones:
//
//  1. Built-in defaults (defaultConfig)
//  2. YAML file from CONFIG_PATH or one of DefaultConfigPaths
//  3. Environment variables listed in envMappings
//
// Comma-separated environment values are split for slice fields
// (CORS_ORIGINS, DETECTION_DISABLED_DETECTORS). The merged result is
// validated before LoadWithKoanf returns it.
//
// Example config.yaml:
//
//	detection:
//	  travel_max_speed_kmh: 1000
//	  attack_max_attempts: 20
//	  timing_timezone: UTC
//	retention:
//	  days: 30
//	  cleanup_interval: 24h
//	nats:
//	  enabled: true
//	  embedded_server: true
package config
