// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

/*
Package main is the entry point for the AuthSentry server.

AuthSentry scores login attempts for account takeover signals: unseen
devices and locations, impossible travel, automated attack volume and logins
at unusual night hours. Attempts arrive over HTTP or from a NATS JetStream
subject; alerts are returned to the caller and fanned out to a webhook and a
NATS subject.

# Application Architecture

	RootSupervisor ("authsentry")
	├── EngineSupervisor ("engine-layer")
	│   └── detection engine (retention loop)
	├── MessagingSupervisor ("messaging-layer")
	│   └── NATS pipeline (if nats.enabled)
	└── APISupervisor ("api-layer")
	    └── HTTP server

Initialization order:

 1. Configuration: koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog
 3. Detection engine and notifiers (webhook, NATS alerts)
 4. GeoIP resolver (optional)
 5. NATS pipeline: embedded server, stream, publisher, router (optional)
 6. HTTP API: chi router
 7. Supervisor tree until SIGINT or SIGTERM

# Configuration

Settings come from built-in defaults, an optional config.yaml (CONFIG_PATH)
and a fixed set of environment variables, for example:

	HTTP_PORT=8080
	DETECTION_TRAVEL_MAX_SPEED_KMH=900
	NATS_ENABLED=true
	NATS_EMBEDDED=true
	WEBHOOK_ENABLED=true
	WEBHOOK_URL=https://hooks.example.com/authsentry

# Signal Handling

SIGINT and SIGTERM cancel the supervisor tree: the HTTP server drains, the
NATS router finishes in-flight attempts and pending alert notifications are
delivered before exit.
*/
package main
