// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Package eventprocessor carries login attempts and anomaly alerts over NATS
// JetStream using Watermill.
//
// # Flow
//
//	identity provider ──▶ auth.login_attempts ──▶ Router ──▶ detection.WatermillHandler
//	                                                │
//	                                  failures ─────┴──▶ auth.login_attempts.poison
//
//	detection.Engine ──▶ PublisherNotifier ──▶ auth.anomaly_alerts
//
// All three subjects live in one stream (AUTH_EVENTS) created by
// StreamInitializer. Publishers never auto-provision and subscribers bind
// to the stream by name, because stream names cannot contain the dots used
// in the subjects.
//
// # Router Middleware
//
//   - Throttle: optional rate limit
//   - Deduplicator: redeliveries with a seen message id are dropped. Plain NATS
//     producers get their id from Nats-Msg-Id or the stream sequence; messages
//     without any id are never dropped
//   - PoisonQueue: attempts that exhaust their retries are parked
//   - Retry: exponential backoff for transient failures
//   - Recoverer: handler panics become errors
//
// # Deployment
//
// With nats.embedded_server the service runs its own JetStream server
// (Pipeline starts and stops it). Otherwise nats.url points at an external
// cluster and several instances can share the durable queue group.
package eventprocessor
