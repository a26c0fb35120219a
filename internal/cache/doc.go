// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

/*
Package cache provides a thread-safe, generic LRU cache with TTL support.

# Use Cases

  - GeoIP lookups keyed by IP address (internal/geoip)
  - Message deduplication keyed by message UUID (internal/eventprocessor)

# Usage

	c := cache.NewLRU[string, *detection.GeoLocation](10000, time.Hour)
	c.Add("203.0.113.10", loc)
	if loc, ok := c.Get("203.0.113.10"); ok {
	    // ...
	}

	seen := cache.NewLRU[string, struct{}](100000, 5*time.Minute)
	if seen.IsDuplicate(msg.UUID) {
	    return nil
	}

Expired entries are dropped lazily on access; CleanupExpired sweeps them
eagerly.
*/
package cache
