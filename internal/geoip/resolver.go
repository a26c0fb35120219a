// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package geoip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/oschwald/geoip2-golang"

	"github.com/tomtom215/authsentry/internal/cache"
	"github.com/tomtom215/authsentry/internal/detection"
	"github.com/tomtom215/authsentry/internal/metrics"
)

// ErrInvalidIP is returned for strings that do not parse as an IP address.
var ErrInvalidIP = errors.New("invalid ip address")

// Config configures the resolver.
type Config struct {
	// CityDBPath is the path to a GeoLite2-City or GeoIP2-City database.
	CityDBPath string

	// CacheSize bounds the number of cached lookups, negative results included.
	CacheSize int

	// CacheTTL is how long a lookup result is reused.
	CacheTTL time.Duration
}

// cityReader is the subset of *geoip2.Reader the resolver uses.
type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// Resolver maps IP addresses to locations using a MaxMind city database and
// caches the results. It implements detection.GeoResolver.
type Resolver struct {
	reader cityReader
	cache  *cache.LRU[string, *detection.GeoLocation]
}

// Open opens the city database at cfg.CityDBPath.
func Open(cfg Config) (*Resolver, error) {
	reader, err := geoip2.Open(cfg.CityDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open city database %s: %w", cfg.CityDBPath, err)
	}
	return newResolver(reader, cfg), nil
}

func newResolver(reader cityReader, cfg Config) *Resolver {
	return &Resolver{
		reader: reader,
		cache:  cache.NewLRU[string, *detection.GeoLocation](cfg.CacheSize, cfg.CacheTTL),
	}
}

// Resolve returns the location of ip. Private, loopback and unlisted
// addresses resolve to nil with a nil error.
func (r *Resolver) Resolve(_ context.Context, ip string) (*detection.GeoLocation, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		metrics.RecordGeoLookup("invalid")
		return nil, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	if !isPublic(parsed) {
		metrics.RecordGeoLookup("private")
		return nil, nil
	}

	key := parsed.String()
	if loc, ok := r.cache.Get(key); ok {
		metrics.RecordGeoLookup("cache_hit")
		return copyLocation(loc), nil
	}

	record, err := r.reader.City(parsed)
	if err != nil {
		metrics.RecordGeoLookup("error")
		return nil, fmt.Errorf("city lookup for %s: %w", key, err)
	}

	loc := toLocation(record)
	r.cache.Add(key, loc)
	if loc == nil {
		metrics.RecordGeoLookup("not_found")
		return nil, nil
	}
	metrics.RecordGeoLookup("found")
	return copyLocation(loc), nil
}

// Close releases the database.
func (r *Resolver) Close() error {
	return r.reader.Close()
}

// CacheStats returns the cache hit and miss counters and its size.
func (r *Resolver) CacheStats() (hits, misses int64, size int) {
	return r.cache.Stats()
}

// toLocation converts a city record. Records without a country and with
// zero coordinates are treated as not found.
func toLocation(record *geoip2.City) *detection.GeoLocation {
	if record == nil {
		return nil
	}
	if record.Country.IsoCode == "" && record.Location.Latitude == 0 && record.Location.Longitude == 0 {
		return nil
	}
	return &detection.GeoLocation{
		Country:   record.Country.IsoCode,
		City:      record.City.Names["en"],
		Latitude:  record.Location.Latitude,
		Longitude: record.Location.Longitude,
		Timezone:  record.Location.TimeZone,
		Accuracy:  float64(record.Location.AccuracyRadius),
	}
}

func copyLocation(loc *detection.GeoLocation) *detection.GeoLocation {
	if loc == nil {
		return nil
	}
	c := *loc
	return &c
}

func isPublic(ip net.IP) bool {
	return !ip.IsPrivate() && !ip.IsLoopback() && !ip.IsUnspecified() &&
		!ip.IsLinkLocalUnicast() && !ip.IsLinkLocalMulticast() && !ip.IsMulticast()
}
