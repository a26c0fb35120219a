// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"math"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// UnknownDeviceKey is returned for missing or malformed fingerprints.
const UnknownDeviceKey = "unknown_device"

// FingerprintKey hashes a fingerprint into a stable 16 hex digit key. It is
// total: nil, empty and malformed probes map to UnknownDeviceKey.
//
// Every field is written length-prefixed so that values cannot bleed into
// their neighbours ("ab"+"c" and "a"+"bc" hash differently).
func FingerprintKey(fp *EnvironmentFingerprint) string {
	if fp == nil || !fp.valid() || fp.isZero() {
		return UnknownDeviceKey
	}

	d := xxhash.New()
	writeField(d, fp.Language)
	writeField(d, fp.Timezone)
	writeField(d, strconv.Itoa(fp.ScreenWidth))
	writeField(d, strconv.Itoa(fp.ScreenHeight))
	writeField(d, strconv.Itoa(fp.ColorDepth))
	writeField(d, strconv.Itoa(fp.HardwareConcurrency))
	writeField(d, fp.Platform)
	writeField(d, fp.Canvas)
	writeField(d, fp.WebGL)

	keys := make([]string, 0, len(fp.Extra))
	for k := range fp.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeField(d, strconv.Itoa(len(keys)))
	for _, k := range keys {
		writeField(d, k)
		writeField(d, fp.Extra[k])
	}

	return formatKey(d.Sum64())
}

func (fp *EnvironmentFingerprint) valid() bool {
	return fp.ScreenWidth >= 0 && fp.ScreenHeight >= 0 &&
		fp.ColorDepth >= 0 && fp.HardwareConcurrency >= 0
}

func (fp *EnvironmentFingerprint) isZero() bool {
	return fp.Language == "" && fp.Timezone == "" && fp.Platform == "" &&
		fp.Canvas == "" && fp.WebGL == "" && len(fp.Extra) == 0 &&
		fp.ScreenWidth == 0 && fp.ScreenHeight == 0 &&
		fp.ColorDepth == 0 && fp.HardwareConcurrency == 0
}

// LocationKey groups nearby points into one zone: coordinates are rounded
// to precision decimals (1 decimal is roughly an 11 km cell) and combined
// with country and city. Returns "" for a nil location.
func LocationKey(loc *GeoLocation, precision int) string {
	if loc == nil {
		return ""
	}
	d := xxhash.New()
	writeField(d, loc.Country)
	writeField(d, loc.City)
	writeField(d, strconv.FormatFloat(roundTo(loc.Latitude, precision), 'f', precision, 64))
	writeField(d, strconv.FormatFloat(roundTo(loc.Longitude, precision), 'f', precision, 64))
	return formatKey(d.Sum64())
}

func writeField(d *xxhash.Digest, s string) {
	_, _ = d.WriteString(strconv.Itoa(len(s)))
	_, _ = d.WriteString(":")
	_, _ = d.WriteString(s)
}

func formatKey(sum uint64) string {
	const width = 16
	s := strconv.FormatUint(sum, 16)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// roundTo rounds v to the given number of decimals. Negative zero is
// normalised so -0.04 and 0.04 land in the same cell.
func roundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	r := math.Round(v*p) / p
	if r == 0 {
		return 0
	}
	return r
}

func roundTo2Decimals(v float64) float64 {
	return math.Round(v*100) / 100
}
