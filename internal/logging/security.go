// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package logging

import (
	"net"
	"strings"
)

// maxUserAgentLen bounds user agents written to logs.
const maxUserAgentLen = 100

// SanitizeEmail masks the local part of an email address.
// Example: "john.doe@example.com" -> "jo***@example.com"
func SanitizeEmail(email string) string {
	if email == "" {
		return ""
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 2 {
		return "***" + domain
	}
	return local[:2] + "***" + domain
}

// MaskIP zeroes the host part of an address: the last octet for IPv4 and
// everything past the /48 prefix for IPv6. Unparseable input becomes "***".
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "***"
	}
	if v4 := parsed.To4(); v4 != nil {
		return net.IP{v4[0], v4[1], v4[2], 0}.String()
	}
	return parsed.Mask(net.CIDRMask(48, 128)).String()
}

// SanitizeUserAgent truncates user agents and strips control characters.
func SanitizeUserAgent(ua string) string {
	ua = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, ua)
	if len(ua) <= maxUserAgentLen {
		return ua
	}
	return ua[:maxUserAgentLen] + "..."
}
