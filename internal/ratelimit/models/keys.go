package models

import "strings"

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// so a crafted identifier containing ':' cannot land in another bucket.
// IPv6 addresses are the usual case here.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewIPRateLimitKey builds the bucket key for ip within class.
func NewIPRateLimitKey(ip string, class EndpointClass) string {
	return "ratelimit:ip:" + SanitizeKeySegment(ip) + ":" + string(class)
}
