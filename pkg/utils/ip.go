package utils

import (
	"net"
	"net/http"
	"net/netip"
	"regexp"
	"strings"
)

var (
	// Crawler ranges Google publishes for Googlebot
	googleCrawlerRegex = regexp.MustCompile(`^(66\.249|64\.233|72\.14|203\.208|216\.239)\.`)

	// Headers checked for the client address, in order of preference
	clientIPHeaders = []string{
		"CF-Connecting-IP",
		"X-Forwarded-For",
		"X-Real-IP",
		"X-Client-IP",
	}
)

// NormalizeIP reduces a raw forwarded address to a single comparable IP string.
// It takes the first entry of a comma-separated list, trims it, unwraps
// IPv4-mapped IPv6 (::ffff:a.b.c.d -> a.b.c.d) and drops any port. Input that
// does not parse as an address is returned trimmed, so callers degrade to plain
// string comparison. The function is idempotent.
func NormalizeIP(raw string) string {
	first := raw
	if i := strings.IndexByte(first, ','); i >= 0 {
		first = first[:i]
	}
	first = strings.TrimSpace(first)

	if first == "" || strings.EqualFold(first, "unknown") {
		return ""
	}

	if addr, err := netip.ParseAddr(first); err == nil {
		return addr.Unmap().WithZone("").String()
	}

	if addrPort, err := netip.ParseAddrPort(first); err == nil {
		return addrPort.Addr().Unmap().WithZone("").String()
	}

	if strings.HasPrefix(first, "[") && strings.HasSuffix(first, "]") {
		if addr, err := netip.ParseAddr(first[1 : len(first)-1]); err == nil {
			return addr.Unmap().WithZone("").String()
		}
	}

	return first
}

// ClientIP extracts the normalized client address from the request
func ClientIP(r *http.Request) string {
	for _, header := range clientIPHeaders {
		if value := r.Header.Get(header); value != "" {
			if ip := NormalizeIP(value); ip != "" {
				return ip
			}
		}
	}

	return PeerIP(r)
}

// PeerIP returns the normalized RemoteAddr host without consulting headers
func PeerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return NormalizeIP(r.RemoteAddr)
	}
	return NormalizeIP(host)
}

// IsGoogleCrawlerIP reports whether ip falls in a known Googlebot range
func IsGoogleCrawlerIP(ip string) bool {
	return googleCrawlerRegex.MatchString(ip)
}

// IsPublicIP reports whether ip is a routable unicast address worth geolocating
func IsPublicIP(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsGlobalUnicast() && !addr.IsPrivate()
}
