package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"apgrhost/internal/domain"
)

// Client-consistency weights
const (
	proxyWeightTimezone = 4
	proxyWeightClock    = 3
	proxyWeightLanguage = 2
	proxyWeightTouch    = 1

	maxClockSkew = time.Hour
)

var mobileDevicePattern = regexp.MustCompile(`(?i)mobile|phone|tablet|android|iphone`)

// CheckProxy compares what the browser reports about itself with where the
// address geolocates. Each inconsistency adds its weight and a reason; rules
// whose inputs are unknown are skipped.
func CheckProxy(info *domain.IPInfo, client domain.ClientDetails, device domain.DeviceInfo, now time.Time) domain.ProxyCheckResult {
	if info == nil {
		info = &domain.IPInfo{}
	}

	var result domain.ProxyCheckResult
	add := func(weight int, reason string) {
		result.Score += weight
		result.Reasons = append(result.Reasons, reason)
	}

	region := firstNonEmptyString(info.Country, info.CountryCode)
	tz := strings.TrimSpace(client.Timezone)
	if region != "" && tz != "" && !timezoneMatchesRegion(tz, info) {
		add(proxyWeightTimezone, fmt.Sprintf("timezone %s does not match IP region %s", tz, region))
	}

	if clientTime, ok := parseClientTime(client.ClientTime); ok {
		skew := now.Sub(clientTime)
		if skew < 0 {
			skew = -skew
		}
		if skew > maxClockSkew {
			add(proxyWeightClock, fmt.Sprintf("client clock differs from server clock by %s", skew.Round(time.Minute)))
		}
	}

	lang := strings.ToLower(strings.TrimSpace(client.Language))
	regionToken := strings.ToLower(firstNonEmptyString(info.CountryCode, info.Country))
	if lang != "" && regionToken != "" && !strings.Contains(lang, regionToken) {
		add(proxyWeightLanguage, fmt.Sprintf("language %s does not match IP region %s", client.Language, region))
	}

	mobile := device.Mobile || mobileDevicePattern.MatchString(device.Device)
	if mobile && !client.TouchSupport {
		add(proxyWeightTouch, "mobile device without touch support")
	}

	return result
}

// timezoneMatchesRegion accepts the zone the address geolocates to, or any
// zone naming the country or city
func timezoneMatchesRegion(tz string, info *domain.IPInfo) bool {
	if info.Timezone != "" && strings.EqualFold(tz, info.Timezone) {
		return true
	}
	zone := strings.ToLower(strings.ReplaceAll(tz, "_", " "))
	for _, part := range []string{info.Country, info.City} {
		if part != "" && strings.Contains(zone, strings.ToLower(part)) {
			return true
		}
	}
	return false
}

// parseClientTime accepts epoch milliseconds or RFC 3339
func parseClientTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseFloat(raw, 64); err == nil {
		if ms <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ms)), true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func firstNonEmptyString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
