package service

import (
	"regexp"
	"strings"

	"apgrhost/internal/domain"
	"github.com/mssola/useragent"
)

const unknownValue = "unknown"

var botPattern = regexp.MustCompile(`(?i)bot|crawl|spider|slurp|googlebot|bingbot|yandex|baidu|duckduck|sogou|exabot|facebot|ia_archiver`)

// IsBot reports whether ua looks like a crawler. A missing user agent counts as a bot.
func IsBot(ua string) bool {
	if strings.TrimSpace(ua) == "" {
		return true
	}
	return botPattern.MatchString(ua)
}

// ParseDevice extracts browser, OS and device class from a user agent
func ParseDevice(ua string) domain.DeviceInfo {
	if strings.TrimSpace(ua) == "" {
		return domain.DeviceInfo{Browser: unknownValue, OS: unknownValue, Device: unknownValue}
	}

	parsed := useragent.New(ua)
	info := domain.DeviceInfo{
		Browser: unknownValue,
		OS:      unknownValue,
		Device:  unknownValue,
		Mobile:  parsed.Mobile(),
		Bot:     parsed.Bot() || IsBot(ua),
	}

	if name, version := parsed.Browser(); name != "" {
		info.Browser = name
		if version != "" {
			info.Browser = name + " " + version
		}
	}

	if os := parsed.OS(); os != "" {
		info.OS = os
	}

	switch {
	case info.Bot:
		info.Device = "Bot"
	case isTablet(ua):
		info.Device = "Tablet"
	case info.Mobile:
		if platform := parsed.Platform(); platform != "" {
			info.Device = "Mobile (" + platform + ")"
		} else {
			info.Device = "Mobile"
		}
	default:
		info.Device = "Desktop"
	}

	return info
}

func isTablet(ua string) bool {
	lower := strings.ToLower(ua)
	return strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet") ||
		(strings.Contains(lower, "android") && !strings.Contains(lower, "mobile"))
}
