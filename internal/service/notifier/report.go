package notifier

import (
	"fmt"
	"strings"
	"time"

	"apgrhost/internal/domain"
)

const unknown = "unknown"

// ReportInput is everything known about one processed visit
type ReportInput struct {
	Classification domain.ClassificationResult
	Suspicion      domain.SuspicionResult
	ProxyCheck     domain.ProxyCheckResult
	IP             string
	Geo            *domain.IPInfo
	Device         domain.DeviceInfo
	IsBot          bool
	UserAgent      string
	Fingerprint    string
	Client         *domain.ClientDetails
	Now            time.Time
}

// Report is a rendered visit report ready for delivery
type Report struct {
	Text        string
	HasLocation bool
	Latitude    float64
	Longitude   float64
}

// BuildReport renders the summary and detail sections of a visit report.
// Times are shown in the client's declared timezone when it is valid.
func BuildReport(in ReportInput) Report {
	loc := clientLocation(in.Client)
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	var b strings.Builder

	switch in.Classification.Kind {
	case domain.VisitNew:
		b.WriteString("🆕 NEW VISIT\n")
	case domain.VisitRepeat:
		b.WriteString("♻️ REPEAT VISIT\n")
		fmt.Fprintf(&b, "Match confidence: %d%% (%s)\n", in.Classification.Confidence(), in.Classification.MatchReason)
		if in.Classification.LastSeenAt != nil {
			fmt.Fprintf(&b, "Last seen: %s\n", formatTime(*in.Classification.LastSeenAt, loc))
		}
	default:
		b.WriteString("❓ UNKNOWN VISIT\n")
		if in.Fingerprint == "" {
			b.WriteString("Reason: no fingerprint\n")
		}
		if in.IP == "" {
			b.WriteString("Reason: no IP address\n")
		}
	}

	if in.UserAgent == "" {
		b.WriteString("Reason: no User-Agent\n")
	}

	if in.IsBot {
		b.WriteString("Type: 🤖 bot\n")
	} else {
		b.WriteString("Type: 👤 human\n")
	}

	fmt.Fprintf(&b, "IP: %s (%s)\n", orUnknown(in.IP), geoSummary(in.Geo))
	fmt.Fprintf(&b, "Device: %s\n", orUnknown(in.Device.Device))
	fmt.Fprintf(&b, "Browser: %s, OS: %s\n", orUnknown(in.Device.Browser), orUnknown(in.Device.OS))
	fmt.Fprintf(&b, "Time: %s\n", formatTime(now, loc))
	if in.ProxyCheck.Likely() {
		fmt.Fprintf(&b, "⚠️ Possible VPN/Proxy (score %d):\n", in.ProxyCheck.Score)
		for _, reason := range in.ProxyCheck.Reasons {
			fmt.Fprintf(&b, "• %s\n", reason)
		}
	}

	b.WriteString("\n")
	writeDetails(&b, in)

	report := Report{Text: strings.TrimRight(b.String(), "\n")}
	if in.Geo.HasLocation() {
		report.HasLocation = true
		report.Latitude = in.Geo.Lat
		report.Longitude = in.Geo.Lon
	}
	return report
}

func writeDetails(b *strings.Builder, in ReportInput) {
	org := ""
	anonymized := false
	if in.Geo != nil {
		org = firstNonEmpty(in.Geo.Org, in.Geo.ISP)
		anonymized = in.Geo.Proxy || in.Geo.Hosting
	}

	fmt.Fprintf(b, "Provider: %s\n", orUnknown(org))
	fmt.Fprintf(b, "VPN/Proxy/Tor: %s\n", yesNo(anonymized))
	fmt.Fprintf(b, "Suspicion: %d/100 (trust %d)\n", in.Suspicion.Score, in.Suspicion.Trust())
	if len(in.Suspicion.Signals) > 0 {
		fmt.Fprintf(b, "Signals: %s\n", strings.Join(in.Suspicion.Signals, ", "))
	}
	fmt.Fprintf(b, "User-Agent: %s\n", orUnknown(in.UserAgent))
	fmt.Fprintf(b, "Fingerprint: %s\n", orUnknown(in.Fingerprint))

	client := in.Client
	if client == nil {
		client = &domain.ClientDetails{}
	}

	if len(client.WebRTCIPs) > 0 {
		note := ""
		for _, ip := range client.WebRTCIPs {
			if in.IP != "" && ip != in.IP {
				note = " (differs from external IP)"
				break
			}
		}
		fmt.Fprintf(b, "WebRTC IPs: %s%s\n", strings.Join(client.WebRTCIPs, ", "), note)
	} else {
		b.WriteString("WebRTC IPs: none\n")
	}

	switch {
	case client.ScreenSize != "":
		fmt.Fprintf(b, "Screen: %s\n", client.ScreenSize)
	case client.ScreenWidth > 0 && client.ScreenHeight > 0:
		fmt.Fprintf(b, "Screen: %dx%d\n", client.ScreenWidth, client.ScreenHeight)
	default:
		b.WriteString("Screen: unknown\n")
	}

	var extra []string
	if client.ScreenWidth > 0 {
		extra = append(extra, fmt.Sprintf("width: %d", client.ScreenWidth))
	}
	if client.ScreenHeight > 0 {
		extra = append(extra, fmt.Sprintf("height: %d", client.ScreenHeight))
	}
	if client.Platform != "" {
		extra = append(extra, "platform: "+client.Platform)
	}
	if client.HardwareConcurrency > 0 {
		extra = append(extra, fmt.Sprintf("cores: %d", client.HardwareConcurrency))
	}
	if client.DeviceMemory > 0 {
		extra = append(extra, fmt.Sprintf("memory: %gGB", client.DeviceMemory))
	}
	if len(extra) > 0 {
		fmt.Fprintf(b, "Device info: %s\n", strings.Join(extra, ", "))
	}

	if in.Geo.HasLocation() {
		fmt.Fprintf(b, "Map: https://www.google.com/maps?q=%g,%g\n", in.Geo.Lat, in.Geo.Lon)
	}
}

// geoSummary renders "Country, City", falling back to whatever is known
func geoSummary(geo *domain.IPInfo) string {
	if geo == nil {
		return unknown
	}
	country := firstNonEmpty(geo.Country, geo.CountryCode)
	suffix := ""
	if geo.Cached {
		suffix = " [cached]"
	}
	switch {
	case country != "" && geo.City != "":
		return country + ", " + geo.City + suffix
	case country != "":
		return country + suffix
	default:
		return unknown
	}
}

func clientLocation(client *domain.ClientDetails) *time.Location {
	if client == nil || client.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(client.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func formatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02 15:04:05 MST")
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
