package notifier

import (
	"testing"
	"time"

	"apgrhost/internal/domain"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int {
	return &v
}

func TestBuildReport_Headlines(t *testing.T) {
	lastSeen := time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name           string
		classification domain.ClassificationResult
		input          ReportInput
		contains       []string
		notContains    []string
	}{
		{
			name:           "new visit",
			classification: domain.ClassificationResult{Kind: domain.VisitNew},
			contains:       []string{"🆕 NEW VISIT"},
			notContains:    []string{"Match confidence"},
		},
		{
			name: "repeat visit",
			classification: domain.ClassificationResult{
				Kind:              domain.VisitRepeat,
				ConfidencePercent: intPtr(60),
				MatchReason:       "fingerprint match only",
				LastSeenAt:        &lastSeen,
			},
			contains: []string{
				"♻️ REPEAT VISIT",
				"Match confidence: 60% (fingerprint match only)",
				"Last seen: 2026-05-01 10:30:00 UTC",
			},
		},
		{
			name:           "unknown visit lists missing signals",
			classification: domain.ClassificationResult{Kind: domain.VisitUnknown, MatchReason: "missing identity signals"},
			input:          ReportInput{UserAgent: "Mozilla/5.0"},
			contains:       []string{"❓ UNKNOWN VISIT", "Reason: no fingerprint", "Reason: no IP address"},
			notContains:    []string{"Reason: no User-Agent"},
		},
		{
			name:           "missing user agent is noted for any kind",
			classification: domain.ClassificationResult{Kind: domain.VisitNew},
			contains:       []string{"🆕 NEW VISIT", "Reason: no User-Agent"},
			notContains:    []string{"Reason: no fingerprint"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.input
			in.Classification = tt.classification
			in.Suspicion = domain.SuspicionResult{Score: 1}
			in.Now = time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)

			report := BuildReport(in)
			for _, s := range tt.contains {
				assert.Contains(t, report.Text, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, report.Text, s)
			}
		})
	}
}

func TestBuildReport_Details(t *testing.T) {
	report := BuildReport(ReportInput{
		Classification: domain.ClassificationResult{Kind: domain.VisitNew},
		Suspicion:      domain.SuspicionResult{Score: 70, Signals: []string{"proxy_or_hosting_flag", "hosting_org"}},
		IP:             "5.6.7.8",
		Geo: &domain.IPInfo{
			IP: "5.6.7.8", Country: "Netherlands", City: "Amsterdam", Org: "DigitalOcean LLC",
			Hosting: true, Lat: 52.37, Lon: 4.89,
		},
		Device:      domain.DeviceInfo{Browser: "Firefox 128.0", OS: "Linux x86_64", Device: "Desktop"},
		UserAgent:   "Mozilla/5.0 (X11; Linux x86_64)",
		Fingerprint: "abc123",
		Client: &domain.ClientDetails{
			Timezone:     "Europe/Amsterdam",
			ScreenWidth:  1920,
			ScreenHeight: 1080,
			Platform:     "Linux x86_64",
			WebRTCIPs:    []string{"192.168.1.10"},
		},
		Now: time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC),
	})

	assert.Contains(t, report.Text, "Type: 👤 human")
	assert.Contains(t, report.Text, "IP: 5.6.7.8 (Netherlands, Amsterdam)")
	assert.Contains(t, report.Text, "Browser: Firefox 128.0, OS: Linux x86_64")
	assert.Contains(t, report.Text, "Time: 2026-05-02 14:00:00 CEST")
	assert.Contains(t, report.Text, "Provider: DigitalOcean LLC")
	assert.Contains(t, report.Text, "VPN/Proxy/Tor: yes")
	assert.Contains(t, report.Text, "Suspicion: 70/100 (trust 30)")
	assert.Contains(t, report.Text, "Signals: proxy_or_hosting_flag, hosting_org")
	assert.Contains(t, report.Text, "Fingerprint: abc123")
	assert.Contains(t, report.Text, "WebRTC IPs: 192.168.1.10 (differs from external IP)")
	assert.Contains(t, report.Text, "Screen: 1920x1080")
	assert.Contains(t, report.Text, "Device info: width: 1920, height: 1080, platform: Linux x86_64")
	assert.Contains(t, report.Text, "Map: https://www.google.com/maps?q=52.37,4.89")

	assert.True(t, report.HasLocation)
	assert.Equal(t, 52.37, report.Latitude)
	assert.Equal(t, 4.89, report.Longitude)
}

func TestBuildReport_ProxyCheck(t *testing.T) {
	tests := []struct {
		name   string
		check  domain.ProxyCheckResult
		expect bool
	}{
		{"below threshold", domain.ProxyCheckResult{Score: 4, Reasons: []string{"timezone mismatch"}}, false},
		{"at threshold", domain.ProxyCheckResult{Score: 5, Reasons: []string{"timezone mismatch", "no touch"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := BuildReport(ReportInput{
				Classification: domain.ClassificationResult{Kind: domain.VisitNew},
				Suspicion:      domain.SuspicionResult{Score: 1},
				ProxyCheck:     tt.check,
				IP:             "1.2.3.4",
			})

			if tt.expect {
				assert.Contains(t, report.Text, "⚠️ Possible VPN/Proxy (score 5):\n• timezone mismatch\n• no touch\n")
			} else {
				assert.NotContains(t, report.Text, "Possible VPN/Proxy")
			}
		})
	}
}

func TestBuildReport_MissingData(t *testing.T) {
	report := BuildReport(ReportInput{
		Classification: domain.ClassificationResult{Kind: domain.VisitNew},
		Suspicion:      domain.SuspicionResult{Score: 1},
		IP:             "9.9.9.9",
		IsBot:          true,
		Client:         &domain.ClientDetails{Timezone: "Not/AZone", ScreenSize: "390x844"},
	})

	assert.Contains(t, report.Text, "Type: 🤖 bot")
	assert.Contains(t, report.Text, "IP: 9.9.9.9 (unknown)")
	assert.Contains(t, report.Text, "Provider: unknown")
	assert.Contains(t, report.Text, "VPN/Proxy/Tor: no")
	assert.Contains(t, report.Text, "WebRTC IPs: none")
	assert.Contains(t, report.Text, "Screen: 390x844")
	assert.Contains(t, report.Text, "UTC")
	assert.NotContains(t, report.Text, "Map:")
	assert.False(t, report.HasLocation)
}

func TestGeoSummary(t *testing.T) {
	assert.Equal(t, "unknown", geoSummary(nil))
	assert.Equal(t, "US", geoSummary(&domain.IPInfo{CountryCode: "US"}))
	assert.Equal(t, "Germany, Berlin [cached]", geoSummary(&domain.IPInfo{Country: "Germany", City: "Berlin", Cached: true}))
	assert.Equal(t, "unknown", geoSummary(&domain.IPInfo{City: "Nowhere"}))
}
