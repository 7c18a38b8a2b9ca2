package domain

import (
	"time"
)

// IPKeyPrefix marks visitor keys synthesized from an IP when no fingerprint is present
const IPKeyPrefix = "ip_"

// VisitRecord is the last-known state of one visitor identity
type VisitRecord struct {
	VisitorKey   string         `json:"visitor_key"`
	Fingerprint  string         `json:"fingerprint,omitempty"`
	IP           string         `json:"ip"`
	LastSeenAt   time.Time      `json:"last_seen_at"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Geo          *IPInfo        `json:"geo,omitempty"`
	ParsedDevice *DeviceInfo    `json:"parsed_device,omitempty"`
	Client       *ClientDetails `json:"client,omitempty"`
}

// Observation is a single inbound sighting to classify. Headers use lower-case names.
type Observation struct {
	Fingerprint string
	IP          string
	Headers     map[string]string
}

// HasFingerprint reports whether the observation carries a fingerprint
func (o Observation) HasFingerprint() bool {
	return o.Fingerprint != ""
}

// Header returns a header value by lower-case name
func (o Observation) Header(name string) string {
	if o.Headers == nil {
		return ""
	}
	return o.Headers[name]
}

// VisitorKey derives the storage key: the fingerprint, else "ip_" + ip.
// Returns "" when neither signal is present.
func (o Observation) VisitorKey() string {
	if o.Fingerprint != "" {
		return o.Fingerprint
	}
	if o.IP != "" {
		return IPKeyPrefix + o.IP
	}
	return ""
}

// VisitKind is the outcome of identity classification
type VisitKind string

const (
	VisitNew     VisitKind = "new"
	VisitRepeat  VisitKind = "repeat"
	VisitUnknown VisitKind = "unknown"
)

// ClassificationResult describes identity continuity for one observation.
// ConfidencePercent, MatchReason and LastSeenAt are only set for repeat visits,
// except MatchReason which also explains unknown results.
type ClassificationResult struct {
	Kind              VisitKind  `json:"kind"`
	ConfidencePercent *int       `json:"confidence_percent,omitempty"`
	MatchReason       string     `json:"match_reason,omitempty"`
	LastSeenAt        *time.Time `json:"last_seen_at,omitempty"`
}

// Confidence returns the confidence or 0 when none applies
func (c ClassificationResult) Confidence() int {
	if c.ConfidencePercent == nil {
		return 0
	}
	return *c.ConfidencePercent
}

// SuspicionResult is the anonymization suspicion for one request, in [1,100]
type SuspicionResult struct {
	Score   int      `json:"score"`
	Signals []string `json:"signals,omitempty"`
}

// Trust is the derived view 100 - score
func (s SuspicionResult) Trust() int {
	return 100 - s.Score
}

// IPInfo is geolocation metadata for an address. Zero values mean unknown.
type IPInfo struct {
	IP          string  `json:"ip"`
	Country     string  `json:"country,omitempty"`
	CountryCode string  `json:"country_code,omitempty"`
	City        string  `json:"city,omitempty"`
	Region      string  `json:"region,omitempty"`
	Org         string  `json:"org,omitempty"`
	ISP         string  `json:"isp,omitempty"`
	Timezone    string  `json:"timezone,omitempty"`
	Proxy       bool    `json:"proxy,omitempty"`
	Hosting     bool    `json:"hosting,omitempty"`
	Mobile      bool    `json:"mobile,omitempty"`
	Lat         float64 `json:"lat,omitempty"`
	Lon         float64 `json:"lon,omitempty"`
	Provider    string  `json:"provider,omitempty"`
	Cached      bool    `json:"cached,omitempty"`
}

// HasLocation reports whether coordinates are known
func (i *IPInfo) HasLocation() bool {
	return i != nil && (i.Lat != 0 || i.Lon != 0)
}

// DeviceInfo is the parsed form of a user agent
type DeviceInfo struct {
	Browser string `json:"browser"`
	OS      string `json:"os"`
	Device  string `json:"device"`
	Mobile  bool   `json:"mobile"`
	Bot     bool   `json:"bot"`
}

// ClientDetails are browser-reported attributes passed through to reports
type ClientDetails struct {
	Language            string   `json:"language,omitempty"`
	Timezone            string   `json:"timezone,omitempty"`
	Platform            string   `json:"platform,omitempty"`
	ScreenSize          string   `json:"screen_size,omitempty"`
	ScreenWidth         int      `json:"screen_width,omitempty"`
	ScreenHeight        int      `json:"screen_height,omitempty"`
	TouchSupport        bool     `json:"touch_support,omitempty"`
	DeviceMemory        float64  `json:"device_memory,omitempty"`
	HardwareConcurrency int      `json:"hardware_concurrency,omitempty"`
	WebRTCIPs           []string `json:"webrtc_ips,omitempty"`
	ClientTime          string   `json:"client_time,omitempty"`
}

// Clone returns a copy that shares no mutable state with r
func (r *VisitRecord) Clone() *VisitRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Geo != nil {
		geo := *r.Geo
		out.Geo = &geo
	}
	if r.ParsedDevice != nil {
		device := *r.ParsedDevice
		out.ParsedDevice = &device
	}
	if r.Client != nil {
		client := *r.Client
		client.WebRTCIPs = append([]string(nil), r.Client.WebRTCIPs...)
		out.Client = &client
	}
	return &out
}

// ProxyCheckResult is the client-consistency heuristic for one visit.
// It is reported next to the suspicion score and never feeds into it.
type ProxyCheckResult struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons,omitempty"`
}

// ProxyCheckThreshold is the score at which a visit is reported as a possible VPN or proxy
const ProxyCheckThreshold = 5

// Likely reports whether the score reaches ProxyCheckThreshold
func (p ProxyCheckResult) Likely() bool {
	return p.Score >= ProxyCheckThreshold
}
