package service

import (
	"fmt"
	"os"
	"strings"

	"apgrhost/internal/domain"
	"gopkg.in/yaml.v3"
)

// Suspicion signal names, reported alongside the score
const (
	SignalProxyFlag        = "proxy_or_hosting_flag"
	SignalOrgKeyword       = "hosting_org"
	SignalLanguageMismatch = "language_country_mismatch"
	SignalTimezoneMismatch = "timezone_mismatch"
	SignalUALocation       = "ua_lacks_location"
	SignalUALanguage       = "ua_language_mismatch"
	SignalMobileCarrier    = "mobile_carrier"
	SignalUAMarker         = "ua_anonymizer_marker"
)

const (
	minSuspicion = 1
	maxSuspicion = 100
)

// ScoringWeights are the additive contributions of each suspicion signal
type ScoringWeights struct {
	ProxyOrHosting   int `yaml:"proxy_or_hosting"`
	OrgKeyword       int `yaml:"org_keyword"`
	LanguageMismatch int `yaml:"language_mismatch"`
	TimezoneMismatch int `yaml:"timezone_mismatch"`
	UALocation       int `yaml:"ua_location"`
	UALanguage       int `yaml:"ua_language"`
	MobileCarrier    int `yaml:"mobile_carrier"`
	UAMarker         int `yaml:"ua_marker"`
}

// ScoringConfig tunes the suspicion scorer
type ScoringConfig struct {
	Weights     ScoringWeights `yaml:"weights"`
	OrgKeywords []string       `yaml:"org_keywords"`
	UAMarkers   []string       `yaml:"ua_markers"`
}

// DefaultScoringConfig returns the standard weights and keyword lists
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Weights: ScoringWeights{
			ProxyOrHosting:   40,
			OrgKeyword:       20,
			LanguageMismatch: 10,
			TimezoneMismatch: 10,
			UALocation:       5,
			UALanguage:       5,
			MobileCarrier:    5,
			UAMarker:         10,
		},
		OrgKeywords: []string{
			"vpn", "proxy", "tor", "hosting", "cloud",
			"digitalocean", "ovh", "amazon", "google", "microsoft", "azure", "hetzner", "linode", "vultr",
		},
		UAMarkers: []string{"torbrowser", "vpn", "proxy"},
	}
}

// LoadScoringConfig reads a YAML file over the defaults. Fields absent from
// the file keep their default values. An empty path returns the defaults.
func LoadScoringConfig(path string) (ScoringConfig, error) {
	cfg := DefaultScoringConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read scoring config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse scoring config: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate rejects negative weights, which would break monotonic scoring
func (c ScoringConfig) Validate() error {
	w := c.Weights
	for name, v := range map[string]int{
		"proxy_or_hosting":  w.ProxyOrHosting,
		"org_keyword":       w.OrgKeyword,
		"language_mismatch": w.LanguageMismatch,
		"timezone_mismatch": w.TimezoneMismatch,
		"ua_location":       w.UALocation,
		"ua_language":       w.UALanguage,
		"mobile_carrier":    w.MobileCarrier,
		"ua_marker":         w.UAMarker,
	} {
		if v < 0 {
			return fmt.Errorf("scoring weight %s must not be negative, got %d", name, v)
		}
	}
	return nil
}

// Scorer computes anonymization suspicion from geolocation data and request headers.
// It only annotates; it never rejects a request.
type Scorer struct {
	config      ScoringConfig
	orgKeywords []string
	uaMarkers   []string
}

// NewScorer creates a scorer with the given configuration
func NewScorer(config ScoringConfig) *Scorer {
	return &Scorer{
		config:      config,
		orgKeywords: lowerAll(config.OrgKeywords),
		uaMarkers:   lowerAll(config.UAMarkers),
	}
}

// Score evaluates every signal independently, sums the weights of those that
// fire and clamps the total to [1,100]. Headers use lower-case names; the
// "timezone" entry carries the client-declared IANA zone.
func (s *Scorer) Score(info *domain.IPInfo, headers map[string]string) domain.SuspicionResult {
	if info == nil {
		info = &domain.IPInfo{}
	}
	w := s.config.Weights

	ua := strings.ToLower(headers["user-agent"])
	lang := primaryLanguageTag(headers["accept-language"])
	country := strings.ToLower(info.Country)
	countryCode := strings.ToLower(info.CountryCode)
	city := strings.ToLower(info.City)

	total := 0
	var signals []string
	add := func(fired bool, weight int, name string) {
		if fired {
			total += weight
			signals = append(signals, name)
		}
	}

	add(info.Proxy || info.Hosting, w.ProxyOrHosting, SignalProxyFlag)

	add(containsAny(strings.ToLower(info.Org+" "+info.ISP), s.orgKeywords), w.OrgKeyword, SignalOrgKeyword)

	regionToken := countryCode
	if regionToken == "" {
		regionToken = country
	}
	add(lang != "" && regionToken != "" && !strings.Contains(lang, regionToken), w.LanguageMismatch, SignalLanguageMismatch)

	tz := strings.TrimSpace(headers["timezone"])
	add(tz != "" && info.Timezone != "" && !strings.EqualFold(tz, info.Timezone), w.TimezoneMismatch, SignalTimezoneMismatch)

	// Needs both parts of the location; an unknown city never fires
	uaHasLocation := strings.Contains(ua, country) || strings.Contains(ua, city)
	add(ua != "" && country != "" && city != "" && !uaHasLocation, w.UALocation, SignalUALocation)

	add(ua != "" && lang != "" && !strings.Contains(ua, lang), w.UALanguage, SignalUALanguage)

	add(info.Mobile, w.MobileCarrier, SignalMobileCarrier)

	add(ua != "" && containsAny(ua, s.uaMarkers), w.UAMarker, SignalUAMarker)

	return domain.SuspicionResult{Score: clamp(total, minSuspicion, maxSuspicion), Signals: signals}
}

// primaryLanguageTag returns the first Accept-Language entry without its quality value
func primaryLanguageTag(acceptLanguage string) string {
	tag := acceptLanguage
	if i := strings.IndexByte(tag, ','); i >= 0 {
		tag = tag[:i]
	}
	if i := strings.IndexByte(tag, ';'); i >= 0 {
		tag = tag[:i]
	}
	return strings.ToLower(strings.TrimSpace(tag))
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
