package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"apgrhost/internal/domain"
	"apgrhost/internal/repository"
	"apgrhost/internal/service/notifier"
	"apgrhost/pkg/logger"
	"apgrhost/pkg/utils"
)

// Skip reasons for observations that are acknowledged but not processed
const (
	SkipGoogleCrawler = "googlebot"
	SkipBotUserAgent  = "bot"
)

// CollectRequest is one inbound observation as received from the transport
type CollectRequest struct {
	Fingerprint string
	// RawIP is the unnormalized client address or forwarded-for value
	RawIP     string
	UserAgent string
	// Headers are request headers keyed by lower-case name
	Headers map[string]string
	Client  domain.ClientDetails
}

// CollectResult summarizes how an observation was handled
type CollectResult struct {
	Skipped        string                      `json:"skipped,omitempty"`
	VisitorKey     string                      `json:"visitor_key,omitempty"`
	Classification domain.ClassificationResult `json:"classification"`
	Suspicion      domain.SuspicionResult      `json:"suspicion"`
	ProxyCheck     domain.ProxyCheckResult     `json:"proxy_check"`
	Trust          int                         `json:"trust"`
	Device         domain.DeviceInfo           `json:"device"`
	Geo            *domain.IPInfo              `json:"geo,omitempty"`
	Stored         bool                        `json:"stored"`
	Notified       bool                        `json:"notified"`
}

// VisitorStats is the aggregate view of the visitor store
type VisitorStats struct {
	TotalVisitors int64     `json:"total_visitors"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// VisitorServiceConfig bounds collaborator calls and controls bot filtering
type VisitorServiceConfig struct {
	SkipBots      bool
	StoreTimeout  time.Duration
	NotifyTimeout time.Duration
}

// visitorService wires classification, scoring, persistence and reporting
type visitorService struct {
	store      repository.VisitorStore
	classifier *Classifier
	scorer     *Scorer
	geo        GeoLocator
	notifier   notifier.Notifier
	config     VisitorServiceConfig
	logger     *logger.Logger
	now        func() time.Time
}

// NewVisitorService creates a new visitor service
func NewVisitorService(
	store repository.VisitorStore,
	classifier *Classifier,
	scorer *Scorer,
	geo GeoLocator,
	n notifier.Notifier,
	config VisitorServiceConfig,
	log *logger.Logger,
) VisitorService {
	if log == nil {
		log = logger.NewNop()
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 3 * time.Second
	}
	if config.NotifyTimeout <= 0 {
		config.NotifyTimeout = 10 * time.Second
	}

	return &visitorService{
		store:      store,
		classifier: classifier,
		scorer:     scorer,
		geo:        geo,
		notifier:   n,
		config:     config,
		logger:     log,
		now:        time.Now,
	}
}

// Collect handles one observation. Classification always happens before the
// record is overwritten. Store, geolocation and notifier failures are logged
// and never returned; only a nil request is an error.
func (s *visitorService) Collect(ctx context.Context, req *CollectRequest) (*CollectResult, error) {
	if req == nil {
		return nil, errors.New("collect request is nil")
	}

	ip := utils.NormalizeIP(req.RawIP)
	headers := s.scoringHeaders(req)
	ua := headers["user-agent"]

	if utils.IsGoogleCrawlerIP(ip) {
		return &CollectResult{Skipped: SkipGoogleCrawler}, nil
	}
	// A missing user agent is reported as a bot but still processed; only
	// recognised crawlers are dropped
	isBot := IsBot(ua)
	if s.config.SkipBots && isBot && strings.TrimSpace(ua) != "" {
		return &CollectResult{Skipped: SkipBotUserAgent}, nil
	}

	// Collaborator calls must outlive a client that hangs up early
	work := context.WithoutCancel(ctx)

	geo := s.locate(work, ip)
	device := ParseDevice(ua)

	obs := domain.Observation{
		Fingerprint: strings.TrimSpace(req.Fingerprint),
		IP:          ip,
		Headers:     headers,
	}
	key := obs.VisitorKey()

	lookupCtx, cancel := context.WithTimeout(work, s.config.StoreTimeout)
	classification := s.classifier.Classify(lookupCtx, s.store, obs)
	cancel()

	suspicion := s.scorer.Score(geo, headers)
	now := s.now().UTC()
	proxyCheck := CheckProxy(geo, req.Client, device, now)

	result := &CollectResult{
		VisitorKey:     key,
		Classification: classification,
		Suspicion:      suspicion,
		ProxyCheck:     proxyCheck,
		Trust:          suspicion.Trust(),
		Device:         device,
		Geo:            geo,
	}

	log := s.logger.WithFields(map[string]interface{}{
		"visitor_key": key,
		"kind":        classification.Kind,
		"suspicion":   suspicion.Score,
		"proxy_check": proxyCheck.Score,
	})

	if key != "" {
		client := req.Client
		record := &domain.VisitRecord{
			VisitorKey:   key,
			Fingerprint:  obs.Fingerprint,
			IP:           ip,
			LastSeenAt:   now,
			UserAgent:    ua,
			Geo:          geo,
			ParsedDevice: &device,
			Client:       &client,
		}

		upsertCtx, cancel := context.WithTimeout(work, s.config.StoreTimeout)
		if err := s.store.Upsert(upsertCtx, key, record); err != nil {
			log.WithError(err).Warn("Failed to store visit record")
		} else {
			result.Stored = true
		}
		cancel()
	}

	if s.notifier != nil {
		report := notifier.BuildReport(notifier.ReportInput{
			Classification: classification,
			Suspicion:      suspicion,
			ProxyCheck:     proxyCheck,
			IP:             ip,
			Geo:            geo,
			Device:         device,
			IsBot:          isBot,
			UserAgent:      ua,
			Fingerprint:    obs.Fingerprint,
			Client:         &req.Client,
			Now:            now,
		})

		notifyCtx, cancel := context.WithTimeout(work, s.config.NotifyTimeout)
		if err := s.notifier.Notify(notifyCtx, report); err != nil {
			log.WithError(err).Warn("Failed to deliver visit report")
		} else {
			result.Notified = true
		}
		cancel()
	}

	log.Info("Visit collected")
	return result, nil
}

// Stats returns the number of distinct visitors
func (s *visitorService) Stats(ctx context.Context) (*VisitorStats, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &VisitorStats{TotalVisitors: count, GeneratedAt: s.now().UTC()}, nil
}

// Visitors returns every stored record
func (s *visitorService) Visitors(ctx context.Context) ([]*domain.VisitRecord, error) {
	return s.store.All(ctx)
}

// locate degrades to an IP-only record when geolocation is unavailable
func (s *visitorService) locate(ctx context.Context, ip string) *domain.IPInfo {
	if ip == "" {
		return nil
	}
	if s.geo == nil {
		return &domain.IPInfo{IP: ip}
	}

	info, err := s.geo.Lookup(ctx, ip)
	if err != nil || info == nil {
		s.logger.WithError(err).WithField("ip", ip).Debug("Geolocation unavailable")
		return &domain.IPInfo{IP: ip}
	}
	return info
}

// scoringHeaders builds the lower-case header view the scorer reads. Body
// fields fill gaps; a declared timezone in the body wins over the header.
func (s *visitorService) scoringHeaders(req *CollectRequest) map[string]string {
	headers := make(map[string]string, len(req.Headers)+3)
	for k, v := range req.Headers {
		headers[strings.ToLower(k)] = v
	}

	if req.UserAgent != "" {
		headers["user-agent"] = req.UserAgent
	}
	if headers["accept-language"] == "" && req.Client.Language != "" {
		headers["accept-language"] = req.Client.Language
	}
	if req.Client.Timezone != "" {
		headers["timezone"] = req.Client.Timezone
	}
	return headers
}
