package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"apgrhost/internal/domain"
	"apgrhost/internal/service/geolocation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const firefoxUA = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

type serviceFixture struct {
	store    *spyStore
	notifier *recordingNotifier
	service  *visitorService
}

func newServiceFixture(geo GeoLocator, skipBots bool) *serviceFixture {
	store := newSpyStore()
	n := &recordingNotifier{}
	svc := NewVisitorService(
		store,
		NewClassifier(DefaultClassifierConfig(), nil),
		NewScorer(DefaultScoringConfig()),
		geo,
		n,
		VisitorServiceConfig{SkipBots: skipBots},
		nil,
	).(*visitorService)
	svc.now = func() time.Time { return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC) }

	return &serviceFixture{store: store, notifier: n, service: svc}
}

func TestVisitorService_CollectLifecycle(t *testing.T) {
	geo := &stubGeo{info: &domain.IPInfo{Country: "Germany", CountryCode: "DE", City: "Berlin", Lat: 52.5, Lon: 13.4}}
	f := newServiceFixture(geo, true)
	ctx := context.Background()

	req := &CollectRequest{
		Fingerprint: "abc123",
		RawIP:       "::ffff:1.2.3.4, 10.0.0.1",
		UserAgent:   firefoxUA,
		Headers:     map[string]string{"Accept-Language": "de-DE,de;q=0.9"},
		Client:      domain.ClientDetails{Timezone: "Europe/Berlin", ScreenWidth: 1920, ScreenHeight: 1080},
	}

	first, err := f.service.Collect(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.VisitNew, first.Classification.Kind)
	assert.Equal(t, "abc123", first.VisitorKey)
	assert.True(t, first.Stored)
	assert.True(t, first.Notified)
	assert.Equal(t, "1.2.3.4", first.Geo.IP)
	assert.Equal(t, 100-first.Suspicion.Score, first.Trust)

	stored, err := f.store.Lookup(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "1.2.3.4", stored.IP)
	assert.Equal(t, firefoxUA, stored.UserAgent)
	assert.Equal(t, "Berlin", stored.Geo.City)
	assert.Equal(t, 1920, stored.Client.ScreenWidth)

	second, err := f.service.Collect(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.VisitRepeat, second.Classification.Kind)
	assert.Equal(t, 100, second.Classification.Confidence())
	require.NotNil(t, second.Classification.LastSeenAt)

	req.RawIP = "5.6.7.8"
	third, err := f.service.Collect(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 60, third.Classification.Confidence())
	assert.Equal(t, ReasonFingerprintOnly, third.Classification.MatchReason)

	require.Len(t, f.notifier.reports, 3)
	assert.Contains(t, f.notifier.reports[0].Text, "NEW VISIT")
	assert.Contains(t, f.notifier.reports[1].Text, "REPEAT VISIT")
	assert.True(t, f.notifier.reports[0].HasLocation)

	stats, err := f.service.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalVisitors)
}

func TestVisitorService_IPOnlyVisitor(t *testing.T) {
	f := newServiceFixture(nil, true)
	ctx := context.Background()
	req := &CollectRequest{RawIP: "9.9.9.9", UserAgent: firefoxUA}

	first, err := f.service.Collect(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.VisitNew, first.Classification.Kind)
	assert.Equal(t, "ip_9.9.9.9", first.VisitorKey)

	second, err := f.service.Collect(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 50, second.Classification.Confidence())

	visitors, err := f.service.Visitors(ctx)
	require.NoError(t, err)
	require.Len(t, visitors, 1)
	assert.Equal(t, "ip_9.9.9.9", visitors[0].VisitorKey)
}

func TestVisitorService_MissingIdentity(t *testing.T) {
	f := newServiceFixture(nil, true)

	result, err := f.service.Collect(context.Background(), &CollectRequest{RawIP: "unknown", UserAgent: firefoxUA})
	require.NoError(t, err)
	assert.Equal(t, domain.VisitUnknown, result.Classification.Kind)
	assert.False(t, result.Stored)
	assert.Zero(t, f.store.lookups)
	assert.Zero(t, f.store.upserts)
	require.Len(t, f.notifier.reports, 1)
	assert.Contains(t, f.notifier.reports[0].Text, "UNKNOWN VISIT")
}

func TestVisitorService_ProxyCheckReported(t *testing.T) {
	geo := &stubGeo{info: &domain.IPInfo{Country: "Germany", CountryCode: "DE", City: "Berlin", Timezone: "Europe/Berlin"}}
	f := newServiceFixture(geo, true)

	result, err := f.service.Collect(context.Background(), &CollectRequest{
		Fingerprint: "fp-vpn",
		RawIP:       "1.2.3.4",
		UserAgent:   firefoxUA,
		Client: domain.ClientDetails{
			Language:   "ja-JP",
			Timezone:   "Asia/Tokyo",
			ClientTime: "1780268400000",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 4+3+2, result.ProxyCheck.Score)
	assert.Len(t, result.ProxyCheck.Reasons, 3)
	require.Len(t, f.notifier.reports, 1)
	assert.Contains(t, f.notifier.reports[0].Text, "Possible VPN/Proxy (score 9)")
	assert.Contains(t, f.notifier.reports[0].Text, "• timezone Asia/Tokyo does not match IP region Germany")
}

func TestVisitorService_EmptyUserAgent(t *testing.T) {
	f := newServiceFixture(nil, true)

	result, err := f.service.Collect(context.Background(), &CollectRequest{Fingerprint: "fp-noua", RawIP: "1.2.3.4"})
	require.NoError(t, err)

	assert.Empty(t, result.Skipped)
	assert.True(t, result.Stored)
	require.Len(t, f.notifier.reports, 1)
	assert.Contains(t, f.notifier.reports[0].Text, "Type: 🤖 bot")
	assert.Contains(t, f.notifier.reports[0].Text, "Reason: no User-Agent")
}

func TestVisitorService_Skips(t *testing.T) {
	tests := []struct {
		name     string
		skipBots bool
		req      *CollectRequest
		expected string
	}{
		{
			name:     "google crawler range",
			skipBots: false,
			req:      &CollectRequest{RawIP: "66.249.66.1", UserAgent: firefoxUA},
			expected: SkipGoogleCrawler,
		},
		{
			name:     "bot user agent",
			skipBots: true,
			req:      &CollectRequest{RawIP: "8.8.8.8", UserAgent: "Mozilla/5.0 (compatible; bingbot/2.0)"},
			expected: SkipBotUserAgent,
		},
		{
			name:     "bot processed when filtering is off",
			skipBots: false,
			req:      &CollectRequest{RawIP: "8.8.8.8", UserAgent: "Mozilla/5.0 (compatible; bingbot/2.0)"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(nil, tt.skipBots)
			result, err := f.service.Collect(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Skipped)
			if tt.expected != "" {
				assert.Zero(t, f.store.lookups)
				assert.Empty(t, f.notifier.reports)
			}
		})
	}
}

func TestVisitorService_CollaboratorFailuresDoNotFail(t *testing.T) {
	f := newServiceFixture(&stubGeo{err: geolocation.ErrNoData}, true)
	f.store.failLookup = true
	f.store.failUpsert = true
	f.notifier.err = errors.New("telegram down")

	result, err := f.service.Collect(context.Background(), &CollectRequest{Fingerprint: "fp", RawIP: "1.2.3.4", UserAgent: firefoxUA})
	require.NoError(t, err)
	assert.Equal(t, domain.VisitNew, result.Classification.Kind)
	assert.False(t, result.Stored)
	assert.False(t, result.Notified)
	require.NotNil(t, result.Geo)
	assert.Equal(t, "1.2.3.4", result.Geo.IP)
	assert.GreaterOrEqual(t, result.Suspicion.Score, 1)
}

func TestVisitorService_CancelledRequestStillStores(t *testing.T) {
	f := newServiceFixture(nil, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.service.Collect(ctx, &CollectRequest{Fingerprint: "fp", RawIP: "1.2.3.4", UserAgent: firefoxUA})
	require.NoError(t, err)
	assert.True(t, result.Stored)
}

func TestVisitorService_NilRequest(t *testing.T) {
	f := newServiceFixture(nil, true)
	_, err := f.service.Collect(context.Background(), nil)
	assert.Error(t, err)
}

func TestVisitorService_ScoringHeaders(t *testing.T) {
	f := newServiceFixture(nil, true)

	headers := f.service.scoringHeaders(&CollectRequest{
		UserAgent: "body-ua",
		Headers:   map[string]string{"User-Agent": "header-ua", "Timezone": "UTC"},
		Client:    domain.ClientDetails{Language: "ru-RU", Timezone: "Europe/Moscow"},
	})

	assert.Equal(t, "body-ua", headers["user-agent"])
	assert.Equal(t, "ru-RU", headers["accept-language"])
	assert.Equal(t, "Europe/Moscow", headers["timezone"])
}
