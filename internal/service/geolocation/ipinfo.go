package geolocation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"apgrhost/internal/domain"
)

const ipInfoDefaultURL = "https://ipinfo.io"

type ipInfoResponse struct {
	IP       string `json:"ip"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Loc      string `json:"loc"`
	Org      string `json:"org"`
	Timezone string `json:"timezone"`
	Bogon    bool   `json:"bogon"`
}

// IPInfoProvider queries ipinfo.io. Country is reported as an ISO code only.
type IPInfoProvider struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewIPInfoProvider creates a provider; token may be empty for the free tier
func NewIPInfoProvider(baseURL, token string) *IPInfoProvider {
	if baseURL == "" {
		baseURL = ipInfoDefaultURL
	}
	return &IPInfoProvider{baseURL: baseURL, token: token, httpClient: newHTTPClient()}
}

func (p *IPInfoProvider) Name() string {
	return "ipinfo"
}

func (p *IPInfoProvider) Lookup(ctx context.Context, ip string) (*domain.IPInfo, error) {
	endpoint := fmt.Sprintf("%s/%s/json", p.baseURL, url.PathEscape(ip))
	if p.token != "" {
		endpoint += "?token=" + url.QueryEscape(p.token)
	}

	var resp ipInfoResponse
	if err := getJSON(ctx, p.httpClient, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.IP == "" || resp.Bogon {
		return nil, fmt.Errorf("ipinfo returned no data for %s", ip)
	}

	lat, lon := parseLoc(resp.Loc)

	return &domain.IPInfo{
		IP:          resp.IP,
		CountryCode: resp.Country,
		City:        resp.City,
		Region:      resp.Region,
		Org:         resp.Org,
		Timezone:    resp.Timezone,
		Lat:         lat,
		Lon:         lon,
		Provider:    p.Name(),
	}, nil
}

// parseLoc splits ipinfo's "lat,lon" string; malformed input yields zeros
func parseLoc(loc string) (float64, float64) {
	parts := strings.Split(loc, ",")
	if len(parts) != 2 {
		return 0, 0
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return lat, lon
}
