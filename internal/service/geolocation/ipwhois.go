package geolocation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"apgrhost/internal/domain"
)

const ipWhoisDefaultURL = "https://ipwhois.app"

type ipWhoisResponse struct {
	IP          string  `json:"ip"`
	Success     *bool   `json:"success"`
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	ISP         string  `json:"isp"`
	Org         string  `json:"org"`
	Timezone    string  `json:"timezone"`
}

// IPWhoisProvider queries ipwhois.app
type IPWhoisProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewIPWhoisProvider creates a provider; an empty baseURL uses the public endpoint
func NewIPWhoisProvider(baseURL string) *IPWhoisProvider {
	if baseURL == "" {
		baseURL = ipWhoisDefaultURL
	}
	return &IPWhoisProvider{baseURL: baseURL, httpClient: newHTTPClient()}
}

func (p *IPWhoisProvider) Name() string {
	return "ipwhois"
}

func (p *IPWhoisProvider) Lookup(ctx context.Context, ip string) (*domain.IPInfo, error) {
	endpoint := fmt.Sprintf("%s/json/%s", p.baseURL, url.PathEscape(ip))

	var resp ipWhoisResponse
	if err := getJSON(ctx, p.httpClient, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Success != nil && !*resp.Success {
		return nil, fmt.Errorf("ipwhois lookup failed: %s", resp.Message)
	}

	return &domain.IPInfo{
		IP:          firstNonEmpty(resp.IP, ip),
		Country:     resp.Country,
		CountryCode: resp.CountryCode,
		City:        resp.City,
		Region:      resp.Region,
		Org:         resp.Org,
		ISP:         resp.ISP,
		Timezone:    resp.Timezone,
		Lat:         resp.Latitude,
		Lon:         resp.Longitude,
		Provider:    p.Name(),
	}, nil
}
