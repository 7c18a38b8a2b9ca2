package geolocation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"apgrhost/internal/domain"
)

const (
	ipAPIDefaultURL = "http://ip-api.com"
	ipAPIFields     = "status,message,country,countryCode,regionName,city,lat,lon,timezone,isp,org,as,proxy,mobile,hosting,query"
)

type ipAPIResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
	ISP         string  `json:"isp"`
	Org         string  `json:"org"`
	AS          string  `json:"as"`
	Proxy       bool    `json:"proxy"`
	Mobile      bool    `json:"mobile"`
	Hosting     bool    `json:"hosting"`
	Query       string  `json:"query"`
}

// IPAPIProvider queries ip-api.com, the only provider reporting proxy, hosting and mobile flags
type IPAPIProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewIPAPIProvider creates a provider; an empty baseURL uses the public endpoint
func NewIPAPIProvider(baseURL string) *IPAPIProvider {
	if baseURL == "" {
		baseURL = ipAPIDefaultURL
	}
	return &IPAPIProvider{baseURL: baseURL, httpClient: newHTTPClient()}
}

func (p *IPAPIProvider) Name() string {
	return "ip-api"
}

func (p *IPAPIProvider) Lookup(ctx context.Context, ip string) (*domain.IPInfo, error) {
	endpoint := fmt.Sprintf("%s/json/%s?fields=%s", p.baseURL, url.PathEscape(ip), ipAPIFields)

	var resp ipAPIResponse
	if err := getJSON(ctx, p.httpClient, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("ip-api lookup failed: %s", resp.Message)
	}

	org := resp.Org
	if org == "" {
		org = resp.AS
	}

	return &domain.IPInfo{
		IP:          firstNonEmpty(resp.Query, ip),
		Country:     resp.Country,
		CountryCode: resp.CountryCode,
		City:        resp.City,
		Region:      resp.RegionName,
		Org:         org,
		ISP:         resp.ISP,
		Timezone:    resp.Timezone,
		Proxy:       resp.Proxy,
		Hosting:     resp.Hosting,
		Mobile:      resp.Mobile,
		Lat:         resp.Lat,
		Lon:         resp.Lon,
		Provider:    p.Name(),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
