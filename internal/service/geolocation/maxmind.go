package geolocation

import (
	"context"
	"fmt"
	"net"

	"apgrhost/internal/domain"
	"github.com/oschwald/geoip2-golang"
)

// datacenterASNs are autonomous systems operated by cloud, hosting and VPN infrastructure providers
var datacenterASNs = map[uint]string{
	16509:  "Amazon AWS",
	14618:  "Amazon AWS",
	15169:  "Google Cloud",
	396982: "Google Cloud",
	8075:   "Microsoft Azure",
	14061:  "DigitalOcean",
	24940:  "Hetzner",
	16276:  "OVH",
	12876:  "Scaleway",
	49981:  "WorldStream",
	20473:  "Vultr",
	60068:  "CDN77",
	9009:   "M247",
	13335:  "Cloudflare",
	63949:  "Linode",
	36352:  "ColoCrossing",
}

// MaxMindProvider resolves addresses from local GeoLite2/GeoIP2 City and ASN databases
type MaxMindProvider struct {
	cityReader *geoip2.Reader
	asnReader  *geoip2.Reader
}

// NewMaxMindProvider opens the City database and, when asnDBPath is set, the ASN database
func NewMaxMindProvider(cityDBPath, asnDBPath string) (*MaxMindProvider, error) {
	cityReader, err := geoip2.Open(cityDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open city database: %w", err)
	}

	p := &MaxMindProvider{cityReader: cityReader}

	if asnDBPath != "" {
		asnReader, err := geoip2.Open(asnDBPath)
		if err != nil {
			cityReader.Close()
			return nil, fmt.Errorf("failed to open ASN database: %w", err)
		}
		p.asnReader = asnReader
	}

	return p, nil
}

func (p *MaxMindProvider) Name() string {
	return "maxmind"
}

func (p *MaxMindProvider) Lookup(ctx context.Context, ip string) (*domain.IPInfo, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("invalid IP address: %s", ip)
	}

	record, err := p.cityReader.City(parsed)
	if err != nil {
		return nil, fmt.Errorf("city lookup failed: %w", err)
	}
	if record.Country.IsoCode == "" && record.Location.Latitude == 0 && record.Location.Longitude == 0 {
		return nil, fmt.Errorf("no city record for %s", ip)
	}

	info := &domain.IPInfo{
		IP:          ip,
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
		Timezone:    record.Location.TimeZone,
		Proxy:       record.Traits.IsAnonymousProxy,
		Lat:         record.Location.Latitude,
		Lon:         record.Location.Longitude,
		Provider:    p.Name(),
	}
	if len(record.Subdivisions) > 0 {
		info.Region = record.Subdivisions[0].Names["en"]
	}

	if p.asnReader != nil {
		if asn, err := p.asnReader.ASN(parsed); err == nil {
			info.Org = asn.AutonomousSystemOrganization
			_, info.Hosting = datacenterASNs[uint(asn.AutonomousSystemNumber)]
		}
	}

	return info, nil
}

// Close releases the database readers
func (p *MaxMindProvider) Close() error {
	if p.asnReader != nil {
		p.asnReader.Close()
	}
	if p.cityReader != nil {
		return p.cityReader.Close()
	}
	return nil
}
