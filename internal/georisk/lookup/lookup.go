// Package lookup resolves a network address to its geographic and network
// classification via an external collaborator.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"trustgate/internal/georisk/domain"
)

const defaultTimeout = 3 * time.Second

// Resolver maps an IP to its geo/network classification. Implementations must
// honor the context deadline; callers tolerate failure.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (*domain.GeoInfo, error)
}

// wireInfo is the provider's JSON shape (ip-api style, with the extended
// proxy/hosting fields enabled).
type wireInfo struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	CountryCode string `json:"countryCode"`
	RegionName  string `json:"regionName"`
	City        string `json:"city"`
	ISP         string `json:"isp"`
	Org         string `json:"org"`
	Proxy       bool   `json:"proxy"`
	VPN         bool   `json:"vpn"`
	Tor         bool   `json:"tor"`
	Hosting     bool   `json:"hosting"`
}

// HTTPResolver calls an ip-api style JSON endpoint.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

// NewHTTPResolver returns a Resolver for the given base URL. A zero timeout
// falls back to the default.
func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Resolve fetches the classification for ip.
func (r *HTTPResolver) Resolve(ctx context.Context, ip string) (*domain.GeoInfo, error) {
	u := r.baseURL + "/" + url.PathEscape(ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo lookup: unexpected status %d", resp.StatusCode)
	}

	var w wireInfo
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return nil, fmt.Errorf("geo lookup: decode: %w", err)
	}
	if w.Status != "" && w.Status != "success" {
		return nil, fmt.Errorf("geo lookup: provider failure: %s", w.Message)
	}
	return &domain.GeoInfo{
		Country:    w.CountryCode,
		Region:     w.RegionName,
		City:       w.City,
		ISP:        w.ISP,
		Org:        w.Org,
		Proxy:      w.Proxy,
		VPN:        w.VPN,
		Tor:        w.Tor,
		Datacenter: w.Hosting,
	}, nil
}
