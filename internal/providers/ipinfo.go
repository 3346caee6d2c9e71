package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/FuncStore/FuncBot/internal/webapi"
)

// ErrInvalidIP is returned for input that is not a valid IPv4 or IPv6
// address. Validation happens before any external call.
var ErrInvalidIP = errors.New("that is not a valid IP address")

const ipapiURL = "https://api.ipapi.com/api"

// IPReport holds the geolocation fields consumed from an ipapi lookup.
type IPReport struct {
	IP            string  `json:"ip"`
	Hostname      string  `json:"hostname"`
	Type          string  `json:"type"`
	ContinentCode string  `json:"continent_code"`
	ContinentName string  `json:"continent_name"`
	CountryCode   string  `json:"country_code"`
	CountryName   string  `json:"country_name"`
	RegionCode    string  `json:"region_code"`
	RegionName    string  `json:"region_name"`
	City          string  `json:"city"`
	Zip           string  `json:"zip"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Location      struct {
		Capital          string `json:"capital"`
		CountryFlagEmoji string `json:"country_flag_emoji"`
		CallingCode      string `json:"calling_code"`
		IsEU             bool   `json:"is_eu"`
	} `json:"location"`
}

// IPInfoClient answers IP geolocation queries through the ipapi service.
type IPInfoClient struct {
	api     *webapi.Client
	apiKey  string
	baseURL string
}

// NewIPInfoClient creates an IP lookup client using the standard ipapi
// endpoint.
func NewIPInfoClient(api *webapi.Client, apiKey string) *IPInfoClient {
	return &IPInfoClient{api: api, apiKey: apiKey, baseURL: ipapiURL}
}

// Lookup validates ip and returns its geolocation report. Invalid input is
// rejected locally with ErrInvalidIP.
func (c *IPInfoClient) Lookup(ctx context.Context, ip string) (IPReport, error) {
	if net.ParseIP(ip) == nil {
		return IPReport{}, ErrInvalidIP
	}
	var report IPReport
	u := fmt.Sprintf("%s/%s?access_key=%s", c.baseURL, url.PathEscape(ip), c.apiKey)
	if env := c.api.GetInto(ctx, u, nil, &report); !env.OK() {
		return IPReport{}, errors.New(env.Err)
	}
	return report, nil
}
