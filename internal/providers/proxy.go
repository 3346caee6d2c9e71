package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/webapi"
)

// Default Webshare endpoints. The config call yields a download token that
// parameterizes the proxy-list URL.
const (
	webshareConfigURL = "https://proxy.webshare.io/api/v2/proxy/config/"
	webshareListURL   = "https://proxy.webshare.io/proxy/list/download/%s/-/any/username/direct/-/"
)

// ProxyClient fetches authenticated proxy addresses from Webshare. The fetch
// is a fixed two-call chain: config for the download token, then the list
// itself. A failure at either step propagates that step's envelope error
// unchanged and skips the rest of the chain.
type ProxyClient struct {
	api    *webapi.Client
	apiKey string

	configURL string
	listURL   string
}

// NewProxyClient creates a proxy client using the standard Webshare endpoints.
func NewProxyClient(api *webapi.Client, apiKey string) *ProxyClient {
	return &ProxyClient{
		api:       api,
		apiKey:    apiKey,
		configURL: webshareConfigURL,
		listURL:   webshareListURL,
	}
}

// List returns proxy addresses formatted as username:password@ip:port, one
// per line.
func (c *ProxyClient) List(ctx context.Context) (string, error) {
	headers := map[string]string{"Authorization": c.apiKey}

	var config struct {
		Token string `json:"proxy_list_download_token"`
	}
	if env := c.api.GetInto(ctx, c.configURL, headers, &config); !env.OK() {
		return "", errors.New(env.Err)
	}
	if config.Token == "" {
		return "", errors.New("proxy provider returned no download token")
	}

	env := c.api.Call(ctx, webapi.Request{
		URL:    fmt.Sprintf(c.listURL, config.Token),
		Decode: models.DecodeText,
	})
	if !env.OK() {
		return "", errors.New(env.Err)
	}

	return formatProxyList(env.String())
}

// formatProxyList converts the raw ip:port:username:password lines into
// username:password@ip:port form.
func formatProxyList(raw string) (string, error) {
	var out strings.Builder
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, ":")
		if len(parts) != 4 {
			return "", fmt.Errorf("unexpected proxy list line %q", line)
		}
		ip, port, username, password := parts[0], parts[1], parts[2], parts[3]
		fmt.Fprintf(&out, "%s:%s@%s:%s\n", username, password, ip, port)
	}
	if out.Len() == 0 {
		return "", errors.New("proxy provider returned an empty list")
	}
	return out.String(), nil
}
