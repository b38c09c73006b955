package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pion/webrtc/v3"
)

const iceFetchTimeout = 5 * time.Second

// iceEndpoint maps the gateway websocket url to the REST endpoint serving
// ICE servers on the same host.
func iceEndpoint(gatewayURL string) (string, error) {
	u, err := url.Parse(gatewayURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	u.Path = "/api/ice"
	u.RawQuery = ""
	return u.String(), nil
}

func fetchICEServers(ctx context.Context, httpClient *http.Client, gatewayURL string) ([]webrtc.ICEServer, error) {
	endpoint, err := iceEndpoint(gatewayURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, iceFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ice servers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch ice servers: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		ICEServers []webrtc.ICEServer `json:"iceServers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode ice servers: %w", err)
	}
	return body.ICEServers, nil
}
