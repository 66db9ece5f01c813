package client

// http_client.go = REST introspection of a running relay.

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mycelhub/internal/microservices/http-api/dto"
)

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(apiURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *HTTPClient) GetPeers() (*dto.PeersResponse, error) {
	var result dto.PeersResponse
	if err := c.getJSON("/api/peers", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) GetStats() (*dto.StatsResponse, error) {
	var result dto.StatsResponse
	if err := c.getJSON("/api/stats", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health returns nil when the relay answers 200 on /health.
func (c *HTTPClient) Health() error {
	var body struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := c.getJSON("/health", &body); err != nil {
		return err
	}
	return nil
}

func (c *HTTPClient) getJSON(path string, out any) error {
	response, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(response.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s failed with status %s: %s", path, response.Status, apiErr.Error)
		}
		return fmt.Errorf("%s failed with status: %s", path, response.Status)
	}
	return json.NewDecoder(response.Body).Decode(out)
}
