// Package arrivalapi is a client for the bus arrival-prediction backend.
package arrivalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"busmate/internal/domain"
)

// Response codes observed across backend revisions.
const (
	codeNoNearbyStop = 20001
	codeBusArriving  = 20100
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type arrivalResponse struct {
	IsSuccess bool             `json:"isSuccess"`
	Code      int              `json:"code"`
	Message   string           `json:"message"`
	Result    []domain.BusInfo `json:"result"`

	// Newer backend revisions report these explicitly instead of through
	// response codes. When present they are authoritative.
	HasNearbyStops          *bool `json:"hasNearbyStops,omitempty"`
	IsRegisteredBusArriving *bool `json:"isRegisteredBusArriving,omitempty"`
}

// FetchArrivals returns the current arrival snapshot for the rider. Both
// response-code conventions are normalized here so downstream components
// see a single shape: code 20001 means no nearby stop (not an error),
// code 20100 flags the registered bus as arriving, and explicit boolean
// fields override code-derived values.
func (c *Client) FetchArrivals(ctx context.Context, riderID int64) (domain.ArrivalSnapshot, error) {
	reqURL := fmt.Sprintf("%s/bus/arrival?%s", c.baseURL, url.Values{
		"userId": {strconv.FormatInt(riderID, 10)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.ArrivalSnapshot{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ArrivalSnapshot{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ArrivalSnapshot{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var apiResp arrivalResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return domain.ArrivalSnapshot{}, fmt.Errorf("decoding response: %w", err)
	}

	if !apiResp.IsSuccess {
		return domain.ArrivalSnapshot{}, fmt.Errorf("arrival feed error (code %d): %s", apiResp.Code, apiResp.Message)
	}

	return normalize(apiResp), nil
}

func normalize(resp arrivalResponse) domain.ArrivalSnapshot {
	snap := domain.ArrivalSnapshot{
		ExpectedBuses:           resp.Result,
		HasNearbyStop:           resp.Code != codeNoNearbyStop,
		IsRegisteredBusArriving: resp.Code == codeBusArriving,
		FetchedAt:               time.Now(),
	}

	if resp.HasNearbyStops != nil {
		snap.HasNearbyStop = *resp.HasNearbyStops
	}
	if resp.IsRegisteredBusArriving != nil {
		snap.IsRegisteredBusArriving = *resp.IsRegisteredBusArriving
	}

	if !snap.HasNearbyStop {
		snap.ExpectedBuses = nil
	}
	return snap
}

type registrationRequest struct {
	BusNumber string `json:"busNumber"`
}

type registrationResponse struct {
	Result struct {
		UserID int64 `json:"userId"`
	} `json:"result"`
}

// RegisterBusNumber registers the rider's chosen bus and returns the
// issued rider identifier.
func (c *Client) RegisterBusNumber(ctx context.Context, busNumber string) (int64, error) {
	body, err := json.Marshal(registrationRequest{BusNumber: busNumber})
	if err != nil {
		return 0, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/bus-number", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var regResp registrationResponse
	if err := json.NewDecoder(resp.Body).Decode(&regResp); err != nil {
		return 0, fmt.Errorf("decoding response: %w", err)
	}
	if regResp.Result.UserID == 0 {
		return 0, fmt.Errorf("registration response missing user id")
	}
	return regResp.Result.UserID, nil
}
