package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"
)

// HTTPFetcher implements Fetcher against the ingestion REST API.
type HTTPFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewHTTPFetcher creates a new fetcher with optional proxy support.
func NewHTTPFetcher(baseURL, apiKey, proxyURL string) *HTTPFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &HTTPFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *HTTPFetcher) Name() string { return "http" }

// feedProperty is the expected JSON shape of a property row.
type feedProperty struct {
	ID             string   `json:"id"`
	FIPS           string   `json:"fips"`
	Address        string   `json:"address"`
	City           string   `json:"city"`
	State          string   `json:"state"`
	Zip            string   `json:"zip"`
	PropertyType   string   `json:"property_type"`
	EstimatedValue float64  `json:"estimated_value"`
	EquityPercent  float64  `json:"equity_percent"`
	OwnerID        string   `json:"owner_id"`
	OwnerName      string   `json:"owner_name"`
	OwnerType      string   `json:"owner_type"`
	Signals        []string `json:"signals"`
	UpdatedAt      int64    `json:"updated_at"`
}

func (f *HTTPFetcher) FetchProperties(ctx context.Context, since time.Time) ([]model.Property, error) {
	var rows []feedProperty
	if err := f.get(ctx, "/api/v1/properties", since, &rows); err != nil {
		return nil, fmt.Errorf("fetch properties: %w", err)
	}
	props := make([]model.Property, len(rows))
	for i, r := range rows {
		props[i] = model.Property{
			ID:           r.ID,
			Jurisdiction: r.FIPS,
			Address: model.Address{
				Line1:      r.Address,
				City:       r.City,
				State:      r.State,
				PostalCode: r.Zip,
			},
			PropertyType:   r.PropertyType,
			EstimatedValue: r.EstimatedValue,
			EquityPercent:  r.EquityPercent,
			OwnerID:        r.OwnerID,
			OwnerName:      r.OwnerName,
			OwnerType:      r.OwnerType,
			Signals:        r.Signals,
			UpdatedAt:      time.Unix(r.UpdatedAt, 0).UTC(),
		}
	}
	return props, nil
}

func (f *HTTPFetcher) FetchStatusEvents(ctx context.Context, since time.Time) ([]model.StatusEvent, error) {
	var events []model.StatusEvent
	if err := f.get(ctx, "/api/v1/status-events", since, &events); err != nil {
		return nil, fmt.Errorf("fetch status events: %w", err)
	}
	// Ensure chronological order
	sort.SliceStable(events, func(i, j int) bool { return events[i].At.Before(events[j].At) })
	return events, nil
}

func (f *HTTPFetcher) get(ctx context.Context, path string, since time.Time, out any) error {
	endpoint := f.BaseURL + path
	if !since.IsZero() {
		endpoint += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
