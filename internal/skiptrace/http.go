package skiptrace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"
)

// HTTPProvider calls a JSON skip-trace API in chunks of BatchSize.
type HTTPProvider struct {
	BaseURL   string
	APIKey    string
	BatchSize int
	Client    *http.Client
}

// NewHTTPProvider creates a provider with optional proxy support.
func NewHTTPProvider(baseURL, apiKey, proxyURL string, timeout time.Duration) *HTTPProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		BatchSize: 250,
		Client:    &http.Client{Timeout: timeout, Transport: transport},
	}
}

func (p *HTTPProvider) Name() string { return "http" }

// traceResult is the expected JSON shape of one match.
type traceResult struct {
	PropertyID string `json:"property_id"`
	Phones     []struct {
		Number string `json:"number"`
		Type   string `json:"type"`
	} `json:"phones"`
	Emails []string `json:"emails"`
}

func (p *HTTPProvider) Trace(ctx context.Context, reqs []Request) ([]model.TraceContact, error) {
	size := p.BatchSize
	if size <= 0 {
		size = len(reqs)
	}
	var out []model.TraceContact
	for start := 0; start < len(reqs); start += size {
		end := min(start+size, len(reqs))
		got, err := p.traceChunk(ctx, reqs[start:end])
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeUnavailable, "skip trace").WithOp("trace")
		}
		out = append(out, got...)
	}
	return out, nil
}

func (p *HTTPProvider) traceChunk(ctx context.Context, reqs []Request) ([]model.TraceContact, error) {
	body, err := json.Marshal(struct {
		Records []Request `json:"records"`
	}{reqs})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/trace", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post trace: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("post trace: status %d, body: %s", resp.StatusCode, string(b))
	}

	var results []traceResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode trace: %w", err)
	}
	contacts := make([]model.TraceContact, 0, len(results))
	for _, r := range results {
		c := model.TraceContact{PropertyID: r.PropertyID, Provider: p.Name()}
		slots := []struct{ num, typ *string }{
			{&c.Phone1, &c.Phone1Type}, {&c.Phone2, &c.Phone2Type}, {&c.Phone3, &c.Phone3Type},
		}
		for i, ph := range r.Phones {
			if i >= len(slots) {
				break
			}
			*slots[i].num, *slots[i].typ = ph.Number, ph.Type
		}
		if len(r.Emails) > 0 {
			c.Email = r.Emails[0]
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}
