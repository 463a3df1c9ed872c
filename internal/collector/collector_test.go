package collector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingSink struct {
	props  []model.Property
	events []model.StatusEvent
	reject string
}

func (s *recordingSink) IngestProperties(_ context.Context, props []model.Property) error {
	s.props = append(s.props, props...)
	return nil
}

func (s *recordingSink) ApplyStatusEvent(_ context.Context, evt model.StatusEvent) error {
	if evt.PropertyID == s.reject {
		return errors.New("unknown property")
	}
	s.events = append(s.events, evt)
	return nil
}

func TestCollect_Incremental(t *testing.T) {
	t1 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	f := &MockFetcher{
		Properties: []model.Property{{ID: "p1", UpdatedAt: t1}},
		Events: []model.StatusEvent{
			{PropertyID: "p1", Status: model.StatusRemovedSold, At: t1},
			{PropertyID: "p9", Status: model.StatusRemovedListed, At: t1},
		},
	}
	sink := &recordingSink{reject: "p9"}
	c := NewCollector(f, sink, zaptest.NewLogger(t))

	res, err := c.Collect(context.Background(), t1.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Result{Properties: 1, Events: 1, Failed: 1}, res)

	// Nothing newer than the watermark.
	res, err = c.Collect(context.Background(), t1.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Len(t, sink.props, 1)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/v1/properties":
			assert.Equal(t, "2026-05-01T00:00:00Z", r.URL.Query().Get("since"))
			_ = json.NewEncoder(w).Encode([]map[string]any{{
				"id": "p1", "fips": "12086", "address": "1 Main St", "city": "Miami", "state": "FL", "zip": "33101",
				"estimated_value": 250000, "equity_percent": 45, "owner_id": "o1", "signals": []string{"vacant"},
				"updated_at": 1777593600,
			}})
		case "/api/v1/status-events":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"property_id": "p2", "status": "RemovedListed", "at": "2026-05-02T00:00:00Z"},
				{"property_id": "p1", "status": "RemovedSold", "at": "2026-05-01T12:00:00Z"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL, "k", "")
	since := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	props, err := f.FetchProperties(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "12086", props[0].Jurisdiction)
	assert.Equal(t, "33101", props[0].Address.PostalCode)
	assert.Equal(t, []string{"vacant"}, props[0].Signals)

	events, err := f.FetchStatusEvents(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "p1", events[0].PropertyID)
	assert.Equal(t, model.StatusRemovedSold, events[0].Status)
}

func TestHTTPFetcher_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.URL, "", "").FetchProperties(context.Background(), time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}
