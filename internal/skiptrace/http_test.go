package skiptrace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProvider_Trace(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v1/trace", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body struct {
			Records []Request `json:"records"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		out := make([]map[string]any, 0, len(body.Records))
		for _, rec := range body.Records {
			out = append(out, map[string]any{
				"property_id": rec.PropertyID,
				"phones": []map[string]string{
					{"number": "3055550101", "type": "mobile"},
					{"number": "3055550102", "type": "landline"},
					{"number": "3055550103", "type": "voip"},
					{"number": "3055550104", "type": "mobile"},
				},
				"emails": []string{"owner@example.com"},
			})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "secret", "", 0)
	p.BatchSize = 2

	got, err := p.Trace(context.Background(), []Request{{PropertyID: "p1"}, {PropertyID: "p2"}, {PropertyID: "p3"}})
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Len(t, got, 3)
	assert.Equal(t, "p3", got[2].PropertyID)
	assert.Equal(t, "3055550103", got[0].Phone3)
	assert.Equal(t, "voip", got[0].Phone3Type)
	assert.Equal(t, "owner@example.com", got[0].Email)
	assert.Equal(t, "http", got[0].Provider)
}

func TestHTTPProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(srv.URL, "", "", 0).Trace(context.Background(), []Request{{PropertyID: "p1"}})
	require.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.Contains(t, err.Error(), "status 429")
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Trace(context.Background(), []Request{{PropertyID: "p1"}})
	assert.ErrorIs(t, err, apperr.ErrUnavailable)

	got, err := Disabled{}.Trace(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, got)
}
