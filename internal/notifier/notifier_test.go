package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestNotifier(t *testing.T, h http.HandlerFunc) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("TOKEN", "42", "", zaptest.NewLogger(t))
	n.APIBase = srv.URL
	n.Client = srv.Client()
	n.Backoff = time.Millisecond
	return n
}

func TestSend(t *testing.T) {
	var got map[string]string
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, n.Send(context.Background(), "<b>hi</b>"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "<b>hi</b>", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestSendWithRetry(t *testing.T) {
	var calls atomic.Int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "flood", http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, n.SendWithRetry(context.Background(), "x", 3))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	var calls atomic.Int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	})

	err := Retrying{TelegramNotifier: n, MaxRetries: 1}.Send(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 retries exhausted")
	assert.Contains(t, err.Error(), "status 502")
	assert.Equal(t, int32(2), calls.Load())
}

func TestStartPolling_RepliesToCommands(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	replies := make(chan string, 1)
	var polled atomic.Int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			if polled.Add(1) == 1 {
				assert.Equal(t, "0", r.URL.Query().Get("offset"))
				fmt.Fprint(w, `{"ok":true,"result":[{"update_id":7,"message":{"text":" /wallet acct "}}]}`)
				return
			}
			<-r.Context().Done()
		case "/botTOKEN/sendMessage":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			replies <- body["text"]
		}
	})

	done := make(chan struct{})
	go func() {
		n.StartPolling(ctx, func(_ context.Context, cmd string) string {
			return "echo " + cmd
		})
		close(done)
	}()

	select {
	case got := <-replies:
		assert.Equal(t, "echo /wallet acct", got)
	case <-time.After(5 * time.Second):
		t.Fatal("no reply sent")
	}
	cancel()
	<-done
}

func TestFormatWeeklySummary(t *testing.T) {
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	b := &model.Batch{TotalRecords: 100, FreshCount: 60, RepeatCount: 40, QueueCount: 5}
	msg := FormatWeeklySummary(at, []Outcome{
		{AccountID: "acme", Batch: b},
		{AccountID: "empty", Err: apperr.NoEligibleRecords("empty")},
		{AccountID: "<bad>", Err: errors.New("store down")},
	})

	assert.Contains(t, msg, "2026-03-02")
	assert.Contains(t, msg, "acme: 100 records (fresh 60, repeat 40, queued 5)")
	assert.Contains(t, msg, "empty: no eligible records")
	assert.Contains(t, msg, "&lt;bad&gt;: store down")
	assert.Contains(t, msg, "Generated 1 | Empty 1 | Failed 1")
}

func TestFormatWalletStatus(t *testing.T) {
	w := model.Wallet{AccountID: "acme", Balance: decimal.RequireFromString("38")}
	for i := 0; i < 7; i++ {
		w.Transactions = append(w.Transactions, model.Transaction{
			Amount: decimal.NewFromInt(int64(i + 1)), Event: model.EventWalletCredit,
		})
	}
	msg := FormatWalletStatus(w)
	assert.Contains(t, msg, "Balance: $38.00")
	assert.Contains(t, msg, "7.00 WALLET CREDIT")
	assert.NotContains(t, msg, "2.00 WALLET CREDIT")
}

func TestFormatBatchReport(t *testing.T) {
	b := model.Batch{
		Label: "acme-2026-W10", TotalRecords: 3, FreshCount: 2, RepeatCount: 1,
		BlitzCount: 1, ChaseCount: 2, Status: model.BatchDownloaded,
		SkipTraceCount: 3, SkipTraceCost: decimal.RequireFromString("0.18"),
	}
	msg := FormatBatchReport(b)
	assert.Contains(t, msg, "acme-2026-W10")
	assert.Contains(t, msg, "Blitz 1 | Chase 2 | Nurture 0")
	assert.Contains(t, msg, "Skip traced: 3 ($0.18)")
}

func TestFormatDailySummary(t *testing.T) {
	msg := FormatDailySummary(DailyReport{
		At: time.Date(2026, 3, 3, 6, 0, 0, 0, time.UTC), Refreshed: 2,
		Properties: 10, Events: 3, EventFailures: 1,
		Failed: []Outcome{{AccountID: "x", Err: apperr.NotFound("account", "x")}},
	})
	assert.Contains(t, msg, "10 properties, 3 status events (1 rejected)")
	assert.Contains(t, msg, "Accounts refreshed: 2")
	assert.Contains(t, msg, "x: account &#34;x&#34; not found")
}
