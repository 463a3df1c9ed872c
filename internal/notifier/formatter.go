package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"
)

// Outcome is the result of one account's scheduled run.
type Outcome struct {
	AccountID string
	Batch     *model.Batch
	Err       error
}

// DailyReport summarizes the daily refresh and collection job.
type DailyReport struct {
	At            time.Time
	Refreshed     int
	Failed        []Outcome
	Properties    int
	Events        int
	EventFailures int
	CollectErr    error
}

// FormatBatchReport formats a generated batch for one account.
func FormatBatchReport(b model.Batch) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📦 <b>%s</b> | %s\n\n", html.EscapeString(b.Label), b.GeneratedAt.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Records: %d (fresh %d, repeat %d)\n", b.TotalRecords, b.FreshCount, b.RepeatCount))
	sb.WriteString(fmt.Sprintf("Lanes: Blitz %d | Chase %d | Nurture %d\n", b.BlitzCount, b.ChaseCount, b.NurtureCount))
	sb.WriteString(fmt.Sprintf("Queued: %d | Duplicates avoided: %d\n", b.QueueCount, b.DuplicatesAvoided))
	sb.WriteString(fmt.Sprintf("Status: %s\n", b.Status))
	if b.SkipTraceCount > 0 {
		sb.WriteString(fmt.Sprintf("Skip traced: %d ($%s)\n", b.SkipTraceCount, b.SkipTraceCost.StringFixed(2)))
	}
	return sb.String()
}

// FormatWalletStatus formats a wallet balance and its latest entries.
func FormatWalletStatus(w model.Wallet) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("💳 <b>Wallet %s</b>\n\n", html.EscapeString(w.AccountID)))
	sb.WriteString(fmt.Sprintf("Balance: $%s\n", w.Balance.StringFixed(2)))
	txs := w.Transactions
	if len(txs) > 5 {
		txs = txs[len(txs)-5:]
	}
	for i := len(txs) - 1; i >= 0; i-- {
		tx := txs[i]
		sb.WriteString(fmt.Sprintf("  %s %s %s\n", tx.Timestamp.Format("2006-01-02"), tx.Amount.StringFixed(2), tx.Event))
	}
	if !w.UpdatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Updated: %s\n", w.UpdatedAt.Format("2006-01-02 15:04")))
	}
	return sb.String()
}

// FormatWeeklySummary formats the outcome of a weekly generation run.
func FormatWeeklySummary(at time.Time, outcomes []Outcome) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 <b>FirstPulse weekly run</b> | %s\n\n", at.Format("2006-01-02")))
	var ok, empty, failed int
	for _, o := range outcomes {
		switch {
		case o.Err == nil && o.Batch != nil:
			ok++
			sb.WriteString(fmt.Sprintf("✅ %s: %d records (fresh %d, repeat %d, queued %d)\n",
				html.EscapeString(o.AccountID), o.Batch.TotalRecords, o.Batch.FreshCount, o.Batch.RepeatCount, o.Batch.QueueCount))
		case apperr.CodeOf(o.Err) == apperr.CodeNoEligibleRecords:
			empty++
			sb.WriteString(fmt.Sprintf("➖ %s: no eligible records\n", html.EscapeString(o.AccountID)))
		default:
			failed++
			sb.WriteString(fmt.Sprintf("❌ %s: %s\n", html.EscapeString(o.AccountID), html.EscapeString(errText(o.Err))))
		}
	}
	sb.WriteString(fmt.Sprintf("\nGenerated %d | Empty %d | Failed %d", ok, empty, failed))
	return sb.String()
}

// FormatDailySummary formats the daily refresh and collection job.
func FormatDailySummary(r DailyReport) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔄 <b>FirstPulse daily refresh</b> | %s\n\n", r.At.Format("2006-01-02")))
	if r.CollectErr != nil {
		sb.WriteString(fmt.Sprintf("Collector failed: %s\n", html.EscapeString(r.CollectErr.Error())))
	} else {
		sb.WriteString(fmt.Sprintf("Collected: %d properties, %d status events", r.Properties, r.Events))
		if r.EventFailures > 0 {
			sb.WriteString(fmt.Sprintf(" (%d rejected)", r.EventFailures))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("Accounts refreshed: %d\n", r.Refreshed))
	for _, o := range r.Failed {
		sb.WriteString(fmt.Sprintf("❌ %s: %s\n", html.EscapeString(o.AccountID), html.EscapeString(errText(o.Err))))
	}
	return sb.String()
}

// FormatHelp lists the bot commands.
func FormatHelp() string {
	return "Available commands:\n" +
		"• /accounts\n" +
		"• /batch &lt;account&gt;\n" +
		"• /wallet &lt;account&gt;\n" +
		"• /generate &lt;account&gt;"
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	if e, ok := apperr.As(err); ok {
		return e.Message()
	}
	return err.Error()
}
