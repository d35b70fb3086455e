package sync

import "time"

// Options are the per-call sync knobs accepted by the trigger surface.
type Options struct {
	// Limit caps fetched messages per folder; 0 falls back to the
	// account's MaxMessages.
	Limit int
	// Folders overrides the account's configured sync folder list.
	Folders []string
	// ForceSync ignores lastSyncAt and searches ALL.
	ForceSync bool
	// MarkAsRead flags fetched messages \Seen after processing.
	MarkAsRead bool
}

// SyncResult is the outcome of one per-account sync run.
// Success is false only when the connect step itself failed.
type SyncResult struct {
	AccountID         string        `json:"accountId"`
	Success           bool          `json:"success"`
	MessagesProcessed int           `json:"messagesProcessed"`
	NewMessages       int           `json:"newMessages"`
	Errors            []string      `json:"errors"`
	Duration          time.Duration `json:"duration"`
}

// ChannelSyncResult is the outcome of one channel-based sync run.
type ChannelSyncResult struct {
	ChannelID         string        `json:"channelId"`
	Success           bool          `json:"success"`
	MessagesProcessed int           `json:"messagesProcessed"`
	NewMessages       int           `json:"newMessages"`
	Errors            []string      `json:"errors"`
	Duration          time.Duration `json:"duration"`
}

// BatchSummary aggregates a batch run. It is a pure fold over the
// individual results.
type BatchSummary struct {
	TotalAccounts      int          `json:"totalAccounts"`
	SuccessfulAccounts int          `json:"successfulAccounts"`
	TotalProcessed     int          `json:"totalProcessed"`
	TotalNewMessages   int          `json:"totalNewMessages"`
	Results            []SyncResult `json:"results"`
}

// Summarize folds per-account results into a batch report.
func Summarize(results []SyncResult) BatchSummary {
	summary := BatchSummary{
		TotalAccounts: len(results),
		Results:       results,
	}
	for _, r := range results {
		if r.Success {
			summary.SuccessfulAccounts++
		}
		summary.TotalProcessed += r.MessagesProcessed
		summary.TotalNewMessages += r.NewMessages
	}
	return summary
}
