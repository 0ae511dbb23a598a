package reporting

import "time"

// TimeRange bounds a report query; From inclusive, To exclusive.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallHistoryRequest requests the call records a user took part in, as
// caller or as listener.
type CallHistoryRequest struct {
	UserID string    `json:"user_id"`
	Range  TimeRange `json:"range"`
	Limit  int       `json:"limit,omitempty"`
}

// CallRecord is the per-call view exposed to participants.
type CallRecord struct {
	CallID          string     `json:"call_id"`
	CallerID        string     `json:"caller_id"`
	ListenerID      string     `json:"listener_id"`
	CallType        string     `json:"call_type"`
	Status          string     `json:"status"`
	EndReason       string     `json:"end_reason,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
	CoinsSpent      int64      `json:"coins_spent"`
}

// EarningsSummaryRequest requests a listener's aggregated earnings.
type EarningsSummaryRequest struct {
	ListenerID string    `json:"listener_id"`
	Range      TimeRange `json:"range"`
}

type EarningsSummary struct {
	ListenerID string `json:"listener_id"`

	TotalCalls           int   `json:"total_calls"`
	CompletedCalls       int   `json:"completed_calls"`
	DroppedCalls         int   `json:"dropped_calls"`
	TotalDurationSeconds int   `json:"total_duration_seconds"`
	CoinsEarned          int64 `json:"coins_earned"`
}

// SpendSummaryRequest requests a caller's aggregated coin spend, derived
// from the immutable transaction log rather than the mutable wallet row.
type SpendSummaryRequest struct {
	UserID string    `json:"user_id"`
	Range  TimeRange `json:"range"`
}

type SpendSummary struct {
	UserID string `json:"user_id"`

	CoinsPurchased int64 `json:"coins_purchased"`
	CoinsSpent     int64 `json:"coins_spent"`
	CoinsEarned    int64 `json:"coins_earned"`
	NetDelta       int64 `json:"net_delta"`
}
