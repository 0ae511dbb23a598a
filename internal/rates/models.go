package rates

import "time"

// CallRate defines the coin price for one call type.
// Amounts are whole coins per started minute.
type CallRate struct {
	ID string `json:"id" db:"id"`

	// CallType is "audio" or "video".
	CallType string `json:"call_type" db:"call_type"`

	RatePerMinute int64 `json:"rate_per_minute" db:"rate_per_minute"`

	// MinimumCharge enforces a minimum billable amount per call
	// (one started minute in the default tables).
	MinimumCharge int64 `json:"minimum_charge" db:"minimum_charge"`

	// Effective window for the rate.
	EffectiveFrom time.Time  `json:"effective_from" db:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty" db:"effective_to"`

	Status RateStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type RateStatus string

const (
	RateStatusActive   RateStatus = "active"
	RateStatusInactive RateStatus = "inactive"
)

// Defaults returns the built-in rate table: audio and video priced per
// started minute with a one-minute minimum charge.
func Defaults(audioPerMinute, videoPerMinute int64) []CallRate {
	return []CallRate{
		{
			ID:            "default-audio",
			CallType:      "audio",
			RatePerMinute: audioPerMinute,
			MinimumCharge: audioPerMinute,
			Status:        RateStatusActive,
		},
		{
			ID:            "default-video",
			CallType:      "video",
			RatePerMinute: videoPerMinute,
			MinimumCharge: videoPerMinute,
			Status:        RateStatusActive,
		},
	}
}
