package billing

// SplitPolicy decides the listener's share of a billed coin amount.
//
// The exact revenue split between platform and listener is a business
// decision that the engine must not hard-code; callers inject a policy and
// the engine applies it to every billed amount.
type SplitPolicy func(billed int64) int64

// PercentSplit passes billed coins through to the listener minus a platform
// fee percent. Fee percent is clamped to 0..100; the share rounds down, so
// the platform keeps the remainder coin.
func PercentSplit(platformFeePercent int) SplitPolicy {
	if platformFeePercent < 0 {
		platformFeePercent = 0
	}
	if platformFeePercent > 100 {
		platformFeePercent = 100
	}
	keep := int64(100 - platformFeePercent)
	return func(billed int64) int64 {
		if billed <= 0 {
			return 0
		}
		return billed * keep / 100
	}
}

// PassThrough credits the listener the full billed amount.
func PassThrough() SplitPolicy {
	return func(billed int64) int64 {
		if billed <= 0 {
			return 0
		}
		return billed
	}
}
