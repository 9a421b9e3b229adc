package scheduler

// polling interval bounds, minutes
const (
	minIntervalMinutes = 60    // 1 hour
	maxIntervalMinutes = 10080 // 1 week
)

// nextAdaptiveState recalculates the polling interval after one fetch.
// A quiet fetch doubles the interval and resets the counter. A fetch with
// new content increments the counter, and from the second consecutive one
// on halves the interval. The counter stays at 2 while halving, it only
// drops back to zero on a quiet fetch.
func nextAdaptiveState(intervalMinutes, consecutiveNew, newArticles int) (nextInterval, nextConsecutive int) {
	if newArticles > 0 {
		consecutiveNew++
		if consecutiveNew >= 2 {
			intervalMinutes /= 2
			consecutiveNew = 2 // capped
		}
	} else {
		intervalMinutes *= 2
		consecutiveNew = 0
	}

	if intervalMinutes < minIntervalMinutes {
		intervalMinutes = minIntervalMinutes
	}
	if intervalMinutes > maxIntervalMinutes {
		intervalMinutes = maxIntervalMinutes
	}
	return intervalMinutes, consecutiveNew
}
