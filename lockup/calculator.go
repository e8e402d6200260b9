package lockup

import "math/bits"

// AvailableForWithdrawal returns what the beneficiary may withdraw at now:
// the released amount not yet withdrawn, capped by what is still outstanding.
func AvailableForWithdrawal(r Release, now int64) uint64 {
	released := outstandingReleased(r, now)
	if r.Outstanding < released {
		return r.Outstanding
	}
	return released
}

func outstandingReleased(r Release, now int64) uint64 {
	total := totalReleased(r, now)
	withdrawn := r.Withdrawn()
	if total < withdrawn {
		return 0
	}
	return total - withdrawn
}

// totalReleased assumes no withdrawals happened
func totalReleased(r Release, now int64) uint64 {
	switch {
	case now < r.StartTS:
		return 0
	case now >= r.EndTS:
		return r.StartBalance
	default:
		return linearUnlock(r, now)
	}
}

// linearUnlock computes (now-start)*balance/(end-start) with a 128-bit
// intermediate product
func linearUnlock(r Release, now int64) uint64 {
	if now <= r.StartTS {
		return 0
	}
	if now >= r.EndTS {
		return r.StartBalance
	}
	elapsed := uint64(now - r.StartTS)
	duration := uint64(r.EndTS - r.StartTS)

	hi, lo := bits.Mul64(elapsed, r.StartBalance)
	// elapsed < duration, so the quotient fits in 64 bits and hi < duration
	quo, _ := bits.Div64(hi, lo, duration)
	return quo
}
