package snowflake

// FallbackSpread is the multiplier applied to the millisecond timestamp in
// the fallback shape; the random component lives in [0, FallbackSpread).
const FallbackSpread = 1_000_000

// Fallback computes clock.NowMillis()*FallbackSpread + rnd(FallbackSpread).
//
// The result is about 19 decimal digits for present-day timestamps and fits
// in an int64. It carries no datacenter, worker or sequence information and
// offers best-effort uniqueness only.
func Fallback(clock Clock, rnd func(n int64) int64) int64 {
	return clock.NowMillis()*FallbackSpread + rnd(FallbackSpread)
}

// FallbackComponents splits a fallback-shaped value into its millisecond
// timestamp and random component.
func FallbackComponents(v int64) (millis, random int64) {
	return v / FallbackSpread, v % FallbackSpread
}
