package arrowscan

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
)

const (
	microsPerSecond = int64(1_000_000)
	millisPerDay    = int64(86_400_000)
)

// toMicros converts a count of unit ticks into microseconds, which is the
// resolution the engine stores timestamps and times in. Nanoseconds are
// truncated toward negative infinity. Values that don't fit in microseconds
// are an error.
func toMicros(v int64, unit arrow.TimeUnit) (int64, error) {
	switch unit {
	case arrow.Second:
		return scale(v, microsPerSecond, unit)
	case arrow.Millisecond:
		return scale(v, 1_000, unit)
	case arrow.Nanosecond:
		return floorDiv(v, 1_000), nil
	default:
		return v, nil
	}
}

func scale(v, factor int64, unit arrow.TimeUnit) (int64, error) {
	if v > math.MaxInt64/factor || v < math.MinInt64/factor {
		return 0, fmt.Errorf("%d%s is out of the microsecond range", v, unit)
	}
	return v * factor, nil
}

// date64ToDays converts milliseconds since the epoch into whole days
func date64ToDays(ms int64) int64 {
	return floorDiv(ms, millisPerDay)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
