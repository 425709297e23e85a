package purego

import (
	"time"
)

// DuckDB epoch for dates in the C API (1970-01-01)
var duckdbDateEpoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// duckdbDateToTime converts DuckDB date (days since 1970-01-01) to time.Time
func duckdbDateToTime(days int32) time.Time {
	return duckdbDateEpoch.AddDate(0, 0, int(days))
}

// duckdbTimeToTime converts DuckDB time (microseconds since midnight) to time.Time
func duckdbTimeToTime(microseconds int64) time.Time {
	return duckdbDateEpoch.Add(time.Duration(microseconds) * time.Microsecond)
}

// duckdbTimestampToTime converts DuckDB timestamp (microseconds since epoch) to time.Time
func duckdbTimestampToTime(microseconds int64) time.Time {
	return time.UnixMicro(microseconds).UTC()
}

// timeToDuckDBTimestamp converts time.Time to DuckDB timestamp format
func timeToDuckDBTimestamp(t time.Time) int64 {
	return t.UnixMicro()
}
