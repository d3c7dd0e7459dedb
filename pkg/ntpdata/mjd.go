package ntpdata

import (
	"math"
	"time"
)

// mjdEpoch is Modified Julian Day 0.
var mjdEpoch = time.Date(1858, time.November, 17, 0, 0, 0, 0, time.UTC)

// MJDTime converts an ntpd (MJD, seconds past midnight) pair to UTC time.
// Fractional days and seconds are honoured to the nanosecond.
func MJDTime(mjd, seconds float64) time.Time {
	days := math.Floor(mjd)
	secs := (mjd-days)*86400 + seconds
	whole := math.Floor(secs)
	nanos := math.Round((secs - whole) * 1e9)
	return mjdEpoch.
		AddDate(0, 0, int(days)).
		Add(time.Duration(whole) * time.Second).
		Add(time.Duration(nanos))
}
