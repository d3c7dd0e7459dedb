// Package ntpdata reads timing-measurement records from the two input
// families ntpscope understands:
//
//   - NTP pool monitor CSV exports (ReadMonitorCSV): header-driven, one row
//     per monitor probe with ts, offset, rtt, score and monitor_name columns.
//   - ntpd statistics files (ReadLoopstats, ReadPeerstats, ReadClockstats):
//     whitespace separated, fixed column order, timestamps as MJD + seconds.
//
// Empty numeric cells decode to NaN so downstream statistics can skip them.
package ntpdata
