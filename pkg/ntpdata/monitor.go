package ntpdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Column names understood in a pool monitor CSV export.
const (
	colTime        = "ts"
	colTimeEpoch   = "ts_epoch"
	colOffset      = "offset"
	colRTT         = "rtt"
	colScore       = "score"
	colMonitorName = "monitor_name"
)

// timeLayouts are tried in order when parsing the ts column.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
}

// ReadMonitorCSV loads pool monitor samples from a CSV file.
func ReadMonitorCSV(path string) ([]MonitorSample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ntpdata: open %q: %w", path, err)
	}
	defer file.Close()

	items, err := DecodeMonitorCSV(file)
	if err != nil {
		return nil, fmt.Errorf("ntpdata: %s: %w", path, err)
	}
	return items, nil
}

// DecodeMonitorCSV decodes pool monitor samples from r. The first record
// must be a header; columns are located by name, so their order and any
// extra columns do not matter. ts (or ts_epoch), offset and monitor_name
// are required.
func DecodeMonitorCSV(r io.Reader) ([]MonitorSample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	_, hasTS := idx[colTime]
	_, hasEpoch := idx[colTimeEpoch]
	if !hasTS && !hasEpoch {
		return nil, fmt.Errorf("missing required column %q", colTime)
	}
	for _, name := range []string{colOffset, colMonitorName} {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	var items []MonitorSample
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)

		field := func(name string) string {
			i, ok := idx[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		var ts time.Time
		if hasTS && field(colTime) != "" {
			ts, err = parseTime(field(colTime))
		} else {
			ts, err = parseEpoch(field(colTimeEpoch))
		}
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp at line %d: %w", line, err)
		}

		m := MonitorSample{Time: ts, MonitorName: field(colMonitorName)}
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{colOffset, &m.Offset},
			{colRTT, &m.RTT},
			{colScore, &m.Score},
		} {
			v, err := parseFloat(field(f.name))
			if err != nil {
				return nil, fmt.Errorf("invalid %s at line %d: %w", f.name, line, err)
			}
			*f.dst = v
		}
		items = append(items, m)
	}

	return items, nil
}

// parseTime parses a timestamp in any of timeLayouts. Timestamps without a
// zone are taken as UTC.
func parseTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// parseEpoch parses a unix timestamp in (possibly fractional) seconds.
func parseEpoch(s string) (time.Time, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, err
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), nil
}

// parseFloat parses a numeric cell. Empty cells and the usual textual NaN
// spellings yield NaN.
func parseFloat(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "", "nan", "na", "null", "none":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
