package ntpdata

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// maxLineLen bounds a single statistics line; clockstats NMEA lines are
// well below this.
const maxLineLen = 64 * 1024

// ReadLoopstats loads an ntpd loopstats file. The returned count is the
// number of lines skipped because their MJD or seconds field did not parse.
func ReadLoopstats(path string) ([]LoopSample, int, error) {
	var items []LoopSample
	var skipped int
	err := withFile(path, func(r io.Reader) (err error) {
		items, skipped, err = DecodeLoopstats(r)
		return err
	})
	return items, skipped, err
}

// DecodeLoopstats is ReadLoopstats over an arbitrary reader.
func DecodeLoopstats(r io.Reader) ([]LoopSample, int, error) {
	var items []LoopSample
	skipped, err := scanStats(r, func(ts time.Time, f []string) {
		items = append(items, LoopSample{
			Time:      ts,
			Offset:    floatAt(f, 2),
			Frequency: floatAt(f, 3),
			Jitter:    floatAt(f, 4),
			Stability: floatAt(f, 5),
			Poll:      floatAt(f, 6),
		})
	})
	return items, skipped, err
}

// ReadPeerstats loads an ntpd peerstats file.
func ReadPeerstats(path string) ([]PeerSample, int, error) {
	var items []PeerSample
	var skipped int
	err := withFile(path, func(r io.Reader) (err error) {
		items, skipped, err = DecodePeerstats(r)
		return err
	})
	return items, skipped, err
}

// DecodePeerstats is ReadPeerstats over an arbitrary reader.
func DecodePeerstats(r io.Reader) ([]PeerSample, int, error) {
	var items []PeerSample
	skipped, err := scanStats(r, func(ts time.Time, f []string) {
		items = append(items, PeerSample{
			Time:       ts,
			Peer:       stringAt(f, 2),
			Status:     stringAt(f, 3),
			Offset:     floatAt(f, 4),
			Delay:      floatAt(f, 5),
			Dispersion: floatAt(f, 6),
			Jitter:     floatAt(f, 7),
		})
	})
	return items, skipped, err
}

// ReadClockstats loads an ntpd clockstats file.
func ReadClockstats(path string) ([]ClockSample, int, error) {
	var items []ClockSample
	var skipped int
	err := withFile(path, func(r io.Reader) (err error) {
		items, skipped, err = DecodeClockstats(r)
		return err
	})
	return items, skipped, err
}

// DecodeClockstats is ReadClockstats over an arbitrary reader.
func DecodeClockstats(r io.Reader) ([]ClockSample, int, error) {
	var items []ClockSample
	skipped, err := scanStats(r, func(ts time.Time, f []string) {
		c := ClockSample{Time: ts, RefClock: stringAt(f, 2)}
		if len(f) > 3 {
			c.Rest = strings.Join(f[3:], " ")
		}
		items = append(items, c)
	})
	return items, skipped, err
}

// withFile opens path and hands it to decode, wrapping errors with the path.
func withFile(path string, decode func(io.Reader) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ntpdata: open %q: %w", path, err)
	}
	defer file.Close()

	if err := decode(file); err != nil {
		return fmt.Errorf("ntpdata: %s: %w", path, err)
	}
	return nil
}

// scanStats splits r into whitespace separated fields per line and calls
// emit for every line whose first two fields are a valid MJD and seconds.
// Blank lines are ignored; other unparseable lines are counted as skipped.
func scanStats(r io.Reader, emit func(time.Time, []string)) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineLen)

	skipped := 0
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			skipped++
			continue
		}
		mjd, err1 := strconv.ParseFloat(fields[0], 64)
		secs, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil || math.IsNaN(mjd) || math.IsNaN(secs) {
			skipped++
			continue
		}
		emit(MJDTime(mjd, secs), fields)
	}
	if err := sc.Err(); err != nil {
		return skipped, fmt.Errorf("scan: %w", err)
	}
	return skipped, nil
}

// floatAt returns fields[i] as a float, or NaN when absent or malformed.
func floatAt(fields []string, i int) float64 {
	if i >= len(fields) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(fields[i], 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func stringAt(fields []string, i int) string {
	if i >= len(fields) {
		return ""
	}
	return fields[i]
}
