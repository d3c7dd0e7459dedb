package ntpdata

import "time"

// MonitorSample is one pool monitor measurement of a server.
type MonitorSample struct {
	Time        time.Time
	MonitorName string
	// Country is derived from the first two letters of MonitorName.
	Country string
	Offset  float64 // seconds
	RTT     float64 // milliseconds
	Score   float64
}

// LoopSample is one line of ntpd loopstats.
type LoopSample struct {
	Time      time.Time
	Offset    float64 // seconds
	Frequency float64 // ppm
	Jitter    float64 // seconds
	Stability float64 // ppm
	Poll      float64 // log2 seconds
}

// PeerSample is one line of ntpd peerstats.
type PeerSample struct {
	Time       time.Time
	Peer       string
	Status     string
	Offset     float64 // seconds
	Delay      float64 // seconds
	Dispersion float64 // seconds
	Jitter     float64 // seconds
}

// ClockSample is one line of ntpd clockstats. Rest holds the refclock's
// timecode, e.g. a raw NMEA sentence.
type ClockSample struct {
	Time     time.Time
	RefClock string
	Rest     string
}
