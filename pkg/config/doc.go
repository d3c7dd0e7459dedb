// Package config loads the ntpscope YAML configuration.
//
// Load applies defaults for every field before unmarshalling, so an empty
// file (or no file at all, via Default) reproduces the stock reports:
// pool monitors scored against 10 ms offset and jitter and 100 ms RTT, local
// peers against 50 µs offset and 20 µs jitter.
//
// Watch observes the config file and the report inputs and calls back,
// debounced, whenever one of them is written or replaced.
package config
