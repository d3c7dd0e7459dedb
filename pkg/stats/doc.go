// Package stats provides the descriptive statistics used by both analysers:
// NaN-skipping mean, sample standard deviation and median, threshold
// counts, time-based rolling windows, pairwise-complete Pearson
// correlation matrices and label encoding. Heavy lifting is delegated to
// gonum's stat package; this package adds the missing-value handling.
package stats
