// Package analysis computes the pool monitor report: cleaning, outlier
// listing, per-monitor summaries and scores, per-country leaderboards,
// compliance and the correlation matrix. Rendering lives in the sibling
// render package; this package only produces numbers and console tables.
package analysis
