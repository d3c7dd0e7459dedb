// Package alerts evaluates threshold rules against finished reports and
// delivers webhook notifications when a rule fires or resolves.
//
// A rule is "field op value". Source fields (score, accuracy, stability,
// latency, mean_offset, jitter, median_rtt, outlier_pct, samples, outliers)
// are tested against every scored monitor or peer; group fields
// (compliance_pct, group_score, group_samples) against every country.
// Each (rule, report kind, subject) pair fires at most once per cooldown and
// resolves the first time its condition no longer holds.
package alerts
