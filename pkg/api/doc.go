// Package api serves the read-only REST surface of ntpscope's serve mode.
//
// Endpoints:
//
//	GET /api/v1/health                          store and alert summary
//	GET /api/v1/reports                         latest report of every kind
//	GET /api/v1/reports/{kind}                  latest report of one kind
//	GET /api/v1/reports/{kind}/sources/{id}     one scored monitor or peer
//	GET /api/v1/alerts                          firing and recently resolved alerts
//	GET /api/v1/snapshot                        reports and alerts in one document
//
// Reports are encoded with the export package's wire types, so undefined
// statistics appear as JSON null.
package api
