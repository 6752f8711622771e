// Package http implements the HTTP handlers of the index service. Handlers
// stay thin: they parse and validate the request, call a service and
// render the response. Failures go through the shared error handler and
// are returned as RFC 7807 problem details.
//
// Routes:
//
//	POST /api/v1/cpi/compute        compute one index value
//	GET  /api/v1/cpi/series         index series from a base date
//	GET  /api/v1/cpi/series/report  series rendered as png, xlsx or csv
//	GET  /api/v1/cpi/latest         most recent stored computation
//	GET  /api/v1/cpi/history        stored computations, newest first
//	GET  /healthz[/ready|/live|/version]
package http
