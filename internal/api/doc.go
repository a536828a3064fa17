// Package api hosts the HTTP server, middleware, and REST handlers that serve
// the processed sentiment dataset to the dashboard. Notable routes:
//   - GET /healthz and /readyz for liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/summary for sentiment counts overall and per source.
//   - GET /v1/records and /v1/records.csv for the filtered rows, as JSON or
//     as a CSV download with a UTF-8 BOM.
package api
