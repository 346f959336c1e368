// Package api hosts the HTTP server, middleware, and REST handlers used to
// trigger and inspect bakes. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/bakes to queue a bake, GET /v1/bakes to list them, and
//     GET /v1/bakes/{job_id} to read one.
package api
