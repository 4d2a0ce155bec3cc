// Package api hosts the HTTP control surface for the crawler. Notable routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs and /v1/runs/stop to start and stop a crawl run.
//   - GET /v1/runs/status for the live progress of the current or last run.
//   - GET /v1/runs/history?limit=N for recorded runs, newest first.
//   - GET /v1/snapshot[/viewer|/table|/chart.png] for the last finished
//     snapshot in its exported forms.
package api
