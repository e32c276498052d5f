// Package metrics records step and run metrics for docrun.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics never require nil checks:
//
//	svc := build.NewService(cfg, ws).WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// docrun is a short-lived process, so the Prometheus implementation is not
// scraped. Instead the registry is written once per run in node-exporter
// textfile format (see WriteTextfile).
package metrics
