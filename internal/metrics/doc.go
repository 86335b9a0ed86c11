// Package metrics records run, fetch and step metrics.
//
// Components receive a Recorder through their constructors and default to
// NoopRecorder, so no call site needs a nil check:
//
//	runner := steps.NewRunner(workdir, invoker, steps.WithRecorder(rec))
//
// PrometheusRecorder registers its collectors on a private registry. A run is a
// short-lived batch job with nothing to scrape, so the registry is written to a
// node-exporter style textfile (WriteTextfile) when the run ends.
package metrics
