// Package metrics records build observations behind the Recorder interface.
//
// Components receive a Recorder through their options and default to
// NoopRecorder, so no call site needs a nil check:
//
//	b := site.NewBuilder(cfg, site.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// The Prometheus implementation registers its collectors on the registry it is
// given. The registry can be exposed over HTTP (HTTPHandler) while serving, or
// dumped in the textfile exposition format after a build (WriteTextfile) for
// node_exporter's textfile collector.
package metrics
