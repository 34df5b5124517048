// Package metrics defines the sinks that observe calibration runs. A sink
// must implement MetricsSink and may implement the optional recorder
// interfaces; MultiSink forwards to each sink what it supports. Sinks are
// built from configuration through the plugin registry in factory.go.
package metrics
