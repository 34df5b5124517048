// Package infra contains technical adapters: the zerolog logger, metrics
// sinks (Prometheus, InfluxDB, MQTT) and the SQLite run store. These
// packages depend only on the interfaces defined in the core packages.
package infra
