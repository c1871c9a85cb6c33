// Package infra holds the adapters around the vehicle core: the JSON wire
// codec, the MQTT and UDP links, zerolog logging, Sentry monitoring and the
// Prometheus and InfluxDB metrics sinks. Adapters implement interfaces from
// core and are never imported by it.
package infra
