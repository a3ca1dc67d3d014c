// Package httpserver serves the operational HTTP surface: health probes,
// version, Prometheus metrics and the EventSub webhook.
package httpserver
