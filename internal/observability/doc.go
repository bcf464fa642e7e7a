// Package observability provides structured logging and Prometheus metrics
// for the anubis service.
//
// Logging is zap-based; NewLogger builds the process logger from the
// LOG_LEVEL and LOG_FORMAT settings. Metrics are registered on a private
// registry so that tests can create as many instances as they need.
package observability
