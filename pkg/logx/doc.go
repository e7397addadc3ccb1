// Package logx wraps zerolog behind a small Logger value that survives
// runtime reconfiguration. Sinks (console, file, telegram mirror) are owned
// by a Service; loggers derived from it pick up Apply() changes immediately.
package logx
