// Package logging provides a simple leveled logging interface for encarne.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable or the
// log-level configuration key. Output goes to stderr and, once SetOutputFile
// has been called, to a per-run log file as well.
package logging
