// Package logging provides a simple leveled logging interface for the
// media toolbox, rendered through zerolog's console writer.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information, including engine output
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true.
package logging
