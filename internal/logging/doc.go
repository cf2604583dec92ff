// Package logging provides a leveled, printf-style logging facade for the
// video overlay tool, backed by a zap console logger.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information, including codec engine output
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true.
package logging
