// Package logging provides a small leveled logger for thumbcache.
//
// Levels, from most to least verbose:
//   - DEBUG: per-render decisions (cache hits, fallbacks, placement)
//   - INFO: startup, configuration and warm run summaries
//   - WARN: recoverable failures such as artifact write errors
//   - ERROR: failures that stop a command
//   - FATAL: logs and exits
//
// The initial level comes from the DEBUG or LOG_LEVEL environment variables
// and can be changed at runtime with SetLevel.
package logging
