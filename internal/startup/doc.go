// Package startup handles build information and the startup and shutdown
// logging of the thumbcache commands.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
// The warm daemon logs its lifecycle in fixed sections:
//   - [LogStartup]: banner and system information
//   - [LogConfig]: effective render configuration
//   - [CheckDestination]: thumbnail directory write check
//   - [LogMemoryConfig]: memory limit configuration
//   - [LogWarmerInit]: warmer settings
//   - [LogHTTPRoutes]: metrics server routes (debug level)
//   - [LogServerStarted]: metrics endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: graceful shutdown
package startup
