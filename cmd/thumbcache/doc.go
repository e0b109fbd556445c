// Package main is the thumbcache command line tool.
//
// It exposes the thumbnail generator through three commands:
//
//   - render: produce one thumbnail and print its <img> tag or URL
//   - warm: pre-generate thumbnails for a directory, once, on an
//     interval or continuously while watching for new files
//   - version: print build information
//
// Configuration comes from an optional TOML file (--config), overlaid by
// THUMBCACHE_* environment variables. The warm command can serve
// Prometheus metrics and a health check while it runs.
package main
