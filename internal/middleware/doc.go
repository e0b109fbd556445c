// Package middleware provides HTTP middleware for the operations server of
// the warm daemon.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labeled by route template
package middleware
