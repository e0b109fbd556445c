// Package config holds the render configuration for the thumbnail cache:
// base path and URL, default thumbnail size, background fill, placeholder
// template, output format policy and the permissions used for new files and
// directories.
//
// Values are layered: Default, then an optional TOML file, then THUMBCACHE_*
// environment variables. Command-line flags are applied by the caller. A
// Config is never mutated once handed to a generator; reloading produces a
// new value.
package config
