// Package config loads the dashboard server's runtime configuration.
//
// Settings are layered: compiled-in defaults, then an optional YAML file
// (sweeperboard.yaml next to the binary, or the path in SWEEPERBOARD_CONFIG),
// then SWEEPERBOARD_* environment variables. Later layers win. Everything has
// a working default so the server starts with no configuration at all.
package config
