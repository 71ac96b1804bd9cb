// Package logging builds the zerolog logger shared by the dashboard server
// and its tools.
//
// The logger is constructed once in main and passed down; packages never
// reach for a global. Console output is the default since the server runs
// next to a simulator on a developer machine; JSON output is available for
// anything that scrapes the logs.
package logging
