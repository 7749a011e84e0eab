// Package logging provides file-based structured logging with rotation.
// Logs are written as JSON lines to the library's .lorekeep/logs/ directory
// so CLI output and MCP protocol streams stay clean.
package logging
