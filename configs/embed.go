// Package configs provides the embedded configuration template for lorekeep.
//
// The template is embedded at build time using Go's //go:embed directive so
// it ships inside the binary regardless of how lorekeep was installed. It is
// written to .lorekeep.yaml by `lorekeep init`.
//
// Configuration precedence (see internal/config.Load):
//  1. Hardcoded defaults (internal/config.NewConfig)
//  2. .lorekeep.yaml at the library root
//  3. Environment variables (LOREKEEP_*, OPENAI_API_KEY)
package configs

import _ "embed"

// ConfigTemplate is the starter .lorekeep.yaml written by `lorekeep init`.
// It documents every section with its default value commented out.
//
//go:embed lorekeep.example.yaml
var ConfigTemplate string
