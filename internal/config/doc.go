// Package config loads and validates the inkpress.json project
// configuration.
//
// Configuration is resolved in three layers: built-in defaults, the
// inkpress.json file (searched upward from the working directory), and
// INKPRESS_* environment variable overrides, in that order of precedence.
package config
