// Package config loads the merge run configuration.
//
// A YAML file (config.yml by default) is decoded over Default(), the GitHub
// Action environment is overlaid with ApplyEnv, and Validate checks the result
// with validator struct tags and against the table registry. The resulting
// AppConfig is a plain value handed to the orchestrator; nothing here is global.
package config
