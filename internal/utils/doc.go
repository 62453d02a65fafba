// Package utils exposes the configuration and logging plumbing shared by poetry-up commands.
//
// ConfigurationLoader merges the embedded defaults, an optional YAML file, and
// POETRYUP_ prefixed environment variables through Viper. LoggerFactory builds
// the zap logger in either structured JSON or console form.
package utils
