// Package config loads server, database, pricing, generation, logging and
// telemetry settings from an optional YAML file, a .env file and IMGTASK_
// prefixed environment variables, then validates the result.
package config
