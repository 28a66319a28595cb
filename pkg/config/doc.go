// Package config loads typed configuration from environment variables.
//
// Load parses env-tagged structs with caarlos0/env after loading an optional
// .env file through godotenv. Each infrastructure package exposes its own
// Config struct; the application nests them in one struct and loads it once
// at startup:
//
//	cfg := config.MustLoad[app.Config]()
//
// Tests pass WithEnvironment to parse from a map instead of the process
// environment, which keeps them parallel-safe.
package config
