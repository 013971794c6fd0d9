// Package config provides configuration management for the Myriad routing
// engine. Configuration is loaded once at boot with the precedence
// defaults, then YAML file, then environment variables.
package config
