// Package config loads the YAML configuration for quotesync.
//
// Values may reference environment variables as ${VAR}; an optional .env
// file is loaded into the environment before expansion.
package config
