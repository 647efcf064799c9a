// Package constants defines global constants used throughout gpulogs.
// It includes version information, paths, and configuration keys.
package constants

var version = "0.0.0-development" // Updated by CI/CD pipeline at build time

// GetVersion returns the current version of gpulogs.
func GetVersion() *string {
	return &version
}

// ProjectName is the name of the CLI tool and application
const ProjectName = "gpulogs"

// EnvPrefix is the prefix of every environment variable read by the configuration loader.
const EnvPrefix = "GPULOGS"

// Environment represents the execution environment (e.g., CLI, relay service).
type Environment string

// Environment types for logger configuration
const (
	Development Environment = "development"
	Production  Environment = "production"
	CLI         Environment = "cli"
)
