package config

import (
	"os"
	"strings"
)

// DeploymentMode represents the deployment context. It decides how strictly
// credentials are validated.
type DeploymentMode string

const (
	// ModeDevelopment is a checkout with local containers; default passwords
	// and localhost backends are expected
	ModeDevelopment DeploymentMode = "development"

	// ModeProduction is an installed binary talking to shared backends
	ModeProduction DeploymentMode = "production"

	// ModeCI is a pipeline run; credentials come from the environment only
	ModeCI DeploymentMode = "ci"
)

// DetectMode determines the deployment context based on environment
func DetectMode() DeploymentMode {
	if mode := os.Getenv("GBRIDGE_MODE"); mode != "" {
		switch strings.ToLower(mode) {
		case "development", "dev":
			return ModeDevelopment
		case "production", "prod":
			return ModeProduction
		case "ci", "cicd":
			return ModeCI
		}
	}

	if isCI() {
		return ModeCI
	}

	// .env or go.mod next to the binary means a source checkout
	for _, marker := range []string{".env", "go.mod"} {
		if _, err := os.Stat(marker); err == nil {
			return ModeDevelopment
		}
	}
	return ModeProduction
}

func isCI() bool {
	for _, envVar := range []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"BUILDKITE",
		"JENKINS_URL",
		"TF_BUILD",
	} {
		if os.Getenv(envVar) != "" {
			return true
		}
	}
	return false
}

func (m DeploymentMode) String() string {
	return string(m)
}

// RequiresSecureCredentials returns true if default passwords are errors
func (m DeploymentMode) RequiresSecureCredentials() bool {
	return m == ModeProduction || m == ModeCI
}

// Description returns a human-readable description of the mode
func (m DeploymentMode) Description() string {
	switch m {
	case ModeDevelopment:
		return "local development"
	case ModeProduction:
		return "installed binary against shared backends"
	case ModeCI:
		return "CI/CD pipeline"
	default:
		return "unknown mode"
	}
}
