package config

import (
	"fmt"
	"strings"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}
	if len(vr.Warnings) > 0 {
		sb.WriteString("warnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}
	return sb.String()
}

// Err returns the result as a Config-kind error, or nil when valid
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	return errors.ConfigErrorf("%s", strings.TrimSpace(vr.Error()))
}

// insecurePasswords are the stock passwords of the backends' container images
var insecurePasswords = map[model.BackendKind][]string{
	model.BackendNeo4j:  {"neo4j", "password"},
	model.BackendNebula: {"nebula", "password"},
	model.BackendJanus:  {"password"},
}

// Validate checks the configuration with the auto-detected mode. Sections of
// the listed backends must be complete; other backends are not checked.
func (c *Config) Validate(kinds ...model.BackendKind) *ValidationResult {
	return c.ValidateWithMode(DetectMode(), kinds...)
}

// ValidateWithMode validates for an explicit deployment mode
func (c *Config) ValidateWithMode(mode DeploymentMode, kinds ...model.BackendKind) *ValidationResult {
	result := &ValidationResult{Valid: true}

	for _, kind := range kinds {
		b := c.Backend(kind)
		if b == nil {
			result.AddError("unknown backend %q", kind)
			continue
		}
		c.validateBackend(result, kind, *b, mode)
	}
	c.validateLimits(result)
	c.validateLog(result)
	return result
}

func (c *Config) validateBackend(result *ValidationResult, kind model.BackendKind, b BackendConfig, mode DeploymentMode) {
	if err := b.Connection(kind).Validate(); err != nil {
		result.AddError("%s: %v", kind, err)
		return
	}

	if b.Host == "localhost" || b.Host == "127.0.0.1" {
		if mode.RequiresSecureCredentials() {
			result.AddWarning("%s: host is %s in %s mode (%s)", kind, b.Host, mode, mode.Description())
		}
	}

	switch kind {
	case model.BackendNeo4j, model.BackendNebula:
		if b.Username == "" {
			result.AddError("%s: username is required", kind)
		}
		if b.Password == "" {
			result.AddWarning("%s: password is not set", kind)
		}
	case model.BackendJanus:
		if b.Username != "" && b.Password == "" {
			result.AddWarning("%s: username set without password", kind)
		}
	}

	for _, insecure := range insecurePasswords[kind] {
		if b.Password != insecure {
			continue
		}
		if mode.RequiresSecureCredentials() {
			result.AddError("%s: password is a stock default (%s), not allowed in %s mode", kind, insecure, mode)
		} else {
			result.AddWarning("%s: password is a stock default (%s)", kind, insecure)
		}
	}

	if kind == model.BackendNebula && b.Database == "" {
		result.AddWarning("nebula: no space configured; space-scoped operations need an explicit graph name")
	}
}

func (c *Config) validateLimits(result *ValidationResult) {
	if c.Limits.RowCap <= 0 {
		result.AddWarning("limits.row_cap is %d, will use %d", c.Limits.RowCap, graph.DefaultRowCap)
	}
	if c.Limits.OpsPerSecond < 0 {
		result.AddError("limits.ops_per_second must not be negative")
	}
	if c.Limits.OpsPerSecond > 0 && c.Limits.Burst <= 0 {
		result.AddWarning("limits.burst is %d, will use 1", c.Limits.Burst)
	}

	known := graph.DefaultOperationConfigs()
	for op, d := range c.Limits.Timeouts {
		if _, ok := known[op]; !ok {
			result.AddWarning("limits.timeouts.%s is not an operation class", op)
		}
		if d < 0 {
			result.AddError("limits.timeouts.%s must not be negative", op)
		}
	}
	if c.Cache.SchemaTTL < 0 {
		result.AddError("cache.schema_ttl must not be negative")
	}
}

func (c *Config) validateLog(result *ValidationResult) {
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		result.AddError("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Log.Level != "" && ParseLevelName(c.Log.Level) == "" {
		result.AddWarning("log.level %q is unknown, will use info", c.Log.Level)
	}
}

// ParseLevelName returns the canonical level name, or "" when s names none
func ParseLevelName(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return "debug"
	case "info":
		return "info"
	case "warn", "warning":
		return "warn"
	case "error":
		return "error"
	}
	return ""
}

// Require validates the sections of kinds and returns a Config error
func (c *Config) Require(kinds ...model.BackendKind) error {
	return c.Validate(kinds...).Err()
}
