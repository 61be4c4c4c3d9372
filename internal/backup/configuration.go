package backup

import "strings"

// CommandConfiguration captures persistent settings for the sync command.
type CommandConfiguration struct {
	DryRun           bool     `mapstructure:"dry_run"`
	Force            bool     `mapstructure:"force"`
	Scrub            bool     `mapstructure:"scrub"`
	ScrubOnly        bool     `mapstructure:"scrub_only"`
	Only             []string `mapstructure:"only"`
	DiscoveryWorkers int      `mapstructure:"discovery_workers"`
}

// DefaultCommandConfiguration returns baseline configuration values for the sync command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{DiscoveryWorkers: defaultDiscoveryWorkersConstant}
}

// Sanitize trims names, drops empty entries and applies defaults to unset values.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.Only = nil
	seen := make(map[string]struct{}, len(configuration.Only))
	for _, name := range configuration.Only {
		trimmed := strings.TrimSpace(name)
		if len(trimmed) == 0 {
			continue
		}
		if _, duplicate := seen[trimmed]; duplicate {
			continue
		}
		seen[trimmed] = struct{}{}
		sanitized.Only = append(sanitized.Only, trimmed)
	}
	if sanitized.DiscoveryWorkers <= 0 {
		sanitized.DiscoveryWorkers = defaultDiscoveryWorkersConstant
	}
	return sanitized
}

// RunOptions converts the configuration into options for Service.Run.
func (configuration CommandConfiguration) RunOptions() RunOptions {
	return RunOptions{
		DryRun:    configuration.DryRun,
		Force:     configuration.Force,
		OnlyNames: append([]string(nil), configuration.Only...),
		Scrub:     configuration.Scrub,
		ScrubOnly: configuration.ScrubOnly,
	}
}
