package cli

import (
	_ "embed"
	"strings"

	"github.com/tyemirov/repomirror/internal/backup"
	"github.com/tyemirov/repomirror/internal/hosts"
	"github.com/tyemirov/repomirror/internal/metrics"
	"github.com/tyemirov/repomirror/internal/utils"
)

//go:embed default_config.yaml
var embeddedDefaultConfiguration []byte

// EmbeddedDefaultConfiguration returns the configuration compiled into the binary and its type.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return append([]byte(nil), embeddedDefaultConfiguration...), configurationTypeConstant
}

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common  ApplicationCommonConfiguration `mapstructure:"common"`
	Hosts   []hosts.Configuration          `mapstructure:"hosts"`
	Keep    []string                       `mapstructure:"keep"`
	Sync    backup.CommandConfiguration    `mapstructure:"sync"`
	Git     GitConfiguration               `mapstructure:"git"`
	Metrics metrics.Configuration          `mapstructure:"metrics"`
}

// ApplicationCommonConfiguration stores logging defaults shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// GitConfiguration controls how git talks to remotes and where mirror clones are staged.
type GitConfiguration struct {
	WorkDirectory string `mapstructure:"work_directory"`
	SSHCommand    string `mapstructure:"ssh_command"`
}

func defaultConfigurationValues() map[string]any {
	syncDefaults := backup.DefaultCommandConfiguration()
	return map[string]any{
		commonLogLevelConfigKeyConstant:        string(utils.LogLevelError),
		commonLogFormatConfigKeyConstant:       string(utils.LogFormatAuto),
		syncDryRunConfigKeyConstant:            syncDefaults.DryRun,
		syncForceConfigKeyConstant:             syncDefaults.Force,
		syncScrubConfigKeyConstant:             syncDefaults.Scrub,
		syncScrubOnlyConfigKeyConstant:         syncDefaults.ScrubOnly,
		syncDiscoveryWorkersConfigKeyConstant:  syncDefaults.DiscoveryWorkers,
		gitWorkDirectoryConfigKeyConstant:      "",
		gitSSHCommandConfigKeyConstant:         "",
		metricsTextfileConfigKeyConstant:       "",
		metricsPushgatewayURLConfigKeyConstant: "",
		metricsJobConfigKeyConstant:            applicationNameConstant,
	}
}

// syncConfiguration merges explicit command-line flags over the configured sync settings.
func (application *Application) syncConfiguration(executionFlags utils.ExecutionFlags) backup.CommandConfiguration {
	configuration := application.configuration.Sync
	if executionFlags.DryRunSet {
		configuration.DryRun = executionFlags.DryRun
	}
	if executionFlags.ForceSet {
		configuration.Force = executionFlags.Force
	}
	if executionFlags.ScrubSet {
		configuration.Scrub = executionFlags.Scrub
	}
	if executionFlags.ScrubOnlySet {
		configuration.ScrubOnly = executionFlags.ScrubOnly
	}
	if executionFlags.OnlySet {
		configuration.Only = append([]string(nil), executionFlags.Only...)
	}
	return configuration.Sanitize()
}

func (application *Application) humanReadableLoggingEnabled() bool {
	resolvedFormat := utils.LogFormat(strings.TrimSpace(application.configuration.Common.LogFormat))
	if resolver, ok := application.loggerFactory.(logFormatResolver); ok {
		resolvedFormat = resolver.ResolveFormat(resolvedFormat)
	}
	return resolvedFormat == utils.LogFormatConsole
}
