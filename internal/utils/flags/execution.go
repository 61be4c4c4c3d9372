// Package flags provides helpers for binding standardized execution flags to Cobra commands.
package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ExecutionDefaults describes default flag values shared across commands.
type ExecutionDefaults struct {
	DryRun    bool
	Force     bool
	Scrub     bool
	ScrubOnly bool
}

// ExecutionFlagDefinition captures a single flag's configuration.
type ExecutionFlagDefinition struct {
	Name      string
	Usage     string
	Shorthand string
	Enabled   bool
}

// ExecutionFlagDefinitions groups execution flag definitions.
type ExecutionFlagDefinitions struct {
	DryRun    ExecutionFlagDefinition
	Force     ExecutionFlagDefinition
	Scrub     ExecutionFlagDefinition
	ScrubOnly ExecutionFlagDefinition
	Only      ExecutionFlagDefinition
}

// DefaultExecutionFlagDefinitions enables every sync flag with its standard name and usage.
func DefaultExecutionFlagDefinitions() ExecutionFlagDefinitions {
	return ExecutionFlagDefinitions{
		DryRun:    ExecutionFlagDefinition{Name: DryRunFlagName, Usage: DryRunFlagUsage, Shorthand: "n", Enabled: true},
		Force:     ExecutionFlagDefinition{Name: ForceFlagName, Usage: ForceFlagUsage, Shorthand: "f", Enabled: true},
		Scrub:     ExecutionFlagDefinition{Name: ScrubFlagName, Usage: ScrubFlagUsage, Enabled: true},
		ScrubOnly: ExecutionFlagDefinition{Name: ScrubOnlyFlagName, Usage: ScrubOnlyFlagUsage, Enabled: true},
		Only:      ExecutionFlagDefinition{Name: OnlyFlagName, Usage: OnlyFlagUsage, Enabled: true},
	}
}

// BindExecutionFlags attaches standardized execution flags to the provided command's local flag set.
func BindExecutionFlags(command *cobra.Command, defaults ExecutionDefaults, definitions ExecutionFlagDefinitions) {
	if command == nil {
		return
	}

	flagSet := command.Flags()

	bindToggleFlag(flagSet, definitions.DryRun, defaults.DryRun)
	bindToggleFlag(flagSet, definitions.Force, defaults.Force)
	bindToggleFlag(flagSet, definitions.Scrub, defaults.Scrub)
	bindToggleFlag(flagSet, definitions.ScrubOnly, defaults.ScrubOnly)
	if definitions.Only.Enabled && len(definitions.Only.Name) > 0 && flagSet.Lookup(definitions.Only.Name) == nil {
		flagSet.StringArrayP(definitions.Only.Name, definitions.Only.Shorthand, nil, definitions.Only.Usage)
	}
}

func bindToggleFlag(flagSet *pflag.FlagSet, definition ExecutionFlagDefinition, defaultValue bool) {
	if flagSet == nil {
		return
	}
	if !definition.Enabled {
		return
	}
	if len(definition.Name) == 0 {
		return
	}
	if flagSet.Lookup(definition.Name) != nil {
		return
	}

	flagSet.BoolP(definition.Name, definition.Shorthand, defaultValue, definition.Usage)
}
