package flags

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tyemirov/repomirror/internal/utils"
)

// ErrFlagNotDefined indicates that the requested flag is not present on the command.
var ErrFlagNotDefined = errors.New("flag not defined")

// BoolFlag returns the flag value and whether it was set explicitly.
func BoolFlag(command *cobra.Command, name string) (bool, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return false, false, ErrFlagNotDefined
	}
	value, err := flagSet.GetBool(name)
	if err != nil {
		return false, false, err
	}
	return value, flag.Changed, nil
}

// StringFlag returns the flag value and whether it was set explicitly.
func StringFlag(command *cobra.Command, name string) (string, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return "", false, ErrFlagNotDefined
	}
	value, err := flagSet.GetString(name)
	if err != nil {
		return "", false, err
	}
	return value, flag.Changed, nil
}

// StringArrayFlag returns the values of a repeatable flag and whether it was set explicitly.
func StringArrayFlag(command *cobra.Command, name string) ([]string, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return nil, false, ErrFlagNotDefined
	}
	values, err := flagSet.GetStringArray(name)
	if err != nil {
		return nil, false, err
	}
	return values, flag.Changed, nil
}

func locateFlag(command *cobra.Command, name string) (*pflag.FlagSet, *pflag.Flag) {
	if command == nil {
		return nil, nil
	}

	candidateSets := []*pflag.FlagSet{
		command.Flags(),
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	if root := command.Root(); root != nil {
		candidateSets = append(candidateSets, root.PersistentFlags())
	}

	for _, set := range candidateSets {
		if set == nil {
			continue
		}
		if flag := set.Lookup(name); flag != nil {
			return set, flag
		}
	}

	return nil, nil
}

// CollectExecutionFlags inspects the command's flags to produce execution flag values.
func CollectExecutionFlags(command *cobra.Command) utils.ExecutionFlags {
	executionFlags := utils.ExecutionFlags{}
	if command == nil {
		return executionFlags
	}

	if dryRunValue, dryRunChanged, dryRunError := BoolFlag(command, DryRunFlagName); dryRunError == nil {
		executionFlags.DryRun = dryRunValue
		executionFlags.DryRunSet = dryRunChanged
	}

	if forceValue, forceChanged, forceError := BoolFlag(command, ForceFlagName); forceError == nil {
		executionFlags.Force = forceValue
		executionFlags.ForceSet = forceChanged
	}

	if scrubValue, scrubChanged, scrubError := BoolFlag(command, ScrubFlagName); scrubError == nil {
		executionFlags.Scrub = scrubValue
		executionFlags.ScrubSet = scrubChanged
	}

	if scrubOnlyValue, scrubOnlyChanged, scrubOnlyError := BoolFlag(command, ScrubOnlyFlagName); scrubOnlyError == nil {
		executionFlags.ScrubOnly = scrubOnlyValue
		executionFlags.ScrubOnlySet = scrubOnlyChanged
	}

	if onlyValues, onlyChanged, onlyError := StringArrayFlag(command, OnlyFlagName); onlyError == nil {
		for _, onlyValue := range onlyValues {
			if trimmed := strings.TrimSpace(onlyValue); len(trimmed) > 0 {
				executionFlags.Only = append(executionFlags.Only, trimmed)
			}
		}
		executionFlags.OnlySet = onlyChanged
	}

	return executionFlags
}

// ResolveExecutionFlags returns execution flags from context or flag values, indicating whether any overrides are provided.
func ResolveExecutionFlags(command *cobra.Command) (utils.ExecutionFlags, bool) {
	contextAccessor := utils.NewCommandContextAccessor()
	if command != nil {
		if flags, available := contextAccessor.ExecutionFlags(command.Context()); available {
			return flags, true
		}
	}

	executionFlags := CollectExecutionFlags(command)
	available := executionFlags.DryRunSet || executionFlags.ForceSet || executionFlags.ScrubSet || executionFlags.ScrubOnlySet || executionFlags.OnlySet
	return executionFlags, available
}
