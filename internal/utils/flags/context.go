package flags

import (
	"fmt"
	"strings"
)

const (
	// DryRunFlagName exposes the shared dry-run flag name.
	DryRunFlagName = "dry-run"
	// DryRunFlagUsage describes the shared dry-run flag purpose.
	DryRunFlagUsage = "Report every decision without mutating any host"
	// ForceFlagName exposes the shared force flag name.
	ForceFlagName = "force"
	// ForceFlagUsage describes the shared force flag purpose.
	ForceFlagUsage = "Push every selected repository even when its backup is current"
	// ScrubFlagName exposes the shared scrub flag name.
	ScrubFlagName = "scrub"
	// ScrubFlagUsage describes the shared scrub flag purpose.
	ScrubFlagUsage = "Delete orphaned tagged backups after a clean reconciliation"
	// ScrubOnlyFlagName exposes the shared scrub-only flag name.
	ScrubOnlyFlagName = "scrub-only"
	// ScrubOnlyFlagUsage describes the shared scrub-only flag purpose.
	ScrubOnlyFlagUsage = "Skip reconciliation and only delete orphaned tagged backups"
	// OnlyFlagName exposes the shared name filter flag name.
	OnlyFlagName = "only"
	// OnlyFlagUsage describes the shared name filter flag purpose.
	OnlyFlagUsage = "Restrict reconciliation to these repository names (repeatable)"

	choiceUsageTemplateConstant = "%s (%s; default %s)"
	choiceSeparatorConstant     = "|"
)

// FormatChoiceUsage appends the accepted values and the default to a flag usage string.
func FormatChoiceUsage(defaultValue string, choices []string, usage string) string {
	if len(choices) == 0 {
		return usage
	}
	return fmt.Sprintf(choiceUsageTemplateConstant, usage, strings.Join(choices, choiceSeparatorConstant), defaultValue)
}
