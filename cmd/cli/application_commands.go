package cli

import (
	"github.com/spf13/cobra"

	flagutils "github.com/tyemirov/repomirror/internal/utils/flags"
)

const (
	syncCommandUseNameConstant          = "sync"
	syncCommandAliasConstant            = "s"
	syncCommandShortDescriptionConstant = "Mirror every source repository to the backup hosts"
	syncCommandLongDescriptionConstant  = "sync lists every configured host, picks the authoritative source copy of each repository, creates missing backups, refreshes stale backups and descriptions, and optionally scrubs backups whose source disappeared. Exit status is 0 when clean, 1 when some reconciliation actions failed and 2 on fatal discovery or scrub failures."
	listCommandUseNameConstant          = "list"
	listCommandUsageTemplateConstant    = listCommandUseNameConstant + " <host>"
	listCommandAliasConstant            = "ls"
	listCommandShortDescriptionConstant = "List the repositories of one configured host"
	listCommandLongDescriptionConstant  = "list prints the repositories a configured host reports, with their normalized names, descriptions and URLs."
	listOutputFlagNameConstant          = "output"
	listOutputFlagShorthandConstant     = "o"
	listOutputFlagUsageConstant         = "Output format"
)

func (application *Application) registerCommands(cobraCommand *cobra.Command) {
	versionCommand := &cobra.Command{
		Use:           versionCommandUseNameConstant,
		Short:         versionCommandShortDescriptionConstant,
		Long:          versionCommandLongDescriptionConstant,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			application.printVersion(command)
			return nil
		},
	}
	cobraCommand.AddCommand(versionCommand)

	syncCommand := &cobra.Command{
		Args: cobra.NoArgs,
		RunE: application.runSyncCommand,
	}
	configureCommandMetadata(syncCommand, syncCommandUseNameConstant, syncCommandShortDescriptionConstant, syncCommandLongDescriptionConstant, syncCommandAliasConstant)
	flagutils.BindExecutionFlags(syncCommand, flagutils.ExecutionDefaults{}, flagutils.DefaultExecutionFlagDefinitions())
	cobraCommand.AddCommand(syncCommand)

	listCommand := &cobra.Command{
		Args: cobra.ExactArgs(1),
		RunE: application.runListCommand,
	}
	configureCommandMetadata(listCommand, listCommandUsageTemplateConstant, listCommandShortDescriptionConstant, listCommandLongDescriptionConstant, listCommandAliasConstant)
	listCommand.Flags().StringP(
		listOutputFlagNameConstant,
		listOutputFlagShorthandConstant,
		string(listOutputTable),
		flagutils.FormatChoiceUsage(string(listOutputTable), supportedListOutputNames(), listOutputFlagUsageConstant),
	)
	cobraCommand.AddCommand(listCommand)
}

func configureCommandMetadata(command *cobra.Command, use string, shortDescription string, longDescription string, aliases ...string) {
	if command == nil {
		return
	}
	command.Use = use
	command.Short = shortDescription
	command.Long = longDescription
	command.SilenceUsage = true
	command.SilenceErrors = true
	command.Aliases = appendUnique(command.Aliases, aliases...)
}

func appendUnique(values []string, candidates ...string) []string {
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		seen[value] = struct{}{}
	}
	for _, candidate := range candidates {
		if len(candidate) == 0 {
			continue
		}
		if _, exists := seen[candidate]; exists {
			continue
		}
		seen[candidate] = struct{}{}
		values = append(values, candidate)
	}
	return values
}
