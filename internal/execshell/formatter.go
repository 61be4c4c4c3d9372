package execshell

import (
	"fmt"
	"strings"
)

const (
	githubRepositoryGroupArgumentConstant = "repo"
	githubRepositoryListVerbConstant      = "list"
	githubRepositoryViewVerbConstant      = "view"
	githubRepositoryCreateVerbConstant    = "create"
	githubRepositoryEditVerbConstant      = "edit"
	githubRepositoryDeleteVerbConstant    = "delete"
)

// CommandMessageFormatter renders human-readable log lines for shell commands.
type CommandMessageFormatter struct{}

type githubRepositoryPhrases struct {
	success string
	failure string
	abort   string
}

var githubRepositoryPhrasesByVerb = map[string]githubRepositoryPhrases{
	githubRepositoryListVerbConstant:   {success: "Listed repositories of", failure: "Failed to list repositories of", abort: "Unable to list repositories of"},
	githubRepositoryViewVerbConstant:   {success: "Retrieved repository details for", failure: "Failed to retrieve repository details for", abort: "Unable to retrieve repository details for"},
	githubRepositoryCreateVerbConstant: {success: "Created repository", failure: "Failed to create repository", abort: "Unable to create repository"},
	githubRepositoryEditVerbConstant:   {success: "Updated repository", failure: "Failed to update repository", abort: "Unable to update repository"},
	githubRepositoryDeleteVerbConstant: {success: "Deleted repository", failure: "Failed to delete repository", abort: "Unable to delete repository"},
}

// BuildStartedMessage describes a command that is about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return fmt.Sprintf("Running %s", formatter.describe(command))
}

// BuildSuccessMessage describes a command that exited cleanly.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	if phrases, subject, ok := githubRepositoryCommand(command); ok {
		return fmt.Sprintf("%s %s", phrases.success, subject)
	}
	return fmt.Sprintf("Completed %s", formatter.describe(command))
}

// BuildFailureMessage describes a command that exited with a non-zero code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	detail := summarizeOutput(result)
	if phrases, subject, ok := githubRepositoryCommand(command); ok {
		if len(detail) == 0 {
			return fmt.Sprintf("%s %s (exit code %d)", phrases.failure, subject, result.ExitCode)
		}
		return fmt.Sprintf("%s %s (exit code %d: %s)", phrases.failure, subject, result.ExitCode, detail)
	}
	if len(detail) == 0 {
		return fmt.Sprintf("%s failed with exit code %d", formatter.describe(command), result.ExitCode)
	}
	return fmt.Sprintf("%s failed with exit code %d: %s", formatter.describe(command), result.ExitCode, detail)
}

// BuildExecutionFailureMessage describes a command the runner could not start or finish.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, cause error) string {
	if phrases, subject, ok := githubRepositoryCommand(command); ok {
		return fmt.Sprintf("%s %s: %v", phrases.abort, subject, cause)
	}
	return fmt.Sprintf("%s failed: %v", formatter.describe(command), cause)
}

func (formatter CommandMessageFormatter) shouldLogStartMessage(command ShellCommand) bool {
	_, _, isRepositoryCommand := githubRepositoryCommand(command)
	return !isRepositoryCommand
}

func (formatter CommandMessageFormatter) describe(command ShellCommand) string {
	parts := append([]string{string(command.Name)}, RedactArguments(command.Details.Arguments)...)
	description := strings.Join(parts, " ")
	if len(strings.TrimSpace(command.Details.WorkingDirectory)) > 0 {
		description = fmt.Sprintf("%s (in %s)", description, command.Details.WorkingDirectory)
	}
	return description
}

func githubRepositoryCommand(command ShellCommand) (githubRepositoryPhrases, string, bool) {
	if command.Name != CommandGitHub {
		return githubRepositoryPhrases{}, "", false
	}
	arguments := command.Details.Arguments
	if len(arguments) < 3 || arguments[0] != githubRepositoryGroupArgumentConstant {
		return githubRepositoryPhrases{}, "", false
	}
	phrases, known := githubRepositoryPhrasesByVerb[arguments[1]]
	if !known {
		return githubRepositoryPhrases{}, "", false
	}
	return phrases, arguments[2], true
}
