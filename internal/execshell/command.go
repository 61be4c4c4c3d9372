package execshell

import (
	"context"
	"fmt"
	"strings"
)

const (
	gitCommandNameStringConstant       = "git"
	githubCLICommandNameStringConstant = "gh"
	failureDetailLineLimitConstant     = 3
	failureDetailSeparatorConstant     = " | "
	commandExitedTemplateConstant      = "%s command exited with code %d"
	commandAbortedTemplateConstant     = "%s command execution failed"
)

// CommandName identifies an executable the mirror tooling shells out to.
type CommandName string

// Supported command names.
const (
	CommandGit    CommandName = CommandName(gitCommandNameStringConstant)
	CommandGitHub CommandName = CommandName(githubCLICommandNameStringConstant)
)

// CommandDetails describes how a command is invoked.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
}

// ShellCommand pairs an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures what a finished command produced.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner executes shell commands.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// CommandFailedError reports a command that ran but exited with a non-zero code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

func (commandError CommandFailedError) Error() string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf(commandExitedTemplateConstant, commandError.Command.Name, commandError.Result.ExitCode))
	if arguments := RedactArguments(commandError.Command.Details.Arguments); len(arguments) > 0 {
		builder.WriteString(" (")
		builder.WriteString(strings.Join(arguments, " "))
		builder.WriteString(")")
	}
	if detail := summarizeOutput(commandError.Result); len(detail) > 0 {
		builder.WriteString(": ")
		builder.WriteString(detail)
	}
	return builder.String()
}

// CommandExecutionError wraps a runner failure that prevented the command from completing.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

func (executionError CommandExecutionError) Error() string {
	return fmt.Sprintf(commandAbortedTemplateConstant, executionError.Command.Name)
}

// Unwrap exposes the runner failure.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// summarizeOutput keeps the first non-blank lines of stderr, or stdout when stderr is empty.
func summarizeOutput(result ExecutionResult) string {
	source := result.StandardError
	if len(strings.TrimSpace(source)) == 0 {
		source = result.StandardOutput
	}
	kept := make([]string, 0, failureDetailLineLimitConstant)
	for _, line := range strings.Split(source, "\n") {
		if len(kept) == failureDetailLineLimitConstant {
			break
		}
		if trimmed := strings.TrimSpace(line); len(trimmed) > 0 {
			kept = append(kept, RedactText(trimmed))
		}
	}
	return strings.Join(kept, failureDetailSeparatorConstant)
}
