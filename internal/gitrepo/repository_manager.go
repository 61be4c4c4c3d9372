package gitrepo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tyemirov/repomirror/internal/execshell"
)

const (
	gitLsRemoteSubcommandConstant             = "ls-remote"
	gitHeadsFlagConstant                      = "--heads"
	gitCloneSubcommandConstant                = "clone"
	gitPushSubcommandConstant                 = "push"
	gitInitSubcommandConstant                 = "init"
	gitMirrorFlagConstant                     = "--mirror"
	gitBareFlagConstant                       = "--bare"
	gitQuietFlagConstant                      = "--quiet"
	gitPruneFlagConstant                      = "--prune"
	branchPushRefspecConstant                 = "+refs/heads/*:refs/heads/*"
	tagPushRefspecConstant                    = "+refs/tags/*:refs/tags/*"
	gitSSHCommandEnvironmentKeyConstant       = "GIT_SSH_COMMAND"
	gitTerminalPromptEnvironmentKeyConstant   = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptDisabledValueConstant    = "0"
	branchReferencePrefixConstant             = "refs/heads/"
	repositoryURLFieldNameConstant            = "repository_url"
	repositoryPathFieldNameConstant           = "repository_path"
	requiredValueMessageConstant              = "value required"
	executorNotConfiguredMessageConstant      = "git executor not configured"
	repositoryOperationErrorTemplateConstant  = "%s operation failed"
	repositoryOperationErrorWithCauseConstant = "%s operation failed: %s"
	invalidRepositoryInputTemplateConstant    = "%s: %s"
	malformedReferenceLineTemplateConstant    = "malformed ls-remote line %q"
	listBranchesOperationNameConstant         = RepositoryOperationName("ListBranchReferences")
	cloneMirrorOperationNameConstant          = RepositoryOperationName("CloneMirror")
	pushMirrorOperationNameConstant           = RepositoryOperationName("PushMirror")
	initBareOperationNameConstant             = RepositoryOperationName("InitBareRepository")
)

// GitCommandExecutor exposes the subset of execshell functionality required by RepositoryManager.
type GitCommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// BranchReferences maps branch names to the commit each one points at.
type BranchReferences map[string]string

// RepositoryManager coordinates Git operations through execshell.
type RepositoryManager struct {
	executor   GitCommandExecutor
	sshCommand string
}

// ManagerOption customizes a RepositoryManager.
type ManagerOption func(*RepositoryManager)

// WithSSHCommand sets GIT_SSH_COMMAND for every git invocation that talks to a remote.
func WithSSHCommand(sshCommand string) ManagerOption {
	return func(manager *RepositoryManager) {
		manager.sshCommand = strings.TrimSpace(sshCommand)
	}
}

var (
	// ErrGitExecutorNotConfigured indicates the RepositoryManager was constructed without a git executor.
	ErrGitExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
)

// InvalidRepositoryInputError indicates validation failures for repository operations.
type InvalidRepositoryInputError struct {
	FieldName string
	Message   string
}

// Error describes the validation failure.
func (inputError InvalidRepositoryInputError) Error() string {
	return fmt.Sprintf(invalidRepositoryInputTemplateConstant, inputError.FieldName, inputError.Message)
}

// RepositoryOperationName captures descriptive names for repository operations.
type RepositoryOperationName string

// RepositoryOperationError wraps execution failures for git operations.
type RepositoryOperationError struct {
	Operation RepositoryOperationName
	Cause     error
}

// Error describes the repository operation failure.
func (operationError RepositoryOperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(repositoryOperationErrorTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(repositoryOperationErrorWithCauseConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying error.
func (operationError RepositoryOperationError) Unwrap() error {
	return operationError.Cause
}

// NewRepositoryManager constructs a RepositoryManager for the provided executor.
func NewRepositoryManager(executor GitCommandExecutor, options ...ManagerOption) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	manager := &RepositoryManager{executor: executor}
	for _, option := range options {
		option(manager)
	}
	return manager, nil
}

// ListBranchReferences returns the branch heads advertised by the remote repository.
func (manager *RepositoryManager) ListBranchReferences(executionContext context.Context, repositoryURL string) (BranchReferences, error) {
	trimmedURL := strings.TrimSpace(repositoryURL)
	if len(trimmedURL) == 0 {
		return nil, InvalidRepositoryInputError{FieldName: repositoryURLFieldNameConstant, Message: requiredValueMessageConstant}
	}

	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{gitLsRemoteSubcommandConstant, gitHeadsFlagConstant, trimmedURL},
		EnvironmentVariables: manager.remoteEnvironment(),
	})
	if executionError != nil {
		return nil, RepositoryOperationError{Operation: listBranchesOperationNameConstant, Cause: executionError}
	}

	references, parseError := ParseBranchReferences(executionResult.StandardOutput)
	if parseError != nil {
		return nil, RepositoryOperationError{Operation: listBranchesOperationNameConstant, Cause: parseError}
	}
	return references, nil
}

// CloneMirror clones every ref of the remote repository into a bare mirror at destinationPath.
func (manager *RepositoryManager) CloneMirror(executionContext context.Context, repositoryURL string, destinationPath string) error {
	trimmedURL := strings.TrimSpace(repositoryURL)
	if len(trimmedURL) == 0 {
		return InvalidRepositoryInputError{FieldName: repositoryURLFieldNameConstant, Message: requiredValueMessageConstant}
	}
	trimmedPath := strings.TrimSpace(destinationPath)
	if len(trimmedPath) == 0 {
		return InvalidRepositoryInputError{FieldName: repositoryPathFieldNameConstant, Message: requiredValueMessageConstant}
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{gitCloneSubcommandConstant, gitMirrorFlagConstant, gitQuietFlagConstant, trimmedURL, trimmedPath},
		EnvironmentVariables: manager.remoteEnvironment(),
	})
	if executionError != nil {
		return RepositoryOperationError{Operation: cloneMirrorOperationNameConstant, Cause: executionError}
	}
	return nil
}

// PushMirror force-pushes the branches and tags of the local mirror at repositoryPath to the remote
// repository and prunes remote branches and tags the mirror lacks. Other namespaces such as
// refs/pull/* are left alone because hosting services reject pushes into them.
func (manager *RepositoryManager) PushMirror(executionContext context.Context, repositoryPath string, repositoryURL string) error {
	trimmedPath := strings.TrimSpace(repositoryPath)
	if len(trimmedPath) == 0 {
		return InvalidRepositoryInputError{FieldName: repositoryPathFieldNameConstant, Message: requiredValueMessageConstant}
	}
	trimmedURL := strings.TrimSpace(repositoryURL)
	if len(trimmedURL) == 0 {
		return InvalidRepositoryInputError{FieldName: repositoryURLFieldNameConstant, Message: requiredValueMessageConstant}
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{gitPushSubcommandConstant, gitPruneFlagConstant, gitQuietFlagConstant, trimmedURL, branchPushRefspecConstant, tagPushRefspecConstant},
		WorkingDirectory:     trimmedPath,
		EnvironmentVariables: manager.remoteEnvironment(),
	})
	if executionError != nil {
		return RepositoryOperationError{Operation: pushMirrorOperationNameConstant, Cause: executionError}
	}
	return nil
}

// InitBareRepository creates an empty bare repository at repositoryPath.
func (manager *RepositoryManager) InitBareRepository(executionContext context.Context, repositoryPath string) error {
	trimmedPath := strings.TrimSpace(repositoryPath)
	if len(trimmedPath) == 0 {
		return InvalidRepositoryInputError{FieldName: repositoryPathFieldNameConstant, Message: requiredValueMessageConstant}
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{gitInitSubcommandConstant, gitBareFlagConstant, gitQuietFlagConstant, trimmedPath},
	})
	if executionError != nil {
		return RepositoryOperationError{Operation: initBareOperationNameConstant, Cause: executionError}
	}
	return nil
}

// ParseBranchReferences decodes `git ls-remote --heads` output.
func ParseBranchReferences(output string) (BranchReferences, error) {
	references := BranchReferences{}
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 || !strings.HasPrefix(fields[1], branchReferencePrefixConstant) {
			return nil, fmt.Errorf(malformedReferenceLineTemplateConstant, line)
		}
		references[strings.TrimPrefix(fields[1], branchReferencePrefixConstant)] = fields[0]
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, scanError
	}
	return references, nil
}

func (manager *RepositoryManager) remoteEnvironment() map[string]string {
	environment := map[string]string{gitTerminalPromptEnvironmentKeyConstant: gitTerminalPromptDisabledValueConstant}
	if len(manager.sshCommand) > 0 {
		environment[gitSSHCommandEnvironmentKeyConstant] = manager.sshCommand
	}
	return environment
}
