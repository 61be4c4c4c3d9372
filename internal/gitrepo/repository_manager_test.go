package gitrepo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/repomirror/internal/execshell"
	"github.com/tyemirov/repomirror/internal/gitrepo"
)

const (
	testRepositoryURLConstant  = "git@github.com:acme/widgets.git"
	testRepositoryPathConstant = "/tmp/mirror/widgets.git"
	testSSHCommandConstant     = "ssh -i /keys/mirror"
	testLsRemoteOutputConstant = "c1a2b3\trefs/heads/main\nd4e5f6\trefs/heads/release/v1\n"
)

type stubGitExecutor struct {
	executeFunc     func(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error)
	recordedDetails []execshell.CommandDetails
}

func (executor *stubGitExecutor) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recordedDetails = append(executor.recordedDetails, details)
	if executor.executeFunc != nil {
		return executor.executeFunc(executionContext, details)
	}
	return execshell.ExecutionResult{}, nil
}

func TestNewRepositoryManagerValidation(testInstance *testing.T) {
	manager, creationError := gitrepo.NewRepositoryManager(nil)
	require.ErrorIs(testInstance, creationError, gitrepo.ErrGitExecutorNotConfigured)
	require.Nil(testInstance, manager)
}

func TestListBranchReferences(testInstance *testing.T) {
	testCases := []struct {
		name               string
		repositoryURL      string
		output             string
		executionError     error
		expectedReferences gitrepo.BranchReferences
		expectedErrorType  any
	}{
		{
			name:          "success",
			repositoryURL: testRepositoryURLConstant,
			output:        testLsRemoteOutputConstant,
			expectedReferences: gitrepo.BranchReferences{
				"main":       "c1a2b3",
				"release/v1": "d4e5f6",
			},
		},
		{
			name:               "empty_repository",
			repositoryURL:      testRepositoryURLConstant,
			expectedReferences: gitrepo.BranchReferences{},
		},
		{
			name:              "validation",
			repositoryURL:     "  ",
			expectedErrorType: gitrepo.InvalidRepositoryInputError{},
		},
		{
			name:              "execution_error",
			repositoryURL:     testRepositoryURLConstant,
			executionError:    errors.New("unreachable"),
			expectedErrorType: gitrepo.RepositoryOperationError{},
		},
		{
			name:              "malformed_output",
			repositoryURL:     testRepositoryURLConstant,
			output:            "c1a2b3\trefs/tags/v1\n",
			expectedErrorType: gitrepo.RepositoryOperationError{},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &stubGitExecutor{
				executeFunc: func(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error) {
					return execshell.ExecutionResult{StandardOutput: testCase.output}, testCase.executionError
				},
			}
			manager, creationError := gitrepo.NewRepositoryManager(executor)
			require.NoError(testInstance, creationError)

			references, listError := manager.ListBranchReferences(context.Background(), testCase.repositoryURL)
			if testCase.expectedErrorType != nil {
				require.Error(testInstance, listError)
				require.IsType(testInstance, testCase.expectedErrorType, listError)
				return
			}
			require.NoError(testInstance, listError)
			require.Equal(testInstance, testCase.expectedReferences, references)
			require.Len(testInstance, executor.recordedDetails, 1)
			require.Equal(testInstance, []string{"ls-remote", "--heads", testRepositoryURLConstant}, executor.recordedDetails[0].Arguments)
		})
	}
}

func TestMirrorCommandsUseExpectedArguments(testInstance *testing.T) {
	executor := &stubGitExecutor{}
	manager, creationError := gitrepo.NewRepositoryManager(executor, gitrepo.WithSSHCommand(testSSHCommandConstant))
	require.NoError(testInstance, creationError)

	require.NoError(testInstance, manager.CloneMirror(context.Background(), testRepositoryURLConstant, testRepositoryPathConstant))
	require.NoError(testInstance, manager.PushMirror(context.Background(), testRepositoryPathConstant, "ssh://backup/widgets.git"))
	require.NoError(testInstance, manager.InitBareRepository(context.Background(), testRepositoryPathConstant))

	require.Len(testInstance, executor.recordedDetails, 3)
	require.Equal(testInstance, []string{"clone", "--mirror", "--quiet", testRepositoryURLConstant, testRepositoryPathConstant}, executor.recordedDetails[0].Arguments)
	require.Equal(testInstance, testSSHCommandConstant, executor.recordedDetails[0].EnvironmentVariables["GIT_SSH_COMMAND"])
	require.Equal(testInstance, "0", executor.recordedDetails[0].EnvironmentVariables["GIT_TERMINAL_PROMPT"])

	require.Equal(testInstance, []string{"push", "--prune", "--quiet", "ssh://backup/widgets.git", "+refs/heads/*:refs/heads/*", "+refs/tags/*:refs/tags/*"}, executor.recordedDetails[1].Arguments)
	require.Equal(testInstance, testRepositoryPathConstant, executor.recordedDetails[1].WorkingDirectory)

	require.Equal(testInstance, []string{"init", "--bare", "--quiet", testRepositoryPathConstant}, executor.recordedDetails[2].Arguments)
}

func TestMirrorCommandsWrapFailures(testInstance *testing.T) {
	failure := errors.New("permission denied")
	executor := &stubGitExecutor{
		executeFunc: func(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error) {
			return execshell.ExecutionResult{}, failure
		},
	}
	manager, creationError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, creationError)

	pushError := manager.PushMirror(context.Background(), testRepositoryPathConstant, testRepositoryURLConstant)
	require.ErrorIs(testInstance, pushError, failure)

	var operationError gitrepo.RepositoryOperationError
	require.ErrorAs(testInstance, pushError, &operationError)
	require.Equal(testInstance, gitrepo.RepositoryOperationName("PushMirror"), operationError.Operation)

	require.IsType(testInstance, gitrepo.InvalidRepositoryInputError{}, manager.CloneMirror(context.Background(), "", testRepositoryPathConstant))
}
