package hosts_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/tyemirov/repomirror/internal/backup"
	"github.com/tyemirov/repomirror/internal/execshell"
	"github.com/tyemirov/repomirror/internal/hosts"
)

type recordingGitHubExecutor struct {
	details []execshell.CommandDetails
}

func (executor *recordingGitHubExecutor) ExecuteGitHubCLI(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.details = append(executor.details, details)
	return execshell.ExecutionResult{StandardOutput: "[]"}, nil
}

type unusedHTTPClient struct{}

func (unusedHTTPClient) Do(*http.Request) (*http.Response, error) {
	return nil, http.ErrNotSupported
}

func environmentOf(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, present := values[key]
		return value, present
	}
}

func TestBuildCreatesOneHostPerConfiguration(testInstance *testing.T) {
	executor := &recordingGitHubExecutor{}
	dependencies := hosts.Dependencies{
		GitHubExecutor:    executor,
		HTTPClient:        unusedHTTPClient{},
		BareInitializer:   &memoryBareInitializer{},
		FileSystem:        afero.NewMemMapFs(),
		LookupEnvironment: environmentOf(map[string]string{"GITHUB_MIRROR_TOKEN": "ghp_secret"}),
	}
	configurations := []hosts.Configuration{
		{Name: " github ", Role: "Source", Priority: 2, Provider: "GitHub", Owner: "acme", TokenEnv: "GITHUB_MIRROR_TOKEN", BaseURL: "https://ghe.example.com"},
		{Name: "vault", Role: "backup", Provider: "gitea", Owner: "acme", OwnerType: "org", BaseURL: "https://git.example.com"},
		{Name: "attic", Role: "backup", Provider: "local", Root: "/srv/mirrors"},
	}

	builtHosts, buildError := hosts.Build(configurations, dependencies)
	require.NoError(testInstance, buildError)
	require.Len(testInstance, builtHosts, 3)

	require.Equal(testInstance, "github", builtHosts[0].Name)
	require.Equal(testInstance, backup.RoleSource, builtHosts[0].Role)
	require.Equal(testInstance, 2, builtHosts[0].Priority)
	require.IsType(testInstance, &hosts.GitHubProvider{}, builtHosts[0].Provider)
	require.IsType(testInstance, &hosts.GiteaProvider{}, builtHosts[1].Provider)
	require.IsType(testInstance, &hosts.LocalProvider{}, builtHosts[2].Provider)

	_, listError := builtHosts[0].Provider.ListRepositories(context.Background())
	require.NoError(testInstance, listError)
	require.Equal(testInstance, map[string]string{"GH_TOKEN": "ghp_secret", "GH_HOST": "ghe.example.com"}, executor.details[0].EnvironmentVariables)

	registry, registryError := backup.NewRegistry(builtHosts, nil)
	require.NoError(testInstance, registryError)
	require.Len(testInstance, registry.BackupHosts(), 2)
}

func TestBuildRejectsInvalidConfigurations(testInstance *testing.T) {
	dependencies := hosts.Dependencies{
		GitHubExecutor:    &recordingGitHubExecutor{},
		BareInitializer:   &memoryBareInitializer{},
		LookupEnvironment: environmentOf(map[string]string{"EMPTY": ""}),
	}
	testCases := []struct {
		name          string
		configuration hosts.Configuration
		expectedError string
	}{
		{name: "unknown_provider", configuration: hosts.Configuration{Name: "x", Role: "source", Provider: "bitbucket"}, expectedError: "unknown provider"},
		{name: "github_without_owner", configuration: hosts.Configuration{Name: "x", Role: "source", Provider: "github"}, expectedError: "owner is required"},
		{name: "gitea_without_base_url", configuration: hosts.Configuration{Name: "x", Role: "backup", Provider: "gitea", Owner: "acme"}, expectedError: "base_url is required"},
		{name: "local_without_root", configuration: hosts.Configuration{Name: "x", Role: "backup", Provider: "local"}, expectedError: "root is required"},
		{name: "unknown_push_protocol", configuration: hosts.Configuration{Name: "x", Role: "backup", Provider: "local", Root: "/srv", PushProtocol: "ftp"}, expectedError: "unknown push_protocol"},
		{name: "missing_token", configuration: hosts.Configuration{Name: "x", Role: "source", Provider: "github", Owner: "acme", TokenEnv: "ABSENT"}, expectedError: "ABSENT is not set"},
		{name: "empty_token", configuration: hosts.Configuration{Name: "x", Role: "backup", Provider: "gitea", Owner: "acme", BaseURL: "https://git", TokenEnv: "EMPTY"}, expectedError: "EMPTY is not set"},
		{name: "bad_visibility", configuration: hosts.Configuration{Name: "x", Role: "backup", Provider: "github", Owner: "acme", Visibility: "hidden"}, expectedError: "unsupported visibility"},
		{name: "bad_owner_type", configuration: hosts.Configuration{Name: "x", Role: "backup", Provider: "gitea", Owner: "acme", BaseURL: "https://git", OwnerType: "team"}, expectedError: "unsupported owner type"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, buildError := hosts.Build([]hosts.Configuration{testCase.configuration}, dependencies)
			require.Error(testInstance, buildError)
			require.Contains(testInstance, buildError.Error(), testCase.expectedError)
		})
	}
}

func TestBuildRequiresProviderDependencies(testInstance *testing.T) {
	_, githubError := hosts.Build([]hosts.Configuration{{Name: "github", Role: "source", Provider: "github", Owner: "acme"}}, hosts.Dependencies{})
	require.ErrorContains(testInstance, githubError, "GitHub CLI executor")

	_, localError := hosts.Build([]hosts.Configuration{{Name: "attic", Role: "backup", Provider: "local", Root: "/srv"}}, hosts.Dependencies{})
	require.ErrorContains(testInstance, localError, "bare repository initializer")
}
