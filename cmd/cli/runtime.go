package cli

import (
	"errors"
	"fmt"

	"github.com/tyemirov/repomirror/internal/backup"
	"github.com/tyemirov/repomirror/internal/execshell"
	"github.com/tyemirov/repomirror/internal/gitrepo"
	"github.com/tyemirov/repomirror/internal/hosts"
)

const (
	noHostsConfiguredMessageConstant   = "no hosts configured; add a hosts section to the configuration (see --init)"
	executorCreationTemplateConstant   = "unable to create command executor: %w"
	gitManagerCreationTemplateConstant = "unable to create git repository manager: %w"
	hostsBuildTemplateConstant         = "invalid host configuration: %w"
	registryBuildTemplateConstant      = "invalid host registry: %w"
)

type hostRuntime struct {
	registry          *backup.Registry
	repositoryManager *gitrepo.RepositoryManager
}

// buildRuntime turns the loaded host configuration into a registry backed by live providers.
func (application *Application) buildRuntime() (hostRuntime, error) {
	if len(application.configuration.Hosts) == 0 {
		return hostRuntime{}, errors.New(noHostsConfiguredMessageConstant)
	}

	executor, executorError := execshell.NewShellExecutor(application.logger, application.commandRunner, application.humanReadableLoggingEnabled())
	if executorError != nil {
		return hostRuntime{}, fmt.Errorf(executorCreationTemplateConstant, executorError)
	}

	repositoryManager, managerError := gitrepo.NewRepositoryManager(executor, gitrepo.WithSSHCommand(application.configuration.Git.SSHCommand))
	if managerError != nil {
		return hostRuntime{}, fmt.Errorf(gitManagerCreationTemplateConstant, managerError)
	}

	builtHosts, buildError := hosts.Build(application.configuration.Hosts, hosts.Dependencies{
		Logger:            application.logger,
		GitHubExecutor:    executor,
		HTTPClient:        application.httpClient,
		BareInitializer:   repositoryManager,
		FileSystem:        application.fileSystem,
		LookupEnvironment: application.lookupEnvironment,
	})
	if buildError != nil {
		return hostRuntime{}, fmt.Errorf(hostsBuildTemplateConstant, buildError)
	}

	registry, registryError := backup.NewRegistry(builtHosts, application.configuration.Keep)
	if registryError != nil {
		return hostRuntime{}, fmt.Errorf(registryBuildTemplateConstant, registryError)
	}

	return hostRuntime{registry: registry, repositoryManager: repositoryManager}, nil
}
