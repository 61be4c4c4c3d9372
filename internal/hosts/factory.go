package hosts

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/tyemirov/repomirror/internal/backup"
	"github.com/tyemirov/repomirror/internal/gitea"
	"github.com/tyemirov/repomirror/internal/githubcli"
)

const (
	githubTokenEnvironmentKeyConstant = "GH_TOKEN"
	githubHostEnvironmentKeyConstant  = "GH_HOST"
	defaultGiteaOwnerTypeConstant     = gitea.UserOwnerType
	publicVisibilityConstant          = "public"
	tokenMissingTemplateConstant      = "host %q: environment variable %s is not set"
	invalidVisibilityTemplateConstant = "host %q: unsupported visibility %q"
	invalidBaseURLTemplateConstant    = "host %q: invalid base_url %q: %w"
	hostConstructionTemplateConstant  = "host %q: %w"
	missingDependencyTemplateConstant = "host %q: %s provider requires %s"
	githubExecutorDependencyConstant  = "a GitHub CLI executor"
	bareInitializerDependencyConstant = "a bare repository initializer"
)

// Dependencies supplies the collaborators shared by every provider.
type Dependencies struct {
	Logger            *zap.Logger
	GitHubExecutor    githubcli.GitHubCommandExecutor
	HTTPClient        gitea.HTTPClient
	BareInitializer   BareRepositoryInitializer
	FileSystem        afero.Fs
	LookupEnvironment func(key string) (string, bool)
}

// Build turns host configurations into registry hosts, keeping declaration order.
func Build(configurations []Configuration, dependencies Dependencies) ([]backup.Host, error) {
	if dependencies.LookupEnvironment == nil {
		dependencies.LookupEnvironment = os.LookupEnv
	}
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}

	hosts := make([]backup.Host, 0, len(configurations))
	for _, rawConfiguration := range configurations {
		configuration := rawConfiguration.Sanitize()
		if validationError := configuration.Validate(); validationError != nil {
			return nil, validationError
		}
		provider, providerError := buildProvider(configuration, dependencies)
		if providerError != nil {
			return nil, providerError
		}
		hosts = append(hosts, backup.Host{
			Name:     configuration.Name,
			Role:     backup.Role(configuration.Role),
			Priority: configuration.Priority,
			Provider: provider,
		})
	}
	return hosts, nil
}

func buildProvider(configuration Configuration, dependencies Dependencies) (backup.HostProvider, error) {
	switch ProviderName(configuration.Provider) {
	case ProviderGitHub:
		return buildGitHubProvider(configuration, dependencies)
	case ProviderGitea:
		return buildGiteaProvider(configuration, dependencies)
	default:
		if dependencies.BareInitializer == nil {
			return nil, fmt.Errorf(missingDependencyTemplateConstant, configuration.Name, configuration.Provider, bareInitializerDependencyConstant)
		}
		provider, providerError := NewLocalProvider(configuration.Name, configuration.Root, dependencies.FileSystem, dependencies.BareInitializer)
		if providerError != nil {
			return nil, fmt.Errorf(hostConstructionTemplateConstant, configuration.Name, providerError)
		}
		return provider, nil
	}
}

func buildGitHubProvider(configuration Configuration, dependencies Dependencies) (backup.HostProvider, error) {
	if dependencies.GitHubExecutor == nil {
		return nil, fmt.Errorf(missingDependencyTemplateConstant, configuration.Name, configuration.Provider, githubExecutorDependencyConstant)
	}
	visibility := githubcli.Visibility(configuration.Visibility)
	switch visibility {
	case "", githubcli.VisibilityPrivate, githubcli.VisibilityInternal, githubcli.VisibilityPublic:
	default:
		return nil, fmt.Errorf(invalidVisibilityTemplateConstant, configuration.Name, configuration.Visibility)
	}

	environment := map[string]string{}
	if len(configuration.TokenEnv) > 0 {
		token, tokenError := lookupToken(configuration, dependencies)
		if tokenError != nil {
			return nil, tokenError
		}
		environment[githubTokenEnvironmentKeyConstant] = token
	}
	if len(configuration.BaseURL) > 0 {
		parsedURL, parseError := url.Parse(configuration.BaseURL)
		if parseError != nil {
			return nil, fmt.Errorf(invalidBaseURLTemplateConstant, configuration.Name, configuration.BaseURL, parseError)
		}
		environment[githubHostEnvironmentKeyConstant] = parsedURL.Host
	}

	client, clientError := githubcli.NewClient(dependencies.GitHubExecutor, githubcli.WithEnvironment(environment))
	if clientError != nil {
		return nil, fmt.Errorf(hostConstructionTemplateConstant, configuration.Name, clientError)
	}
	return NewGitHubProvider(configuration.Name, configuration.Owner, client, visibility, PushProtocol(configuration.PushProtocol), configuration.ListLimit), nil
}

func buildGiteaProvider(configuration Configuration, dependencies Dependencies) (backup.HostProvider, error) {
	ownerType := defaultGiteaOwnerTypeConstant
	if len(configuration.OwnerType) > 0 {
		parsedOwnerType, parseError := gitea.ParseOwnerType(configuration.OwnerType)
		if parseError != nil {
			return nil, fmt.Errorf(hostConstructionTemplateConstant, configuration.Name, parseError)
		}
		ownerType = parsedOwnerType
	}

	var token string
	if len(configuration.TokenEnv) > 0 {
		resolvedToken, tokenError := lookupToken(configuration, dependencies)
		if tokenError != nil {
			return nil, tokenError
		}
		token = resolvedToken
	}

	client, clientError := gitea.NewClient(dependencies.Logger, dependencies.HTTPClient, gitea.ClientConfiguration{
		BaseURL:  configuration.BaseURL,
		Token:    token,
		PageSize: configuration.ListLimit,
	})
	if clientError != nil {
		return nil, fmt.Errorf(hostConstructionTemplateConstant, configuration.Name, clientError)
	}
	private := configuration.Visibility != publicVisibilityConstant
	return NewGiteaProvider(configuration.Name, configuration.Owner, ownerType, client, private, PushProtocol(configuration.PushProtocol)), nil
}

func lookupToken(configuration Configuration, dependencies Dependencies) (string, error) {
	token, present := dependencies.LookupEnvironment(configuration.TokenEnv)
	if !present || len(token) == 0 {
		return "", fmt.Errorf(tokenMissingTemplateConstant, configuration.Name, configuration.TokenEnv)
	}
	return token, nil
}
