package hosts

import (
	"context"

	"github.com/tyemirov/repomirror/internal/backup"
	"github.com/tyemirov/repomirror/internal/githubcli"
)

const repositoryIdentifierSeparatorConstant = "/"

// GitHubClient is the subset of githubcli.Client used by the github provider.
type GitHubClient interface {
	ListRepositories(executionContext context.Context, owner string, resultLimit int) ([]githubcli.RepositorySummary, error)
	CreateRepository(executionContext context.Context, options githubcli.RepositoryCreateOptions) (githubcli.RepositorySummary, error)
	EditDescription(executionContext context.Context, repository string, description string) error
	DeleteRepository(executionContext context.Context, repository string) error
}

// GitHubProvider exposes a GitHub owner through the gh CLI.
type GitHubProvider struct {
	hostName     string
	owner        string
	client       GitHubClient
	visibility   githubcli.Visibility
	pushProtocol PushProtocol
	listLimit    int
}

// NewGitHubProvider builds a provider for the repositories of owner.
func NewGitHubProvider(hostName string, owner string, client GitHubClient, visibility githubcli.Visibility, pushProtocol PushProtocol, listLimit int) *GitHubProvider {
	return &GitHubProvider{
		hostName:     hostName,
		owner:        owner,
		client:       client,
		visibility:   visibility,
		pushProtocol: pushProtocol,
		listLimit:    listLimit,
	}
}

// ListRepositories lists every repository of the owner.
func (provider *GitHubProvider) ListRepositories(executionContext context.Context) ([]backup.Repository, error) {
	summaries, listError := provider.client.ListRepositories(executionContext, provider.owner, provider.listLimit)
	if listError != nil {
		return nil, listError
	}
	repositories := make([]backup.Repository, 0, len(summaries))
	for _, summary := range summaries {
		repositories = append(repositories, provider.toRepository(summary))
	}
	return repositories, nil
}

// CreateRepository creates owner/name with the given description.
func (provider *GitHubProvider) CreateRepository(executionContext context.Context, name string, description string) (backup.Repository, error) {
	summary, createError := provider.client.CreateRepository(executionContext, githubcli.RepositoryCreateOptions{
		Repository:  provider.identifier(name),
		Description: description,
		Visibility:  provider.visibility,
	})
	if createError != nil {
		return backup.Repository{}, createError
	}
	return provider.toRepository(summary), nil
}

// UpdateDescription rewrites the description of the repository.
func (provider *GitHubProvider) UpdateDescription(executionContext context.Context, repository backup.Repository, description string) error {
	return provider.client.EditDescription(executionContext, provider.identifier(repository.Name), description)
}

// DeleteRepository deletes the repository.
func (provider *GitHubProvider) DeleteRepository(executionContext context.Context, repository backup.Repository) error {
	return provider.client.DeleteRepository(executionContext, provider.identifier(repository.Name))
}

func (provider *GitHubProvider) identifier(name string) string {
	return provider.owner + repositoryIdentifierSeparatorConstant + name
}

func (provider *GitHubProvider) toRepository(summary githubcli.RepositorySummary) backup.Repository {
	pushURL := summary.URL
	if provider.pushProtocol == PushProtocolSSH && len(summary.SSHURL) > 0 {
		pushURL = summary.SSHURL
	}
	return backup.NewRepository(provider.hostName, summary.Name, summary.Description, summary.URL, pushURL)
}
