package hosts

import (
	"context"

	"github.com/tyemirov/repomirror/internal/backup"
	"github.com/tyemirov/repomirror/internal/gitea"
)

// GiteaClient is the subset of gitea.Client used by the gitea provider.
type GiteaClient interface {
	ListRepositories(executionContext context.Context, ownerType gitea.OwnerType, owner string) ([]gitea.Repository, error)
	CreateRepository(executionContext context.Context, request gitea.CreateRepositoryRequest) (gitea.Repository, error)
	EditDescription(executionContext context.Context, owner string, name string, description string) error
	DeleteRepository(executionContext context.Context, owner string, name string) error
}

// GiteaProvider exposes a Gitea or Forgejo owner through the REST API.
type GiteaProvider struct {
	hostName     string
	owner        string
	ownerType    gitea.OwnerType
	client       GiteaClient
	private      bool
	pushProtocol PushProtocol
}

// NewGiteaProvider builds a provider for the repositories of owner.
func NewGiteaProvider(hostName string, owner string, ownerType gitea.OwnerType, client GiteaClient, private bool, pushProtocol PushProtocol) *GiteaProvider {
	return &GiteaProvider{
		hostName:     hostName,
		owner:        owner,
		ownerType:    ownerType,
		client:       client,
		private:      private,
		pushProtocol: pushProtocol,
	}
}

// ListRepositories lists every repository of the owner.
func (provider *GiteaProvider) ListRepositories(executionContext context.Context) ([]backup.Repository, error) {
	listed, listError := provider.client.ListRepositories(executionContext, provider.ownerType, provider.owner)
	if listError != nil {
		return nil, listError
	}
	repositories := make([]backup.Repository, 0, len(listed))
	for _, repository := range listed {
		repositories = append(repositories, provider.toRepository(repository))
	}
	return repositories, nil
}

// CreateRepository creates owner/name with the given description.
func (provider *GiteaProvider) CreateRepository(executionContext context.Context, name string, description string) (backup.Repository, error) {
	created, createError := provider.client.CreateRepository(executionContext, gitea.CreateRepositoryRequest{
		Owner:       provider.owner,
		OwnerType:   provider.ownerType,
		Name:        name,
		Description: description,
		Private:     provider.private,
	})
	if createError != nil {
		return backup.Repository{}, createError
	}
	return provider.toRepository(created), nil
}

// UpdateDescription rewrites the description of the repository.
func (provider *GiteaProvider) UpdateDescription(executionContext context.Context, repository backup.Repository, description string) error {
	return provider.client.EditDescription(executionContext, provider.owner, repository.Name, description)
}

// DeleteRepository deletes the repository.
func (provider *GiteaProvider) DeleteRepository(executionContext context.Context, repository backup.Repository) error {
	return provider.client.DeleteRepository(executionContext, provider.owner, repository.Name)
}

func (provider *GiteaProvider) toRepository(repository gitea.Repository) backup.Repository {
	pushURL := repository.CloneURL
	if provider.pushProtocol == PushProtocolSSH && len(repository.SSHURL) > 0 {
		pushURL = repository.SSHURL
	}
	if len(pushURL) == 0 {
		pushURL = repository.HTMLURL
	}
	return backup.NewRepository(provider.hostName, repository.Name, repository.Description, repository.HTMLURL, pushURL)
}
