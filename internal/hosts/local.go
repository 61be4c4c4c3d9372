package hosts

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/tyemirov/repomirror/internal/backup"
)

const (
	bareRepositorySuffixConstant        = ".git"
	bareRepositoryHeadFileConstant      = "HEAD"
	descriptionFileNameConstant         = "description"
	defaultGitDescriptionPrefixConstant = "Unnamed repository;"
	fileURLSchemeConstant               = "file://"
	descriptionFilePermissionsConstant  = 0o644
	rootDirectoryPermissionsConstant    = 0o755
	invalidNameTemplateConstant         = "%w: %q"
	repositoryExistsTemplateConstant    = "%w: %s"
	outsideRootTemplateConstant         = "%w: %s is not directly under %s"
	descriptionWriteTemplateConstant    = "write description of %s: %w"
)

var (
	// ErrInvalidRepositoryName indicates a name that cannot be used as a directory name.
	ErrInvalidRepositoryName = errors.New("invalid repository name")
	// ErrRepositoryExists indicates a create against an existing directory.
	ErrRepositoryExists = errors.New("repository already exists")
	// ErrRepositoryOutsideRoot indicates a mutation against a path the provider does not own.
	ErrRepositoryOutsideRoot = errors.New("repository outside provider root")
	// ErrInitializerMissing indicates a local provider built without a bare repository initializer.
	ErrInitializerMissing = errors.New("bare repository initializer not configured")
)

// BareRepositoryInitializer creates empty bare repositories.
type BareRepositoryInitializer interface {
	InitBareRepository(executionContext context.Context, repositoryPath string) error
}

// LocalProvider treats a directory of bare repositories as a host.
type LocalProvider struct {
	hostName    string
	root        string
	fileSystem  afero.Fs
	initializer BareRepositoryInitializer
}

// NewLocalProvider builds a provider rooted at root. The root is made absolute so push URLs stay valid
// from any working directory.
func NewLocalProvider(hostName string, root string, fileSystem afero.Fs, initializer BareRepositoryInitializer) (*LocalProvider, error) {
	absoluteRoot, absoluteError := filepath.Abs(root)
	if absoluteError != nil {
		return nil, absoluteError
	}
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	return &LocalProvider{hostName: hostName, root: absoluteRoot, fileSystem: fileSystem, initializer: initializer}, nil
}

// ListRepositories lists the bare repositories directly under the root.
func (provider *LocalProvider) ListRepositories(executionContext context.Context) ([]backup.Repository, error) {
	entries, readError := afero.ReadDir(provider.fileSystem, provider.root)
	if readError != nil {
		return nil, readError
	}

	var repositories []backup.Repository
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		repositoryPath := filepath.Join(provider.root, entry.Name())
		isBare, headError := afero.Exists(provider.fileSystem, filepath.Join(repositoryPath, bareRepositoryHeadFileConstant))
		if headError != nil {
			return nil, headError
		}
		if !isBare {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), bareRepositorySuffixConstant)
		repositories = append(repositories, provider.toRepository(name, repositoryPath, provider.readDescription(repositoryPath)))
	}
	sort.Slice(repositories, func(left int, right int) bool {
		return repositories[left].Name < repositories[right].Name
	})
	return repositories, nil
}

// CreateRepository initializes <root>/<name>.git and writes its description.
func (provider *LocalProvider) CreateRepository(executionContext context.Context, name string, description string) (backup.Repository, error) {
	trimmedName := strings.TrimSpace(name)
	if len(trimmedName) == 0 || trimmedName == "." || trimmedName == ".." || strings.ContainsAny(trimmedName, `/\`) {
		return backup.Repository{}, fmt.Errorf(invalidNameTemplateConstant, ErrInvalidRepositoryName, name)
	}
	if provider.initializer == nil {
		return backup.Repository{}, ErrInitializerMissing
	}

	repositoryPath := filepath.Join(provider.root, trimmedName+bareRepositorySuffixConstant)
	exists, existsError := afero.Exists(provider.fileSystem, repositoryPath)
	if existsError != nil {
		return backup.Repository{}, existsError
	}
	if exists {
		return backup.Repository{}, fmt.Errorf(repositoryExistsTemplateConstant, ErrRepositoryExists, repositoryPath)
	}
	if mkdirError := provider.fileSystem.MkdirAll(provider.root, rootDirectoryPermissionsConstant); mkdirError != nil {
		return backup.Repository{}, mkdirError
	}
	if initError := provider.initializer.InitBareRepository(executionContext, repositoryPath); initError != nil {
		return backup.Repository{}, initError
	}
	if writeError := provider.writeDescription(repositoryPath, description); writeError != nil {
		return backup.Repository{}, writeError
	}
	return provider.toRepository(trimmedName, repositoryPath, description), nil
}

// UpdateDescription rewrites the description file of the repository.
func (provider *LocalProvider) UpdateDescription(executionContext context.Context, repository backup.Repository, description string) error {
	repositoryPath, pathError := provider.ownedPath(repository)
	if pathError != nil {
		return pathError
	}
	return provider.writeDescription(repositoryPath, description)
}

// DeleteRepository removes the repository directory.
func (provider *LocalProvider) DeleteRepository(executionContext context.Context, repository backup.Repository) error {
	repositoryPath, pathError := provider.ownedPath(repository)
	if pathError != nil {
		return pathError
	}
	return provider.fileSystem.RemoveAll(repositoryPath)
}

// Root reports the absolute directory the provider manages.
func (provider *LocalProvider) Root() string {
	return provider.root
}

func (provider *LocalProvider) ownedPath(repository backup.Repository) (string, error) {
	repositoryPath := filepath.Clean(repository.PushURL)
	if filepath.Dir(repositoryPath) != provider.root {
		return "", fmt.Errorf(outsideRootTemplateConstant, ErrRepositoryOutsideRoot, repositoryPath, provider.root)
	}
	return repositoryPath, nil
}

func (provider *LocalProvider) readDescription(repositoryPath string) string {
	contents, readError := afero.ReadFile(provider.fileSystem, filepath.Join(repositoryPath, descriptionFileNameConstant))
	if readError != nil {
		return ""
	}
	description := strings.TrimSpace(string(contents))
	if strings.HasPrefix(description, defaultGitDescriptionPrefixConstant) {
		return ""
	}
	return description
}

func (provider *LocalProvider) writeDescription(repositoryPath string, description string) error {
	descriptionPath := filepath.Join(repositoryPath, descriptionFileNameConstant)
	if writeError := afero.WriteFile(provider.fileSystem, descriptionPath, []byte(description+"\n"), descriptionFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(descriptionWriteTemplateConstant, repositoryPath, writeError)
	}
	return nil
}

func (provider *LocalProvider) toRepository(name string, repositoryPath string, description string) backup.Repository {
	return backup.NewRepository(provider.hostName, name, description, fileURLSchemeConstant+filepath.ToSlash(repositoryPath), repositoryPath)
}
