package hosts_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/tyemirov/repomirror/internal/backup"
	"github.com/tyemirov/repomirror/internal/hosts"
)

const (
	testLocalRootConstant     = "/srv/mirrors"
	testLocalHostNameConstant = "attic"
)

type memoryBareInitializer struct {
	fileSystem afero.Fs
	paths      []string
	failure    error
}

func (initializer *memoryBareInitializer) InitBareRepository(_ context.Context, repositoryPath string) error {
	initializer.paths = append(initializer.paths, repositoryPath)
	if initializer.failure != nil {
		return initializer.failure
	}
	if mkdirError := initializer.fileSystem.MkdirAll(repositoryPath, 0o755); mkdirError != nil {
		return mkdirError
	}
	if writeError := afero.WriteFile(initializer.fileSystem, filepath.Join(repositoryPath, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644); writeError != nil {
		return writeError
	}
	return afero.WriteFile(initializer.fileSystem, filepath.Join(repositoryPath, "description"), []byte("Unnamed repository; edit this file 'description' to name the repository.\n"), 0o644)
}

func newLocalFixture(testInstance *testing.T) (*hosts.LocalProvider, afero.Fs, *memoryBareInitializer) {
	testInstance.Helper()
	fileSystem := afero.NewMemMapFs()
	initializer := &memoryBareInitializer{fileSystem: fileSystem}
	provider, providerError := hosts.NewLocalProvider(testLocalHostNameConstant, testLocalRootConstant, fileSystem, initializer)
	require.NoError(testInstance, providerError)
	return provider, fileSystem, initializer
}

func TestLocalProviderListsBareRepositories(testInstance *testing.T) {
	provider, fileSystem, initializer := newLocalFixture(testInstance)
	require.NoError(testInstance, initializer.InitBareRepository(context.Background(), filepath.Join(testLocalRootConstant, "widgets.git")))
	require.NoError(testInstance, initializer.InitBareRepository(context.Background(), filepath.Join(testLocalRootConstant, "Gadgets")))
	require.NoError(testInstance, afero.WriteFile(fileSystem, filepath.Join(testLocalRootConstant, "widgets.git", "description"), []byte("[backup] https://github.com/acme/widgets\n"), 0o644))
	require.NoError(testInstance, fileSystem.MkdirAll(filepath.Join(testLocalRootConstant, "scratch"), 0o755))
	require.NoError(testInstance, afero.WriteFile(fileSystem, filepath.Join(testLocalRootConstant, "notes.txt"), []byte("x"), 0o644))

	repositories, listError := provider.ListRepositories(context.Background())
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []backup.Repository{
		backup.NewRepository(testLocalHostNameConstant, "Gadgets", "", "file:///srv/mirrors/Gadgets", "/srv/mirrors/Gadgets"),
		backup.NewRepository(testLocalHostNameConstant, "widgets", "[backup] https://github.com/acme/widgets", "file:///srv/mirrors/widgets.git", "/srv/mirrors/widgets.git"),
	}, repositories)
}

func TestLocalProviderListFailsWithoutRoot(testInstance *testing.T) {
	provider, _, _ := newLocalFixture(testInstance)
	_, listError := provider.ListRepositories(context.Background())
	require.Error(testInstance, listError)
}

func TestLocalProviderCreateUpdateDelete(testInstance *testing.T) {
	provider, fileSystem, initializer := newLocalFixture(testInstance)

	created, createError := provider.CreateRepository(context.Background(), "widgets", "[backup] https://github.com/acme/widgets")
	require.NoError(testInstance, createError)
	require.Equal(testInstance, []string{"/srv/mirrors/widgets.git"}, initializer.paths)
	require.Equal(testInstance, "widgets", created.NormalizedName)
	require.Equal(testInstance, "/srv/mirrors/widgets.git", created.PushURL)

	require.NoError(testInstance, provider.UpdateDescription(context.Background(), created, "[backup] https://gitea/acme/widgets"))
	listed, listError := provider.ListRepositories(context.Background())
	require.NoError(testInstance, listError)
	require.Len(testInstance, listed, 1)
	require.Equal(testInstance, "[backup] https://gitea/acme/widgets", listed[0].Description)

	_, duplicateError := provider.CreateRepository(context.Background(), "widgets", "")
	require.ErrorIs(testInstance, duplicateError, hosts.ErrRepositoryExists)

	require.NoError(testInstance, provider.DeleteRepository(context.Background(), listed[0]))
	exists, existsError := afero.DirExists(fileSystem, "/srv/mirrors/widgets.git")
	require.NoError(testInstance, existsError)
	require.False(testInstance, exists)
}

func TestLocalProviderRejectsUnsafeInput(testInstance *testing.T) {
	provider, _, initializer := newLocalFixture(testInstance)

	for _, name := range []string{"", "..", "nested/name", `back\slash`} {
		_, createError := provider.CreateRepository(context.Background(), name, "")
		require.ErrorIs(testInstance, createError, hosts.ErrInvalidRepositoryName, name)
	}
	require.Empty(testInstance, initializer.paths)

	outside := backup.NewRepository(testLocalHostNameConstant, "etc", "", "file:///etc", "/etc")
	require.ErrorIs(testInstance, provider.DeleteRepository(context.Background(), outside), hosts.ErrRepositoryOutsideRoot)
	require.ErrorIs(testInstance, provider.UpdateDescription(context.Background(), outside, "x"), hosts.ErrRepositoryOutsideRoot)
}

func TestLocalProviderCreateSurfacesInitFailure(testInstance *testing.T) {
	provider, _, initializer := newLocalFixture(testInstance)
	initializer.failure = errors.New("git init failed")

	_, createError := provider.CreateRepository(context.Background(), "widgets", "")
	require.ErrorIs(testInstance, createError, initializer.failure)

	withoutInitializer, _ := hosts.NewLocalProvider(testLocalHostNameConstant, testLocalRootConstant, afero.NewMemMapFs(), nil)
	_, missingError := withoutInitializer.CreateRepository(context.Background(), "widgets", "")
	require.ErrorIs(testInstance, missingError, hosts.ErrInitializerMissing)
}
