package gitsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"github.com/tyemirov/repomirror/internal/backup"
	"github.com/tyemirov/repomirror/internal/gitrepo"
)

const (
	referencesCachedMessageConstant      = "cached branch references"
	referencesEvictedMessageConstant     = "evicted branch references"
	repositoryURLLogFieldConstant        = "repository_url"
	branchCountLogFieldConstant          = "branches"
	missingRemoteURLTemplateConstant     = "repository %s on %s has no remote url"
	listReferencesFailedTemplateConstant = "list branches of %s: %w"
	listerNotConfiguredMessageConstant   = "branch reference lister not configured"
)

// ErrReferenceListerMissing indicates the comparer was built without a lister.
var ErrReferenceListerMissing = errors.New(listerNotConfiguredMessageConstant)

// BranchReferenceLister reads the branch heads of a remote repository.
type BranchReferenceLister interface {
	ListBranchReferences(executionContext context.Context, repositoryURL string) (gitrepo.BranchReferences, error)
}

// ReferenceComparer compares branch heads of two repositories, caching each remote's heads for the run.
type ReferenceComparer struct {
	lister BranchReferenceLister
	logger *zap.Logger

	mutex deadlock.RWMutex
	cache map[string]gitrepo.BranchReferences
}

// NewReferenceComparer constructs a ReferenceComparer.
func NewReferenceComparer(lister BranchReferenceLister, logger *zap.Logger) (*ReferenceComparer, error) {
	if lister == nil {
		return nil, ErrReferenceListerMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceComparer{lister: lister, logger: logger, cache: make(map[string]gitrepo.BranchReferences)}, nil
}

// CompareReferences lists both repositories' branches and returns their differences.
func (comparer *ReferenceComparer) CompareReferences(executionContext context.Context, source backup.Repository, target backup.Repository) (backup.DifferenceState, error) {
	sourceReferences, sourceError := comparer.references(executionContext, source)
	if sourceError != nil {
		return nil, sourceError
	}
	targetReferences, targetError := comparer.references(executionContext, target)
	if targetError != nil {
		return nil, targetError
	}
	return backup.ComputeDifferences(sourceReferences, targetReferences), nil
}

// Invalidate drops the cached heads of the repository so the next comparison lists it again.
func (comparer *ReferenceComparer) Invalidate(repository backup.Repository) {
	repositoryURL := RemoteURL(repository)
	if len(repositoryURL) == 0 {
		return
	}
	comparer.mutex.Lock()
	defer comparer.mutex.Unlock()
	delete(comparer.cache, cacheKey(repositoryURL))
	comparer.logger.Debug(referencesEvictedMessageConstant, zap.String(repositoryURLLogFieldConstant, repositoryURL))
}

func (comparer *ReferenceComparer) references(executionContext context.Context, repository backup.Repository) (gitrepo.BranchReferences, error) {
	repositoryURL := RemoteURL(repository)
	if len(repositoryURL) == 0 {
		return nil, fmt.Errorf(missingRemoteURLTemplateConstant, repository.Name, repository.HostName)
	}
	key := cacheKey(repositoryURL)

	comparer.mutex.RLock()
	cached, found := comparer.cache[key]
	comparer.mutex.RUnlock()
	if found {
		return cached, nil
	}

	references, listError := comparer.lister.ListBranchReferences(executionContext, repositoryURL)
	if listError != nil {
		return nil, fmt.Errorf(listReferencesFailedTemplateConstant, repositoryURL, listError)
	}

	comparer.mutex.Lock()
	defer comparer.mutex.Unlock()
	comparer.cache[key] = references
	comparer.logger.Debug(referencesCachedMessageConstant,
		zap.String(repositoryURLLogFieldConstant, repositoryURL),
		zap.Int(branchCountLogFieldConstant, len(references)),
	)
	return references, nil
}

// RemoteURL returns the git URL used to reach the repository, preferring the push URL.
func RemoteURL(repository backup.Repository) string {
	if pushURL := strings.TrimSpace(repository.PushURL); len(pushURL) > 0 {
		return pushURL
	}
	return strings.TrimSpace(repository.WebURL)
}

func cacheKey(repositoryURL string) string {
	return strings.TrimRight(strings.TrimSpace(repositoryURL), "/")
}
