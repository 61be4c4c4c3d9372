package backup

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	backuperrors "github.com/tyemirov/repomirror/internal/backup/errors"
)

const (
	resolutionComparisonFailedMessageConstant = "source comparison failed"
	sourceAgreeMessageTemplateConstant        = "%d copies on %d hosts agree, using %s"
	sourceDivergedMessageTemplateConstant     = "%d of %d copies diverge from %s, elected %s (priority %d)"
	sourceBranchMessageTemplateConstant       = "branch %s: %s (%s vs %s)"
	sourceCompareFailedTemplateConstant       = "cannot compare %s with %s, counting it as divergent: %v"
	electedHostDetailConstant                 = "elected_host"
	referenceHostDetailConstant               = "reference_host"
	unmatchedDetailConstant                   = "unmatched"
	branchDetailConstant                      = "branch"
	divergenceDetailConstant                  = "divergence"
	comparedHostDetailConstant                = "compared_host"
)

// ResolvedSources maps each normalized name to its authoritative source repository, in first-discovered order.
type ResolvedSources struct {
	names  []string
	byName map[string]Repository
}

// NewResolvedSources builds a resolution result from ordered repositories keyed by their normalized names.
func NewResolvedSources(repositories ...Repository) ResolvedSources {
	resolved := ResolvedSources{byName: make(map[string]Repository, len(repositories))}
	for _, repository := range repositories {
		if _, exists := resolved.byName[repository.NormalizedName]; !exists {
			resolved.names = append(resolved.names, repository.NormalizedName)
		}
		resolved.byName[repository.NormalizedName] = repository
	}
	return resolved
}

// Names returns the normalized names in first-discovered order.
func (resolved ResolvedSources) Names() []string {
	return append([]string(nil), resolved.names...)
}

// Get returns the authoritative repository for the normalized name.
func (resolved ResolvedSources) Get(normalizedName string) (Repository, bool) {
	repository, found := resolved.byName[normalizedName]
	return repository, found
}

// Len reports the number of resolved names.
func (resolved ResolvedSources) Len() int {
	return len(resolved.names)
}

// Resolver elects one authoritative repository per normalized name among the source hosts.
type Resolver struct {
	comparer ReferenceComparer
	logger   *zap.Logger
	reporter Reporter
}

// NewResolver constructs a Resolver.
func NewResolver(comparer ReferenceComparer, logger *zap.Logger, reporter Reporter) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reporter == nil {
		reporter = discardReporter{}
	}
	return &Resolver{comparer: comparer, logger: logger, reporter: reporter}
}

// ResolveSources groups source repositories by normalized name. A single member is authoritative.
// Otherwise the first-discovered member is compared with every other member; when all agree it stays
// authoritative, and when any differ (or cannot be compared) the member on the highest-priority host wins,
// ties going to the host declared first.
func (resolver *Resolver) ResolveSources(executionContext context.Context, registry *Registry, inventory Inventory) ResolvedSources {
	groupOrder, groups := groupByNormalizedName(inventory.SourceRepositories())

	elected := make([]Repository, 0, len(groupOrder))
	for _, normalizedName := range groupOrder {
		members := groups[normalizedName]
		if len(members) == 1 {
			elected = append(elected, members[0])
			continue
		}
		elected = append(elected, resolver.resolveGroup(executionContext, registry, normalizedName, members))
	}
	return NewResolvedSources(elected...)
}

func (resolver *Resolver) resolveGroup(executionContext context.Context, registry *Registry, normalizedName string, members []Repository) Repository {
	reference := members[0]
	unmatched := 0

	for _, other := range members[1:] {
		difference, compareError := resolver.comparer.CompareReferences(executionContext, reference, other)
		if compareError != nil {
			unmatched++
			wrapped := backuperrors.Wrap(backuperrors.OperationResolve, normalizedName, backuperrors.ErrReferenceComparisonFailed, compareError)
			resolver.logger.Warn(resolutionComparisonFailedMessageConstant, zap.Error(wrapped))
			resolver.reporter.Report(Event{
				Level:      EventLevelWarn,
				Code:       EventCodeSourceCompareFailed,
				HostName:   other.HostName,
				Repository: normalizedName,
				Message:    fmt.Sprintf(sourceCompareFailedTemplateConstant, other.HostName, reference.HostName, compareError),
			})
			continue
		}
		if difference.Empty() {
			continue
		}
		unmatched++
		for _, branch := range difference.Branches() {
			divergence := difference[branch]
			resolver.reporter.Report(Event{
				Level:      EventLevelInfo,
				Code:       EventCodeSourceBranchDiverged,
				HostName:   other.HostName,
				Repository: normalizedName,
				Message:    fmt.Sprintf(sourceBranchMessageTemplateConstant, branch, divergence.Kind, reference.HostName, other.HostName),
				Details: map[string]string{
					branchDetailConstant:        branch,
					divergenceDetailConstant:    string(divergence.Kind),
					referenceHostDetailConstant: reference.HostName,
					comparedHostDetailConstant:  other.HostName,
				},
			})
		}
	}

	if unmatched == 0 {
		resolver.reporter.Report(Event{
			Level:      EventLevelInfo,
			Code:       EventCodeSourceAgree,
			HostName:   reference.HostName,
			Repository: normalizedName,
			Message:    fmt.Sprintf(sourceAgreeMessageTemplateConstant, len(members), countHosts(members), reference.HostName),
		})
		return reference
	}

	winner := electByPriority(registry, members)
	winnerHost, _ := registry.Host(winner.HostName)
	resolver.reporter.Report(Event{
		Level:      EventLevelWarn,
		Code:       EventCodeSourceDiverged,
		HostName:   winner.HostName,
		Repository: normalizedName,
		Message:    fmt.Sprintf(sourceDivergedMessageTemplateConstant, unmatched, len(members)-1, reference.HostName, winner.HostName, winnerHost.Priority),
		Details: map[string]string{
			electedHostDetailConstant:   winner.HostName,
			referenceHostDetailConstant: reference.HostName,
			unmatchedDetailConstant:     strconv.Itoa(unmatched),
		},
	})
	return winner
}

func electByPriority(registry *Registry, members []Repository) Repository {
	winner := members[0]
	winnerHost, _ := registry.Host(winner.HostName)
	for _, candidate := range members[1:] {
		candidateHost, _ := registry.Host(candidate.HostName)
		if candidateHost.Priority > winnerHost.Priority ||
			(candidateHost.Priority == winnerHost.Priority && registry.HostOrder(candidate.HostName) < registry.HostOrder(winner.HostName)) {
			winner = candidate
			winnerHost = candidateHost
		}
	}
	return winner
}

func groupByNormalizedName(repositories []Repository) ([]string, map[string][]Repository) {
	var order []string
	groups := make(map[string][]Repository)
	for _, repository := range repositories {
		if len(repository.NormalizedName) == 0 {
			continue
		}
		if _, exists := groups[repository.NormalizedName]; !exists {
			order = append(order, repository.NormalizedName)
		}
		groups[repository.NormalizedName] = append(groups[repository.NormalizedName], repository)
	}
	return order, groups
}

func countHosts(members []Repository) int {
	hosts := make(map[string]struct{}, len(members))
	for _, member := range members {
		hosts[member.HostName] = struct{}{}
	}
	return len(hosts)
}
