package backup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	backuperrors "github.com/tyemirov/repomirror/internal/backup/errors"
)

const (
	defaultDiscoveryWorkersConstant         = 4
	maximumNameSuggestionsConstant          = 3
	discoveryStartedMessageConstant         = "listing host repositories"
	discoveryCompletedMessageConstant       = "listed host repositories"
	discoveryFailedMessageConstant          = "host listing failed"
	hostNameLogFieldConstant                = "host"
	hostRoleLogFieldConstant                = "role"
	repositoryCountLogFieldConstant         = "repositories"
	repositoryCountDetailConstant           = "count"
	suggestionsDetailConstant               = "suggestions"
	roleDetailConstant                      = "role"
	unmatchedNameMessageTemplateConstant    = "--only name %q matched no discovered repository"
	unmatchedNameSuggestionTemplateConstant = "--only name %q matched no discovered repository (did you mean %s?)"
	variantSkippedMessageTemplateConstant   = "--only name %q skipped %s on host %s (same normalized name, different raw name)"
	skippedNameDetailConstant               = "skipped"
	softFailureMessageTemplateConstant      = "source host %s could not be listed, treating it as empty: %v"
	fatalFailureMessageTemplateConstant     = "backup host %s could not be listed, aborting: %v"
	listedMessageTemplateConstant           = "listed %d repositories on %s host %s"
)

// Inventory is the per-host result of discovery, ordered by host declaration order.
type Inventory struct {
	hosts                 []Host
	repositoriesByHost    map[string][]Repository
	incompleteSourceHosts []string
	sourceNames           map[string]struct{}
}

// NewInventory assembles an inventory from already listed repositories. Hosts absent from the map are empty.
func NewInventory(hosts []Host, repositoriesByHost map[string][]Repository, incompleteSourceHosts []string) Inventory {
	copied := make(map[string][]Repository, len(repositoriesByHost))
	for hostName, repositories := range repositoriesByHost {
		copied[hostName] = append([]Repository(nil), repositories...)
	}
	inventory := Inventory{
		hosts:                 append([]Host(nil), hosts...),
		repositoriesByHost:    copied,
		incompleteSourceHosts: append([]string(nil), incompleteSourceHosts...),
		sourceNames:           make(map[string]struct{}),
	}
	for _, repository := range inventory.SourceRepositories() {
		inventory.sourceNames[repository.NormalizedName] = struct{}{}
	}
	return inventory
}

// HasSourceName reports whether any source host lists the normalized name, including
// repositories excluded by the name filter.
func (inventory Inventory) HasSourceName(normalizedName string) bool {
	_, found := inventory.sourceNames[normalizedName]
	return found
}

// Repositories returns the repositories listed on the named host.
func (inventory Inventory) Repositories(hostName string) []Repository {
	return inventory.repositoriesByHost[hostName]
}

// SourceRepositories returns every source repository, ordered by host then listing order.
func (inventory Inventory) SourceRepositories() []Repository {
	return inventory.repositoriesWithRole(RoleSource)
}

// BackupRepositories returns every backup repository, ordered by host then listing order.
func (inventory Inventory) BackupRepositories() []Repository {
	return inventory.repositoriesWithRole(RoleBackup)
}

// FindOnHost returns the first repository on the host carrying the normalized name.
func (inventory Inventory) FindOnHost(hostName string, normalizedName string) (Repository, bool) {
	for _, repository := range inventory.repositoriesByHost[hostName] {
		if repository.NormalizedName == normalizedName {
			return repository, true
		}
	}
	return Repository{}, false
}

// IncompleteSourceHosts names the source hosts whose listing failed.
func (inventory Inventory) IncompleteSourceHosts() []string {
	return append([]string(nil), inventory.incompleteSourceHosts...)
}

// Complete reports whether every source host was listed successfully.
func (inventory Inventory) Complete() bool {
	return len(inventory.incompleteSourceHosts) == 0
}

func (inventory Inventory) repositoriesWithRole(role Role) []Repository {
	var repositories []Repository
	for _, host := range inventory.hosts {
		if host.Role != role {
			continue
		}
		repositories = append(repositories, inventory.repositoriesByHost[host.Name]...)
	}
	return repositories
}

// Discoverer lists every configured host.
type Discoverer struct {
	logger      *zap.Logger
	reporter    Reporter
	recorder    RunRecorder
	workerLimit int
}

// NewDiscoverer constructs a Discoverer. A non-positive worker limit selects the default.
func NewDiscoverer(logger *zap.Logger, reporter Reporter, recorder RunRecorder, workerLimit int) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reporter == nil {
		reporter = discardReporter{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if workerLimit <= 0 {
		workerLimit = defaultDiscoveryWorkersConstant
	}
	return &Discoverer{logger: logger, reporter: reporter, recorder: recorder, workerLimit: workerLimit}
}

type hostListing struct {
	repositories []Repository
	err          error
}

// DiscoverAll lists every host concurrently and returns their repositories.
// A backup host failure aborts discovery; a source host failure leaves that host empty.
// A non-empty nameFilter keeps only repositories whose raw name is in the filter;
// skipped repositories sharing a requested normalized name are reported per host.
func (discoverer *Discoverer) DiscoverAll(executionContext context.Context, registry *Registry, nameFilter []string) (Inventory, error) {
	hosts := registry.Hosts()
	listings := make([]hostListing, len(hosts))

	group, groupContext := errgroup.WithContext(executionContext)
	group.SetLimit(discoverer.workerLimit)
	for hostIndex, host := range hosts {
		group.Go(func() error {
			discoverer.logger.Debug(discoveryStartedMessageConstant,
				zap.String(hostNameLogFieldConstant, host.Name),
				zap.String(hostRoleLogFieldConstant, string(host.Role)),
			)
			repositories, listError := host.Provider.ListRepositories(groupContext)
			listings[hostIndex] = hostListing{repositories: repositories, err: listError}
			if listError != nil && host.Role == RoleBackup {
				return listError
			}
			return nil
		})
	}
	_ = group.Wait()

	if failedIndex, failed := firstBackupFailure(executionContext, hosts, listings); failed {
		host := hosts[failedIndex]
		listError := listings[failedIndex].err
		discoverer.logger.Error(discoveryFailedMessageConstant,
			zap.String(hostNameLogFieldConstant, host.Name),
			zap.String(hostRoleLogFieldConstant, string(host.Role)),
			zap.Error(listError),
		)
		discoverer.reporter.Report(Event{
			Level:    EventLevelError,
			Code:     EventCodeDiscoveryFatal,
			HostName: host.Name,
			Message:  fmt.Sprintf(fatalFailureMessageTemplateConstant, host.Name, listError),
		})
		return Inventory{}, backuperrors.Wrap(backuperrors.OperationDiscover, host.Name, backuperrors.ErrBackupHostListingFailed, listError)
	}

	filter := buildNameFilter(nameFilter)
	normalizedFilter := buildNormalizedNameFilter(nameFilter)
	repositoriesByHost := make(map[string][]Repository, len(hosts))
	var incompleteSourceHosts []string
	var discoveredNames []string
	unfilteredSourceNames := make(map[string]struct{})
	matchedFilterNames := make(map[string]struct{}, len(filter))

	for hostIndex, host := range hosts {
		listing := listings[hostIndex]
		if listing.err != nil {
			incompleteSourceHosts = append(incompleteSourceHosts, host.Name)
			discoverer.logger.Warn(discoveryFailedMessageConstant,
				zap.String(hostNameLogFieldConstant, host.Name),
				zap.String(hostRoleLogFieldConstant, string(host.Role)),
				zap.Error(listing.err),
			)
			discoverer.reporter.Report(Event{
				Level:    EventLevelWarn,
				Code:     EventCodeDiscoverySoftFail,
				HostName: host.Name,
				Message:  fmt.Sprintf(softFailureMessageTemplateConstant, host.Name, listing.err),
			})
			repositoriesByHost[host.Name] = nil
			discoverer.recorder.RecordDiscovered(host.Name, host.Role, 0)
			continue
		}

		kept := make([]Repository, 0, len(listing.repositories))
		var skippedVariants []Event
		for _, repository := range listing.repositories {
			repository.HostName = host.Name
			if len(repository.NormalizedName) == 0 {
				repository.NormalizedName = NormalizeName(repository.Name)
			}
			discoveredNames = append(discoveredNames, repository.Name)
			if host.Role == RoleSource {
				unfilteredSourceNames[repository.NormalizedName] = struct{}{}
			}
			if len(filter) > 0 {
				if _, selected := filter[repository.Name]; !selected {
					skippedVariants = append(skippedVariants, variantSkippedEvents(host.Name, repository, normalizedFilter)...)
					continue
				}
				matchedFilterNames[repository.Name] = struct{}{}
			}
			kept = append(kept, repository)
		}
		repositoriesByHost[host.Name] = kept

		discoverer.logger.Info(discoveryCompletedMessageConstant,
			zap.String(hostNameLogFieldConstant, host.Name),
			zap.String(hostRoleLogFieldConstant, string(host.Role)),
			zap.Int(repositoryCountLogFieldConstant, len(kept)),
		)
		discoverer.reporter.Report(Event{
			Level:    EventLevelInfo,
			Code:     EventCodeDiscoveryListed,
			HostName: host.Name,
			Message:  fmt.Sprintf(listedMessageTemplateConstant, len(kept), host.Role, host.Name),
			Details: map[string]string{
				repositoryCountDetailConstant: strconv.Itoa(len(kept)),
				roleDetailConstant:            string(host.Role),
			},
		})
		discoverer.recorder.RecordDiscovered(host.Name, host.Role, len(kept))
		for _, event := range skippedVariants {
			discoverer.reporter.Report(event)
		}
	}

	discoverer.reportUnmatchedFilterNames(nameFilter, matchedFilterNames, discoveredNames)
	inventory := NewInventory(hosts, repositoriesByHost, incompleteSourceHosts)
	for normalizedName := range unfilteredSourceNames {
		inventory.sourceNames[normalizedName] = struct{}{}
	}
	return inventory, nil
}

// variantSkippedEvents warns about a repository the raw-name filter dropped although its
// normalized name equals that of a requested name, such as Widgets for --only widgets.
func variantSkippedEvents(hostName string, repository Repository, normalizedFilter map[string][]string) []Event {
	requestedNames := normalizedFilter[repository.NormalizedName]
	events := make([]Event, 0, len(requestedNames))
	for _, requestedName := range requestedNames {
		events = append(events, Event{
			Level:      EventLevelWarn,
			Code:       EventCodeOnlyNameUnmatched,
			HostName:   hostName,
			Repository: requestedName,
			Message:    fmt.Sprintf(variantSkippedMessageTemplateConstant, requestedName, repository.Name, hostName),
			Details:    map[string]string{skippedNameDetailConstant: repository.Name},
		})
	}
	return events
}

func (discoverer *Discoverer) reportUnmatchedFilterNames(nameFilter []string, matched map[string]struct{}, discoveredNames []string) {
	reported := make(map[string]struct{}, len(nameFilter))
	for _, rawName := range nameFilter {
		name := strings.TrimSpace(rawName)
		if len(name) == 0 {
			continue
		}
		if _, found := matched[name]; found {
			continue
		}
		if _, duplicate := reported[name]; duplicate {
			continue
		}
		reported[name] = struct{}{}

		suggestions := SuggestNames(name, discoveredNames)
		event := Event{Level: EventLevelWarn, Code: EventCodeOnlyNameUnmatched, Repository: name}
		if len(suggestions) == 0 {
			event.Message = fmt.Sprintf(unmatchedNameMessageTemplateConstant, name)
		} else {
			event.Message = fmt.Sprintf(unmatchedNameSuggestionTemplateConstant, name, strings.Join(suggestions, ", "))
			event.Details = map[string]string{suggestionsDetailConstant: strings.Join(suggestions, ",")}
		}
		discoverer.reporter.Report(event)
	}
}

// SuggestNames returns up to three candidates that fuzzily match the name, best first.
func SuggestNames(name string, candidates []string) []string {
	unique := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if _, duplicate := seen[candidate]; duplicate {
			continue
		}
		seen[candidate] = struct{}{}
		unique = append(unique, candidate)
	}

	matches := fuzzy.Find(name, unique)
	suggestions := make([]string, 0, maximumNameSuggestionsConstant)
	for _, match := range matches {
		if len(suggestions) == maximumNameSuggestionsConstant {
			break
		}
		suggestions = append(suggestions, match.Str)
	}
	return suggestions
}

// firstBackupFailure picks the first failed backup host in declaration order,
// skipping hosts that only failed because a sibling failure cancelled the group.
func firstBackupFailure(executionContext context.Context, hosts []Host, listings []hostListing) (int, bool) {
	fallbackIndex := -1
	for hostIndex, host := range hosts {
		listError := listings[hostIndex].err
		if host.Role != RoleBackup || listError == nil {
			continue
		}
		if errors.Is(listError, context.Canceled) && executionContext.Err() == nil {
			if fallbackIndex < 0 {
				fallbackIndex = hostIndex
			}
			continue
		}
		return hostIndex, true
	}
	return fallbackIndex, fallbackIndex >= 0
}

func buildNameFilter(nameFilter []string) map[string]struct{} {
	filter := make(map[string]struct{}, len(nameFilter))
	for _, rawName := range nameFilter {
		name := strings.TrimSpace(rawName)
		if len(name) > 0 {
			filter[name] = struct{}{}
		}
	}
	return filter
}

// buildNormalizedNameFilter groups the requested raw names by normalized name, keeping request order.
func buildNormalizedNameFilter(nameFilter []string) map[string][]string {
	normalizedFilter := make(map[string][]string, len(nameFilter))
	seen := make(map[string]struct{}, len(nameFilter))
	for _, rawName := range nameFilter {
		name := strings.TrimSpace(rawName)
		if _, duplicate := seen[name]; len(name) == 0 || duplicate {
			continue
		}
		seen[name] = struct{}{}
		normalizedName := NormalizeName(name)
		normalizedFilter[normalizedName] = append(normalizedFilter[normalizedName], name)
	}
	return normalizedFilter
}
