package backup

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	backuperrors "github.com/tyemirov/repomirror/internal/backup/errors"
)

const (
	scrubAbortedTemplateConstant      = "source hosts %s could not be listed, refusing to delete backups"
	scrubNotBackedUpTemplateConstant  = "source on %s has no tagged backup yet"
	scrubKeepTemplateConstant         = "kept by keep list, linked source %s"
	scrubOrphanTemplateConstant       = "to be deleted from %s, linked source %s is gone"
	scrubDeletedTemplateConstant      = "deleted %s from %s"
	scrubDeleteFailedTemplateConstant = "cannot delete %s from %s: %v"
	scrubFailedLogMessageConstant     = "scrub action failed"
	linkedSourceDetailConstant        = "linked_source"
	incompleteHostsDetailConstant     = "incomplete_hosts"
)

// TaggedBackup is a backup repository whose description carries a provenance tag.
type TaggedBackup struct {
	Repository      Repository
	LinkedSourceURL string
}

// RunStatusEntry tracks whether a normalized name still has a live source.
// Backups lists every tagged backup carrying the name, one per backup host at most in practice.
type RunStatusEntry struct {
	Found   bool
	Backups []TaggedBackup
}

// RunStatus maps normalized names of tagged backups to their liveness. It lives for one scrub pass.
type RunStatus struct {
	order   []string
	entries map[string]*RunStatusEntry
}

// BuildRunStatus collects every tagged backup repository of the inventory, all initially not found.
func BuildRunStatus(inventory Inventory) RunStatus {
	status := RunStatus{entries: make(map[string]*RunStatusEntry)}
	for _, repository := range inventory.BackupRepositories() {
		linkedSourceURL, tagged := ParseBackupTag(repository.Description)
		if !tagged || len(repository.NormalizedName) == 0 {
			continue
		}
		entry, exists := status.entries[repository.NormalizedName]
		if !exists {
			entry = &RunStatusEntry{}
			status.entries[repository.NormalizedName] = entry
			status.order = append(status.order, repository.NormalizedName)
		}
		entry.Backups = append(entry.Backups, TaggedBackup{Repository: repository, LinkedSourceURL: linkedSourceURL})
	}
	return status
}

// Entry returns the entry for the normalized name.
func (status RunStatus) Entry(normalizedName string) (*RunStatusEntry, bool) {
	entry, found := status.entries[normalizedName]
	return entry, found
}

// Names returns the tracked names in discovery order.
func (status RunStatus) Names() []string {
	return append([]string(nil), status.order...)
}

// Scrubber deletes tagged backups whose source no longer exists.
type Scrubber struct {
	logger   *zap.Logger
	reporter Reporter
	recorder RunRecorder
}

// NewScrubber constructs a Scrubber.
func NewScrubber(logger *zap.Logger, reporter Reporter, recorder RunRecorder) *Scrubber {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reporter == nil {
		reporter = discardReporter{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Scrubber{logger: logger, reporter: reporter, recorder: recorder}
}

// Scrub deletes every tagged backup whose normalized name matches neither a discovered source
// repository nor the keep list. Deletion failures do not stop the pass and yield ExitCodeFatal.
// Scrub refuses to run on an inventory with unlisted source hosts.
func (scrubber *Scrubber) Scrub(executionContext context.Context, registry *Registry, inventory Inventory, dryRun bool) int {
	if !inventory.Complete() {
		incompleteHosts := strings.Join(inventory.IncompleteSourceHosts(), ",")
		abortError := backuperrors.WrapMessage(backuperrors.OperationScrub, "", backuperrors.ErrIncompleteSourceInventory, incompleteHosts)
		scrubber.logger.Error(scrubFailedLogMessageConstant, zap.Error(abortError))
		scrubber.reporter.Report(Event{
			Level:   EventLevelError,
			Code:    EventCodeScrubAborted,
			Message: fmt.Sprintf(scrubAbortedTemplateConstant, incompleteHosts),
			Details: map[string]string{incompleteHostsDetailConstant: incompleteHosts},
		})
		return ExitCodeFatal
	}

	status := BuildRunStatus(inventory)

	reportedMissing := make(map[string]struct{})
	for _, sourceRepository := range inventory.SourceRepositories() {
		if entry, tracked := status.Entry(sourceRepository.NormalizedName); tracked {
			entry.Found = true
			continue
		}
		if _, reported := reportedMissing[sourceRepository.NormalizedName]; reported {
			continue
		}
		reportedMissing[sourceRepository.NormalizedName] = struct{}{}
		scrubber.reporter.Report(Event{
			Level:      EventLevelInfo,
			Code:       EventCodeScrubNotBackedUp,
			HostName:   sourceRepository.HostName,
			Repository: sourceRepository.NormalizedName,
			Message:    fmt.Sprintf(scrubNotBackedUpTemplateConstant, sourceRepository.HostName),
		})
	}

	for _, normalizedName := range status.Names() {
		if inventory.HasSourceName(normalizedName) {
			entry, _ := status.Entry(normalizedName)
			entry.Found = true
		}
	}

	for _, keepName := range registry.KeepNames() {
		entry, tracked := status.Entry(keepName)
		if !tracked || entry.Found {
			continue
		}
		entry.Found = true
		for _, backup := range entry.Backups {
			scrubber.reporter.Report(Event{
				Level:      EventLevelInfo,
				Code:       EventCodeScrubKeep,
				HostName:   backup.Repository.HostName,
				Repository: keepName,
				Message:    fmt.Sprintf(scrubKeepTemplateConstant, backup.LinkedSourceURL),
				Details:    map[string]string{linkedSourceDetailConstant: backup.LinkedSourceURL},
			})
		}
	}

	exitCode := ExitCodeSuccess
	for _, normalizedName := range status.Names() {
		entry, _ := status.Entry(normalizedName)
		if entry.Found {
			continue
		}
		for _, backup := range entry.Backups {
			if !scrubber.deleteOrphan(executionContext, registry, normalizedName, backup, dryRun) {
				exitCode = ExitCodeFatal
			}
		}
	}
	return exitCode
}

func (scrubber *Scrubber) deleteOrphan(executionContext context.Context, registry *Registry, normalizedName string, backup TaggedBackup, dryRun bool) bool {
	hostName := backup.Repository.HostName
	details := map[string]string{linkedSourceDetailConstant: backup.LinkedSourceURL}
	scrubber.reporter.Report(Event{
		Level:      EventLevelWarn,
		Code:       EventCodeScrubOrphan,
		HostName:   hostName,
		Repository: normalizedName,
		Message:    fmt.Sprintf(scrubOrphanTemplateConstant, hostName, backup.LinkedSourceURL),
		Details:    details,
	})
	if dryRun {
		scrubber.recorder.RecordAction(hostName, ActionDelete, ActionOutcomeSkipped)
		return true
	}

	host, known := registry.Host(hostName)
	var deleteError error
	if !known {
		deleteError = fmt.Errorf("host %s is not registered", hostName)
	} else {
		deleteError = host.Provider.DeleteRepository(executionContext, backup.Repository)
	}
	if deleteError != nil {
		scrubber.recorder.RecordAction(hostName, ActionDelete, ActionOutcomeFailure)
		wrapped := backuperrors.Wrap(backuperrors.OperationScrub, normalizedName, backuperrors.ErrRepositoryDeleteFailed, deleteError)
		scrubber.logger.Error(scrubFailedLogMessageConstant, zap.String(hostNameLogFieldConstant, hostName), zap.Error(wrapped))
		scrubber.reporter.Report(Event{
			Level:      EventLevelError,
			Code:       EventCodeScrubDeleteFailed,
			HostName:   hostName,
			Repository: normalizedName,
			Message:    fmt.Sprintf(scrubDeleteFailedTemplateConstant, backup.Repository.Name, hostName, deleteError),
			Details:    details,
		})
		return false
	}

	scrubber.recorder.RecordAction(hostName, ActionDelete, ActionOutcomeSuccess)
	scrubber.reporter.Report(Event{
		Level:      EventLevelInfo,
		Code:       EventCodeScrubDeleted,
		HostName:   hostName,
		Repository: normalizedName,
		Message:    fmt.Sprintf(scrubDeletedTemplateConstant, backup.Repository.Name, hostName),
		Details:    details,
	})
	return true
}
