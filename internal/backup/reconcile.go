package backup

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	backuperrors "github.com/tyemirov/repomirror/internal/backup/errors"
)

// Action names and outcomes passed to the RunRecorder.
const (
	ActionCreate                      = "create"
	ActionDescribe                    = "describe"
	ActionPush                        = "push"
	ActionDelete                      = "delete"
	ActionOutcomeSuccess              = "success"
	ActionOutcomeFailure              = "failure"
	ActionOutcomeSkipped              = "dry_run"
	reconcileFailedLogMessageConstant = "reconciliation action failed"
)

const (
	backupMissingTemplateConstant       = "no backup on %s, source is %s"
	backupCreatedTemplateConstant       = "created %s on %s"
	backupCreateFailedTemplateConstant  = "cannot create %s on %s: %v"
	backupCurrentTemplateConstant       = "backup on %s matches %s"
	backupStaleTemplateConstant         = "backup on %s differs from %s in %d branches"
	backupBranchTemplateConstant        = "branch %s: %s"
	backupCompareFailedTemplateConstant = "cannot compare backup on %s with %s, scheduling push: %v"
	backupForcedTemplateConstant        = "backup on %s is current, pushing anyway"
	descriptionStaleTemplateConstant    = "description on %s is %q, expected %q"
	descriptionUpdatedTemplateConstant  = "description on %s set to %q"
	descriptionFailedTemplateConstant   = "cannot update description on %s: %v"
	pushPlannedTemplateConstant         = "push %s to %s"
	pushedTemplateConstant              = "pushed %s to %s"
	pushFailedTemplateConstant          = "push from %s to %s failed: %v"
	sourceHostDetailConstant            = "source_host"
	sourceURLDetailConstant             = "source_url"
	expectedDescriptionConstant         = "expected_description"
	currentDescriptionConstant          = "current_description"
	divergentBranchCountConstant        = "branches"
)

// ReconcileOptions controls mutating behaviour of a reconciliation pass.
type ReconcileOptions struct {
	DryRun bool
	Force  bool
}

// Reconciler brings every backup host in line with the authoritative sources.
type Reconciler struct {
	comparer ReferenceComparer
	pusher   MirrorPusher
	logger   *zap.Logger
	reporter Reporter
	recorder RunRecorder
}

// NewReconciler constructs a Reconciler.
func NewReconciler(comparer ReferenceComparer, pusher MirrorPusher, logger *zap.Logger, reporter Reporter, recorder RunRecorder) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reporter == nil {
		reporter = discardReporter{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Reconciler{comparer: comparer, pusher: pusher, logger: logger, reporter: reporter, recorder: recorder}
}

// Reconcile visits every (name, backup host) pair. It creates missing backups, repairs provenance
// descriptions and pushes refs whenever the backup is missing, stale, incomparable or forced.
// Failures are confined to their pair; the return value is ExitCodePartialFailure when any action failed.
func (reconciler *Reconciler) Reconcile(executionContext context.Context, registry *Registry, sources ResolvedSources, inventory Inventory, options ReconcileOptions) int {
	exitCode := ExitCodeSuccess
	for _, normalizedName := range sources.Names() {
		source, _ := sources.Get(normalizedName)
		for _, backupHost := range registry.BackupHosts() {
			if !reconciler.reconcilePair(executionContext, backupHost, source, inventory, options) {
				exitCode = ExitCodePartialFailure
			}
		}
	}
	return exitCode
}

func (reconciler *Reconciler) reconcilePair(executionContext context.Context, backupHost Host, source Repository, inventory Inventory, options ReconcileOptions) bool {
	expectedDescription := FormatBackupTag(source.WebURL)
	succeeded := true
	updateRequired := false

	backupRepository, present := inventory.FindOnHost(backupHost.Name, source.NormalizedName)
	if !present {
		reconciler.report(EventLevelInfo, EventCodeBackupMissing, backupHost, source, fmt.Sprintf(backupMissingTemplateConstant, backupHost.Name, source.HostName), nil)
		updateRequired = true

		if options.DryRun {
			reconciler.recorder.RecordAction(backupHost.Name, ActionCreate, ActionOutcomeSkipped)
			backupRepository = Repository{HostName: backupHost.Name, Name: source.Name, NormalizedName: source.NormalizedName, Description: expectedDescription}
		} else {
			created, createError := backupHost.Provider.CreateRepository(executionContext, source.Name, expectedDescription)
			if createError != nil {
				reconciler.recordFailure(backupHost, source, ActionCreate, backuperrors.ErrRepositoryCreateFailed, createError)
				reconciler.report(EventLevelError, EventCodeBackupCreateFailed, backupHost, source, fmt.Sprintf(backupCreateFailedTemplateConstant, source.Name, backupHost.Name, createError), nil)
				return false
			}
			created.HostName = backupHost.Name
			if len(created.NormalizedName) == 0 {
				created.NormalizedName = NormalizeName(created.Name)
			}
			backupRepository = created
			reconciler.recorder.RecordAction(backupHost.Name, ActionCreate, ActionOutcomeSuccess)
			reconciler.report(EventLevelInfo, EventCodeBackupCreated, backupHost, source, fmt.Sprintf(backupCreatedTemplateConstant, created.Name, backupHost.Name), nil)
		}
	} else {
		updateRequired = reconciler.compareWithBackup(executionContext, backupHost, source, backupRepository)
		if backupRepository.Description != expectedDescription {
			if !reconciler.repairDescription(executionContext, backupHost, source, backupRepository, expectedDescription, options) {
				succeeded = false
			}
		}
	}

	if options.Force && !updateRequired {
		reconciler.report(EventLevelInfo, EventCodeBackupForced, backupHost, source, fmt.Sprintf(backupForcedTemplateConstant, backupHost.Name), nil)
		updateRequired = true
	}
	if !updateRequired {
		return succeeded
	}

	reconciler.report(EventLevelInfo, EventCodePushPlanned, backupHost, source, fmt.Sprintf(pushPlannedTemplateConstant, source.HostName, backupHost.Name), nil)
	if options.DryRun {
		reconciler.recorder.RecordAction(backupHost.Name, ActionPush, ActionOutcomeSkipped)
		return succeeded
	}
	if pushError := reconciler.pusher.MirrorPush(executionContext, source, backupRepository); pushError != nil {
		reconciler.recordFailure(backupHost, source, ActionPush, backuperrors.ErrMirrorPushFailed, pushError)
		reconciler.report(EventLevelError, EventCodePushFailed, backupHost, source, fmt.Sprintf(pushFailedTemplateConstant, source.HostName, backupHost.Name, pushError), nil)
		return false
	}
	reconciler.recorder.RecordAction(backupHost.Name, ActionPush, ActionOutcomeSuccess)
	reconciler.report(EventLevelInfo, EventCodePushed, backupHost, source, fmt.Sprintf(pushedTemplateConstant, source.HostName, backupHost.Name), nil)
	return succeeded
}

func (reconciler *Reconciler) compareWithBackup(executionContext context.Context, backupHost Host, source Repository, backupRepository Repository) bool {
	difference, compareError := reconciler.comparer.CompareReferences(executionContext, source, backupRepository)
	if compareError != nil {
		wrapped := backuperrors.Wrap(backuperrors.OperationReconcile, source.NormalizedName, backuperrors.ErrReferenceComparisonFailed, compareError)
		reconciler.logger.Warn(reconcileFailedLogMessageConstant, zap.String(hostNameLogFieldConstant, backupHost.Name), zap.Error(wrapped))
		reconciler.report(EventLevelWarn, EventCodeBackupCompareFailed, backupHost, source, fmt.Sprintf(backupCompareFailedTemplateConstant, backupHost.Name, source.HostName, compareError), nil)
		return true
	}
	if difference.Empty() {
		reconciler.report(EventLevelInfo, EventCodeBackupCurrent, backupHost, source, fmt.Sprintf(backupCurrentTemplateConstant, backupHost.Name, source.HostName), nil)
		return false
	}

	reconciler.report(EventLevelInfo, EventCodeBackupStale, backupHost, source,
		fmt.Sprintf(backupStaleTemplateConstant, backupHost.Name, source.HostName, len(difference)),
		map[string]string{divergentBranchCountConstant: fmt.Sprint(len(difference))})
	for _, branch := range difference.Branches() {
		divergence := difference[branch]
		reconciler.report(EventLevelInfo, EventCodeBackupBranchDiverged, backupHost, source,
			fmt.Sprintf(backupBranchTemplateConstant, branch, divergence.Kind),
			map[string]string{branchDetailConstant: branch, divergenceDetailConstant: string(divergence.Kind)})
	}
	return true
}

func (reconciler *Reconciler) repairDescription(executionContext context.Context, backupHost Host, source Repository, backupRepository Repository, expectedDescription string, options ReconcileOptions) bool {
	reconciler.report(EventLevelInfo, EventCodeDescriptionStale, backupHost, source,
		fmt.Sprintf(descriptionStaleTemplateConstant, backupHost.Name, backupRepository.Description, expectedDescription),
		map[string]string{currentDescriptionConstant: backupRepository.Description, expectedDescriptionConstant: expectedDescription})
	if options.DryRun {
		reconciler.recorder.RecordAction(backupHost.Name, ActionDescribe, ActionOutcomeSkipped)
		return true
	}

	if updateError := backupHost.Provider.UpdateDescription(executionContext, backupRepository, expectedDescription); updateError != nil {
		reconciler.recordFailure(backupHost, source, ActionDescribe, backuperrors.ErrDescriptionUpdateFailed, updateError)
		reconciler.report(EventLevelError, EventCodeDescriptionFailed, backupHost, source, fmt.Sprintf(descriptionFailedTemplateConstant, backupHost.Name, updateError), nil)
		return false
	}
	reconciler.recorder.RecordAction(backupHost.Name, ActionDescribe, ActionOutcomeSuccess)
	reconciler.report(EventLevelInfo, EventCodeDescriptionUpdated, backupHost, source, fmt.Sprintf(descriptionUpdatedTemplateConstant, backupHost.Name, expectedDescription), nil)
	return true
}

func (reconciler *Reconciler) recordFailure(backupHost Host, source Repository, action string, sentinel backuperrors.Sentinel, cause error) {
	reconciler.recorder.RecordAction(backupHost.Name, action, ActionOutcomeFailure)
	wrapped := backuperrors.Wrap(backuperrors.OperationReconcile, source.NormalizedName, sentinel, cause)
	reconciler.logger.Error(reconcileFailedLogMessageConstant, zap.String(hostNameLogFieldConstant, backupHost.Name), zap.Error(wrapped))
}

func (reconciler *Reconciler) report(level EventLevel, code string, backupHost Host, source Repository, message string, extraDetails map[string]string) {
	details := map[string]string{
		sourceHostDetailConstant: source.HostName,
		sourceURLDetailConstant:  source.WebURL,
	}
	for key, value := range extraDetails {
		details[key] = value
	}
	reconciler.reporter.Report(Event{
		Level:      level,
		Code:       code,
		HostName:   backupHost.Name,
		Repository: source.NormalizedName,
		Message:    message,
		Details:    details,
	})
}
