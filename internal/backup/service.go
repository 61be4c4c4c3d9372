package backup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	backuperrors "github.com/tyemirov/repomirror/internal/backup/errors"
)

const (
	runStartedMessageConstant    = "backup run starting"
	runCompletedMessageConstant  = "backup run completed"
	dryRunLogFieldConstant       = "dry_run"
	forceLogFieldConstant        = "force"
	scrubLogFieldConstant        = "scrub"
	scrubOnlyLogFieldConstant    = "scrub_only"
	onlyNamesLogFieldConstant    = "only"
	exitCodeLogFieldConstant     = "exit_code"
	durationLogFieldConstant     = "duration"
	runCompletedTemplateConstant = "run finished with exit code %d"
	exitCodeDetailConstant       = "exit_code"
)

var (
	// ErrRegistryMissing indicates the service was built without a host registry.
	ErrRegistryMissing = errors.New("backup service requires a host registry")
	// ErrComparerMissing indicates the service was built without a reference comparer.
	ErrComparerMissing = errors.New("backup service requires a reference comparer")
	// ErrPusherMissing indicates the service was built without a mirror pusher.
	ErrPusherMissing = errors.New("backup service requires a mirror pusher")
)

// Dependencies wires the collaborators of a Service.
type Dependencies struct {
	Registry         *Registry
	Comparer         ReferenceComparer
	Pusher           MirrorPusher
	Logger           *zap.Logger
	Reporter         Reporter
	Recorder         RunRecorder
	DiscoveryWorkers int
	Clock            func() time.Time
}

// RunOptions selects what a run does.
type RunOptions struct {
	DryRun    bool
	Force     bool
	OnlyNames []string
	Scrub     bool
	ScrubOnly bool
}

// Service runs discovery, source resolution, reconciliation and scrub in order.
type Service struct {
	registry   *Registry
	logger     *zap.Logger
	reporter   Reporter
	recorder   RunRecorder
	clock      func() time.Time
	discoverer *Discoverer
	resolver   *Resolver
	reconciler *Reconciler
	scrubber   *Scrubber
}

// NewService validates the dependencies and assembles the pipeline stages.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.Registry == nil {
		return nil, ErrRegistryMissing
	}
	if dependencies.Comparer == nil {
		return nil, ErrComparerMissing
	}
	if dependencies.Pusher == nil {
		return nil, ErrPusherMissing
	}
	if len(dependencies.Registry.BackupHosts()) == 0 {
		return nil, backuperrors.WrapMessage(backuperrors.OperationRegistry, "", backuperrors.ErrNoBackupHosts, "at least one backup host must be configured")
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reporter := dependencies.Reporter
	if reporter == nil {
		reporter = discardReporter{}
	}
	recorder := dependencies.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	clock := dependencies.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		registry:   dependencies.Registry,
		logger:     logger,
		reporter:   reporter,
		recorder:   recorder,
		clock:      clock,
		discoverer: NewDiscoverer(logger, reporter, recorder, dependencies.DiscoveryWorkers),
		resolver:   NewResolver(dependencies.Comparer, logger, reporter),
		reconciler: NewReconciler(dependencies.Comparer, dependencies.Pusher, logger, reporter, recorder),
		scrubber:   NewScrubber(logger, reporter, recorder),
	}, nil
}

// Run executes one pass and returns ExitCodeSuccess, ExitCodePartialFailure or ExitCodeFatal.
// Scrub runs only after a clean reconciliation; ScrubOnly skips reconciliation but still requires discovery.
func (service *Service) Run(executionContext context.Context, options RunOptions) int {
	startedAt := service.clock()
	service.logger.Info(runStartedMessageConstant,
		zap.Bool(dryRunLogFieldConstant, options.DryRun),
		zap.Bool(forceLogFieldConstant, options.Force),
		zap.Bool(scrubLogFieldConstant, options.Scrub),
		zap.Bool(scrubOnlyLogFieldConstant, options.ScrubOnly),
		zap.Strings(onlyNamesLogFieldConstant, options.OnlyNames),
	)

	exitCode := service.run(executionContext, options)

	duration := service.clock().Sub(startedAt)
	service.recorder.RecordRunCompleted(exitCode, duration)
	service.logger.Info(runCompletedMessageConstant,
		zap.Int(exitCodeLogFieldConstant, exitCode),
		zap.Duration(durationLogFieldConstant, duration),
	)
	level := EventLevelInfo
	if exitCode != ExitCodeSuccess {
		level = EventLevelWarn
	}
	service.reporter.Report(Event{
		Level:   level,
		Code:    EventCodeRunCompleted,
		Message: fmt.Sprintf(runCompletedTemplateConstant, exitCode),
		Details: map[string]string{exitCodeDetailConstant: strconv.Itoa(exitCode)},
	})
	return exitCode
}

func (service *Service) run(executionContext context.Context, options RunOptions) int {
	inventory, discoveryError := service.discoverer.DiscoverAll(executionContext, service.registry, options.OnlyNames)
	if discoveryError != nil {
		return ExitCodeFatal
	}

	if !options.ScrubOnly {
		sources := service.resolver.ResolveSources(executionContext, service.registry, inventory)
		reconcileCode := service.reconciler.Reconcile(executionContext, service.registry, sources, inventory, ReconcileOptions{DryRun: options.DryRun, Force: options.Force})
		if reconcileCode != ExitCodeSuccess {
			return reconcileCode
		}
	}

	if options.Scrub || options.ScrubOnly {
		return service.scrubber.Scrub(executionContext, service.registry, inventory, options.DryRun)
	}
	return ExitCodeSuccess
}
