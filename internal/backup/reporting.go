package backup

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultLevelFieldWidth       = 5
	defaultCodeFieldWidth        = 22
	defaultRepositoryFieldWidth  = 28
	defaultTimestampLayout       = "15:04:05"
	eventLoggedMessageConstant   = "decision reported"
	eventCodeFieldConstant       = "event"
	eventHostFieldConstant       = "host"
	eventRepositoryFieldConstant = "repo"
)

// EventLevel describes the severity of a reported decision.
type EventLevel string

// Supported event levels.
const (
	EventLevelInfo  EventLevel = "INFO"
	EventLevelWarn  EventLevel = "WARN"
	EventLevelError EventLevel = "ERROR"
)

// Event codes emitted by the pipeline stages.
const (
	EventCodeDiscoveryListed      = "DISCOVERY-LISTED"
	EventCodeDiscoveryFatal       = "DISCOVERY-FATAL"
	EventCodeDiscoverySoftFail    = "DISCOVERY-SOFT-FAIL"
	EventCodeOnlyNameUnmatched    = "ONLY-NAME-UNMATCHED"
	EventCodeSourceAgree          = "SOURCE-AGREE"
	EventCodeSourceDiverged       = "SOURCE-DIVERGED"
	EventCodeSourceBranchDiverged = "SOURCE-BRANCH-DIVERGED"
	EventCodeSourceCompareFailed  = "SOURCE-COMPARE-FAILED"
	EventCodeBackupMissing        = "BACKUP-MISSING"
	EventCodeBackupCreated        = "BACKUP-CREATED"
	EventCodeBackupCreateFailed   = "BACKUP-CREATE-FAILED"
	EventCodeBackupCurrent        = "BACKUP-CURRENT"
	EventCodeBackupStale          = "BACKUP-STALE"
	EventCodeBackupBranchDiverged = "BACKUP-BRANCH-DIVERGED"
	EventCodeBackupCompareFailed  = "BACKUP-COMPARE-FAILED"
	EventCodeBackupForced         = "BACKUP-FORCED"
	EventCodeDescriptionStale     = "DESCRIPTION-STALE"
	EventCodeDescriptionUpdated   = "DESCRIPTION-UPDATED"
	EventCodeDescriptionFailed    = "DESCRIPTION-UPDATE-FAILED"
	EventCodePushPlanned          = "BACKUP-PUSH-PLANNED"
	EventCodePushed               = "BACKUP-PUSHED"
	EventCodePushFailed           = "BACKUP-PUSH-FAILED"
	EventCodeScrubNotBackedUp     = "SCRUB-NOT-BACKED-UP"
	EventCodeScrubKeep            = "SCRUB-KEEP"
	EventCodeScrubOrphan          = "SCRUB-ORPHAN"
	EventCodeScrubDeleted         = "SCRUB-DELETED"
	EventCodeScrubDeleteFailed    = "SCRUB-DELETE-FAILED"
	EventCodeScrubAborted         = "SCRUB-ABORTED"
	EventCodeRunCompleted         = "RUN-COMPLETED"
)

// Event captures one decision or outcome of the pipeline.
type Event struct {
	Timestamp  time.Time
	Level      EventLevel
	Code       string
	HostName   string
	Repository string
	Message    string
	Details    map[string]string
}

// Reporter receives decision events.
type Reporter interface {
	Report(event Event)
}

// ReporterOption customises StructuredReporter behaviour.
type ReporterOption func(*StructuredReporter)

// WithNowProvider overrides the time source used for timestamps.
func WithNowProvider(provider func() time.Time) ReporterOption {
	return func(reporter *StructuredReporter) {
		if provider != nil {
			reporter.now = provider
		}
	}
}

// WithDiagnosticLogger mirrors every event into the diagnostic logger at debug level.
func WithDiagnosticLogger(logger *zap.Logger) ReporterOption {
	return func(reporter *StructuredReporter) {
		if logger != nil {
			reporter.logger = logger
		}
	}
}

// StructuredReporter prints one aligned line per event: a human part followed by sorted key=value pairs.
type StructuredReporter struct {
	outputWriter io.Writer
	errorWriter  io.Writer
	logger       *zap.Logger
	now          func() time.Time

	mutex       sync.Mutex
	eventCounts map[string]int
	levelCounts map[EventLevel]int
}

// NewStructuredReporter constructs a StructuredReporter writing informational events to output and errors to errors.
func NewStructuredReporter(output io.Writer, errors io.Writer, options ...ReporterOption) *StructuredReporter {
	if output == nil {
		output = os.Stdout
	}
	if errors == nil {
		errors = output
	}
	reporter := &StructuredReporter{
		outputWriter: output,
		errorWriter:  errors,
		logger:       zap.NewNop(),
		now:          time.Now,
		eventCounts:  make(map[string]int),
		levelCounts:  make(map[EventLevel]int),
	}
	for _, option := range options {
		option(reporter)
	}
	return reporter
}

// Report prints the event and updates the summary counters.
func (reporter *StructuredReporter) Report(event Event) {
	if reporter == nil {
		return
	}

	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()

	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = reporter.now()
	}
	level := normalizeLevel(event.Level)
	code := normalizeCode(event.Code)

	reporter.eventCounts[code]++
	reporter.levelCounts[level]++

	writer := reporter.outputWriter
	if level == EventLevelError {
		writer = reporter.errorWriter
	}

	humanPart := fmt.Sprintf("%s %-*s %-*s %-*s %s",
		timestamp.Format(defaultTimestampLayout),
		defaultLevelFieldWidth, string(level),
		defaultCodeFieldWidth, code,
		defaultRepositoryFieldWidth, strings.TrimSpace(event.Repository),
		strings.TrimSpace(event.Message),
	)
	fmt.Fprintf(writer, "%s | %s\n", strings.TrimRight(humanPart, " "), formatMachinePart(code, event))

	reporter.logger.Debug(eventLoggedMessageConstant,
		zap.String(eventCodeFieldConstant, code),
		zap.String(eventHostFieldConstant, event.HostName),
		zap.String(eventRepositoryFieldConstant, event.Repository),
		zap.Any("details", event.Details),
	)
}

// Summary renders the per-code event counts collected so far.
func (reporter *StructuredReporter) Summary() string {
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()

	codes := make([]string, 0, len(reporter.eventCounts))
	for code := range reporter.eventCounts {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	parts := make([]string, 0, len(codes)+3)
	parts = append(parts, "Summary:")
	for _, code := range codes {
		parts = append(parts, fmt.Sprintf("%s=%d", code, reporter.eventCounts[code]))
	}
	parts = append(parts, fmt.Sprintf("%s=%d", EventLevelWarn, reporter.levelCounts[EventLevelWarn]))
	parts = append(parts, fmt.Sprintf("%s=%d", EventLevelError, reporter.levelCounts[EventLevelError]))
	return strings.Join(parts, " ")
}

func formatMachinePart(code string, event Event) string {
	values := make(map[string]string, len(event.Details)+3)
	values[eventCodeFieldConstant] = code
	if host := strings.TrimSpace(event.HostName); len(host) > 0 {
		values[eventHostFieldConstant] = host
	}
	if repository := strings.TrimSpace(event.Repository); len(repository) > 0 {
		values[eventRepositoryFieldConstant] = repository
	}
	for key, value := range event.Details {
		values[key] = value
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, values[key]))
	}
	return strings.Join(pairs, " ")
}

func normalizeLevel(level EventLevel) EventLevel {
	switch level {
	case EventLevelWarn:
		return EventLevelWarn
	case EventLevelError:
		return EventLevelError
	default:
		return EventLevelInfo
	}
}

func normalizeCode(code string) string {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) == 0 {
		return "UNKNOWN"
	}
	return strings.ReplaceAll(strings.ToUpper(trimmed), " ", "_")
}

type discardReporter struct{}

func (discardReporter) Report(Event) {}
