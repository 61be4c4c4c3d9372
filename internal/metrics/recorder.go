// Package metrics exposes run counters through a Prometheus registry that is exported once per run.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/tyemirov/repomirror/internal/backup"
)

const (
	defaultNamespaceConstant           = "repomirror"
	defaultJobNameConstant             = "repomirror"
	hostLabelConstant                  = "host"
	roleLabelConstant                  = "role"
	actionLabelConstant                = "action"
	outcomeLabelConstant               = "outcome"
	exitCodeLabelConstant              = "exit_code"
	textfileExportTemplateConstant     = "write metrics textfile %s: %w"
	pushgatewayExportTemplateConstant  = "push metrics to %s: %w"
	discoveredMetricNameConstant       = "discovered_repositories"
	actionsMetricNameConstant          = "actions_total"
	runsMetricNameConstant             = "runs_total"
	exitCodeMetricNameConstant         = "last_run_exit_code"
	durationMetricNameConstant         = "last_run_duration_seconds"
	timestampMetricNameConstant        = "last_run_timestamp_seconds"
	discoveredMetricHelpConstant       = "Repositories listed on each host during the last run"
	actionsMetricHelpConstant          = "Reconciliation and scrub actions by host, action and outcome"
	runsMetricHelpConstant             = "Completed runs by exit code"
	exitCodeMetricHelpConstant         = "Exit code of the last run"
	durationMetricHelpConstant         = "Duration of the last run"
	timestampMetricHelpConstant        = "Completion time of the last run"
	exportNotConfiguredMessageConstant = "no metrics export configured"
)

// ErrExportNotConfigured indicates Export was called without a textfile or pushgateway target.
var ErrExportNotConfigured = errors.New(exportNotConfiguredMessageConstant)

// Configuration selects where run metrics are exported.
type Configuration struct {
	Textfile       string `mapstructure:"textfile"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// Enabled reports whether any export target is configured.
func (configuration Configuration) Enabled() bool {
	return len(strings.TrimSpace(configuration.Textfile)) > 0 || len(strings.TrimSpace(configuration.PushgatewayURL)) > 0
}

// Recorder implements backup.RunRecorder on a private Prometheus registry.
type Recorder struct {
	registry     *prometheus.Registry
	discovered   *prometheus.GaugeVec
	actions      *prometheus.CounterVec
	runs         *prometheus.CounterVec
	lastExitCode prometheus.Gauge
	lastDuration prometheus.Gauge
	lastRunTime  prometheus.Gauge
}

// NewRecorder registers the run metrics under the namespace, defaulting to "repomirror".
func NewRecorder(namespace string) *Recorder {
	if len(strings.TrimSpace(namespace)) == 0 {
		namespace = defaultNamespaceConstant
	}
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		discovered: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      discoveredMetricNameConstant,
			Help:      discoveredMetricHelpConstant,
		}, []string{hostLabelConstant, roleLabelConstant}),
		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      actionsMetricNameConstant,
			Help:      actionsMetricHelpConstant,
		}, []string{hostLabelConstant, actionLabelConstant, outcomeLabelConstant}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      runsMetricNameConstant,
			Help:      runsMetricHelpConstant,
		}, []string{exitCodeLabelConstant}),
		lastExitCode: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      exitCodeMetricNameConstant,
			Help:      exitCodeMetricHelpConstant,
		}),
		lastDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      durationMetricNameConstant,
			Help:      durationMetricHelpConstant,
		}),
		lastRunTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      timestampMetricNameConstant,
			Help:      timestampMetricHelpConstant,
		}),
	}
}

// Registry exposes the underlying registry.
func (recorder *Recorder) Registry() *prometheus.Registry {
	return recorder.registry
}

// RecordDiscovered sets the repository count listed on a host.
func (recorder *Recorder) RecordDiscovered(hostName string, role backup.Role, repositoryCount int) {
	recorder.discovered.WithLabelValues(hostName, string(role)).Set(float64(repositoryCount))
}

// RecordAction counts one reconciliation or scrub action.
func (recorder *Recorder) RecordAction(hostName string, action string, outcome string) {
	recorder.actions.WithLabelValues(hostName, action, outcome).Inc()
}

// RecordRunCompleted stores the outcome of a run.
func (recorder *Recorder) RecordRunCompleted(exitCode int, duration time.Duration) {
	recorder.runs.WithLabelValues(strconv.Itoa(exitCode)).Inc()
	recorder.lastExitCode.Set(float64(exitCode))
	recorder.lastDuration.Set(duration.Seconds())
	recorder.lastRunTime.SetToCurrentTime()
}

// Export writes the registry to the configured textfile and pushes it to the configured pushgateway.
// Both targets are attempted; their errors are joined.
func (recorder *Recorder) Export(executionContext context.Context, configuration Configuration) error {
	if !configuration.Enabled() {
		return ErrExportNotConfigured
	}

	var exportErrors []error
	if textfile := strings.TrimSpace(configuration.Textfile); len(textfile) > 0 {
		if writeError := prometheus.WriteToTextfile(textfile, recorder.registry); writeError != nil {
			exportErrors = append(exportErrors, fmt.Errorf(textfileExportTemplateConstant, textfile, writeError))
		}
	}
	if gatewayURL := strings.TrimSpace(configuration.PushgatewayURL); len(gatewayURL) > 0 {
		job := strings.TrimSpace(configuration.Job)
		if len(job) == 0 {
			job = defaultJobNameConstant
		}
		if pushError := push.New(gatewayURL, job).Gatherer(recorder.registry).PushContext(executionContext); pushError != nil {
			exportErrors = append(exportErrors, fmt.Errorf(pushgatewayExportTemplateConstant, gatewayURL, pushError))
		}
	}
	return errors.Join(exportErrors...)
}
