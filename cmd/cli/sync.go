package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/repomirror/internal/backup"
	"github.com/tyemirov/repomirror/internal/gitsync"
	"github.com/tyemirov/repomirror/internal/metrics"
	flagutils "github.com/tyemirov/repomirror/internal/utils/flags"
)

const (
	comparerCreationTemplateConstant   = "unable to create reference comparer: %w"
	pusherCreationTemplateConstant     = "unable to create mirror pusher: %w"
	serviceCreationTemplateConstant    = "unable to create sync service: %w"
	metricsExportFailedMessageConstant = "failed to export run metrics"
	metricsExportedMessageConstant     = "exported run metrics"
	metricsTextfileLogFieldConstant    = "textfile"
	metricsPushgatewayLogFieldConstant = "pushgateway_url"
	syncSummaryOutputTemplateConstant  = "%s\n"
)

func (application *Application) runSyncCommand(command *cobra.Command, arguments []string) error {
	executionFlags, _ := flagutils.ResolveExecutionFlags(command)
	configuration := application.syncConfiguration(executionFlags)

	runtime, runtimeError := application.buildRuntime()
	if runtimeError != nil {
		return runtimeError
	}

	comparer, comparerError := gitsync.NewReferenceComparer(runtime.repositoryManager, application.logger)
	if comparerError != nil {
		return fmt.Errorf(comparerCreationTemplateConstant, comparerError)
	}
	pusher, pusherError := gitsync.NewMirrorPusher(runtime.repositoryManager, comparer, application.configuration.Git.WorkDirectory, application.logger)
	if pusherError != nil {
		return fmt.Errorf(pusherCreationTemplateConstant, pusherError)
	}

	recorder := metrics.NewRecorder(applicationNameConstant)
	reporter := backup.NewStructuredReporter(command.OutOrStdout(), command.ErrOrStderr(), backup.WithDiagnosticLogger(application.logger))

	service, serviceError := backup.NewService(backup.Dependencies{
		Registry:         runtime.registry,
		Comparer:         comparer,
		Pusher:           pusher,
		Logger:           application.logger,
		Reporter:         reporter,
		Recorder:         recorder,
		DiscoveryWorkers: configuration.DiscoveryWorkers,
	})
	if serviceError != nil {
		return fmt.Errorf(serviceCreationTemplateConstant, serviceError)
	}

	exitCode := service.Run(command.Context(), configuration.RunOptions())
	fmt.Fprintf(command.OutOrStdout(), syncSummaryOutputTemplateConstant, reporter.Summary())
	application.exportMetrics(command.Context(), recorder)

	if exitCode != backup.ExitCodeSuccess {
		return ExitCodeError{Code: exitCode}
	}
	return nil
}

// exportMetrics publishes the run metrics when an export target is configured. Export failures never change the exit status.
func (application *Application) exportMetrics(executionContext context.Context, recorder *metrics.Recorder) {
	metricsConfiguration := application.configuration.Metrics
	if !metricsConfiguration.Enabled() {
		return
	}
	exportFields := []zap.Field{
		zap.String(metricsTextfileLogFieldConstant, metricsConfiguration.Textfile),
		zap.String(metricsPushgatewayLogFieldConstant, metricsConfiguration.PushgatewayURL),
	}
	if exportError := recorder.Export(executionContext, metricsConfiguration); exportError != nil {
		application.logger.Warn(metricsExportFailedMessageConstant, append(exportFields, zap.Error(exportError))...)
		return
	}
	application.logger.Debug(metricsExportedMessageConstant, exportFields...)
}
