package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/tyemirov/repomirror/internal/backup"
	"github.com/tyemirov/repomirror/internal/execshell"
	"github.com/tyemirov/repomirror/internal/gitea"
	"github.com/tyemirov/repomirror/internal/utils"
	flagutils "github.com/tyemirov/repomirror/internal/utils/flags"
	"github.com/tyemirov/repomirror/internal/version"
)

const (
	applicationNameConstant                                  = "repomirror"
	applicationShortDescriptionConstant                      = "Keep backup hosts mirroring every repository of the source hosts"
	applicationLongDescriptionConstant                       = "repomirror discovers repositories on source and backup git hosts, picks the authoritative copy of every repository, mirrors it to each backup host and optionally scrubs backups whose source is gone."
	configFileFlagNameConstant                               = "config"
	configFileFlagUsageConstant                              = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                                 = "log-level"
	logLevelFlagUsageConstant                                = "Override the configured log level."
	logFormatFlagNameConstant                                = "log-format"
	logFormatFlagUsageConstant                               = "Override the configured log format."
	configurationInitializationFlagNameConstant              = "init"
	configurationInitializationFlagUsageConstant             = "Write the embedded default configuration to LOCAL (./config.yaml) or user ($XDG_CONFIG_HOME/repomirror/config.yaml, falling back to $HOME/.repomirror/config.yaml)."
	configurationInitializationDefaultScopeConstant          = "local"
	configurationInitializationOverwriteFlagNameConstant     = "overwrite"
	configurationInitializationOverwriteFlagUsageConstant    = "Overwrite an existing configuration file when initializing."
	configurationInitializationSuccessMessageConstant        = "configuration file created"
	configurationInitializationSuccessOutputTemplateConstant = "configuration written to %s\n"
	commonConfigurationKeyConstant                           = "common"
	commonLogLevelConfigKeyConstant                          = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant                         = commonConfigurationKeyConstant + ".log_format"
	syncConfigurationKeyConstant                             = "sync"
	syncDryRunConfigKeyConstant                              = syncConfigurationKeyConstant + ".dry_run"
	syncForceConfigKeyConstant                               = syncConfigurationKeyConstant + ".force"
	syncScrubConfigKeyConstant                               = syncConfigurationKeyConstant + ".scrub"
	syncScrubOnlyConfigKeyConstant                           = syncConfigurationKeyConstant + ".scrub_only"
	syncDiscoveryWorkersConfigKeyConstant                    = syncConfigurationKeyConstant + ".discovery_workers"
	gitConfigurationKeyConstant                              = "git"
	gitWorkDirectoryConfigKeyConstant                        = gitConfigurationKeyConstant + ".work_directory"
	gitSSHCommandConfigKeyConstant                           = gitConfigurationKeyConstant + ".ssh_command"
	metricsConfigurationKeyConstant                          = "metrics"
	metricsTextfileConfigKeyConstant                         = metricsConfigurationKeyConstant + ".textfile"
	metricsPushgatewayURLConfigKeyConstant                   = metricsConfigurationKeyConstant + ".pushgateway_url"
	metricsJobConfigKeyConstant                              = metricsConfigurationKeyConstant + ".job"
	environmentPrefixConstant                                = "REPOMIRROR"
	configurationNameConstant                                = "config"
	configurationTypeConstant                                = "yaml"
	configurationFileNameConstant                            = configurationNameConstant + "." + configurationTypeConstant
	configurationInitializedMessageConstant                  = "configuration initialized"
	configurationLogLevelFieldConstant                       = "log_level"
	configurationLogFormatFieldConstant                      = "log_format"
	configurationFileFieldConstant                           = "config_file"
	xdgConfigHomeEnvironmentVariableConstant                 = "XDG_CONFIG_HOME"
	configurationLoadErrorTemplateConstant                   = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant                      = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant                          = "unable to flush logger: %w"
	commandErrorOutputTemplateConstant                       = "%s: %v\n"
	defaultConfigurationSearchPathConstant                   = "."
	homeConfigurationDirectoryNameConstant                   = ".repomirror"
	configurationSearchPathEnvironmentVariableConstant       = "REPOMIRROR_CONFIG_SEARCH_PATH"
	versionFlagNameConstant                                  = "version"
	versionFlagUsageConstant                                 = "Print the application version and exit"
	versionOutputTemplateConstant                            = "repomirror version: %s\n"
	versionCommandUseNameConstant                            = "version"
	versionCommandShortDescriptionConstant                   = "Print the repomirror version"
	versionCommandLongDescriptionConstant                    = "version prints the current repomirror release identifier."
	giteaRequestTimeoutConstant                              = 60 * time.Second
)

type loggerOutputsFactory interface {
	CreateLoggerOutputs(utils.LogLevel, utils.LogFormat) (utils.LoggerOutputs, error)
}

type logFormatResolver interface {
	ResolveFormat(utils.LogFormat) utils.LogFormat
}

// ApplicationOption customizes the collaborators an Application wires into its commands.
type ApplicationOption func(*Application)

// WithCommandRunner replaces the process runner used for git and gh invocations.
func WithCommandRunner(commandRunner execshell.CommandRunner) ApplicationOption {
	return func(application *Application) {
		if commandRunner != nil {
			application.commandRunner = commandRunner
		}
	}
}

// WithHTTPClient replaces the HTTP client used by REST-backed hosts.
func WithHTTPClient(httpClient gitea.HTTPClient) ApplicationOption {
	return func(application *Application) {
		if httpClient != nil {
			application.httpClient = httpClient
		}
	}
}

// WithEnvironmentLookup replaces the lookup used to resolve host tokens.
func WithEnvironmentLookup(lookupEnvironment func(string) (string, bool)) ApplicationOption {
	return func(application *Application) {
		if lookupEnvironment != nil {
			application.lookupEnvironment = lookupEnvironment
		}
	}
}

// WithFileSystem replaces the file system backing local hosts.
func WithFileSystem(fileSystem afero.Fs) ApplicationOption {
	return func(application *Application) {
		if fileSystem != nil {
			application.fileSystem = fileSystem
		}
	}
}

// WithVersionResolver replaces the version lookup used by the version command.
func WithVersionResolver(resolver func() string) ApplicationOption {
	return func(application *Application) {
		if resolver != nil {
			application.versionResolver = resolver
		}
	}
}

// Application wires configuration, logging and the cobra command tree.
type Application struct {
	rootCommand                          *cobra.Command
	configurationLoader                  *utils.ConfigurationLoader
	loggerFactory                        loggerOutputsFactory
	logger                               *zap.Logger
	consoleLogger                        *zap.Logger
	commandContextAccessor               utils.CommandContextAccessor
	configuration                        ApplicationConfiguration
	configurationMetadata                utils.LoadedConfiguration
	configurationFilePath                string
	logLevelFlagValue                    string
	logFormatFlagValue                   string
	configurationInitializationScope     string
	configurationInitializationOverwrite bool
	versionFlag                          bool
	versionResolver                      func() string
	commandRunner                        execshell.CommandRunner
	httpClient                           gitea.HTTPClient
	fileSystem                           afero.Fs
	lookupEnvironment                    func(string) (string, bool)
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication(options ...ApplicationOption) *Application {
	application := &Application{
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		consoleLogger:          zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		versionResolver: func() string {
			return version.Detect(version.Dependencies{})
		},
		commandRunner:     execshell.OSCommandRunner{},
		httpClient:        &http.Client{Timeout: giteaRequestTimeoutConstant},
		fileSystem:        afero.NewOsFs(),
		lookupEnvironment: os.LookupEnv,
	}
	for _, option := range options {
		option(application)
	}

	application.configurationLoader = utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		newConfigurationLocator(application.lookupEnvironment).searchPaths(),
	)
	embeddedConfigurationData, embeddedConfigurationType := EmbeddedDefaultConfiguration()
	application.configurationLoader.SetEmbeddedConfiguration(embeddedConfigurationData, embeddedConfigurationType)

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", flagutils.FormatChoiceUsage(
		string(utils.LogLevelError),
		[]string{string(utils.LogLevelDebug), string(utils.LogLevelInfo), string(utils.LogLevelWarn), string(utils.LogLevelError)},
		logLevelFlagUsageConstant,
	))
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", flagutils.FormatChoiceUsage(
		string(utils.LogFormatAuto),
		[]string{string(utils.LogFormatAuto), string(utils.LogFormatStructured), string(utils.LogFormatConsole)},
		logFormatFlagUsageConstant,
	))
	cobraCommand.Flags().StringVar(
		&application.configurationInitializationScope,
		configurationInitializationFlagNameConstant,
		configurationInitializationDefaultScopeConstant,
		flagutils.FormatChoiceUsage(
			configurationInitializationDefaultScopeConstant,
			[]string{initializationScopeLocalConstant, initializationScopeUserConstant},
			configurationInitializationFlagUsageConstant,
		),
	)
	cobraCommand.Flags().BoolVar(
		&application.configurationInitializationOverwrite,
		configurationInitializationOverwriteFlagNameConstant,
		false,
		configurationInitializationOverwriteFlagUsageConstant,
	)
	cobraCommand.Flags().BoolVar(&application.versionFlag, versionFlagNameConstant, false, versionFlagUsageConstant)

	application.registerCommands(cobraCommand)
	application.rootCommand = cobraCommand

	return application
}

// Execute runs the command tree with the provided arguments and flushes the loggers.
func (application *Application) Execute(arguments []string, standardOutput io.Writer, standardError io.Writer) error {
	application.rootCommand.SetArgs(normalizeInitializationScopeArguments(arguments))
	application.rootCommand.SetOut(standardOutput)
	application.rootCommand.SetErr(standardError)

	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Run executes the CLI for the given process arguments (program name first) and returns the exit status.
// Configuration and usage errors exit with backup.ExitCodeFatal.
func Run(arguments []string, standardInput io.Reader, standardOutput io.Writer, standardError io.Writer) int {
	return runApplication(NewApplication(), arguments, standardOutput, standardError)
}

func runApplication(application *Application, arguments []string, standardOutput io.Writer, standardError io.Writer) int {
	commandArguments := []string{}
	if len(arguments) > 1 {
		commandArguments = arguments[1:]
	}

	executionError := application.Execute(commandArguments, standardOutput, standardError)
	if executionError == nil {
		return backup.ExitCodeSuccess
	}

	var exitCodeError ExitCodeError
	if errors.As(executionError, &exitCodeError) {
		return exitCodeError.Code
	}
	fmt.Fprintf(standardError, commandErrorOutputTemplateConstant, applicationNameConstant, executionError)
	return backup.ExitCodeFatal
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	application.configuration = ApplicationConfiguration{}
	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultConfigurationValues(), &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}
	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	loggerOutputs, loggerCreationError := application.loggerFactory.CreateLoggerOutputs(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = loggerOutputs.DiagnosticLogger
	if application.logger == nil {
		application.logger = zap.NewNop()
	}
	application.consoleLogger = loggerOutputs.ConsoleLogger
	if application.consoleLogger == nil {
		application.consoleLogger = zap.NewNop()
	}

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(command.Context(), application.configurationMetadata.ConfigFileUsed)
		updatedContext = application.commandContextAccessor.WithExecutionFlags(updatedContext, flagutils.CollectExecutionFlags(command))
		updatedContext = application.commandContextAccessor.WithLogLevel(updatedContext, application.configuration.Common.LogLevel)
		command.SetContext(updatedContext)
	}

	return nil
}

// ConfigFileUsed returns the configuration file path used during initialization.
func (application *Application) ConfigFileUsed() string {
	return application.configurationMetadata.ConfigFileUsed
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.versionFlag {
		application.printVersion(command)
		return nil
	}

	initializationHandled, initializationError := application.handleConfigurationInitialization(command)
	if initializationError != nil {
		return initializationError
	}
	if initializationHandled {
		return nil
	}

	return command.Help()
}

func (application *Application) printVersion(command *cobra.Command) {
	fmt.Fprintf(command.OutOrStdout(), versionOutputTemplateConstant, application.versionResolver())
}

func (application *Application) handleConfigurationInitialization(command *cobra.Command) (bool, error) {
	if command == nil || !command.Flags().Changed(configurationInitializationFlagNameConstant) {
		return false, nil
	}

	targetPath, targetError := newConfigurationLocator(application.lookupEnvironment).initializationTarget(application.configurationInitializationScope)
	if targetError != nil {
		return true, targetError
	}
	configurationContent, _ := EmbeddedDefaultConfiguration()
	if writeError := writeInitialConfiguration(application.fileSystem, targetPath, configurationContent, application.configurationInitializationOverwrite); writeError != nil {
		return true, writeError
	}

	application.logger.Info(configurationInitializationSuccessMessageConstant, zap.String(configurationFileFieldConstant, targetPath))
	fmt.Fprintf(command.OutOrStdout(), configurationInitializationSuccessOutputTemplateConstant, targetPath)
	return true, nil
}

func (application *Application) flushLogger() error {
	if syncError := syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}
	return syncLoggerInstance(application.consoleLogger)
}

func syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP), errors.Is(syncError, syscall.EINVAL), errors.Is(syncError, syscall.EBADF), errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}
	if rootCommand := command.Root(); rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet != nil && flagSet.Changed(flagName) {
			return true
		}
	}
	return false
}
