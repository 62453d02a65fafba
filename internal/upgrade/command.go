package upgrade

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/poetry-up/internal/execshell"
	"github.com/temirov/poetry-up/internal/githubcli"
	"github.com/temirov/poetry-up/internal/gitrepo"
	"github.com/temirov/poetry-up/internal/poetry"
	"github.com/temirov/poetry-up/internal/ui"
	flagutils "github.com/temirov/poetry-up/internal/utils/flags"
)

const (
	commandUseConstant                    = "poetry-up [PACKAGES...]"
	commandShortDescriptionConstant       = "Upgrade Python dependencies managed by Poetry"
	commandLongDescriptionConstant        = "poetry-up upgrades outdated Poetry dependencies one package at a time, committing each upgrade on its own branch and optionally pushing it and opening a pull or merge request."
	commandExecutionErrorTemplateConstant = "upgrade failed: %w"
	installFlagNameConstant               = "install"
	installFlagUsageConstant              = "Install the upgraded dependency into the environment"
	commitFlagNameConstant                = "commit"
	commitFlagUsageConstant               = "Commit each upgrade on its own branch"
	pushFlagNameConstant                  = "push"
	pushFlagUsageConstant                 = "Push the upgrade branch to the remote"
	mergeRequestFlagNameConstant          = "merge-request"
	mergeRequestFlagUsageConstant         = "Ask the remote to open a GitLab merge request when pushing"
	pullRequestFlagNameConstant           = "pull-request"
	pullRequestFlagUsageConstant          = "Open a GitHub pull request for the upgrade branch"
	latestFlagNameConstant                = "latest"
	latestFlagUsageConstant               = "Also upgrade packages whose latest version is outside the declared constraint"
	upstreamFlagNameConstant              = "upstream"
	upstreamFlagShorthandConstant         = "u"
	upstreamFlagUsageConstant             = "Branch the upgrade branches start from and requests target"
	remoteFlagNameConstant                = "remote"
	remoteFlagShorthandConstant           = "r"
	remoteFlagUsageConstant               = "Remote to push upgrade branches to"
	repositoryPathFlagNameConstant        = "cwd"
	repositoryPathFlagShorthandConstant   = "C"
	repositoryPathFlagUsageConstant       = "Run as if started in this directory"
	dryRunFlagNameConstant                = "dry-run"
	dryRunFlagShorthandConstant           = "n"
	dryRunFlagUsageConstant               = "List eligible upgrades without changing anything"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current upgrade configuration.
type ConfigurationProvider func() CommandConfiguration

// HumanReadableLoggingProvider reports whether console logging was requested.
type HumanReadableLoggingProvider func() bool

// DependencySettings carries presentation choices into a DependenciesResolver.
type DependencySettings struct {
	HumanReadableLogging bool
	Output               io.Writer
	Colorize             bool
}

// DependenciesResolver creates runner collaborators for the command.
type DependenciesResolver interface {
	Resolve(logger *zap.Logger, settings DependencySettings) (Dependencies, error)
}

// CommandBuilder assembles the upgrade command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	ConfigurationProvider        ConfigurationProvider
	HumanReadableLoggingProvider HumanReadableLoggingProvider
	DependenciesResolver         DependenciesResolver
	ColorProvider                func() bool
}

// Build constructs the upgrade command with its flags.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	upgradeCommand := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.runUpgrade,
	}

	defaults := DefaultOptions()
	flagSet := upgradeCommand.Flags()
	flagutils.AddNegatableToggleFlag(flagSet, nil, installFlagNameConstant, "", defaults.Install, installFlagUsageConstant)
	flagutils.AddNegatableToggleFlag(flagSet, nil, commitFlagNameConstant, "", defaults.Commit, commitFlagUsageConstant)
	flagutils.AddNegatableToggleFlag(flagSet, nil, pushFlagNameConstant, "", defaults.Push, pushFlagUsageConstant)
	flagutils.AddNegatableToggleFlag(flagSet, nil, mergeRequestFlagNameConstant, "", defaults.MergeRequest, mergeRequestFlagUsageConstant)
	flagutils.AddNegatableToggleFlag(flagSet, nil, pullRequestFlagNameConstant, "", defaults.PullRequest, pullRequestFlagUsageConstant)
	flagutils.AddNegatableToggleFlag(flagSet, nil, latestFlagNameConstant, "", defaults.Latest, latestFlagUsageConstant)
	flagSet.StringP(upstreamFlagNameConstant, upstreamFlagShorthandConstant, defaults.Upstream, upstreamFlagUsageConstant)
	flagSet.StringP(remoteFlagNameConstant, remoteFlagShorthandConstant, defaults.Remote, remoteFlagUsageConstant)
	flagSet.StringP(repositoryPathFlagNameConstant, repositoryPathFlagShorthandConstant, defaults.RepositoryPath, repositoryPathFlagUsageConstant)
	flagSet.BoolP(dryRunFlagNameConstant, dryRunFlagShorthandConstant, defaults.DryRun, dryRunFlagUsageConstant)

	return upgradeCommand, nil
}

func (builder *CommandBuilder) runUpgrade(command *cobra.Command, arguments []string) error {
	options, optionsError := builder.parseOptions(command, arguments)
	if optionsError != nil {
		return optionsError
	}

	logger := builder.resolveLogger()
	dependencies, dependenciesError := builder.resolveDependencies(logger, command.OutOrStdout())
	if dependenciesError != nil {
		return dependenciesError
	}

	runner, runnerError := NewRunner(dependencies)
	if runnerError != nil {
		return runnerError
	}

	if _, runError := runner.Run(command.Context(), options); runError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, runError)
	}

	return nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command, arguments []string) (Options, error) {
	configuration := builder.resolveConfiguration()
	options := configuration.Options()
	flagSet := command.Flags()

	toggleTargets := []struct {
		flagName string
		target   *bool
	}{
		{flagName: installFlagNameConstant, target: &options.Install},
		{flagName: commitFlagNameConstant, target: &options.Commit},
		{flagName: pushFlagNameConstant, target: &options.Push},
		{flagName: mergeRequestFlagNameConstant, target: &options.MergeRequest},
		{flagName: pullRequestFlagNameConstant, target: &options.PullRequest},
		{flagName: latestFlagNameConstant, target: &options.Latest},
	}
	for _, toggleTarget := range toggleTargets {
		if !flagutils.ToggleChanged(flagSet, toggleTarget.flagName) {
			continue
		}
		toggleValue, toggleError := flagSet.GetBool(toggleTarget.flagName)
		if toggleError != nil {
			return Options{}, toggleError
		}
		*toggleTarget.target = toggleValue
	}

	stringTargets := []struct {
		flagName string
		target   *string
	}{
		{flagName: upstreamFlagNameConstant, target: &options.Upstream},
		{flagName: remoteFlagNameConstant, target: &options.Remote},
		{flagName: repositoryPathFlagNameConstant, target: &options.RepositoryPath},
	}
	for _, stringTarget := range stringTargets {
		flagValue, changed, flagError := changedStringFlag(flagSet, stringTarget.flagName)
		if flagError != nil {
			return Options{}, flagError
		}
		if changed {
			*stringTarget.target = flagValue
		}
	}
	options.RepositoryPath = upgradeConfigurationHomeDirectoryExpander.Expand(options.RepositoryPath)

	if flagSet.Changed(dryRunFlagNameConstant) {
		dryRunValue, dryRunError := flagSet.GetBool(dryRunFlagNameConstant)
		if dryRunError != nil {
			return Options{}, dryRunError
		}
		options.DryRun = dryRunValue
	}

	if packageNames := sanitizePackageNames(arguments); len(packageNames) > 0 {
		options.Packages = packageNames
	}

	return options, nil
}

func changedStringFlag(flagSet *pflag.FlagSet, flagName string) (string, bool, error) {
	if !flagSet.Changed(flagName) {
		return "", false, nil
	}
	flagValue, flagError := flagSet.GetString(flagName)
	if flagError != nil {
		return "", false, flagError
	}
	return strings.TrimSpace(flagValue), true, nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	configuration := DefaultConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}
	return configuration.Sanitize()
}

func (builder *CommandBuilder) resolveDependencies(logger *zap.Logger, output io.Writer) (Dependencies, error) {
	settings := DependencySettings{
		Output:   output,
		Colorize: !color.NoColor,
	}
	if builder.HumanReadableLoggingProvider != nil {
		settings.HumanReadableLogging = builder.HumanReadableLoggingProvider()
	}
	if builder.ColorProvider != nil {
		settings.Colorize = builder.ColorProvider()
	}

	if builder.DependenciesResolver != nil {
		return builder.DependenciesResolver.Resolve(logger, settings)
	}

	return DefaultDependenciesResolver{}.Resolve(logger, settings)
}

// DefaultDependenciesResolver wires git, poetry, and the GitHub CLI through a shared ShellExecutor.
type DefaultDependenciesResolver struct {
	CommandRunner execshell.CommandRunner
}

// Resolve builds the production collaborators.
func (resolver DefaultDependenciesResolver) Resolve(logger *zap.Logger, settings DependencySettings) (Dependencies, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	commandRunner := resolver.CommandRunner
	if commandRunner == nil {
		commandRunner = execshell.NewOSCommandRunner()
	}

	executorLogger := logger
	var observers []execshell.CommandEventObserver
	if settings.HumanReadableLogging {
		executorLogger = zap.NewNop()
		observers = append(observers, ui.NewConsoleCommandEventLogger(logger))
	}

	shellExecutor, executorError := execshell.NewShellExecutor(executorLogger, commandRunner, observers...)
	if executorError != nil {
		return Dependencies{}, executorError
	}

	repositoryManager, managerError := gitrepo.NewRepositoryManager(shellExecutor)
	if managerError != nil {
		return Dependencies{}, managerError
	}

	poetryClient, poetryError := poetry.NewClient(shellExecutor, logger)
	if poetryError != nil {
		return Dependencies{}, poetryError
	}

	githubClient, githubError := githubcli.NewClient(shellExecutor)
	if githubError != nil {
		return Dependencies{}, githubError
	}

	return Dependencies{
		VersionControl: repositoryManager,
		PackageManager: poetryClient,
		ReviewPlatform: githubClient,
		Reporter:       NewConsoleReporter(settings.Output, settings.Colorize),
		Logger:         logger,
	}, nil
}
